package engine

import (
	"context"
	"database/sql"

	"github.com/sol-bridge/202505-breakout-hackathon/internal/domain"
	"github.com/sol-bridge/202505-breakout-hackathon/internal/engine/auth"
	"github.com/sol-bridge/202505-breakout-hackathon/internal/events"
	"github.com/sol-bridge/202505-breakout-hackathon/internal/instruction"
	"github.com/sol-bridge/202505-breakout-hackathon/internal/keys"
)

// distributeNft accounts: [0] owner (signer), [1] participant, [2] nft mint.
func (e Engine) distributeNft(ctx context.Context, tx *sql.Tx, in invocation, ix instruction.DistributeNft) (Result, error) {
	signer, err := in.signer(0)
	if err != nil {
		return Result{}, err
	}
	who, err := in.account(1)
	if err != nil {
		return Result{}, err
	}
	mint, err := in.account(2)
	if err != nil {
		return Result{}, err
	}
	campaignAddr, err := keys.Campaign(e.ProgramID, ix.SurveyID)
	if err != nil {
		return Result{}, err
	}
	cacct, c, err := e.loadCampaign(ctx, tx, campaignAddr)
	if err != nil {
		return Result{}, err
	}
	if !c.Initialized {
		return Result{}, domain.Errorf(domain.CodeNotInitialized, "survey %q", ix.SurveyID)
	}
	if err := auth.RequireSurvey(ix.SurveyID, c.SurveyID); err != nil {
		return Result{}, err
	}
	if err := auth.RequireOwner(signer, c.Owner); err != nil {
		return Result{}, err
	}
	if !c.Active {
		return Result{}, domain.Errorf(domain.CodeSurveyClosed, "survey %q", ix.SurveyID)
	}
	participantAddr, err := keys.Participant(e.ProgramID, ix.SurveyID, who)
	if err != nil {
		return Result{}, err
	}
	pacct, p, err := e.loadParticipant(ctx, tx, participantAddr)
	if err != nil {
		return Result{}, err
	}
	if !p.Initialized {
		return Result{}, domain.Errorf(domain.CodeNotInitialized, "participant %s has no record in survey %q", who, ix.SurveyID)
	}
	if p.ReceivedNFT {
		return Result{}, domain.Errorf(domain.CodeAlreadyClaimed, "participant %s already received the nft", who)
	}
	if c.NFTCollection != nil && !c.NFTCollection.Equals(mint) {
		return Result{}, domain.Errorf(domain.CodeInvalidMetadata, "mint %s is not the survey collection %s", mint, *c.NFTCollection)
	}

	dest, err := e.Ledger.EnsureTokenAccount(ctx, tx, who, mint)
	if err != nil {
		return Result{}, gatewayError("open nft token account", err)
	}
	if err := e.Ledger.MintTo(ctx, tx, mint, dest, signer, 1); err != nil {
		return Result{}, gatewayError("nft mint", err)
	}
	p.ReceivedNFT = true
	if err := e.storeParticipant(ctx, tx, pacct, p); err != nil {
		return Result{}, err
	}
	if c.NFTCollection == nil {
		c.NFTCollection = &mint
		if err := e.storeCampaign(ctx, tx, cacct, c); err != nil {
			return Result{}, err
		}
	}
	if err := e.Events.Append(ctx, tx, events.Entry{
		Type:       events.NftDistributed,
		TxID:       in.txID,
		SurveyID:   ix.SurveyID,
		EntityKind: "participant",
		EntityID:   participantAddr.String(),
		ActorID:    signer.String(),
	}, events.EventPayload{
		"participant":   who.String(),
		"mint":          mint.String(),
		"token_account": dest.String(),
	}); err != nil {
		return Result{}, err
	}
	return Result{Campaign: campaignAddr, Participant: &participantAddr}, nil
}
