package engine

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/gagliardetto/solana-go"

	"github.com/sol-bridge/202505-breakout-hackathon/internal/domain"
	"github.com/sol-bridge/202505-breakout-hackathon/internal/engine/auth"
	"github.com/sol-bridge/202505-breakout-hackathon/internal/events"
	"github.com/sol-bridge/202505-breakout-hackathon/internal/instruction"
	"github.com/sol-bridge/202505-breakout-hackathon/internal/keys"
	"github.com/sol-bridge/202505-breakout-hackathon/internal/records"
)

// initializeSurvey accounts: [0] owner (signer), [1] reward token mint.
func (e Engine) initializeSurvey(ctx context.Context, tx *sql.Tx, in invocation, ix instruction.InitializeSurvey) (Result, error) {
	owner, err := in.signer(0)
	if err != nil {
		return Result{}, err
	}
	if err := auth.ValidateSurveyID(ix.SurveyID); err != nil {
		return Result{}, err
	}
	addr, err := keys.Campaign(e.ProgramID, ix.SurveyID)
	if err != nil {
		return Result{}, err
	}
	acct, existing, err := e.loadCampaign(ctx, tx, addr)
	if err != nil {
		return Result{}, err
	}
	// An initialized campaign rejects every re-initialization, whatever else is wrong with it.
	if existing.Initialized {
		return Result{}, domain.Errorf(domain.CodeSurveyAlreadyExists, "%s", ix.SurveyID)
	}
	mint, err := in.account(1)
	if err != nil {
		return Result{}, err
	}
	if ix.NativeRewardAmount == 0 && ix.TokenRewardAmount == 0 {
		return Result{}, domain.Errorf(domain.CodeInvalidRewardAmount, "survey pays no reward")
	}
	if need := e.Config.MinimumBalance(records.CampaignLen); acct.Lamports < need {
		return Result{}, domain.Errorf(domain.CodeInsufficientFunds, "campaign account holds %d lamports, needs %d", acct.Lamports, need)
	}

	payload := events.EventPayload{
		"owner":                owner.String(),
		"native_reward_amount": ix.NativeRewardAmount,
		"token_reward_amount":  ix.TokenRewardAmount,
		"reward_token_mint":    mint.String(),
		"max_participants":     ix.MaxParticipants,
		"native_pool":          acct.Lamports,
	}
	if ix.TokenRewardAmount > 0 {
		vault, err := e.Ledger.EnsureTokenAccount(ctx, tx, addr, mint)
		if err != nil {
			return Result{}, gatewayError("open reward vault", err)
		}
		payload["vault"] = vault.String()
	}

	c := domain.Campaign{
		Initialized:        true,
		SurveyID:           ix.SurveyID,
		Owner:              owner,
		NativeRewardAmount: ix.NativeRewardAmount,
		TokenRewardAmount:  ix.TokenRewardAmount,
		RewardTokenMint:    mint,
		MaxParticipants:    ix.MaxParticipants,
		CreatedAt:          in.now.Unix(),
		Active:             true,
	}
	if err := e.storeCampaign(ctx, tx, acct, c); err != nil {
		return Result{}, err
	}
	if err := e.Events.Append(ctx, tx, events.Entry{
		Type:       events.SurveyInitialized,
		TxID:       in.txID,
		SurveyID:   ix.SurveyID,
		EntityKind: "campaign",
		EntityID:   addr.String(),
		ActorID:    owner.String(),
	}, payload); err != nil {
		return Result{}, err
	}
	return Result{Campaign: addr}, nil
}

// closeSurvey accounts: [0] owner (signer), [1] destination (optional, defaults to owner).
func (e Engine) closeSurvey(ctx context.Context, tx *sql.Tx, in invocation, ix instruction.CloseSurvey) (Result, error) {
	signer, err := in.signer(0)
	if err != nil {
		return Result{}, err
	}
	addr, err := keys.Campaign(e.ProgramID, ix.SurveyID)
	if err != nil {
		return Result{}, err
	}
	acct, c, err := e.loadCampaign(ctx, tx, addr)
	if err != nil {
		return Result{}, err
	}
	if !c.Initialized {
		return Result{}, domain.Errorf(domain.CodeNotInitialized, "survey %q", ix.SurveyID)
	}
	if err := auth.RequireOwner(signer, c.Owner); err != nil {
		return Result{}, err
	}
	if err := auth.RequireSurvey(ix.SurveyID, c.SurveyID); err != nil {
		return Result{}, err
	}
	if !c.Active {
		return Result{}, domain.Errorf(domain.CodeSurveyClosed, "survey %q is already closed", ix.SurveyID)
	}

	dest := c.Owner
	if d, ok := in.optionalAccount(1); ok {
		dest = d
	}
	if dest.Equals(addr) {
		return Result{}, domain.Errorf(domain.CodeInvalidInstruction, "destination is the campaign account")
	}
	refund := acct.Lamports
	if err := e.creditLamports(ctx, tx, dest, refund); err != nil {
		return Result{}, err
	}
	acct.Lamports = 0
	c.Active = false
	if err := e.storeCampaign(ctx, tx, acct, c); err != nil {
		return Result{}, err
	}
	if err := e.Events.Append(ctx, tx, events.Entry{
		Type:       events.SurveyClosed,
		TxID:       in.txID,
		SurveyID:   ix.SurveyID,
		EntityKind: "campaign",
		EntityID:   addr.String(),
		ActorID:    signer.String(),
	}, events.EventPayload{
		"destination":          dest.String(),
		"refunded_lamports":    refund,
		"current_participants": c.CurrentParticipants,
	}); err != nil {
		return Result{}, err
	}
	return Result{Campaign: addr}, nil
}

// creditLamports adds amount to the account at addr, creating a system account when absent.
func (e Engine) creditLamports(ctx context.Context, tx *sql.Tx, addr solana.PublicKey, amount uint64) error {
	acct, err := e.Repo.LoadAccountTx(ctx, tx, addr)
	if err != nil {
		return fmt.Errorf("load account %s: %w", addr, err)
	}
	if acct.Lamports, err = checkedAdd64(acct.Lamports, amount); err != nil {
		return err
	}
	if err := e.Repo.PutAccountTx(ctx, tx, acct); err != nil {
		return fmt.Errorf("store account %s: %w", addr, err)
	}
	return nil
}
