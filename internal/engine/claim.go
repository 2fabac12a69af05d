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

// claimReward accounts: [0] participant (signer).
func (e Engine) claimReward(ctx context.Context, tx *sql.Tx, in invocation, ix instruction.ClaimReward) (Result, error) {
	who, err := in.signer(0)
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
		p = domain.Participant{Initialized: true, SurveyID: ix.SurveyID, Participant: who}
	}
	if !p.Counted && c.CurrentParticipants >= c.MaxParticipants {
		return Result{}, domain.Errorf(domain.CodeSurveyFull, "%d of %d participants", c.CurrentParticipants, c.MaxParticipants)
	}
	payNative := c.NativeRewardAmount > 0 && !p.ClaimedNative
	payToken := c.TokenRewardAmount > 0 && !p.ClaimedToken
	if !payNative && !payToken {
		return Result{}, domain.Errorf(domain.CodeAlreadyClaimed, "participant %s", who)
	}

	payload := events.EventPayload{"participant": who.String()}
	if payNative {
		if cacct.Lamports, err = debit(cacct.Lamports, c.NativeRewardAmount); err != nil {
			return Result{}, err
		}
		if err := e.creditLamports(ctx, tx, who, c.NativeRewardAmount); err != nil {
			return Result{}, err
		}
		p.ClaimedNative = true
		payload["native_amount"] = c.NativeRewardAmount
	}
	if payToken {
		vault, err := keys.TokenAccount(campaignAddr, c.RewardTokenMint)
		if err != nil {
			return Result{}, err
		}
		dest, err := e.Ledger.EnsureTokenAccount(ctx, tx, who, c.RewardTokenMint)
		if err != nil {
			return Result{}, gatewayError("open participant token account", err)
		}
		if err := e.Ledger.Transfer(ctx, tx, vault, dest, campaignAddr, c.TokenRewardAmount); err != nil {
			return Result{}, gatewayError("token transfer", err)
		}
		p.ClaimedToken = true
		payload["token_amount"] = c.TokenRewardAmount
		payload["token_account"] = dest.String()
	}
	if !p.Counted {
		if c.CurrentParticipants, err = checkedAdd32(c.CurrentParticipants, 1); err != nil {
			return Result{}, err
		}
		p.Counted = true
		payload["first_claim"] = true
	}
	claimedAt := in.now.Unix()
	p.ClaimedAt = &claimedAt
	payload["current_participants"] = c.CurrentParticipants

	if err := e.storeCampaign(ctx, tx, cacct, c); err != nil {
		return Result{}, err
	}
	if err := e.storeParticipant(ctx, tx, pacct, p); err != nil {
		return Result{}, err
	}
	if err := e.Events.Append(ctx, tx, events.Entry{
		Type:       events.RewardClaimed,
		TxID:       in.txID,
		SurveyID:   ix.SurveyID,
		EntityKind: "participant",
		EntityID:   participantAddr.String(),
		ActorID:    who.String(),
	}, payload); err != nil {
		return Result{}, err
	}
	return Result{Campaign: campaignAddr, Participant: &participantAddr}, nil
}
