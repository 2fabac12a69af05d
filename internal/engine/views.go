package engine

import (
	"context"
	"errors"

	"github.com/gagliardetto/solana-go"

	"github.com/sol-bridge/202505-breakout-hackathon/internal/domain"
	"github.com/sol-bridge/202505-breakout-hackathon/internal/keys"
	"github.com/sol-bridge/202505-breakout-hackathon/internal/records"
	"github.com/sol-bridge/202505-breakout-hackathon/internal/repo"
)

// SurveyStatus reads the persisted campaign for surveyID. It never writes.
func (e Engine) SurveyStatus(ctx context.Context, surveyID string) (domain.SurveyStatus, error) {
	addr, err := keys.Campaign(e.ProgramID, surveyID)
	if err != nil {
		return domain.SurveyStatus{}, err
	}
	acct, c, err := e.loadCampaign(ctx, nil, addr)
	if err != nil {
		return domain.SurveyStatus{}, err
	}
	if !c.Initialized || c.SurveyID != surveyID {
		return domain.SurveyStatus{}, domain.Errorf(domain.CodeSurveyNotFound, "%q", surveyID)
	}
	st := domain.SurveyStatus{
		Address:        addr,
		Campaign:       c,
		Lamports:       acct.Lamports,
		RemainingSlots: c.RemainingSlots(),
	}
	if c.TokenRewardAmount > 0 {
		vault, err := keys.TokenAccount(addr, c.RewardTokenMint)
		if err != nil {
			return domain.SurveyStatus{}, err
		}
		v := vault.String()
		st.VaultAddress = &v
		ta, err := e.Repo.GetTokenAccount(ctx, vault)
		if err != nil && !errors.Is(err, repo.ErrNotFound) {
			return domain.SurveyStatus{}, err
		}
		st.VaultBalance = ta.Amount
	}
	return st, nil
}

// ParticipantStatus reads the participant record of who in surveyID.
func (e Engine) ParticipantStatus(ctx context.Context, surveyID string, who solana.PublicKey) (domain.ParticipantStatus, error) {
	addr, err := keys.Participant(e.ProgramID, surveyID, who)
	if err != nil {
		return domain.ParticipantStatus{}, err
	}
	_, p, err := e.loadParticipant(ctx, nil, addr)
	if err != nil {
		return domain.ParticipantStatus{}, err
	}
	if !p.Initialized {
		return domain.ParticipantStatus{}, domain.Errorf(domain.CodeNotInitialized, "participant %s has no record in survey %q", who, surveyID)
	}
	return domain.ParticipantStatus{Address: addr, Participant: p}, nil
}

// ListSurveys returns up to limit initialized campaigns, most recently updated first. Vault
// balances are not loaded; use SurveyStatus for one survey's full view.
func (e Engine) ListSurveys(ctx context.Context, limit int) ([]domain.SurveyStatus, error) {
	accts, err := e.Repo.ListAccountsByOwner(ctx, e.ProgramID, records.CampaignLen, limit)
	if err != nil {
		return nil, err
	}
	out := make([]domain.SurveyStatus, 0, len(accts))
	for _, a := range accts {
		c, err := records.DecodeCampaign(a.Data)
		if err != nil || !c.Initialized {
			continue
		}
		out = append(out, domain.SurveyStatus{
			Address:        a.Address,
			Campaign:       c,
			Lamports:       a.Lamports,
			RemainingSlots: c.RemainingSlots(),
		})
	}
	return out, nil
}
