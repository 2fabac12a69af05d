package engine

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/gagliardetto/solana-go"

	"github.com/sol-bridge/202505-breakout-hackathon/internal/domain"
	"github.com/sol-bridge/202505-breakout-hackathon/internal/records"
)

// loadCampaign reads the account at addr and decodes its campaign record. Accounts the program
// does not own, or that are too small, hold no campaign.
func (e Engine) loadCampaign(ctx context.Context, tx *sql.Tx, addr solana.PublicKey) (domain.Account, domain.Campaign, error) {
	acct, err := e.Repo.LoadAccountTx(ctx, tx, addr)
	if err != nil {
		return acct, domain.Campaign{}, fmt.Errorf("load campaign account: %w", err)
	}
	if !acct.Owner.Equals(e.ProgramID) || len(acct.Data) < records.CampaignLen {
		return acct, domain.Campaign{}, nil
	}
	c, err := records.DecodeCampaign(acct.Data)
	if err != nil {
		return acct, domain.Campaign{}, domain.Errorf(domain.CodeInvalidInstruction, "campaign record: %v", err)
	}
	return acct, c, nil
}

func (e Engine) storeCampaign(ctx context.Context, tx *sql.Tx, acct domain.Account, c domain.Campaign) error {
	data, err := records.EncodeCampaign(c)
	if err != nil {
		return domain.Errorf(domain.CodeInvalidMetadata, "encode campaign: %v", err)
	}
	acct.Owner = e.ProgramID
	acct.Data = data
	if err := e.Repo.PutAccountTx(ctx, tx, acct); err != nil {
		return fmt.Errorf("store campaign: %w", err)
	}
	return nil
}

func (e Engine) loadParticipant(ctx context.Context, tx *sql.Tx, addr solana.PublicKey) (domain.Account, domain.Participant, error) {
	acct, err := e.Repo.LoadAccountTx(ctx, tx, addr)
	if err != nil {
		return acct, domain.Participant{}, fmt.Errorf("load participant account: %w", err)
	}
	if !acct.Owner.Equals(e.ProgramID) || len(acct.Data) < records.ParticipantLen {
		return acct, domain.Participant{}, nil
	}
	p, err := records.DecodeParticipant(acct.Data)
	if err != nil {
		return acct, domain.Participant{}, domain.Errorf(domain.CodeInvalidInstruction, "participant record: %v", err)
	}
	return acct, p, nil
}

func (e Engine) storeParticipant(ctx context.Context, tx *sql.Tx, acct domain.Account, p domain.Participant) error {
	data, err := records.EncodeParticipant(p)
	if err != nil {
		return domain.Errorf(domain.CodeInvalidMetadata, "encode participant: %v", err)
	}
	acct.Owner = e.ProgramID
	acct.Data = data
	if err := e.Repo.PutAccountTx(ctx, tx, acct); err != nil {
		return fmt.Errorf("store participant: %w", err)
	}
	return nil
}
