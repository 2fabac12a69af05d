package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

const (
	SurveyInitialized = "survey.initialized"
	RewardClaimed     = "reward.claimed"
	NftDistributed    = "nft.distributed"
	SurveyClosed      = "survey.closed"

	LamportsAirdropped = "ledger.airdrop"
	MintCreated        = "ledger.mint_created"
	TokensMinted       = "ledger.minted"
)

// Entry identifies what an event is about. TxID groups every event written by one transaction.
type Entry struct {
	Type       string
	TxID       string
	SurveyID   string
	EntityKind string
	EntityID   string
	ActorID    string
}

type Writer struct {
	Now func() time.Time
}

type EventPayload map[string]any

// Append writes one event inside tx, so it commits or rolls back with the state it describes.
func (w Writer) Append(ctx context.Context, tx *sql.Tx, e Entry, payload EventPayload) error {
	if w.Now == nil {
		w.Now = time.Now
	}
	ts := w.Now().UTC().Format(time.RFC3339)
	if payload == nil {
		payload = EventPayload{}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO events(ts,type,tx_id,survey_id,entity_kind,entity_id,actor_id,payload_json) VALUES (?,?,?,?,?,?,?,?)`,
		ts, e.Type, e.TxID, nullable(e.SurveyID), e.EntityKind, nullable(e.EntityID), e.ActorID, string(data))
	return err
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
