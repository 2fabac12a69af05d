package domain

import "github.com/gagliardetto/solana-go"

// MaxSurveyIDLen is the widest survey id a campaign record can hold.
const MaxSurveyIDLen = 64

// Campaign is the persisted record describing one survey's reward parameters and status.
type Campaign struct {
	Initialized         bool              `json:"initialized"`
	SurveyID            string            `json:"survey_id"`
	Owner               solana.PublicKey  `json:"owner"`
	NativeRewardAmount  uint64            `json:"native_reward_amount"`
	TokenRewardAmount   uint64            `json:"token_reward_amount"`
	RewardTokenMint     solana.PublicKey  `json:"reward_token_mint"`
	MaxParticipants     uint32            `json:"max_participants"`
	CurrentParticipants uint32            `json:"current_participants"`
	CreatedAt           int64             `json:"created_at"`
	Active              bool              `json:"active"`
	NFTCollection       *solana.PublicKey `json:"nft_collection,omitempty"`
}

// RemainingSlots reports how many more participants can still be counted.
func (c Campaign) RemainingSlots() uint32 {
	if c.CurrentParticipants >= c.MaxParticipants {
		return 0
	}
	return c.MaxParticipants - c.CurrentParticipants
}

// Participant tracks one participant's claim and distribution state for one campaign.
// Counted marks the participant's first successful claim; it gates the campaign counter.
type Participant struct {
	Initialized   bool             `json:"initialized"`
	SurveyID      string           `json:"survey_id"`
	Participant   solana.PublicKey `json:"participant"`
	ClaimedNative bool             `json:"claimed_native"`
	ClaimedToken  bool             `json:"claimed_token"`
	ReceivedNFT   bool             `json:"received_nft"`
	ClaimedAt     *int64           `json:"claimed_at,omitempty"`
	Counted       bool             `json:"counted"`
}

// Account is a record-store entry: a native balance plus an opaque fixed-size data blob.
type Account struct {
	Address   solana.PublicKey `json:"address"`
	Owner     solana.PublicKey `json:"owner"`
	Lamports  uint64           `json:"lamports"`
	Data      []byte           `json:"data,omitempty"`
	UpdatedAt string           `json:"updated_at" format:"date-time"`
}

type Mint struct {
	Address   solana.PublicKey `json:"address"`
	Authority solana.PublicKey `json:"authority"`
	Decimals  uint8            `json:"decimals"`
	Supply    uint64           `json:"supply"`
	CreatedAt string           `json:"created_at" format:"date-time"`
}

type TokenAccount struct {
	Address solana.PublicKey `json:"address"`
	Mint    solana.PublicKey `json:"mint"`
	Owner   solana.PublicKey `json:"owner"`
	Amount  uint64           `json:"amount"`
}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	TxID       string `json:"tx_id"`
	SurveyID   string `json:"survey_id,omitempty"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}

// SurveyStatus is the read-only view external viewers derive from the persisted records.
type SurveyStatus struct {
	Address        solana.PublicKey `json:"address"`
	Campaign       Campaign         `json:"campaign"`
	Lamports       uint64           `json:"lamports"`
	VaultAddress   *string          `json:"vault_address,omitempty"`
	VaultBalance   uint64           `json:"vault_balance"`
	RemainingSlots uint32           `json:"remaining_slots"`
}

type ParticipantStatus struct {
	Address     solana.PublicKey `json:"address"`
	Participant Participant      `json:"participant"`
}

// APIKey is an operator credential for the host ledger endpoints. Only the hash is stored.
type APIKey struct {
	ID        string `json:"id"`
	ActorID   string `json:"actor_id"`
	Name      string `json:"name,omitempty"`
	KeyHash   string `json:"-"`
	CreatedAt string `json:"created_at" format:"date-time"`
}
