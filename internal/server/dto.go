package server

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go"

	"github.com/sol-bridge/202505-breakout-hackathon/internal/domain"
	"github.com/sol-bridge/202505-breakout-hackathon/internal/engine"
)

// Request payloads

type AccountMetaRequest struct {
	Pubkey     string `json:"pubkey" doc:"base58 account key"`
	IsSigner   bool   `json:"is_signer,omitempty"`
	IsWritable bool   `json:"is_writable,omitempty"`
}

type SubmitTransactionRequest struct {
	Data       string               `json:"data" doc:"base64 instruction data"`
	Accounts   []AccountMetaRequest `json:"accounts"`
	Signatures []string             `json:"signatures,omitempty" doc:"base58 signatures, one per signer account in order"`
}

type AirdropRequest struct {
	Address  string `json:"address"`
	Lamports uint64 `json:"lamports"`
}

type CreateMintRequest struct {
	Address   string `json:"address,omitempty" doc:"optional; a fresh address is generated when empty"`
	Authority string `json:"authority"`
	Decimals  uint8  `json:"decimals,omitempty"`
}

type MintToRequest struct {
	Owner  string `json:"owner"`
	Amount uint64 `json:"amount"`
}

// Responses

type TransactionResponse struct {
	TxID        string `json:"tx_id"`
	Operation   string `json:"operation"`
	SurveyID    string `json:"survey_id"`
	Campaign    string `json:"campaign"`
	Participant string `json:"participant,omitempty"`
}

type CampaignResponse struct {
	SurveyID            string `json:"survey_id"`
	Owner               string `json:"owner"`
	NativeRewardAmount  uint64 `json:"native_reward_amount"`
	TokenRewardAmount   uint64 `json:"token_reward_amount"`
	RewardTokenMint     string `json:"reward_token_mint"`
	MaxParticipants     uint32 `json:"max_participants"`
	CurrentParticipants uint32 `json:"current_participants"`
	CreatedAt           int64  `json:"created_at"`
	Active              bool   `json:"active"`
	NFTCollection       string `json:"nft_collection,omitempty"`
}

type SurveyResponse struct {
	Address        string           `json:"address"`
	Campaign       CampaignResponse `json:"campaign"`
	Lamports       uint64           `json:"lamports"`
	VaultAddress   string           `json:"vault_address,omitempty"`
	VaultBalance   uint64           `json:"vault_balance"`
	RemainingSlots uint32           `json:"remaining_slots"`
}

type ParticipantResponse struct {
	Address       string `json:"address"`
	SurveyID      string `json:"survey_id"`
	Participant   string `json:"participant"`
	ClaimedNative bool   `json:"claimed_native"`
	ClaimedToken  bool   `json:"claimed_token"`
	ReceivedNFT   bool   `json:"received_nft"`
	ClaimedAt     *int64 `json:"claimed_at,omitempty"`
}

type TokenAccountResponse struct {
	Address string `json:"address"`
	Mint    string `json:"mint"`
	Owner   string `json:"owner"`
	Amount  uint64 `json:"amount"`
}

type AccountResponse struct {
	Address  string                 `json:"address"`
	Owner    string                 `json:"owner"`
	Lamports uint64                 `json:"lamports"`
	Data     string                 `json:"data,omitempty" doc:"base64 record bytes"`
	Tokens   []TokenAccountResponse `json:"tokens"`
}

type MintResponse struct {
	Address   string `json:"address"`
	Authority string `json:"authority"`
	Decimals  uint8  `json:"decimals"`
	Supply    uint64 `json:"supply"`
}

type EventResponse struct {
	ID         int64          `json:"id"`
	TS         string         `json:"ts"`
	Type       string         `json:"type"`
	TxID       string         `json:"tx_id"`
	SurveyID   string         `json:"survey_id,omitempty"`
	EntityKind string         `json:"entity_kind"`
	EntityID   string         `json:"entity_id,omitempty"`
	ActorID    string         `json:"actor_id"`
	Payload    map[string]any `json:"payload,omitempty"`
}

type paginatedEvents struct {
	Items      []EventResponse `json:"items"`
	NextCursor string          `json:"next_cursor,omitempty"`
}

// Mapping helpers

func (r SubmitTransactionRequest) envelope() (engine.Envelope, error) {
	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(r.Data))
	if err != nil {
		return engine.Envelope{}, fmt.Errorf("invalid data: %w", err)
	}
	env := engine.Envelope{Data: data}
	for i, m := range r.Accounts {
		key, err := solana.PublicKeyFromBase58(strings.TrimSpace(m.Pubkey))
		if err != nil {
			return engine.Envelope{}, fmt.Errorf("invalid account %d: %w", i, err)
		}
		env.Accounts = append(env.Accounts, &solana.AccountMeta{PublicKey: key, IsSigner: m.IsSigner, IsWritable: m.IsWritable})
	}
	for i, s := range r.Signatures {
		sig, err := solana.SignatureFromBase58(strings.TrimSpace(s))
		if err != nil {
			return engine.Envelope{}, fmt.Errorf("invalid signature %d: %w", i, err)
		}
		env.Signatures = append(env.Signatures, sig)
	}
	return env, nil
}

func transactionResponse(res engine.Result) TransactionResponse {
	out := TransactionResponse{
		TxID:      res.TxID,
		Operation: res.Operation,
		SurveyID:  res.SurveyID,
		Campaign:  res.Campaign.String(),
	}
	if res.Participant != nil {
		out.Participant = res.Participant.String()
	}
	return out
}

func campaignResponse(c domain.Campaign) CampaignResponse {
	out := CampaignResponse{
		SurveyID:            c.SurveyID,
		Owner:               c.Owner.String(),
		NativeRewardAmount:  c.NativeRewardAmount,
		TokenRewardAmount:   c.TokenRewardAmount,
		RewardTokenMint:     c.RewardTokenMint.String(),
		MaxParticipants:     c.MaxParticipants,
		CurrentParticipants: c.CurrentParticipants,
		CreatedAt:           c.CreatedAt,
		Active:              c.Active,
	}
	if c.NFTCollection != nil {
		out.NFTCollection = c.NFTCollection.String()
	}
	return out
}

func surveyResponse(st domain.SurveyStatus) SurveyResponse {
	out := SurveyResponse{
		Address:        st.Address.String(),
		Campaign:       campaignResponse(st.Campaign),
		Lamports:       st.Lamports,
		VaultBalance:   st.VaultBalance,
		RemainingSlots: st.RemainingSlots,
	}
	if st.VaultAddress != nil {
		out.VaultAddress = *st.VaultAddress
	}
	return out
}

func participantResponse(st domain.ParticipantStatus) ParticipantResponse {
	p := st.Participant
	return ParticipantResponse{
		Address:       st.Address.String(),
		SurveyID:      p.SurveyID,
		Participant:   p.Participant.String(),
		ClaimedNative: p.ClaimedNative,
		ClaimedToken:  p.ClaimedToken,
		ReceivedNFT:   p.ReceivedNFT,
		ClaimedAt:     p.ClaimedAt,
	}
}

func tokenAccountResponse(ta domain.TokenAccount) TokenAccountResponse {
	return TokenAccountResponse{
		Address: ta.Address.String(),
		Mint:    ta.Mint.String(),
		Owner:   ta.Owner.String(),
		Amount:  ta.Amount,
	}
}

func accountResponse(a domain.Account, tokens []domain.TokenAccount) AccountResponse {
	out := AccountResponse{
		Address:  a.Address.String(),
		Owner:    a.Owner.String(),
		Lamports: a.Lamports,
		Tokens:   []TokenAccountResponse{},
	}
	if len(a.Data) > 0 {
		out.Data = base64.StdEncoding.EncodeToString(a.Data)
	}
	for _, ta := range tokens {
		out.Tokens = append(out.Tokens, tokenAccountResponse(ta))
	}
	return out
}

func mintResponse(m domain.Mint) MintResponse {
	return MintResponse{
		Address:   m.Address.String(),
		Authority: m.Authority.String(),
		Decimals:  m.Decimals,
		Supply:    m.Supply,
	}
}

func eventResponse(e domain.Event) EventResponse {
	out := EventResponse{
		ID:         e.ID,
		TS:         e.TS,
		Type:       e.Type,
		TxID:       e.TxID,
		SurveyID:   e.SurveyID,
		EntityKind: e.EntityKind,
		EntityID:   e.EntityID,
		ActorID:    e.ActorID,
	}
	if e.Payload != "" {
		var payload map[string]any
		if err := json.Unmarshal([]byte(e.Payload), &payload); err == nil {
			out.Payload = payload
		}
	}
	return out
}
