package surveysdk

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"

	"github.com/sol-bridge/202505-breakout-hackathon/internal/engine"
	"github.com/sol-bridge/202505-breakout-hackathon/internal/instruction"
)

// Client is a minimal survey rewards HTTP API client. Instruction helpers build and sign the
// envelope locally; the private keys never leave the process.
type Client struct {
	BaseURL     string
	APIKey      string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration

	programMu sync.Mutex
	programID *solana.PublicKey
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// Program describes the program the server runs.
type Program struct {
	ProgramID                 string `json:"program_id"`
	CampaignRecordLen         int    `json:"campaign_record_len"`
	ParticipantRecordLen      int    `json:"participant_record_len"`
	CampaignMinimumBalance    uint64 `json:"campaign_minimum_balance"`
	ParticipantMinimumBalance uint64 `json:"participant_minimum_balance"`
}

// Transaction is the outcome of a committed instruction.
type Transaction struct {
	TxID        string `json:"tx_id"`
	Operation   string `json:"operation"`
	SurveyID    string `json:"survey_id"`
	Campaign    string `json:"campaign"`
	Participant string `json:"participant,omitempty"`
}

type Campaign struct {
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

// Survey is the read-only status view of one survey.
type Survey struct {
	Address        string   `json:"address"`
	Campaign       Campaign `json:"campaign"`
	Lamports       uint64   `json:"lamports"`
	VaultAddress   string   `json:"vault_address,omitempty"`
	VaultBalance   uint64   `json:"vault_balance"`
	RemainingSlots uint32   `json:"remaining_slots"`
}

type Participant struct {
	Address       string `json:"address"`
	SurveyID      string `json:"survey_id"`
	Participant   string `json:"participant"`
	ClaimedNative bool   `json:"claimed_native"`
	ClaimedToken  bool   `json:"claimed_token"`
	ReceivedNFT   bool   `json:"received_nft"`
	ClaimedAt     *int64 `json:"claimed_at,omitempty"`
}

type TokenAccount struct {
	Address string `json:"address"`
	Mint    string `json:"mint"`
	Owner   string `json:"owner"`
	Amount  uint64 `json:"amount"`
}

type Account struct {
	Address  string         `json:"address"`
	Owner    string         `json:"owner"`
	Lamports uint64         `json:"lamports"`
	Data     string         `json:"data,omitempty"`
	Tokens   []TokenAccount `json:"tokens"`
}

// TokenBalance returns the amount held for mint, zero when no token account exists.
func (a Account) TokenBalance(mint string) uint64 {
	for _, t := range a.Tokens {
		if t.Mint == mint {
			return t.Amount
		}
	}
	return 0
}

type Mint struct {
	Address   string `json:"address"`
	Authority string `json:"authority"`
	Decimals  uint8  `json:"decimals"`
	Supply    uint64 `json:"supply"`
}

// Event represents a log entry.
type Event struct {
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

// PaginatedEvents wraps list responses with cursors.
type PaginatedEvents struct {
	Items      []Event `json:"items"`
	NextCursor string  `json:"next_cursor"`
}

// EventQuery filters an event listing. Zero fields are ignored.
type EventQuery struct {
	SurveyID   string
	Type       string
	EntityKind string
	EntityID   string
	TxID       string
	Limit      int
	Cursor     string
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error: status=%d code=%s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// IsCode reports whether err is an APIError carrying code (for program errors, the code name,
// e.g. "SurveyFull").
func IsCode(err error, code string) bool {
	var ae *APIError
	return errors.As(err, &ae) && ae.Code == code
}

// Program returns the server's program description.
func (c *Client) Program(ctx context.Context) (Program, error) {
	var resp Program
	err := c.do(ctx, http.MethodGet, "v0/program", nil, &resp)
	return resp, err
}

// ProgramID returns the program id the server signs messages against, fetched once.
func (c *Client) ProgramID(ctx context.Context) (solana.PublicKey, error) {
	c.programMu.Lock()
	defer c.programMu.Unlock()
	if c.programID != nil {
		return *c.programID, nil
	}
	p, err := c.Program(ctx)
	if err != nil {
		return solana.PublicKey{}, err
	}
	id, err := solana.PublicKeyFromBase58(p.ProgramID)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("server program id: %w", err)
	}
	c.programID = &id
	return id, nil
}

// Sign builds an envelope for ix over accounts and signs it with signers. Signers are matched to
// the accounts flagged as signer, in order.
func Sign(programID solana.PublicKey, ix instruction.Instruction, accounts []*solana.AccountMeta, signers ...solana.PrivateKey) (engine.Envelope, error) {
	data, err := instruction.Encode(ix)
	if err != nil {
		return engine.Envelope{}, err
	}
	env := engine.Envelope{Data: data, Accounts: accounts}
	msg := env.Message(programID)
	byKey := make(map[solana.PublicKey]solana.PrivateKey, len(signers))
	for _, s := range signers {
		byKey[s.PublicKey()] = s
	}
	for _, m := range accounts {
		if m == nil || !m.IsSigner {
			continue
		}
		key, ok := byKey[m.PublicKey]
		if !ok {
			return engine.Envelope{}, fmt.Errorf("no private key for signer %s", m.PublicKey)
		}
		sig, err := key.Sign(msg)
		if err != nil {
			return engine.Envelope{}, fmt.Errorf("sign: %w", err)
		}
		env.Signatures = append(env.Signatures, sig)
	}
	return env, nil
}

type accountMeta struct {
	Pubkey     string `json:"pubkey"`
	IsSigner   bool   `json:"is_signer,omitempty"`
	IsWritable bool   `json:"is_writable,omitempty"`
}

// Submit posts a signed envelope.
func (c *Client) Submit(ctx context.Context, env engine.Envelope) (Transaction, error) {
	body := struct {
		Data       string        `json:"data"`
		Accounts   []accountMeta `json:"accounts"`
		Signatures []string      `json:"signatures,omitempty"`
	}{Data: base64.StdEncoding.EncodeToString(env.Data), Accounts: []accountMeta{}}
	for _, m := range env.Accounts {
		body.Accounts = append(body.Accounts, accountMeta{Pubkey: m.PublicKey.String(), IsSigner: m.IsSigner, IsWritable: m.IsWritable})
	}
	for _, s := range env.Signatures {
		body.Signatures = append(body.Signatures, s.String())
	}
	var resp Transaction
	err := c.do(ctx, http.MethodPost, "v0/transactions", body, &resp)
	return resp, err
}

func (c *Client) signAndSubmit(ctx context.Context, ix instruction.Instruction, accounts []*solana.AccountMeta, signers ...solana.PrivateKey) (Transaction, error) {
	programID, err := c.ProgramID(ctx)
	if err != nil {
		return Transaction{}, err
	}
	env, err := Sign(programID, ix, accounts, signers...)
	if err != nil {
		return Transaction{}, err
	}
	return c.Submit(ctx, env)
}

// InitializeSurvey creates a survey owned by owner, paying rewards in mint.
func (c *Client) InitializeSurvey(ctx context.Context, owner solana.PrivateKey, ix instruction.InitializeSurvey, mint solana.PublicKey) (Transaction, error) {
	return c.signAndSubmit(ctx, ix, []*solana.AccountMeta{
		solana.Meta(owner.PublicKey()).SIGNER().WRITE(),
		solana.Meta(mint),
	}, owner)
}

// ClaimReward claims the survey reward for participant.
func (c *Client) ClaimReward(ctx context.Context, participant solana.PrivateKey, surveyID string) (Transaction, error) {
	return c.signAndSubmit(ctx, instruction.ClaimReward{SurveyID: surveyID}, []*solana.AccountMeta{
		solana.Meta(participant.PublicKey()).SIGNER().WRITE(),
	}, participant)
}

// DistributeNft mints one token of mint to participant, signed by the survey owner.
func (c *Client) DistributeNft(ctx context.Context, owner solana.PrivateKey, surveyID string, participant, mint solana.PublicKey) (Transaction, error) {
	return c.signAndSubmit(ctx, instruction.DistributeNft{SurveyID: surveyID}, []*solana.AccountMeta{
		solana.Meta(owner.PublicKey()).SIGNER(),
		solana.Meta(participant).WRITE(),
		solana.Meta(mint).WRITE(),
	}, owner)
}

// CloseSurvey closes the survey. The remaining balance goes to destination, or to the owner when
// destination is nil.
func (c *Client) CloseSurvey(ctx context.Context, owner solana.PrivateKey, surveyID string, destination *solana.PublicKey) (Transaction, error) {
	accounts := []*solana.AccountMeta{solana.Meta(owner.PublicKey()).SIGNER().WRITE()}
	if destination != nil {
		accounts = append(accounts, solana.Meta(*destination).WRITE())
	}
	return c.signAndSubmit(ctx, instruction.CloseSurvey{SurveyID: surveyID}, accounts, owner)
}

// Survey returns the status of a survey.
func (c *Client) Survey(ctx context.Context, surveyID string) (Survey, error) {
	var resp Survey
	err := c.do(ctx, http.MethodGet, "v0/surveys/"+url.PathEscape(surveyID), nil, &resp)
	return resp, err
}

// Participant returns the participant record of who in a survey.
func (c *Client) Participant(ctx context.Context, surveyID string, who solana.PublicKey) (Participant, error) {
	var resp Participant
	endpoint := fmt.Sprintf("v0/surveys/%s/participants/%s", url.PathEscape(surveyID), who)
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// Account returns the lamport balance, record bytes and token accounts of addr.
func (c *Client) Account(ctx context.Context, addr solana.PublicKey) (Account, error) {
	var resp Account
	err := c.do(ctx, http.MethodGet, "v0/accounts/"+addr.String(), nil, &resp)
	return resp, err
}

func (c *Client) Mint(ctx context.Context, addr solana.PublicKey) (Mint, error) {
	var resp Mint
	err := c.do(ctx, http.MethodGet, "v0/mints/"+addr.String(), nil, &resp)
	return resp, err
}

// EventsPage returns a paginated event listing, newest first.
func (c *Client) EventsPage(ctx context.Context, q EventQuery) (PaginatedEvents, error) {
	params := url.Values{}
	set := func(k, v string) {
		if v != "" {
			params.Set(k, v)
		}
	}
	set("survey_id", q.SurveyID)
	set("type", q.Type)
	set("entity_kind", q.EntityKind)
	set("entity_id", q.EntityID)
	set("tx_id", q.TxID)
	set("cursor", q.Cursor)
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}
	endpoint := "v0/events"
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}
	var resp PaginatedEvents
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// Airdrop credits lamports to addr. Requires operator credentials.
func (c *Client) Airdrop(ctx context.Context, addr solana.PublicKey, lamports uint64) (Account, error) {
	var resp Account
	err := c.do(ctx, http.MethodPost, "v0/admin/airdrop", map[string]any{
		"address":  addr.String(),
		"lamports": lamports,
	}, &resp)
	return resp, err
}

// CreateMint registers a mint with the given authority. Requires operator credentials.
func (c *Client) CreateMint(ctx context.Context, authority solana.PublicKey, decimals uint8) (Mint, error) {
	var resp Mint
	err := c.do(ctx, http.MethodPost, "v0/admin/mints", map[string]any{
		"authority": authority.String(),
		"decimals":  decimals,
	}, &resp)
	return resp, err
}

// MintTo mints amount of mint into owner's token account. Requires operator credentials.
func (c *Client) MintTo(ctx context.Context, mint, owner solana.PublicKey, amount uint64) (TokenAccount, error) {
	var resp TokenAccount
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("v0/admin/mints/%s/mint-to", mint), map[string]any{
		"owner":  owner.String(),
		"amount": amount,
	}, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.APIKey != "":
		req.Header.Set("X-Api-Key", c.APIKey)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(b)}
		var envelope struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(b, &envelope) == nil {
			apiErr.Code = envelope.Error.Code
			apiErr.Message = envelope.Error.Message
		}
		return apiErr
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
