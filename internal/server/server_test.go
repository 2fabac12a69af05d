package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/goleak"

	"github.com/sol-bridge/202505-breakout-hackathon/internal/config"
	"github.com/sol-bridge/202505-breakout-hackathon/internal/db"
	"github.com/sol-bridge/202505-breakout-hackathon/internal/engine"
	"github.com/sol-bridge/202505-breakout-hackathon/internal/events"
	"github.com/sol-bridge/202505-breakout-hackathon/internal/instruction"
	"github.com/sol-bridge/202505-breakout-hackathon/internal/keys"
	"github.com/sol-bridge/202505-breakout-hackathon/internal/migrate"
	surveysdk "github.com/sol-bridge/202505-breakout-hackathon/sdk/go"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const testJWTSecret = "test-secret"

type testServer struct {
	URL    string
	Engine engine.Engine
	// Client is anonymous; Admin carries an operator API key.
	Client *surveysdk.Client
	Admin  *surveysdk.Client
	http   *http.Client
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	workspace := t.TempDir()
	if _, err := db.EnsureWorkspace(workspace); err != nil {
		t.Fatalf("ensure workspace: %v", err)
	}
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	e, err := engine.New(conn, config.Default())
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	handler, err := New(Config{Engine: e, BasePath: "/v0", Auth: AuthConfig{JWTSecret: testJWTSecret}})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	srv := httptest.NewServer(handler)
	t.Cleanup(func() {
		srv.Close()
		conn.Close()
	})
	_, key, err := e.Repo.CreateOperatorKey(context.Background(), "operator", "tests")
	if err != nil {
		t.Fatalf("create operator key: %v", err)
	}
	client := surveysdk.New(srv.URL)
	client.HTTPClient = srv.Client()
	admin := surveysdk.New(srv.URL)
	admin.HTTPClient = srv.Client()
	admin.APIKey = key
	return &testServer{URL: srv.URL, Engine: e, Client: client, Admin: admin, http: srv.Client()}
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader = bytes.NewReader(nil)
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res, data
}

type fundedSurvey struct {
	ID    string
	Owner solana.PrivateKey
	Mint  solana.PublicKey
}

// openSurvey funds and initializes a survey over the API.
func (s *testServer) openSurvey(t *testing.T, id string, native, token uint64, max uint32) fundedSurvey {
	t.Helper()
	ctx := context.Background()
	owner := solana.NewWallet().PrivateKey
	prog, err := s.Client.Program(ctx)
	if err != nil {
		t.Fatalf("program: %v", err)
	}
	addr, err := keys.Campaign(s.Engine.ProgramID, id)
	if err != nil {
		t.Fatalf("campaign address: %v", err)
	}
	if _, err := s.Admin.Airdrop(ctx, addr, prog.CampaignMinimumBalance+native*uint64(max)); err != nil {
		t.Fatalf("airdrop: %v", err)
	}
	mint, err := s.Admin.CreateMint(ctx, owner.PublicKey(), 6)
	if err != nil {
		t.Fatalf("create mint: %v", err)
	}
	mintKey := solana.MustPublicKeyFromBase58(mint.Address)
	if token > 0 {
		if _, err := s.Admin.MintTo(ctx, mintKey, addr, token*uint64(max)); err != nil {
			t.Fatalf("mint to vault: %v", err)
		}
	}
	ix := instruction.InitializeSurvey{SurveyID: id, NativeRewardAmount: native, TokenRewardAmount: token, MaxParticipants: max}
	if _, err := s.Client.InitializeSurvey(ctx, owner, ix, mintKey); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	return fundedSurvey{ID: id, Owner: owner, Mint: mintKey}
}

func TestSurveyLifecycleOverHTTP(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	sv := s.openSurvey(t, "http-1", 1_000, 50, 2)

	p := solana.NewWallet().PrivateKey
	tx, err := s.Client.ClaimReward(ctx, p, sv.ID)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if tx.Operation != "ClaimReward" || tx.TxID == "" || tx.Participant == "" {
		t.Fatalf("unexpected transaction %+v", tx)
	}
	acct, err := s.Client.Account(ctx, p.PublicKey())
	if err != nil {
		t.Fatalf("account: %v", err)
	}
	if acct.Lamports != 1_000 || acct.TokenBalance(sv.Mint.String()) != 50 {
		t.Fatalf("unexpected balances %+v", acct)
	}

	_, err = s.Client.ClaimReward(ctx, p, sv.ID)
	if !surveysdk.IsCode(err, "AlreadyClaimed") {
		t.Fatalf("expected AlreadyClaimed, got %v", err)
	}
	if apiErr, ok := err.(*surveysdk.APIError); !ok || apiErr.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %v", err)
	}

	status, err := s.Client.Survey(ctx, sv.ID)
	if err != nil {
		t.Fatalf("survey: %v", err)
	}
	if status.Campaign.CurrentParticipants != 1 || status.RemainingSlots != 1 || status.VaultBalance != 50 {
		t.Fatalf("unexpected status %+v", status)
	}
	part, err := s.Client.Participant(ctx, sv.ID, p.PublicKey())
	if err != nil {
		t.Fatalf("participant: %v", err)
	}
	if !part.ClaimedNative || !part.ClaimedToken || part.ClaimedAt == nil {
		t.Fatalf("unexpected participant %+v", part)
	}

	page, err := s.Client.EventsPage(ctx, surveysdk.EventQuery{SurveyID: sv.ID, Type: events.RewardClaimed})
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	if len(page.Items) != 1 || page.Items[0].TxID != tx.TxID {
		t.Fatalf("unexpected events %+v", page.Items)
	}

	if _, err := s.Client.CloseSurvey(ctx, sv.Owner, sv.ID, nil); err != nil {
		t.Fatalf("close: %v", err)
	}
	_, err = s.Client.ClaimReward(ctx, solana.NewWallet().PrivateKey, sv.ID)
	if !surveysdk.IsCode(err, "SurveyClosed") {
		t.Fatalf("expected SurveyClosed, got %v", err)
	}
}

func TestNftDistributionOverHTTP(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	sv := s.openSurvey(t, "http-nft", 10, 0, 3)
	p := solana.NewWallet().PrivateKey
	if _, err := s.Client.ClaimReward(ctx, p, sv.ID); err != nil {
		t.Fatalf("claim: %v", err)
	}
	collection, err := s.Admin.CreateMint(ctx, sv.Owner.PublicKey(), 0)
	if err != nil {
		t.Fatalf("create collection: %v", err)
	}
	ckey := solana.MustPublicKeyFromBase58(collection.Address)
	if _, err := s.Client.DistributeNft(ctx, sv.Owner, sv.ID, p.PublicKey(), ckey); err != nil {
		t.Fatalf("distribute: %v", err)
	}
	_, err = s.Client.DistributeNft(ctx, solana.NewWallet().PrivateKey, sv.ID, p.PublicKey(), ckey)
	if !surveysdk.IsCode(err, "InvalidOwner") {
		t.Fatalf("expected InvalidOwner, got %v", err)
	}
	m, err := s.Client.Mint(ctx, ckey)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if m.Supply != 1 {
		t.Fatalf("collection supply = %d", m.Supply)
	}
}

func TestSubmitRejectsForgedSignature(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	sv := s.openSurvey(t, "forged", 10, 0, 1)
	p := solana.NewWallet().PrivateKey
	env, err := surveysdk.Sign(s.Engine.ProgramID, instruction.ClaimReward{SurveyID: sv.ID},
		[]*solana.AccountMeta{solana.Meta(p.PublicKey()).SIGNER().WRITE()}, p)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	env.Data = instruction.MustEncode(instruction.ClaimReward{SurveyID: "other"})
	_, err = s.Client.Submit(ctx, env)
	if !surveysdk.IsCode(err, "MissingRequiredSignature") {
		t.Fatalf("expected MissingRequiredSignature, got %v", err)
	}
}

func TestSubmitMalformedBody(t *testing.T) {
	s := newTestServer(t)
	res, data := doJSON(t, s.http, http.MethodPost, s.URL+"/v0/transactions", map[string]any{
		"data":     "%%%not-base64",
		"accounts": []map[string]any{},
	}, nil)
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", res.StatusCode, data)
	}
	res, data = doJSON(t, s.http, http.MethodPost, s.URL+"/v0/transactions", map[string]any{
		"data":     "",
		"accounts": []map[string]any{},
	}, nil)
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty instruction, got %d: %s", res.StatusCode, data)
	}
	var body struct {
		Error apiErrorBody `json:"error"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	if body.Error.Code != "InvalidInstruction" {
		t.Fatalf("expected InvalidInstruction, got %+v", body.Error)
	}
}

func TestUnknownSurveyIs404(t *testing.T) {
	s := newTestServer(t)
	_, err := s.Client.Survey(context.Background(), "nope")
	if !surveysdk.IsCode(err, "SurveyNotFound") {
		t.Fatalf("expected SurveyNotFound, got %v", err)
	}
	res, _ := doJSON(t, s.http, http.MethodGet, s.URL+"/v0/accounts/not-a-key", nil, nil)
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad address, got %d", res.StatusCode)
	}
}

func TestAdminRequiresCredentials(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	target := solana.NewWallet().PublicKey()

	_, err := s.Client.Airdrop(ctx, target, 10)
	if !surveysdk.IsCode(err, "unauthorized") {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	bad := surveysdk.New(s.URL)
	bad.HTTPClient = s.http
	bad.APIKey = "svk_bogus"
	_, err = bad.Airdrop(ctx, target, 10)
	if !surveysdk.IsCode(err, "invalid_credentials") {
		t.Fatalf("expected invalid_credentials, got %v", err)
	}

	token, err := IssueToken(testJWTSecret, "ops", nil, time.Minute)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	jwtClient := surveysdk.New(s.URL)
	jwtClient.HTTPClient = s.http
	jwtClient.BearerToken = token
	acct, err := jwtClient.Airdrop(ctx, target, 10)
	if err != nil {
		t.Fatalf("airdrop with jwt: %v", err)
	}
	if acct.Lamports != 10 {
		t.Fatalf("lamports = %d", acct.Lamports)
	}
	page, err := s.Client.EventsPage(ctx, surveysdk.EventQuery{Type: events.LamportsAirdropped, EntityID: target.String()})
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	if len(page.Items) != 1 || page.Items[0].ActorID != "ops" {
		t.Fatalf("airdrop event not attributed to token subject: %+v", page.Items)
	}

	forged, err := IssueToken("wrong-secret", "ops", nil, time.Minute)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	jwtClient.BearerToken = forged
	if _, err := jwtClient.Airdrop(ctx, target, 10); !surveysdk.IsCode(err, "invalid_credentials") {
		t.Fatalf("expected invalid_credentials for forged token, got %v", err)
	}
}

func TestEventsPagination(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := s.Admin.Airdrop(ctx, solana.NewWallet().PublicKey(), 1); err != nil {
			t.Fatalf("airdrop: %v", err)
		}
	}
	first, err := s.Client.EventsPage(ctx, surveysdk.EventQuery{Limit: 2})
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	if len(first.Items) != 2 || first.NextCursor == "" {
		t.Fatalf("unexpected first page %+v", first)
	}
	second, err := s.Client.EventsPage(ctx, surveysdk.EventQuery{Limit: 2, Cursor: first.NextCursor})
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	if len(second.Items) != 1 || second.NextCursor != "" {
		t.Fatalf("unexpected second page %+v", second)
	}
	if second.Items[0].ID >= first.Items[1].ID {
		t.Fatalf("pages overlap: %d then %d", first.Items[1].ID, second.Items[0].ID)
	}
}

type webhookReceiver struct {
	mu      sync.Mutex
	bodies  [][]byte
	headers []http.Header
}

func (r *webhookReceiver) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	body, _ := io.ReadAll(req.Body)
	r.mu.Lock()
	r.bodies = append(r.bodies, body)
	r.headers = append(r.headers, req.Header.Clone())
	r.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func TestWebhookDeliversSignedEvents(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	recv := &webhookReceiver{}
	hookSrv := httptest.NewServer(recv)
	t.Cleanup(hookSrv.Close)

	d := NewWebhookDispatcher(s.Engine.Repo, []config.WebhookConfig{{
		URL:    hookSrv.URL,
		Secret: "hook-secret",
		Events: []string{events.RewardClaimed},
	}})
	d.client = hookSrv.Client()

	sv := s.openSurvey(t, "hooked", 10, 0, 2)
	// first pass only positions the cursor at the newest event
	d.DispatchAll(ctx)
	if _, err := s.Client.ClaimReward(ctx, solana.NewWallet().PrivateKey, sv.ID); err != nil {
		t.Fatalf("claim: %v", err)
	}
	d.DispatchAll(ctx)

	recv.mu.Lock()
	defer recv.mu.Unlock()
	if len(recv.bodies) != 1 {
		t.Fatalf("expected one delivery, got %d", len(recv.bodies))
	}
	var evt webhookEvent
	if err := json.Unmarshal(recv.bodies[0], &evt); err != nil {
		t.Fatalf("decode delivery: %v", err)
	}
	if evt.Type != events.RewardClaimed || evt.SurveyID != sv.ID {
		t.Fatalf("unexpected delivery %+v", evt)
	}
	if got, want := recv.headers[0].Get(SignatureHeader), SignPayload("hook-secret", recv.bodies[0]); got != want {
		t.Fatalf("signature %q, want %q", got, want)
	}
}

func TestWebhookRunStopsOnCancel(t *testing.T) {
	s := newTestServer(t)
	d := NewWebhookDispatcher(s.Engine.Repo, []config.WebhookConfig{{URL: "http://127.0.0.1:0/unused"}})
	d.interval = 10 * time.Millisecond
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("dispatcher did not stop")
	}
}
