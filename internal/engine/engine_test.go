package engine_test

import (
	"bytes"
	"context"
	"errors"
	"math"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/google/go-cmp/cmp"

	"github.com/sol-bridge/202505-breakout-hackathon/internal/config"
	"github.com/sol-bridge/202505-breakout-hackathon/internal/db"
	"github.com/sol-bridge/202505-breakout-hackathon/internal/domain"
	"github.com/sol-bridge/202505-breakout-hackathon/internal/engine"
	"github.com/sol-bridge/202505-breakout-hackathon/internal/events"
	"github.com/sol-bridge/202505-breakout-hackathon/internal/instruction"
	"github.com/sol-bridge/202505-breakout-hackathon/internal/keys"
	"github.com/sol-bridge/202505-breakout-hackathon/internal/ledger"
	"github.com/sol-bridge/202505-breakout-hackathon/internal/migrate"
	"github.com/sol-bridge/202505-breakout-hackathon/internal/records"
	"github.com/sol-bridge/202505-breakout-hackathon/internal/repo"
)

var testNow = time.Date(2025, 5, 20, 9, 0, 0, 0, time.UTC)

type testEnv struct {
	Engine engine.Engine
	Host   ledger.Host
	Ctx    context.Context
}

func newTestEnv(t *testing.T, configure ...func(*config.Config)) testEnv {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	cfg := config.Default()
	cfg.Rent.LamportsPerByteYear = 0
	for _, fn := range configure {
		fn(cfg)
	}
	eng, err := engine.New(conn, cfg)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	clock := func() time.Time { return testNow }
	eng.Now = clock
	eng.Events.Now = clock
	return testEnv{
		Engine: eng,
		Host:   ledger.NewHost(conn, events.Writer{Now: clock}),
		Ctx:    context.Background(),
	}
}

func newKey() solana.PrivateKey {
	return solana.NewWallet().PrivateKey
}

// submit signs ix with signer as account 0 and appends extra accounts as read-only metas.
func (env testEnv) submit(t *testing.T, ix instruction.Instruction, signer solana.PrivateKey, extra ...solana.PublicKey) (engine.Result, error) {
	t.Helper()
	envl := engine.Envelope{
		Data:     instruction.MustEncode(ix),
		Accounts: []*solana.AccountMeta{solana.Meta(signer.PublicKey()).SIGNER().WRITE()},
	}
	for _, k := range extra {
		envl.Accounts = append(envl.Accounts, solana.Meta(k).WRITE())
	}
	sig, err := signer.Sign(envl.Message(env.Engine.ProgramID))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	envl.Signatures = []solana.Signature{sig}
	return env.Engine.Process(env.Ctx, envl)
}

type surveySetup struct {
	ID       string
	Owner    solana.PrivateKey
	Mint     solana.PublicKey
	Campaign solana.PublicKey
}

func (env testEnv) createSurvey(t *testing.T, id string, native, token uint64, max uint32, lamports, tokenPool uint64) surveySetup {
	t.Helper()
	s := env.prepareSurvey(t, id, lamports, tokenPool)
	if _, err := env.submit(t, instruction.InitializeSurvey{
		SurveyID:           id,
		NativeRewardAmount: native,
		TokenRewardAmount:  token,
		MaxParticipants:    max,
	}, s.Owner, s.Mint); err != nil {
		t.Fatalf("initialize %s: %v", id, err)
	}
	return s
}

// prepareSurvey funds the campaign address and reward vault without initializing the survey.
func (env testEnv) prepareSurvey(t *testing.T, id string, lamports, tokenPool uint64) surveySetup {
	t.Helper()
	owner := newKey()
	addr, err := keys.Campaign(env.Engine.ProgramID, id)
	if err != nil {
		t.Fatalf("campaign address: %v", err)
	}
	if lamports > 0 {
		if _, err := env.Host.Airdrop(env.Ctx, "test", addr, lamports); err != nil {
			t.Fatalf("fund campaign: %v", err)
		}
	}
	mint, err := env.Host.CreateMint(env.Ctx, "test", solana.PublicKey{}, owner.PublicKey(), 0)
	if err != nil {
		t.Fatalf("create mint: %v", err)
	}
	if tokenPool > 0 {
		if _, err := env.Host.MintTo(env.Ctx, "test", mint.Address, addr, tokenPool); err != nil {
			t.Fatalf("fund vault: %v", err)
		}
	}
	return surveySetup{ID: id, Owner: owner, Mint: mint.Address, Campaign: addr}
}

func (env testEnv) campaign(t *testing.T, id string) domain.Campaign {
	t.Helper()
	st, err := env.Engine.SurveyStatus(env.Ctx, id)
	if err != nil {
		t.Fatalf("survey status: %v", err)
	}
	return st.Campaign
}

func (env testEnv) participant(t *testing.T, id string, who solana.PublicKey) domain.Participant {
	t.Helper()
	st, err := env.Engine.ParticipantStatus(env.Ctx, id, who)
	if err != nil {
		t.Fatalf("participant status: %v", err)
	}
	return st.Participant
}

func (env testEnv) lamports(t *testing.T, key solana.PublicKey) uint64 {
	t.Helper()
	acct, err := env.Engine.Repo.GetAccount(env.Ctx, key)
	if errors.Is(err, repo.ErrNotFound) {
		return 0
	}
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	return acct.Lamports
}

func (env testEnv) tokens(t *testing.T, owner, mint solana.PublicKey) uint64 {
	t.Helper()
	n, err := ledger.Ledger{Repo: env.Engine.Repo}.Balance(env.Ctx, owner, mint)
	if err != nil {
		t.Fatalf("token balance: %v", err)
	}
	return n
}

func expectCode(t *testing.T, err error, want *domain.ProgramError) {
	t.Helper()
	if !errors.Is(err, want) {
		t.Fatalf("expected %s, got %v", want.Code, err)
	}
}

func TestSurveyScenario(t *testing.T) {
	env := newTestEnv(t)
	s := env.createSurvey(t, "s1", 1_000_000, 100_000_000, 2, 2_000_000, 200_000_000)

	c := env.campaign(t, "s1")
	if !c.Active || c.CurrentParticipants != 0 || c.CreatedAt != testNow.Unix() || c.NFTCollection != nil {
		t.Fatalf("unexpected initial campaign %+v", c)
	}
	if !c.Owner.Equals(s.Owner.PublicKey()) {
		t.Fatalf("owner not recorded")
	}

	a, b, cKey, d := newKey(), newKey(), newKey(), newKey()
	if _, err := env.submit(t, instruction.ClaimReward{SurveyID: "s1"}, a); err != nil {
		t.Fatalf("claim A: %v", err)
	}
	if got := env.lamports(t, a.PublicKey()); got != 1_000_000 {
		t.Fatalf("A lamports = %d", got)
	}
	if got := env.tokens(t, a.PublicKey(), s.Mint); got != 100_000_000 {
		t.Fatalf("A tokens = %d", got)
	}
	pa := env.participant(t, "s1", a.PublicKey())
	if !pa.ClaimedNative || !pa.ClaimedToken || !pa.Counted || pa.ClaimedAt == nil || *pa.ClaimedAt != testNow.Unix() {
		t.Fatalf("unexpected participant A %+v", pa)
	}
	if got := env.campaign(t, "s1").CurrentParticipants; got != 1 {
		t.Fatalf("count after A = %d", got)
	}

	_, err := env.submit(t, instruction.ClaimReward{SurveyID: "s1"}, a)
	expectCode(t, err, domain.ErrAlreadyClaimed)
	if got := env.campaign(t, "s1").CurrentParticipants; got != 1 {
		t.Fatalf("count after repeat = %d", got)
	}
	if got := env.lamports(t, a.PublicKey()); got != 1_000_000 {
		t.Fatalf("repeat claim changed A lamports: %d", got)
	}

	if _, err := env.submit(t, instruction.ClaimReward{SurveyID: "s1"}, b); err != nil {
		t.Fatalf("claim B: %v", err)
	}
	if got := env.campaign(t, "s1").CurrentParticipants; got != 2 {
		t.Fatalf("count after B = %d", got)
	}

	_, err = env.submit(t, instruction.ClaimReward{SurveyID: "s1"}, cKey)
	expectCode(t, err, domain.ErrSurveyFull)
	if got := env.campaign(t, "s1").CurrentParticipants; got != 2 {
		t.Fatalf("count after C = %d", got)
	}

	ownerBefore := env.lamports(t, s.Owner.PublicKey())
	if _, err := env.submit(t, instruction.CloseSurvey{SurveyID: "s1"}, s.Owner); err != nil {
		t.Fatalf("close: %v", err)
	}
	c = env.campaign(t, "s1")
	if c.Active {
		t.Fatalf("expected closed campaign")
	}
	if got := env.lamports(t, s.Campaign); got != 0 {
		t.Fatalf("campaign lamports after close = %d", got)
	}
	if got := env.lamports(t, s.Owner.PublicKey()); got != ownerBefore {
		t.Fatalf("owner should receive the remaining 0 lamports, got %d (before %d)", got, ownerBefore)
	}

	_, err = env.submit(t, instruction.ClaimReward{SurveyID: "s1"}, d)
	expectCode(t, err, domain.ErrSurveyClosed)
	_, err = env.submit(t, instruction.CloseSurvey{SurveyID: "s1"}, s.Owner)
	expectCode(t, err, domain.ErrSurveyClosed)
	_, err = env.submit(t, instruction.DistributeNft{SurveyID: "s1"}, s.Owner, a.PublicKey(), s.Mint)
	expectCode(t, err, domain.ErrSurveyClosed)
}

func TestReinitializeRejected(t *testing.T) {
	env := newTestEnv(t)
	s := env.createSurvey(t, "again", 10, 0, 5, 100, 0)
	before, err := env.Engine.Repo.GetAccount(env.Ctx, s.Campaign)
	if err != nil {
		t.Fatalf("get campaign: %v", err)
	}

	_, err = env.submit(t, instruction.InitializeSurvey{SurveyID: "again", NativeRewardAmount: 99, MaxParticipants: 1}, s.Owner, s.Mint)
	expectCode(t, err, domain.ErrSurveyAlreadyExists)
	intruder := newKey()
	_, err = env.submit(t, instruction.InitializeSurvey{SurveyID: "again", NativeRewardAmount: 99, MaxParticipants: 1}, intruder, s.Mint)
	expectCode(t, err, domain.ErrSurveyAlreadyExists)
	_, err = env.submit(t, instruction.InitializeSurvey{SurveyID: "again", MaxParticipants: 1}, s.Owner, s.Mint)
	expectCode(t, err, domain.ErrSurveyAlreadyExists)
	_, err = env.submit(t, instruction.InitializeSurvey{SurveyID: "again", NativeRewardAmount: 99, MaxParticipants: 1}, s.Owner)
	expectCode(t, err, domain.ErrSurveyAlreadyExists)

	after, err := env.Engine.Repo.GetAccount(env.Ctx, s.Campaign)
	if err != nil {
		t.Fatalf("get campaign: %v", err)
	}
	if !bytes.Equal(before.Data, after.Data) || before.Lamports != after.Lamports {
		t.Fatalf("campaign record changed by rejected re-initialization")
	}
}

func TestInitializeValidation(t *testing.T) {
	env := newTestEnv(t)
	s := env.prepareSurvey(t, "valid", 0, 0)

	_, err := env.submit(t, instruction.InitializeSurvey{SurveyID: "", NativeRewardAmount: 1, MaxParticipants: 1}, s.Owner, s.Mint)
	expectCode(t, err, domain.ErrInvalidMetadata)
	_, err = env.submit(t, instruction.InitializeSurvey{SurveyID: strings.Repeat("x", 65), NativeRewardAmount: 1, MaxParticipants: 1}, s.Owner, s.Mint)
	expectCode(t, err, domain.ErrInvalidMetadata)
	_, err = env.submit(t, instruction.InitializeSurvey{SurveyID: "valid", MaxParticipants: 1}, s.Owner, s.Mint)
	expectCode(t, err, domain.ErrInvalidRewardAmount)
	_, err = env.submit(t, instruction.InitializeSurvey{SurveyID: "valid", NativeRewardAmount: 1, MaxParticipants: 1}, s.Owner)
	expectCode(t, err, domain.ErrInvalidInstruction)
	_, err = env.submit(t, instruction.InitializeSurvey{SurveyID: "valid", TokenRewardAmount: 1, MaxParticipants: 1}, s.Owner, newKey().PublicKey())
	expectCode(t, err, domain.ErrInvalidMetadata)

	if _, err := env.submit(t, instruction.InitializeSurvey{SurveyID: strings.Repeat("y", 64), NativeRewardAmount: 1, MaxParticipants: 1}, s.Owner, s.Mint); err != nil {
		t.Fatalf("64-byte survey id should initialize: %v", err)
	}
}

func TestInitializeRequiresMinimumBalance(t *testing.T) {
	env := newTestEnv(t, func(c *config.Config) { c.Rent.LamportsPerByteYear = 3480 })
	need := env.Engine.Config.MinimumBalance(records.CampaignLen)
	s := env.prepareSurvey(t, "rent", need-1, 0)

	ix := instruction.InitializeSurvey{SurveyID: "rent", NativeRewardAmount: 1, MaxParticipants: 1}
	_, err := env.submit(t, ix, s.Owner, s.Mint)
	expectCode(t, err, domain.ErrInsufficientFunds)

	if _, err := env.Host.Airdrop(env.Ctx, "test", s.Campaign, 1); err != nil {
		t.Fatalf("top up: %v", err)
	}
	if _, err := env.submit(t, ix, s.Owner, s.Mint); err != nil {
		t.Fatalf("initialize with minimum balance: %v", err)
	}
}

func TestClaimInsufficientNativeLeavesBalances(t *testing.T) {
	env := newTestEnv(t)
	env.createSurvey(t, "poor", 1_000, 0, 10, 999, 0)
	a := newKey()

	_, err := env.submit(t, instruction.ClaimReward{SurveyID: "poor"}, a)
	expectCode(t, err, domain.ErrInsufficientFunds)
	addr, _ := keys.Campaign(env.Engine.ProgramID, "poor")
	if got := env.lamports(t, addr); got != 999 {
		t.Fatalf("campaign balance changed: %d", got)
	}
	if got := env.lamports(t, a.PublicKey()); got != 0 {
		t.Fatalf("participant credited: %d", got)
	}
	if got := env.campaign(t, "poor").CurrentParticipants; got != 0 {
		t.Fatalf("count changed: %d", got)
	}
	if _, err := env.Engine.ParticipantStatus(env.Ctx, "poor", a.PublicKey()); !errors.Is(err, domain.ErrNotInitialized) {
		t.Fatalf("participant record must not persist, got %v", err)
	}
}

func TestClaimCreditOverflow(t *testing.T) {
	env := newTestEnv(t)
	s := env.createSurvey(t, "rich", 100, 0, 10, 1_000, 0)
	a := newKey()
	if _, err := env.Host.Airdrop(env.Ctx, "test", a.PublicKey(), math.MaxUint64-50); err != nil {
		t.Fatalf("airdrop: %v", err)
	}
	_, err := env.submit(t, instruction.ClaimReward{SurveyID: "rich"}, a)
	expectCode(t, err, domain.ErrOverflow)
	if got := env.lamports(t, s.Campaign); got != 1_000 {
		t.Fatalf("campaign balance changed: %d", got)
	}
	if got := env.lamports(t, a.PublicKey()); got != math.MaxUint64-50 {
		t.Fatalf("participant balance changed: %d", got)
	}
}

func TestTokenFailureRollsBackNative(t *testing.T) {
	env := newTestEnv(t)
	s := env.createSurvey(t, "tokens", 500, 1_000, 10, 5_000, 999)
	a := newKey()

	_, err := env.submit(t, instruction.ClaimReward{SurveyID: "tokens"}, a)
	expectCode(t, err, domain.ErrInsufficientFunds)
	if got := env.lamports(t, s.Campaign); got != 5_000 {
		t.Fatalf("native debit not rolled back: %d", got)
	}
	if got := env.lamports(t, a.PublicKey()); got != 0 {
		t.Fatalf("native credit not rolled back: %d", got)
	}
	if got := env.tokens(t, s.Campaign, s.Mint); got != 999 {
		t.Fatalf("vault changed: %d", got)
	}
	evts, err := env.Engine.Repo.LatestEvents(env.Ctx, 10, 0, repo.EventFilters{Type: events.RewardClaimed})
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	if len(evts) != 0 {
		t.Fatalf("rejected claim must not log events, got %d", len(evts))
	}
}

func TestParticipantCountedOnce(t *testing.T) {
	env := newTestEnv(t)
	s := env.createSurvey(t, "split", 100, 10, 1, 1_000, 100)
	a := newKey()

	// A was paid the native half earlier and already counts toward the only slot.
	paddr, err := keys.Participant(env.Engine.ProgramID, "split", a.PublicKey())
	if err != nil {
		t.Fatalf("participant address: %v", err)
	}
	data, err := records.EncodeParticipant(domain.Participant{
		Initialized: true, SurveyID: "split", Participant: a.PublicKey(), ClaimedNative: true, Counted: true,
	})
	if err != nil {
		t.Fatalf("encode participant: %v", err)
	}
	if err := env.Engine.Repo.PutAccount(env.Ctx, domain.Account{Address: paddr, Owner: env.Engine.ProgramID, Data: data}); err != nil {
		t.Fatalf("seed participant: %v", err)
	}
	cacct, err := env.Engine.Repo.GetAccount(env.Ctx, s.Campaign)
	if err != nil {
		t.Fatalf("get campaign: %v", err)
	}
	c, err := records.DecodeCampaign(cacct.Data)
	if err != nil {
		t.Fatalf("decode campaign: %v", err)
	}
	c.CurrentParticipants = 1
	if cacct.Data, err = records.EncodeCampaign(c); err != nil {
		t.Fatalf("encode campaign: %v", err)
	}
	if err := env.Engine.Repo.PutAccount(env.Ctx, cacct); err != nil {
		t.Fatalf("seed campaign: %v", err)
	}

	if _, err := env.submit(t, instruction.ClaimReward{SurveyID: "split"}, a); err != nil {
		t.Fatalf("token half claim: %v", err)
	}
	if got := env.campaign(t, "split").CurrentParticipants; got != 1 {
		t.Fatalf("participant counted twice: %d", got)
	}
	if got := env.tokens(t, a.PublicKey(), s.Mint); got != 10 {
		t.Fatalf("token half not paid: %d", got)
	}
	if got := env.lamports(t, a.PublicKey()); got != 0 {
		t.Fatalf("native paid twice: %d", got)
	}
	_, err = env.submit(t, instruction.ClaimReward{SurveyID: "split"}, a)
	expectCode(t, err, domain.ErrAlreadyClaimed)

	_, err = env.submit(t, instruction.ClaimReward{SurveyID: "split"}, newKey())
	expectCode(t, err, domain.ErrSurveyFull)
}

func TestMissingSignature(t *testing.T) {
	env := newTestEnv(t)
	s := env.createSurvey(t, "sig", 10, 0, 5, 100, 0)
	a := newKey()
	data := instruction.MustEncode(instruction.ClaimReward{SurveyID: "sig"})

	unsigned := engine.Envelope{Data: data, Accounts: []*solana.AccountMeta{solana.Meta(a.PublicKey()).SIGNER()}}
	_, err := env.Engine.Process(env.Ctx, unsigned)
	expectCode(t, err, domain.ErrMissingRequiredSignature)

	forged := unsigned
	sig, err := newKey().Sign(forged.Message(env.Engine.ProgramID))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	forged.Signatures = []solana.Signature{sig}
	_, err = env.Engine.Process(env.Ctx, forged)
	expectCode(t, err, domain.ErrMissingRequiredSignature)

	notSigner := engine.Envelope{Data: data, Accounts: []*solana.AccountMeta{solana.Meta(a.PublicKey())}}
	_, err = env.Engine.Process(env.Ctx, notSigner)
	expectCode(t, err, domain.ErrMissingRequiredSignature)

	// a signature over a different message does not carry over
	other := engine.Envelope{Data: instruction.MustEncode(instruction.CloseSurvey{SurveyID: "sig"}), Accounts: []*solana.AccountMeta{solana.Meta(s.Owner.PublicKey()).SIGNER()}}
	sig, err = s.Owner.Sign(forged.Message(env.Engine.ProgramID))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	other.Signatures = []solana.Signature{sig}
	_, err = env.Engine.Process(env.Ctx, other)
	expectCode(t, err, domain.ErrMissingRequiredSignature)
	if !env.campaign(t, "sig").Active {
		t.Fatalf("survey closed without a valid signature")
	}
}

func TestOwnerRestrictedOperations(t *testing.T) {
	env := newTestEnv(t)
	s := env.createSurvey(t, "own", 10, 0, 5, 100, 0)
	a := newKey()
	if _, err := env.submit(t, instruction.ClaimReward{SurveyID: "own"}, a); err != nil {
		t.Fatalf("claim: %v", err)
	}
	intruder := newKey()
	_, err := env.submit(t, instruction.CloseSurvey{SurveyID: "own"}, intruder)
	expectCode(t, err, domain.ErrInvalidOwner)
	_, err = env.submit(t, instruction.DistributeNft{SurveyID: "own"}, intruder, a.PublicKey(), s.Mint)
	expectCode(t, err, domain.ErrInvalidOwner)
	if !env.campaign(t, "own").Active {
		t.Fatalf("non-owner closed the survey")
	}
}

func TestUnknownSurvey(t *testing.T) {
	env := newTestEnv(t)
	owner := newKey()
	_, err := env.submit(t, instruction.ClaimReward{SurveyID: "ghost"}, newKey())
	expectCode(t, err, domain.ErrNotInitialized)
	_, err = env.submit(t, instruction.CloseSurvey{SurveyID: "ghost"}, owner)
	expectCode(t, err, domain.ErrNotInitialized)
	_, err = env.submit(t, instruction.DistributeNft{SurveyID: "ghost"}, owner, newKey().PublicKey(), newKey().PublicKey())
	expectCode(t, err, domain.ErrNotInitialized)
}

func TestListSurveysSkipsParticipantRecords(t *testing.T) {
	env := newTestEnv(t)
	env.createSurvey(t, "alpha", 10, 0, 5, 100, 0)
	env.createSurvey(t, "beta", 10, 0, 2, 100, 0)
	if _, err := env.submit(t, instruction.ClaimReward{SurveyID: "beta"}, newKey()); err != nil {
		t.Fatalf("claim: %v", err)
	}

	list, err := env.Engine.ListSurveys(env.Ctx, 10)
	if err != nil {
		t.Fatalf("list surveys: %v", err)
	}
	var ids []string
	remaining := map[string]uint32{}
	for _, st := range list {
		ids = append(ids, st.Campaign.SurveyID)
		remaining[st.Campaign.SurveyID] = st.RemainingSlots
	}
	sort.Strings(ids)
	if diff := cmp.Diff([]string{"alpha", "beta"}, ids); diff != "" {
		t.Fatalf("survey ids (-want +got):\n%s", diff)
	}
	if remaining["alpha"] != 5 || remaining["beta"] != 1 {
		t.Fatalf("remaining slots = %v", remaining)
	}

	one, err := env.Engine.ListSurveys(env.Ctx, 1)
	if err != nil {
		t.Fatalf("list surveys: %v", err)
	}
	if len(one) != 1 {
		t.Fatalf("limit 1 returned %d surveys", len(one))
	}
}

func TestSubstitutedRecordRejected(t *testing.T) {
	env := newTestEnv(t)
	s := env.createSurvey(t, "real", 10, 0, 5, 100, 0)
	// place the "real" campaign bytes at the address of another survey id
	src, err := env.Engine.Repo.GetAccount(env.Ctx, s.Campaign)
	if err != nil {
		t.Fatalf("get campaign: %v", err)
	}
	fake, err := keys.Campaign(env.Engine.ProgramID, "fake")
	if err != nil {
		t.Fatalf("campaign address: %v", err)
	}
	src.Address = fake
	if err := env.Engine.Repo.PutAccount(env.Ctx, src); err != nil {
		t.Fatalf("plant record: %v", err)
	}
	_, err = env.submit(t, instruction.ClaimReward{SurveyID: "fake"}, newKey())
	expectCode(t, err, domain.ErrSurveyNotFound)
	_, err = env.submit(t, instruction.CloseSurvey{SurveyID: "fake"}, s.Owner)
	expectCode(t, err, domain.ErrSurveyNotFound)
}

func TestDistributeNft(t *testing.T) {
	env := newTestEnv(t)
	s := env.createSurvey(t, "nft", 10, 0, 5, 100, 0)
	a, b := newKey(), newKey()
	for _, k := range []solana.PrivateKey{a, b} {
		if _, err := env.submit(t, instruction.ClaimReward{SurveyID: "nft"}, k); err != nil {
			t.Fatalf("claim: %v", err)
		}
	}
	collection, err := env.Host.CreateMint(env.Ctx, "test", solana.PublicKey{}, s.Owner.PublicKey(), 0)
	if err != nil {
		t.Fatalf("create collection: %v", err)
	}

	if _, err := env.submit(t, instruction.DistributeNft{SurveyID: "nft"}, s.Owner, a.PublicKey(), collection.Address); err != nil {
		t.Fatalf("distribute: %v", err)
	}
	if got := env.tokens(t, a.PublicKey(), collection.Address); got != 1 {
		t.Fatalf("expected one nft, got %d", got)
	}
	if !env.participant(t, "nft", a.PublicKey()).ReceivedNFT {
		t.Fatalf("received_nft not set")
	}
	c := env.campaign(t, "nft")
	if c.NFTCollection == nil || !c.NFTCollection.Equals(collection.Address) {
		t.Fatalf("collection not recorded: %+v", c.NFTCollection)
	}

	_, err = env.submit(t, instruction.DistributeNft{SurveyID: "nft"}, s.Owner, a.PublicKey(), collection.Address)
	expectCode(t, err, domain.ErrAlreadyClaimed)
	if got := env.tokens(t, a.PublicKey(), collection.Address); got != 1 {
		t.Fatalf("second distribution minted: %d", got)
	}

	other, err := env.Host.CreateMint(env.Ctx, "test", solana.PublicKey{}, s.Owner.PublicKey(), 0)
	if err != nil {
		t.Fatalf("create mint: %v", err)
	}
	_, err = env.submit(t, instruction.DistributeNft{SurveyID: "nft"}, s.Owner, b.PublicKey(), other.Address)
	expectCode(t, err, domain.ErrInvalidMetadata)

	_, err = env.submit(t, instruction.DistributeNft{SurveyID: "nft"}, s.Owner, newKey().PublicKey(), collection.Address)
	expectCode(t, err, domain.ErrNotInitialized)

	if _, err := env.submit(t, instruction.DistributeNft{SurveyID: "nft"}, s.Owner, b.PublicKey(), collection.Address); err != nil {
		t.Fatalf("distribute to B: %v", err)
	}
}

func TestDistributeNftGatewayFailure(t *testing.T) {
	env := newTestEnv(t)
	s := env.createSurvey(t, "nft-auth", 10, 0, 5, 100, 0)
	a := newKey()
	if _, err := env.submit(t, instruction.ClaimReward{SurveyID: "nft-auth"}, a); err != nil {
		t.Fatalf("claim: %v", err)
	}
	foreign, err := env.Host.CreateMint(env.Ctx, "test", solana.PublicKey{}, newKey().PublicKey(), 0)
	if err != nil {
		t.Fatalf("create mint: %v", err)
	}
	_, err = env.submit(t, instruction.DistributeNft{SurveyID: "nft-auth"}, s.Owner, a.PublicKey(), foreign.Address)
	expectCode(t, err, domain.ErrInvalidOwner)
	if env.participant(t, "nft-auth", a.PublicKey()).ReceivedNFT {
		t.Fatalf("received_nft set despite failed mint")
	}
	if env.campaign(t, "nft-auth").NFTCollection != nil {
		t.Fatalf("collection recorded despite failed mint")
	}
}

func TestCloseToDestination(t *testing.T) {
	env := newTestEnv(t)
	s := env.createSurvey(t, "refund", 10, 0, 5, 1_000, 0)
	if _, err := env.submit(t, instruction.ClaimReward{SurveyID: "refund"}, newKey()); err != nil {
		t.Fatalf("claim: %v", err)
	}
	treasury := newKey().PublicKey()
	if _, err := env.submit(t, instruction.CloseSurvey{SurveyID: "refund"}, s.Owner, treasury); err != nil {
		t.Fatalf("close: %v", err)
	}
	if got := env.lamports(t, treasury); got != 990 {
		t.Fatalf("treasury received %d", got)
	}
	if got := env.lamports(t, s.Campaign); got != 0 {
		t.Fatalf("campaign kept %d", got)
	}
}

func TestInvalidInstructionData(t *testing.T) {
	env := newTestEnv(t)
	signer := newKey()
	for _, data := range [][]byte{nil, {9}, {1, 5, 0, 0, 0}} {
		envl := engine.Envelope{Data: data, Accounts: []*solana.AccountMeta{solana.Meta(signer.PublicKey()).SIGNER()}}
		sig, err := signer.Sign(envl.Message(env.Engine.ProgramID))
		if err != nil {
			t.Fatalf("sign: %v", err)
		}
		envl.Signatures = []solana.Signature{sig}
		_, err = env.Engine.Process(env.Ctx, envl)
		expectCode(t, err, domain.ErrInvalidInstruction)
	}
}

func TestEventsShareTransactionID(t *testing.T) {
	env := newTestEnv(t)
	env.createSurvey(t, "log", 10, 0, 5, 100, 0)
	a := newKey()
	res, err := env.submit(t, instruction.ClaimReward{SurveyID: "log"}, a)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	evts, err := env.Engine.Repo.LatestEvents(env.Ctx, 10, 0, repo.EventFilters{SurveyID: "log"})
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	var types []string
	for _, e := range evts {
		types = append(types, e.Type)
	}
	if diff := cmp.Diff([]string{events.RewardClaimed, events.SurveyInitialized}, types); diff != "" {
		t.Fatalf("event types (-want +got):\n%s", diff)
	}
	if evts[0].TxID != res.TxID || evts[0].ActorID != a.PublicKey().String() {
		t.Fatalf("claim event not tied to tx: %+v", evts[0])
	}
	if res.Participant == nil || evts[0].EntityID != res.Participant.String() {
		t.Fatalf("claim event entity mismatch")
	}
}
