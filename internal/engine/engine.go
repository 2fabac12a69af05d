package engine

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/sol-bridge/202505-breakout-hackathon/internal/config"
	"github.com/sol-bridge/202505-breakout-hackathon/internal/domain"
	"github.com/sol-bridge/202505-breakout-hackathon/internal/engine/auth"
	"github.com/sol-bridge/202505-breakout-hackathon/internal/events"
	"github.com/sol-bridge/202505-breakout-hackathon/internal/instruction"
	"github.com/sol-bridge/202505-breakout-hackathon/internal/ledger"
	"github.com/sol-bridge/202505-breakout-hackathon/internal/logger"
	"github.com/sol-bridge/202505-breakout-hackathon/internal/repo"
)

// TokenLedger moves and mints tokens inside the caller's transaction.
type TokenLedger interface {
	EnsureTokenAccount(ctx context.Context, tx *sql.Tx, owner, mint solana.PublicKey) (solana.PublicKey, error)
	Transfer(ctx context.Context, tx *sql.Tx, from, to, authority solana.PublicKey, amount uint64) error
	MintTo(ctx context.Context, tx *sql.Tx, mint, dest, authority solana.PublicKey, amount uint64) error
}

type Engine struct {
	DB        *sql.DB
	Repo      repo.Repo
	Ledger    TokenLedger
	Events    events.Writer
	Config    *config.Config
	ProgramID solana.PublicKey
	Now       func() time.Time
}

func New(db *sql.DB, cfg *config.Config) (Engine, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	programID, err := cfg.ProgramID()
	if err != nil {
		return Engine{}, err
	}
	r := repo.Repo{DB: db}
	return Engine{
		DB:        db,
		Repo:      r,
		Ledger:    ledger.Ledger{Repo: r},
		Events:    events.Writer{},
		Config:    cfg,
		ProgramID: programID,
		Now:       time.Now,
	}, nil
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// Envelope is one submitted transaction: instruction data, the ordered accounts it touches and
// one signature per account flagged as signer, in account order.
type Envelope struct {
	Data       []byte
	Accounts   []*solana.AccountMeta
	Signatures []solana.Signature
}

// Message returns the digest signers sign: sha256 over the program id, every account meta and
// the instruction data.
func (env Envelope) Message(programID solana.PublicKey) []byte {
	h := sha256.New()
	h.Write(programID[:])
	var n [4]byte
	binary.LittleEndian.PutUint32(n[:], uint32(len(env.Accounts)))
	h.Write(n[:])
	for _, m := range env.Accounts {
		if m == nil {
			h.Write(make([]byte, solana.PublicKeyLength+1))
			continue
		}
		h.Write(m.PublicKey[:])
		var flags byte
		if m.IsSigner {
			flags |= 1
		}
		if m.IsWritable {
			flags |= 2
		}
		h.Write([]byte{flags})
	}
	binary.LittleEndian.PutUint32(n[:], uint32(len(env.Data)))
	h.Write(n[:])
	h.Write(env.Data)
	return h.Sum(nil)
}

// TxID derives the transaction id from the message digest; resubmitting the same signed
// envelope yields the same id.
func TxID(message []byte) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, message).String()
}

// Result describes a committed instruction.
type Result struct {
	TxID        string            `json:"tx_id"`
	Operation   string            `json:"operation"`
	SurveyID    string            `json:"survey_id"`
	Campaign    solana.PublicKey  `json:"campaign"`
	Participant *solana.PublicKey `json:"participant,omitempty"`
}

// invocation carries what every handler needs about the transaction being processed.
type invocation struct {
	txID     string
	accounts []*solana.AccountMeta
	signed   auth.Signers
	now      time.Time
}

func (in invocation) signer(idx int) (solana.PublicKey, error) {
	return auth.RequireSigner(in.accounts, idx, in.signed)
}

func (in invocation) account(idx int) (solana.PublicKey, error) {
	if idx >= len(in.accounts) || in.accounts[idx] == nil {
		return solana.PublicKey{}, domain.Errorf(domain.CodeInvalidInstruction, "missing account %d", idx)
	}
	return in.accounts[idx].PublicKey, nil
}

func (in invocation) optionalAccount(idx int) (solana.PublicKey, bool) {
	if idx >= len(in.accounts) || in.accounts[idx] == nil {
		return solana.PublicKey{}, false
	}
	return in.accounts[idx].PublicKey, true
}

var tracer = otel.Tracer("github.com/sol-bridge/202505-breakout-hackathon/internal/engine")

// Process verifies, decodes and executes one envelope. All record, ledger and event writes
// happen in one transaction that commits only when the instruction succeeds.
func (e Engine) Process(ctx context.Context, env Envelope) (Result, error) {
	msg := env.Message(e.ProgramID)
	in := invocation{
		txID:     TxID(msg),
		accounts: env.Accounts,
		signed:   auth.VerifySignatures(msg, env.Accounts, env.Signatures),
		now:      e.now(),
	}
	ctx, span := tracer.Start(ctx, "engine.Process")
	defer span.End()
	span.SetAttributes(attribute.String("survey.tx_id", in.txID))

	ix, err := instruction.Decode(env.Data)
	if err != nil {
		return e.reject(span, in, "", "", err)
	}
	op := ix.Tag().String()
	span.SetAttributes(attribute.String("survey.operation", op), attribute.String("survey.id", ix.Survey()))

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return Result{}, err
	}
	defer tx.Rollback()

	var res Result
	switch v := ix.(type) {
	case instruction.InitializeSurvey:
		res, err = e.initializeSurvey(ctx, tx, in, v)
	case instruction.ClaimReward:
		res, err = e.claimReward(ctx, tx, in, v)
	case instruction.DistributeNft:
		res, err = e.distributeNft(ctx, tx, in, v)
	case instruction.CloseSurvey:
		res, err = e.closeSurvey(ctx, tx, in, v)
	default:
		err = domain.Errorf(domain.CodeInvalidInstruction, "unhandled operation %s", op)
	}
	if err != nil {
		return e.reject(span, in, op, ix.Survey(), err)
	}
	if err := tx.Commit(); err != nil {
		return Result{}, fmt.Errorf("commit: %w", err)
	}
	res.TxID = in.txID
	res.Operation = op
	res.SurveyID = ix.Survey()
	logger.Info("instruction processed",
		zap.String("tx_id", in.txID),
		zap.String("operation", op),
		zap.String("survey_id", ix.Survey()),
	)
	return res, nil
}

func (e Engine) reject(span trace.Span, in invocation, op, surveyID string, err error) (Result, error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	fields := []zap.Field{
		zap.String("tx_id", in.txID),
		zap.String("operation", op),
		zap.String("survey_id", surveyID),
		zap.Error(err),
	}
	if code, ok := domain.CodeOf(err); ok {
		logger.Warn("instruction rejected", append(fields, zap.String("code", code.String()))...)
	} else {
		logger.Error("instruction failed", fields...)
	}
	return Result{}, err
}

// gatewayError maps token ledger failures onto program error codes where one applies.
func gatewayError(op string, err error) error {
	switch {
	case errors.Is(err, ledger.ErrInsufficientTokens):
		return domain.Errorf(domain.CodeInsufficientFunds, "%s: %v", op, err)
	case errors.Is(err, ledger.ErrAmountOverflow):
		return domain.Errorf(domain.CodeOverflow, "%s: %v", op, err)
	case errors.Is(err, ledger.ErrMintNotFound), errors.Is(err, ledger.ErrMintMismatch):
		return domain.Errorf(domain.CodeInvalidMetadata, "%s: %v", op, err)
	case errors.Is(err, ledger.ErrOwnerMismatch):
		return domain.Errorf(domain.CodeInvalidOwner, "%s: %v", op, err)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}
