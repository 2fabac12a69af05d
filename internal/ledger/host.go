package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/bits"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"

	"github.com/sol-bridge/202505-breakout-hackathon/internal/domain"
	"github.com/sol-bridge/202505-breakout-hackathon/internal/events"
	"github.com/sol-bridge/202505-breakout-hackathon/internal/repo"
)

var (
	// ErrLamportOverflow is returned when an airdrop would overflow the account balance.
	ErrLamportOverflow = errors.New("lamport balance overflow")
	ErrMintExists      = errors.New("mint already exists")
)

// Host performs funding operations that sit outside the program: faucet airdrops, mint
// creation and operator minting. Each call is its own transaction and is logged as an event.
type Host struct {
	DB     *sql.DB
	Ledger Ledger
	Events events.Writer
}

func NewHost(db *sql.DB, ev events.Writer) Host {
	return Host{DB: db, Ledger: Ledger{Repo: repo.Repo{DB: db}}, Events: ev}
}

// Airdrop credits lamports to addr, creating a system account when none exists.
func (h Host) Airdrop(ctx context.Context, actorID string, addr solana.PublicKey, lamports uint64) (domain.Account, error) {
	var out domain.Account
	err := h.withTx(ctx, func(tx *sql.Tx, txID string) error {
		acct, err := h.Ledger.Repo.LoadAccountTx(ctx, tx, addr)
		if err != nil {
			return err
		}
		sum, carry := bits.Add64(acct.Lamports, lamports, 0)
		if carry != 0 {
			return ErrLamportOverflow
		}
		acct.Lamports = sum
		if err := h.Ledger.Repo.PutAccountTx(ctx, tx, acct); err != nil {
			return fmt.Errorf("store account: %w", err)
		}
		out = acct
		return h.Events.Append(ctx, tx, events.Entry{
			Type: events.LamportsAirdropped, TxID: txID, EntityKind: "account", EntityID: addr.String(), ActorID: actorID,
		}, events.EventPayload{"lamports": lamports, "balance": sum})
	})
	return out, err
}

// CreateMint registers a new mint. A zero address asks for a freshly generated one.
func (h Host) CreateMint(ctx context.Context, actorID string, address, authority solana.PublicKey, decimals uint8) (domain.Mint, error) {
	if address.IsZero() {
		address = solana.NewWallet().PublicKey()
	}
	m := domain.Mint{Address: address, Authority: authority, Decimals: decimals}
	err := h.withTx(ctx, func(tx *sql.Tx, txID string) error {
		if _, err := h.Ledger.Repo.GetMintTx(ctx, tx, address); err == nil {
			return fmt.Errorf("%w: %s", ErrMintExists, address)
		} else if !errors.Is(err, repo.ErrNotFound) {
			return err
		}
		if err := h.Ledger.Repo.InsertMintTx(ctx, tx, m); err != nil {
			return fmt.Errorf("insert mint: %w", err)
		}
		return h.Events.Append(ctx, tx, events.Entry{
			Type: events.MintCreated, TxID: txID, EntityKind: "mint", EntityID: address.String(), ActorID: actorID,
		}, events.EventPayload{"authority": authority.String(), "decimals": decimals})
	})
	if err != nil {
		return domain.Mint{}, err
	}
	return h.Ledger.Repo.GetMint(ctx, address)
}

// MintTo mints amount tokens into owner's token account for mint, opening it if needed. The
// operator acts as the mint authority.
func (h Host) MintTo(ctx context.Context, actorID string, mint, owner solana.PublicKey, amount uint64) (domain.TokenAccount, error) {
	var dest solana.PublicKey
	err := h.withTx(ctx, func(tx *sql.Tx, txID string) error {
		m, err := h.Ledger.Repo.GetMintTx(ctx, tx, mint)
		if errors.Is(err, repo.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrMintNotFound, mint)
		}
		if err != nil {
			return err
		}
		if dest, err = h.Ledger.EnsureTokenAccount(ctx, tx, owner, mint); err != nil {
			return err
		}
		if err := h.Ledger.mint(ctx, tx, m, dest, amount); err != nil {
			return err
		}
		return h.Events.Append(ctx, tx, events.Entry{
			Type: events.TokensMinted, TxID: txID, EntityKind: "token_account", EntityID: dest.String(), ActorID: actorID,
		}, events.EventPayload{"mint": mint.String(), "owner": owner.String(), "amount": amount})
	})
	if err != nil {
		return domain.TokenAccount{}, err
	}
	return h.Ledger.Repo.GetTokenAccount(ctx, dest)
}

func (h Host) withTx(ctx context.Context, fn func(tx *sql.Tx, txID string) error) error {
	tx, err := h.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := fn(tx, uuid.NewString()); err != nil {
		return err
	}
	return tx.Commit()
}
