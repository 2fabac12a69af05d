// Package ledger is the token ledger: mints and token accounts kept in the same SQLite store as
// the program records, so token movements share the caller's transaction.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/bits"

	"github.com/gagliardetto/solana-go"

	"github.com/sol-bridge/202505-breakout-hackathon/internal/domain"
	"github.com/sol-bridge/202505-breakout-hackathon/internal/keys"
	"github.com/sol-bridge/202505-breakout-hackathon/internal/repo"
)

var (
	ErrMintNotFound         = errors.New("mint not found")
	ErrTokenAccountNotFound = errors.New("token account not found")
	ErrMintMismatch         = errors.New("token account mint mismatch")
	ErrOwnerMismatch        = errors.New("authority does not own account")
	ErrInsufficientTokens   = errors.New("insufficient token balance")
	ErrAmountOverflow       = errors.New("token amount overflow")
)

type Ledger struct {
	Repo repo.Repo
}

// EnsureTokenAccount returns the token account address for (owner, mint), opening it when absent.
func (l Ledger) EnsureTokenAccount(ctx context.Context, tx *sql.Tx, owner, mint solana.PublicKey) (solana.PublicKey, error) {
	if _, err := l.Repo.GetMintTx(ctx, tx, mint); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return solana.PublicKey{}, fmt.Errorf("%w: %s", ErrMintNotFound, mint)
		}
		return solana.PublicKey{}, err
	}
	addr, err := keys.TokenAccount(owner, mint)
	if err != nil {
		return solana.PublicKey{}, err
	}
	if err := l.Repo.InsertTokenAccountTx(ctx, tx, domain.TokenAccount{Address: addr, Mint: mint, Owner: owner}); err != nil {
		return solana.PublicKey{}, fmt.Errorf("open token account: %w", err)
	}
	return addr, nil
}

// Transfer moves amount from one token account to another. authority must own the source.
func (l Ledger) Transfer(ctx context.Context, tx *sql.Tx, from, to, authority solana.PublicKey, amount uint64) error {
	src, err := l.tokenAccount(ctx, tx, from)
	if err != nil {
		return err
	}
	dst, err := l.tokenAccount(ctx, tx, to)
	if err != nil {
		return err
	}
	if !src.Owner.Equals(authority) {
		return fmt.Errorf("%w: %s", ErrOwnerMismatch, from)
	}
	if !src.Mint.Equals(dst.Mint) {
		return ErrMintMismatch
	}
	if from.Equals(to) {
		return nil
	}
	if src.Amount < amount {
		return fmt.Errorf("%w: have %d, need %d", ErrInsufficientTokens, src.Amount, amount)
	}
	credited, carry := bits.Add64(dst.Amount, amount, 0)
	if carry != 0 {
		return ErrAmountOverflow
	}
	if err := l.Repo.SetTokenAmountTx(ctx, tx, from, src.Amount-amount); err != nil {
		return err
	}
	return l.Repo.SetTokenAmountTx(ctx, tx, to, credited)
}

// MintTo creates amount new tokens of mint in dest. authority must be the mint authority.
func (l Ledger) MintTo(ctx context.Context, tx *sql.Tx, mint, dest, authority solana.PublicKey, amount uint64) error {
	m, err := l.Repo.GetMintTx(ctx, tx, mint)
	if errors.Is(err, repo.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrMintNotFound, mint)
	}
	if err != nil {
		return err
	}
	if !m.Authority.Equals(authority) {
		return fmt.Errorf("%w: mint %s", ErrOwnerMismatch, mint)
	}
	return l.mint(ctx, tx, m, dest, amount)
}

func (l Ledger) mint(ctx context.Context, tx *sql.Tx, m domain.Mint, dest solana.PublicKey, amount uint64) error {
	acct, err := l.tokenAccount(ctx, tx, dest)
	if err != nil {
		return err
	}
	if !acct.Mint.Equals(m.Address) {
		return ErrMintMismatch
	}
	supply, carry := bits.Add64(m.Supply, amount, 0)
	if carry != 0 {
		return ErrAmountOverflow
	}
	balance, carry := bits.Add64(acct.Amount, amount, 0)
	if carry != 0 {
		return ErrAmountOverflow
	}
	if err := l.Repo.SetMintSupplyTx(ctx, tx, m.Address, supply); err != nil {
		return err
	}
	return l.Repo.SetTokenAmountTx(ctx, tx, dest, balance)
}

// Balance returns the token balance of (owner, mint), zero when the account was never opened.
func (l Ledger) Balance(ctx context.Context, owner, mint solana.PublicKey) (uint64, error) {
	addr, err := keys.TokenAccount(owner, mint)
	if err != nil {
		return 0, err
	}
	acct, err := l.Repo.GetTokenAccount(ctx, addr)
	if errors.Is(err, repo.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return acct.Amount, nil
}

func (l Ledger) tokenAccount(ctx context.Context, tx *sql.Tx, addr solana.PublicKey) (domain.TokenAccount, error) {
	acct, err := l.Repo.GetTokenAccountTx(ctx, tx, addr)
	if errors.Is(err, repo.ErrNotFound) {
		return acct, fmt.Errorf("%w: %s", ErrTokenAccountNotFound, addr)
	}
	return acct, err
}
