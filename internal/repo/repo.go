package repo

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/gagliardetto/solana-go"

	"github.com/sol-bridge/202505-breakout-hackathon/internal/domain"
)

// Repo is the record store. Every write has a Tx form so the engine can stage an entire
// instruction inside one transaction; a nil tx falls back to the database handle.
type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (r Repo) q(tx *sql.Tx) querier {
	if tx != nil {
		return tx
	}
	return r.DB
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

// SQLite integers are signed; u64 balances are stored bit-for-bit.
func u64(v uint64) int64 { return int64(v) }

func now() string { return time.Now().UTC().Format(time.RFC3339) }

func scanAccount(row *sql.Row) (domain.Account, error) {
	var (
		a              domain.Account
		address, owner string
		lamports       int64
	)
	err := row.Scan(&address, &owner, &lamports, &a.Data, &a.UpdatedAt)
	if err == sql.ErrNoRows {
		return a, ErrNotFound
	}
	if err != nil {
		return a, err
	}
	if a.Address, err = solana.PublicKeyFromBase58(address); err != nil {
		return a, err
	}
	if a.Owner, err = solana.PublicKeyFromBase58(owner); err != nil {
		return a, err
	}
	a.Lamports = uint64(lamports)
	return a, nil
}

// GetAccount returns the account at addr or ErrNotFound.
func (r Repo) GetAccount(ctx context.Context, addr solana.PublicKey) (domain.Account, error) {
	return r.GetAccountTx(ctx, nil, addr)
}

func (r Repo) GetAccountTx(ctx context.Context, tx *sql.Tx, addr solana.PublicKey) (domain.Account, error) {
	return scanAccount(r.q(tx).QueryRowContext(ctx, `SELECT address,owner,lamports,data,updated_at FROM accounts WHERE address=?`, addr.String()))
}

// LoadAccountTx returns the account at addr, or an empty system-owned account if none exists.
func (r Repo) LoadAccountTx(ctx context.Context, tx *sql.Tx, addr solana.PublicKey) (domain.Account, error) {
	a, err := r.GetAccountTx(ctx, tx, addr)
	if errors.Is(err, ErrNotFound) {
		return domain.Account{Address: addr, Owner: solana.SystemProgramID}, nil
	}
	return a, err
}

// PutAccountTx inserts or replaces the account's owner, balance and data.
func (r Repo) PutAccountTx(ctx context.Context, tx *sql.Tx, a domain.Account) error {
	_, err := r.q(tx).ExecContext(ctx, `INSERT INTO accounts(address,owner,lamports,data,updated_at) VALUES (?,?,?,?,?)
ON CONFLICT(address) DO UPDATE SET owner=excluded.owner, lamports=excluded.lamports, data=excluded.data, updated_at=excluded.updated_at`,
		a.Address.String(), a.Owner.String(), u64(a.Lamports), a.Data, now())
	return err
}

func (r Repo) PutAccount(ctx context.Context, a domain.Account) error {
	return r.PutAccountTx(ctx, nil, a)
}

// ListAccountsByOwner returns accounts owned by program holding at least minDataLen bytes of
// data, newest first.
func (r Repo) ListAccountsByOwner(ctx context.Context, program solana.PublicKey, minDataLen, limit int) ([]domain.Account, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.DB.QueryContext(ctx, `SELECT address,owner,lamports,data,updated_at FROM accounts WHERE owner=? AND length(data)>=? ORDER BY updated_at DESC, address LIMIT ?`,
		program.String(), minDataLen, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Account
	for rows.Next() {
		var (
			a              domain.Account
			address, owner string
			lamports       int64
		)
		if err := rows.Scan(&address, &owner, &lamports, &a.Data, &a.UpdatedAt); err != nil {
			return nil, err
		}
		if a.Address, err = solana.PublicKeyFromBase58(address); err != nil {
			return nil, err
		}
		if a.Owner, err = solana.PublicKeyFromBase58(owner); err != nil {
			return nil, err
		}
		a.Lamports = uint64(lamports)
		res = append(res, a)
	}
	return res, rows.Err()
}
