package repo

import (
	"context"
	"database/sql"

	"github.com/gagliardetto/solana-go"

	"github.com/sol-bridge/202505-breakout-hackathon/internal/domain"
)

func (r Repo) GetMintTx(ctx context.Context, tx *sql.Tx, addr solana.PublicKey) (domain.Mint, error) {
	var (
		m         domain.Mint
		authority string
		decimals  int
		supply    int64
	)
	err := r.q(tx).QueryRowContext(ctx, `SELECT authority,decimals,supply,created_at FROM mints WHERE address=?`, addr.String()).
		Scan(&authority, &decimals, &supply, &m.CreatedAt)
	if err == sql.ErrNoRows {
		return m, ErrNotFound
	}
	if err != nil {
		return m, err
	}
	if m.Authority, err = solana.PublicKeyFromBase58(authority); err != nil {
		return m, err
	}
	m.Address = addr
	m.Decimals = uint8(decimals)
	m.Supply = uint64(supply)
	return m, nil
}

func (r Repo) GetMint(ctx context.Context, addr solana.PublicKey) (domain.Mint, error) {
	return r.GetMintTx(ctx, nil, addr)
}

// InsertMintTx creates a mint; creating an existing address is an error.
func (r Repo) InsertMintTx(ctx context.Context, tx *sql.Tx, m domain.Mint) error {
	if m.CreatedAt == "" {
		m.CreatedAt = now()
	}
	_, err := r.q(tx).ExecContext(ctx, `INSERT INTO mints(address,authority,decimals,supply,created_at) VALUES (?,?,?,?,?)`,
		m.Address.String(), m.Authority.String(), int(m.Decimals), u64(m.Supply), m.CreatedAt)
	return err
}

func (r Repo) SetMintSupplyTx(ctx context.Context, tx *sql.Tx, addr solana.PublicKey, supply uint64) error {
	res, err := r.q(tx).ExecContext(ctx, `UPDATE mints SET supply=? WHERE address=?`, u64(supply), addr.String())
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) GetTokenAccountTx(ctx context.Context, tx *sql.Tx, addr solana.PublicKey) (domain.TokenAccount, error) {
	var (
		ta          domain.TokenAccount
		mint, owner string
		amount      int64
	)
	err := r.q(tx).QueryRowContext(ctx, `SELECT mint,owner,amount FROM token_accounts WHERE address=?`, addr.String()).
		Scan(&mint, &owner, &amount)
	if err == sql.ErrNoRows {
		return ta, ErrNotFound
	}
	if err != nil {
		return ta, err
	}
	if ta.Mint, err = solana.PublicKeyFromBase58(mint); err != nil {
		return ta, err
	}
	if ta.Owner, err = solana.PublicKeyFromBase58(owner); err != nil {
		return ta, err
	}
	ta.Address = addr
	ta.Amount = uint64(amount)
	return ta, nil
}

func (r Repo) GetTokenAccount(ctx context.Context, addr solana.PublicKey) (domain.TokenAccount, error) {
	return r.GetTokenAccountTx(ctx, nil, addr)
}

// InsertTokenAccountTx opens a token account; opening an existing address is a no-op.
func (r Repo) InsertTokenAccountTx(ctx context.Context, tx *sql.Tx, ta domain.TokenAccount) error {
	_, err := r.q(tx).ExecContext(ctx, `INSERT INTO token_accounts(address,mint,owner,amount,created_at) VALUES (?,?,?,?,?)
ON CONFLICT(address) DO NOTHING`,
		ta.Address.String(), ta.Mint.String(), ta.Owner.String(), u64(ta.Amount), now())
	return err
}

func (r Repo) SetTokenAmountTx(ctx context.Context, tx *sql.Tx, addr solana.PublicKey, amount uint64) error {
	res, err := r.q(tx).ExecContext(ctx, `UPDATE token_accounts SET amount=? WHERE address=?`, u64(amount), addr.String())
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListTokenAccounts returns the token accounts held by owner.
func (r Repo) ListTokenAccounts(ctx context.Context, owner solana.PublicKey) ([]domain.TokenAccount, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT address,mint,amount FROM token_accounts WHERE owner=? ORDER BY created_at, address`, owner.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.TokenAccount
	for rows.Next() {
		var (
			address, mint string
			amount        int64
		)
		if err := rows.Scan(&address, &mint, &amount); err != nil {
			return nil, err
		}
		ta := domain.TokenAccount{Owner: owner, Amount: uint64(amount)}
		if ta.Address, err = solana.PublicKeyFromBase58(address); err != nil {
			return nil, err
		}
		if ta.Mint, err = solana.PublicKeyFromBase58(mint); err != nil {
			return nil, err
		}
		res = append(res, ta)
	}
	return res, rows.Err()
}
