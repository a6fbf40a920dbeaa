package sqlitedb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ephesafe/ephesafed/internal/core/domain"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

type safeRepository struct {
	db *sql.DB
}

func NewSafeRepository(config ...interface{}) (domain.SafeRepository, error) {
	if len(config) != 1 {
		return nil, fmt.Errorf("invalid config: expected 1 argument, got %d", len(config))
	}
	db, ok := config[0].(*sql.DB)
	if !ok {
		return nil, fmt.Errorf(
			"cannot open safe repository: expected *sql.DB but got %T", config[0],
		)
	}

	return &safeRepository{db}, nil
}

func (r *safeRepository) AddSafe(ctx context.Context, safe domain.Safe) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	// nolint:errcheck
	defer tx.Rollback()

	amount := "0"
	if safe.Amount != nil {
		amount = safe.Amount.Dec()
	}

	if _, err := tx.ExecContext(
		ctx,
		`INSERT INTO safe (
			id, owner, issuer, expiry, amount, token_address, status,
			token_uri, metadata, approvals_required, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		safe.Id, safe.Owner.Hex(), safe.Issuer.Hex(), safe.Expiry, amount,
		safe.TokenAddress.Hex(), int(safe.Status), safe.TokenUri, safe.Metadata,
		safe.ApprovalsRequired, safe.CreatedAt, time.Now().Unix(),
	); err != nil {
		return fmt.Errorf("failed to insert safe %d: %w", safe.Id, err)
	}

	for i, authorizer := range safe.MultiSafeAddresses {
		if _, err := tx.ExecContext(
			ctx,
			`INSERT INTO safe_authorizer (safe_id, position, authorizer) VALUES (?, ?, ?)`,
			safe.Id, i, authorizer.Hex(),
		); err != nil {
			return fmt.Errorf("failed to insert authorizer for safe %d: %w", safe.Id, err)
		}
	}

	return tx.Commit()
}

func (r *safeRepository) GetSafe(ctx context.Context, id uint64) (*domain.Safe, error) {
	row := r.db.QueryRowContext(
		ctx,
		`SELECT id, owner, issuer, expiry, amount, token_address, status,
			token_uri, metadata, approvals_required, created_at
		FROM safe WHERE id = ?`,
		id,
	)
	safe, err := scanSafe(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	authorizers, err := r.getAuthorizers(ctx, id)
	if err != nil {
		return nil, err
	}
	safe.MultiSafeAddresses = authorizers
	return safe, nil
}

func (r *safeRepository) UpdateSafe(ctx context.Context, safe domain.Safe) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	// nolint:errcheck
	defer tx.Rollback()

	res, err := tx.ExecContext(
		ctx,
		`UPDATE safe SET status = ?, token_uri = ?, issuer = ?, updated_at = ? WHERE id = ?`,
		int(safe.Status), safe.TokenUri, safe.Issuer.Hex(), time.Now().Unix(), safe.Id,
	)
	if err != nil {
		return fmt.Errorf("failed to update safe %d: %w", safe.Id, err)
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return fmt.Errorf("safe %d not found", safe.Id)
	}

	if _, err := tx.ExecContext(
		ctx, `DELETE FROM safe_authorizer WHERE safe_id = ?`, safe.Id,
	); err != nil {
		return err
	}
	for i, authorizer := range safe.MultiSafeAddresses {
		if _, err := tx.ExecContext(
			ctx,
			`INSERT INTO safe_authorizer (safe_id, position, authorizer) VALUES (?, ?, ?)`,
			safe.Id, i, authorizer.Hex(),
		); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (r *safeRepository) GetSafesByOwner(
	ctx context.Context, owner common.Address,
) ([]domain.Safe, error) {
	return r.findSafes(
		ctx,
		`SELECT id, owner, issuer, expiry, amount, token_address, status,
			token_uri, metadata, approvals_required, created_at
		FROM safe WHERE owner = ? ORDER BY id ASC`,
		owner.Hex(),
	)
}

func (r *safeRepository) GetSafesByIssuer(
	ctx context.Context, issuer common.Address,
) ([]domain.Safe, error) {
	return r.findSafes(
		ctx,
		`SELECT id, owner, issuer, expiry, amount, token_address, status,
			token_uri, metadata, approvals_required, created_at
		FROM safe WHERE issuer = ? ORDER BY id ASC`,
		issuer.Hex(),
	)
}

func (r *safeRepository) GetSafesByAuthorizer(
	ctx context.Context, authorizer common.Address,
) ([]domain.Safe, error) {
	return r.findSafes(
		ctx,
		`SELECT s.id, s.owner, s.issuer, s.expiry, s.amount, s.token_address, s.status,
			s.token_uri, s.metadata, s.approvals_required, s.created_at
		FROM safe s JOIN safe_authorizer a ON a.safe_id = s.id
		WHERE a.authorizer = ? ORDER BY s.id ASC`,
		authorizer.Hex(),
	)
}

func (r *safeRepository) GetAllSafeIds(ctx context.Context) ([]uint64, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id FROM safe ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	// nolint:errcheck
	defer rows.Close()

	ids := make([]uint64, 0)
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *safeRepository) Close() {
	_ = r.db.Close()
}

func (r *safeRepository) findSafes(
	ctx context.Context, query string, args ...any,
) ([]domain.Safe, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	// nolint:errcheck
	defer rows.Close()

	safes := make([]domain.Safe, 0)
	for rows.Next() {
		safe, err := scanSafe(rows)
		if err != nil {
			return nil, err
		}
		safes = append(safes, *safe)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range safes {
		authorizers, err := r.getAuthorizers(ctx, safes[i].Id)
		if err != nil {
			return nil, err
		}
		safes[i].MultiSafeAddresses = authorizers
	}
	return safes, nil
}

func (r *safeRepository) getAuthorizers(
	ctx context.Context, safeId uint64,
) ([]common.Address, error) {
	rows, err := r.db.QueryContext(
		ctx,
		`SELECT authorizer FROM safe_authorizer WHERE safe_id = ? ORDER BY position ASC`,
		safeId,
	)
	if err != nil {
		return nil, err
	}
	// nolint:errcheck
	defer rows.Close()

	authorizers := make([]common.Address, 0)
	for rows.Next() {
		var addr string
		if err := rows.Scan(&addr); err != nil {
			return nil, err
		}
		authorizers = append(authorizers, common.HexToAddress(addr))
	}
	return authorizers, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSafe(row rowScanner) (*domain.Safe, error) {
	var (
		id                uint64
		owner             string
		issuer            string
		expiry            int64
		amount            string
		tokenAddress      string
		status            int
		tokenUri          string
		metadata          string
		approvalsRequired uint64
		createdAt         int64
	)
	if err := row.Scan(
		&id, &owner, &issuer, &expiry, &amount, &tokenAddress, &status,
		&tokenUri, &metadata, &approvalsRequired, &createdAt,
	); err != nil {
		return nil, err
	}

	parsedAmount, err := uint256.FromDecimal(amount)
	if err != nil {
		return nil, fmt.Errorf("invalid amount for safe %d: %s", id, err)
	}

	return &domain.Safe{
		Id:                id,
		Owner:             common.HexToAddress(owner),
		Issuer:            common.HexToAddress(issuer),
		Expiry:            expiry,
		Amount:            parsedAmount,
		TokenAddress:      common.HexToAddress(tokenAddress),
		Status:            domain.SafeStatus(status),
		TokenUri:          tokenUri,
		Metadata:          metadata,
		ApprovalsRequired: approvalsRequired,
		CreatedAt:         createdAt,
	}, nil
}
