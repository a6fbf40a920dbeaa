package sqlitedb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ephesafe/ephesafed/internal/core/domain"
	"github.com/ethereum/go-ethereum/common"
)

type unlockRepository struct {
	db *sql.DB
}

func NewEmergencyUnlockRepository(config ...interface{}) (domain.EmergencyUnlockRepository, error) {
	if len(config) != 1 {
		return nil, fmt.Errorf("invalid config: expected 1 argument, got %d", len(config))
	}
	db, ok := config[0].(*sql.DB)
	if !ok {
		return nil, fmt.Errorf(
			"cannot open unlock repository: expected *sql.DB but got %T", config[0],
		)
	}

	return &unlockRepository{db}, nil
}

func (r *unlockRepository) Get(
	ctx context.Context, safeId uint64,
) (*domain.EmergencyUnlock, error) {
	row := r.db.QueryRowContext(
		ctx,
		`SELECT safe_id, status, approval_count, recipient, started_at, completed_at
		FROM emergency_unlock WHERE safe_id = ?`,
		safeId,
	)

	var (
		id            uint64
		status        int
		approvalCount uint64
		recipient     string
		startedAt     int64
		completedAt   int64
	)
	err := row.Scan(&id, &status, &approvalCount, &recipient, &startedAt, &completedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(
		ctx,
		`SELECT approver FROM emergency_unlock_approver
		WHERE safe_id = ? ORDER BY position ASC`,
		safeId,
	)
	if err != nil {
		return nil, err
	}
	// nolint:errcheck
	defer rows.Close()

	approvedBy := make([]common.Address, 0)
	for rows.Next() {
		var addr string
		if err := rows.Scan(&addr); err != nil {
			return nil, err
		}
		approvedBy = append(approvedBy, common.HexToAddress(addr))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &domain.EmergencyUnlock{
		SafeId:        id,
		Status:        domain.UnlockStatus(status),
		ApprovalCount: approvalCount,
		ApprovedBy:    approvedBy,
		Recipient:     common.HexToAddress(recipient),
		StartedAt:     startedAt,
		CompletedAt:   completedAt,
	}, nil
}

func (r *unlockRepository) Upsert(ctx context.Context, unlock domain.EmergencyUnlock) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	// nolint:errcheck
	defer tx.Rollback()

	if _, err := tx.ExecContext(
		ctx,
		`INSERT INTO emergency_unlock (
			safe_id, status, approval_count, recipient, started_at, completed_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(safe_id) DO UPDATE SET
			status = excluded.status,
			approval_count = excluded.approval_count,
			recipient = excluded.recipient,
			started_at = excluded.started_at,
			completed_at = excluded.completed_at,
			updated_at = excluded.updated_at`,
		unlock.SafeId, int(unlock.Status), unlock.ApprovalCount, unlock.Recipient.Hex(),
		unlock.StartedAt, unlock.CompletedAt, time.Now().Unix(),
	); err != nil {
		return fmt.Errorf("failed to upsert unlock for safe %d: %w", unlock.SafeId, err)
	}

	if _, err := tx.ExecContext(
		ctx, `DELETE FROM emergency_unlock_approver WHERE safe_id = ?`, unlock.SafeId,
	); err != nil {
		return err
	}
	for i, approver := range unlock.ApprovedBy {
		if _, err := tx.ExecContext(
			ctx,
			`INSERT INTO emergency_unlock_approver (safe_id, position, approver)
			VALUES (?, ?, ?)`,
			unlock.SafeId, i, approver.Hex(),
		); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (r *unlockRepository) Close() {
	_ = r.db.Close()
}
