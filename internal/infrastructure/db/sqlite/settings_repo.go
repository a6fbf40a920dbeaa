package sqlitedb

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ephesafe/ephesafed/internal/core/domain"
	"github.com/ethereum/go-ethereum/common"
)

type settingsRepository struct {
	db *sql.DB
}

func NewSettingsRepository(config ...interface{}) (domain.SettingsRepository, error) {
	if len(config) != 1 {
		return nil, fmt.Errorf("invalid config: expected 1 argument, got %d", len(config))
	}
	db, ok := config[0].(*sql.DB)
	if !ok {
		return nil, fmt.Errorf(
			"cannot open settings repository: expected *sql.DB but got %T", config[0],
		)
	}

	return &settingsRepository{db}, nil
}

func (r *settingsRepository) Get(ctx context.Context) (*domain.Settings, error) {
	row := r.db.QueryRowContext(
		ctx,
		`SELECT paused, roles, next_safe_id, total_claimed_safes, total_burnt_safes
		FROM settings WHERE id = 1`,
	)

	var (
		paused            bool
		rolesJSON         string
		nextSafeId        uint64
		totalClaimedSafes uint64
		totalBurntSafes   uint64
	)
	err := row.Scan(&paused, &rolesJSON, &nextSafeId, &totalClaimedSafes, &totalBurntSafes)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get settings: %w", err)
	}

	roles, err := parseRoles(rolesJSON)
	if err != nil {
		return nil, err
	}

	return &domain.Settings{
		Paused:            paused,
		Roles:             roles,
		NextSafeId:        nextSafeId,
		TotalClaimedSafes: totalClaimedSafes,
		TotalBurntSafes:   totalBurntSafes,
	}, nil
}

func (r *settingsRepository) Upsert(ctx context.Context, settings domain.Settings) error {
	rolesJSON, err := serializeRoles(settings.Roles)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(
		ctx,
		`INSERT INTO settings (
			id, paused, roles, next_safe_id, total_claimed_safes, total_burnt_safes, updated_at
		) VALUES (1, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			paused = excluded.paused,
			roles = excluded.roles,
			next_safe_id = excluded.next_safe_id,
			total_claimed_safes = excluded.total_claimed_safes,
			total_burnt_safes = excluded.total_burnt_safes,
			updated_at = excluded.updated_at`,
		settings.Paused, rolesJSON, settings.NextSafeId,
		settings.TotalClaimedSafes, settings.TotalBurntSafes, time.Now().Unix(),
	)
	return err
}

func (r *settingsRepository) NextSafeId(ctx context.Context) (uint64, error) {
	row := r.db.QueryRowContext(
		ctx,
		`UPDATE settings SET next_safe_id = next_safe_id + 1, updated_at = ?
		WHERE id = 1 RETURNING next_safe_id - 1`,
		time.Now().Unix(),
	)

	var id uint64
	if err := row.Scan(&id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, fmt.Errorf("settings not initialized")
		}
		return 0, err
	}
	return id, nil
}

func (r *settingsRepository) IncrementCounters(
	ctx context.Context, claimed, burnt uint64,
) error {
	res, err := r.db.ExecContext(
		ctx,
		`UPDATE settings SET
			total_claimed_safes = total_claimed_safes + ?,
			total_burnt_safes = total_burnt_safes + ?,
			updated_at = ?
		WHERE id = 1`,
		claimed, burnt, time.Now().Unix(),
	)
	if err != nil {
		return err
	}
	return requireInitialized(res)
}

func (r *settingsRepository) UpdatePaused(ctx context.Context, paused bool) error {
	res, err := r.db.ExecContext(
		ctx,
		`UPDATE settings SET paused = ?, updated_at = ? WHERE id = 1`,
		paused, time.Now().Unix(),
	)
	if err != nil {
		return err
	}
	return requireInitialized(res)
}

func (r *settingsRepository) GrantRole(
	ctx context.Context, role string, addr common.Address,
) error {
	return r.updateRoles(ctx, func(settings *domain.Settings) {
		settings.GrantRole(role, addr)
	})
}

func (r *settingsRepository) RevokeRole(
	ctx context.Context, role string, addr common.Address,
) error {
	return r.updateRoles(ctx, func(settings *domain.Settings) {
		settings.RevokeRole(role, addr)
	})
}

// updateRoles rewrites the roles column inside a transaction so concurrent
// role mutations cannot lose each other's writes.
func (r *settingsRepository) updateRoles(
	ctx context.Context, apply func(*domain.Settings),
) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var rolesJSON string
	err = tx.QueryRowContext(ctx, `SELECT roles FROM settings WHERE id = 1`).
		Scan(&rolesJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("settings not initialized")
	}
	if err != nil {
		return err
	}

	roles, err := parseRoles(rolesJSON)
	if err != nil {
		return err
	}
	settings := domain.Settings{Roles: roles}
	apply(&settings)

	updated, err := serializeRoles(settings.Roles)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(
		ctx,
		`UPDATE settings SET roles = ?, updated_at = ? WHERE id = 1`,
		updated, time.Now().Unix(),
	); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *settingsRepository) Close() {
	_ = r.db.Close()
}

func requireInitialized(res sql.Result) error {
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return fmt.Errorf("settings not initialized")
	}
	return nil
}

func parseRoles(rolesJSON string) (map[string][]common.Address, error) {
	var rawRoles map[string][]string
	if err := json.Unmarshal([]byte(rolesJSON), &rawRoles); err != nil {
		return nil, fmt.Errorf("failed to parse roles: %w", err)
	}
	roles := make(map[string][]common.Address, len(rawRoles))
	for role, members := range rawRoles {
		addrs := make([]common.Address, 0, len(members))
		for _, addr := range members {
			addrs = append(addrs, common.HexToAddress(addr))
		}
		roles[role] = addrs
	}
	return roles, nil
}

func serializeRoles(roles map[string][]common.Address) (string, error) {
	rawRoles := make(map[string][]string, len(roles))
	for role, members := range roles {
		addrs := make([]string, 0, len(members))
		for _, addr := range members {
			addrs = append(addrs, addr.Hex())
		}
		rawRoles[role] = addrs
	}
	rolesJSON, err := json.Marshal(rawRoles)
	if err != nil {
		return "", fmt.Errorf("failed to serialize roles: %w", err)
	}
	return string(rolesJSON), nil
}
