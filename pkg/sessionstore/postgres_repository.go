package sessionstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository implements the Repository interface using PostgreSQL
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL session repository
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{
		pool: pool,
	}
}

const sessionColumns = `id, user_id, impersonator_id, jti, expires_at, revoked_at, created_at`

func scanSession(row pgx.Row) (*SessionRecord, error) {
	record := &SessionRecord{}
	var impersonatorID uuid.NullUUID
	var revokedAt sql.NullTime

	err := row.Scan(
		&record.ID,
		&record.UserID,
		&impersonatorID,
		&record.JTI,
		&record.ExpiresAt,
		&revokedAt,
		&record.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if impersonatorID.Valid {
		record.ImpersonatorID = &impersonatorID.UUID
	}
	if revokedAt.Valid {
		record.RevokedAt = &revokedAt.Time
	}
	return record, nil
}

// Persist inserts a new session record
func (r *PostgresRepository) Persist(ctx context.Context, params CreateSessionParams) (*SessionRecord, error) {
	query := `
		INSERT INTO sessions (
			user_id, impersonator_id, jti, expires_at
		) VALUES (
			$1, $2, $3, $4
		) RETURNING ` + sessionColumns

	var impersonatorID uuid.NullUUID
	if params.ImpersonatorID != nil {
		impersonatorID = uuid.NullUUID{UUID: *params.ImpersonatorID, Valid: true}
	}

	record, err := scanSession(r.pool.QueryRow(ctx, query,
		params.UserID,
		impersonatorID,
		params.JTI,
		params.ExpiresAt,
	))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrDuplicateJTI
		}
		return nil, fmt.Errorf("failed to persist session: %w", err)
	}

	return record, nil
}

// IsActive reports whether a non-revoked record exists for jti
func (r *PostgresRepository) IsActive(ctx context.Context, jti string) (bool, error) {
	query := `
		SELECT (revoked_at IS NULL) AS is_active
		FROM sessions
		WHERE jti = $1
	`

	var isActive bool
	err := r.pool.QueryRow(ctx, query, jti).Scan(&isActive)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check session liveness: %w", err)
	}

	return isActive, nil
}

// Revoke marks the matching record revoked. Idempotent: zero affected
// rows means the record is absent or already revoked.
func (r *PostgresRepository) Revoke(ctx context.Context, userID uuid.UUID, jti string) error {
	query := `
		UPDATE sessions
		SET revoked_at = NOW()
		WHERE user_id = $1
		  AND jti = $2
		  AND revoked_at IS NULL
	`

	_, err := r.pool.Exec(ctx, query, userID, jti)
	if err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}

	return nil
}

// LatestForUser returns the most-recently-created record for the user
func (r *PostgresRepository) LatestForUser(ctx context.Context, userID uuid.UUID) (*SessionRecord, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM sessions
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`

	record, err := scanSession(r.pool.QueryRow(ctx, query, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get latest session: %w", err)
	}

	return record, nil
}

// ListActiveForUser lists non-revoked, unexpired records for the user
func (r *PostgresRepository) ListActiveForUser(ctx context.Context, userID uuid.UUID) ([]SessionRecord, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM sessions
		WHERE user_id = $1
		  AND revoked_at IS NULL
		  AND expires_at > NOW()
		ORDER BY created_at DESC
	`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list active sessions: %w", err)
	}
	defer rows.Close()

	var records []SessionRecord
	for rows.Next() {
		record, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		records = append(records, *record)
	}

	if rows.Err() != nil {
		return nil, fmt.Errorf("error iterating sessions: %w", rows.Err())
	}

	return records, nil
}
