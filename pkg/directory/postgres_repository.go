package directory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository implements the Repository interface using PostgreSQL
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL directory repository
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{
		pool: pool,
	}
}

const userColumns = `id, email, name, is_internal, profile_image, organization_id, status, password_hash, created_at, updated_at`

func scanUser(row pgx.Row) (*User, error) {
	user := &User{}
	var profileImage, passwordHash sql.NullString
	var organizationID uuid.NullUUID

	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.Name,
		&user.IsInternal,
		&profileImage,
		&organizationID,
		&user.Status,
		&passwordHash,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	user.ProfileImage = profileImage.String
	user.PasswordHash = passwordHash.String
	if organizationID.Valid {
		user.OrganizationID = &organizationID.UUID
	}
	return user, nil
}

// FindUser finds a user by id
func (r *PostgresRepository) FindUser(ctx context.Context, id uuid.UUID) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	user, err := scanUser(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return user, nil
}

// FindUserByEmail finds a user by email
func (r *PostgresRepository) FindUserByEmail(ctx context.Context, email string) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`

	user, err := scanUser(r.pool.QueryRow(ctx, query, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}
	return user, nil
}

// FindOrganization finds an organization by id
func (r *PostgresRepository) FindOrganization(ctx context.Context, id uuid.UUID) (*Organization, error) {
	query := `SELECT id, name FROM organizations WHERE id = $1`

	org := &Organization{}
	err := r.pool.QueryRow(ctx, query, id).Scan(&org.ID, &org.Name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find organization: %w", err)
	}
	return org, nil
}
