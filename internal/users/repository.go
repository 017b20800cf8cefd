package users

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists platform users.
type Repository interface {
	Create(ctx context.Context, req *CreateUserRequest) (*User, error)
	GetByID(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	List(ctx context.Context, filter ListFilter) ([]*User, error)
	SoftDelete(ctx context.Context, id, deletedBy, reason string) (*User, error)
}

type pgDB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository stores users in the users table. Soft-deleted rows are
// kept but hidden from List and GetByEmail.
type PostgresRepository struct {
	db pgDB
}

func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	if pool == nil {
		panic("users: pgx pool required")
	}
	return newPostgresRepositoryWithDB(pool)
}

func newPostgresRepositoryWithDB(db pgDB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const userColumns = `id, name, email, password_hash, role, active,
	COALESCE(subscription_type_id, ''), COALESCE(payment_status, ''), COALESCE(payment_method, ''),
	payment_date, payment_amount, expiration_date, created_at, updated_at,
	deleted_at, COALESCE(deleted_by, ''), COALESCE(deleted_reason, '')`

func (r *PostgresRepository) Create(ctx context.Context, req *CreateUserRequest) (*User, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	hash, err := HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	query := `
		INSERT INTO users (id, name, email, password_hash, role, active, subscription_type_id)
		VALUES ($1, $2, $3, $4, $5, true, NULLIF($6, ''))
		RETURNING ` + userColumns

	row := r.db.QueryRow(ctx, query, uuid.NewString(), req.Name, req.Email, hash, string(req.Role), req.SubscriptionTypeID)
	user, err := scanUser(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrDuplicateEmail
		}
		return nil, fmt.Errorf("users: insert: %w", err)
	}
	return user, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return r.getOne(ctx, query, id)
}

func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1 AND deleted_at IS NULL`
	return r.getOne(ctx, query, strings.ToLower(strings.TrimSpace(email)))
}

func (r *PostgresRepository) getOne(ctx context.Context, query string, arg string) (*User, error) {
	user, err := scanUser(r.db.QueryRow(ctx, query, arg))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("users: get: %w", err)
	}
	return user, nil
}

func (r *PostgresRepository) List(ctx context.Context, filter ListFilter) ([]*User, error) {
	if filter.Limit <= 0 || filter.Limit > 100 {
		filter.Limit = 50
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	query := `SELECT ` + userColumns + ` FROM users
		WHERE deleted_at IS NULL AND ($1::text = '' OR role = $1)
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`

	rows, err := r.db.Query(ctx, query, string(filter.Role), filter.Limit, filter.Offset)
	if err != nil {
		return nil, fmt.Errorf("users: list: %w", err)
	}
	defer rows.Close()

	var out []*User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("users: scan: %w", err)
		}
		out = append(out, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("users: list rows: %w", err)
	}
	return out, nil
}

func (r *PostgresRepository) SoftDelete(ctx context.Context, id, deletedBy, reason string) (*User, error) {
	query := `
		UPDATE users
		SET deleted_at = now(), deleted_by = NULLIF($2, ''), deleted_reason = NULLIF($3, ''),
			active = false, updated_at = now()
		WHERE id = $1 AND deleted_at IS NULL
		RETURNING ` + userColumns

	user, err := scanUser(r.db.QueryRow(ctx, query, id, deletedBy, reason))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("users: soft delete: %w", err)
	}
	return user, nil
}

func scanUser(row pgx.Row) (*User, error) {
	var (
		u             User
		role, payment string
	)
	err := row.Scan(
		&u.ID, &u.Name, &u.Email, &u.PasswordHash, &role, &u.Active,
		&u.SubscriptionTypeID, &payment, &u.PaymentMethod,
		&u.PaymentDate, &u.PaymentAmount, &u.ExpirationDate, &u.CreatedAt, &u.UpdatedAt,
		&u.DeletedAt, &u.DeletedBy, &u.DeletedReason,
	)
	if err != nil {
		return nil, err
	}
	u.Role = Role(role)
	u.PaymentStatus = PaymentStatus(payment)
	return &u, nil
}
