package contacts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolation = "23505"

type pgDB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository stores contacts in the relational database.
type PostgresRepository struct {
	db pgDB
}

// NewPostgresRepository initializes a repo backed by pgxpool.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	if pool == nil {
		panic("contacts: pgx pool required")
	}
	return &PostgresRepository{db: pool}
}

func newPostgresRepositoryWithDB(db pgDB) *PostgresRepository {
	if db == nil {
		panic("contacts: db required")
	}
	return &PostgresRepository{db: db}
}

const contactColumns = `id, name, email, company, sector, message, subscription_volume,
		COALESCE(subscription_type_id, ''), status, created_at, updated_at`

// Create inserts a new row. The unique index on email turns duplicates into
// ErrDuplicateEmail.
func (r *PostgresRepository) Create(ctx context.Context, req *CreateContactRequest) (*Contact, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	id := uuid.New()
	query := `
		INSERT INTO contacts (id, name, email, company, sector, message, subscription_volume, subscription_type_id, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''), $9)
		RETURNING created_at, updated_at
	`
	var createdAt, updatedAt time.Time
	if err := r.db.QueryRow(ctx, query,
		id,
		req.Name,
		req.Email,
		req.Company,
		req.Sector,
		req.Message,
		req.SubscriptionVolume,
		req.SubscriptionTypeID,
		string(StatusNew),
	).Scan(&createdAt, &updatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, ErrDuplicateEmail
		}
		return nil, fmt.Errorf("contacts: insert failed: %w", err)
	}

	return &Contact{
		ID:                 id.String(),
		Name:               req.Name,
		Email:              req.Email,
		Company:            req.Company,
		Sector:             req.Sector,
		Message:            req.Message,
		SubscriptionVolume: req.SubscriptionVolume,
		SubscriptionTypeID: req.SubscriptionTypeID,
		Status:             StatusNew,
		CreatedAt:          createdAt,
		UpdatedAt:          updatedAt,
	}, nil
}

// GetByID fetches a contact by primary key.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*Contact, error) {
	query := `SELECT ` + contactColumns + ` FROM contacts WHERE id = $1`
	return r.scanOne(r.db.QueryRow(ctx, query, id))
}

// GetByEmail fetches a contact by normalized email.
func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*Contact, error) {
	query := `SELECT ` + contactColumns + ` FROM contacts WHERE email = $1`
	return r.scanOne(r.db.QueryRow(ctx, query, NormalizeEmail(email)))
}

// List returns contacts newest first, optionally filtered by status.
func (r *PostgresRepository) List(ctx context.Context, filter ListFilter) ([]*Contact, error) {
	filter = filter.normalized()
	query := `
		SELECT ` + contactColumns + `
		FROM contacts
		WHERE ($1::text = '' OR status = $1)
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.db.Query(ctx, query, string(filter.Status), filter.Limit, filter.Offset)
	if err != nil {
		return nil, fmt.Errorf("contacts: list failed: %w", err)
	}
	defer rows.Close()

	out := []*Contact{}
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, fmt.Errorf("contacts: scan failed: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("contacts: list failed: %w", err)
	}
	return out, nil
}

// UpdateStatus sets the pipeline status and bumps updated_at.
func (r *PostgresRepository) UpdateStatus(ctx context.Context, id string, status Status) (*Contact, error) {
	if !status.Valid() {
		return nil, ErrInvalidStatus
	}
	query := `
		UPDATE contacts
		SET status = $2, updated_at = now()
		WHERE id = $1
		RETURNING ` + contactColumns
	return r.scanOne(r.db.QueryRow(ctx, query, id, string(status)))
}

func (r *PostgresRepository) scanOne(row pgx.Row) (*Contact, error) {
	c, err := scanContact(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrContactNotFound
		}
		return nil, fmt.Errorf("contacts: select failed: %w", err)
	}
	return c, nil
}

func scanContact(row pgx.Row) (*Contact, error) {
	var c Contact
	var status string
	if err := row.Scan(
		&c.ID,
		&c.Name,
		&c.Email,
		&c.Company,
		&c.Sector,
		&c.Message,
		&c.SubscriptionVolume,
		&c.SubscriptionTypeID,
		&status,
		&c.CreatedAt,
		&c.UpdatedAt,
	); err != nil {
		return nil, err
	}
	c.Status = Status(status)
	return &c, nil
}

var _ Repository = (*PostgresRepository)(nil)
