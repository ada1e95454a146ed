package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rikouu/serdo-v2-sub001/internal/domain"
	"github.com/rikouu/serdo-v2-sub001/internal/repository"
)

const uniqueViolation = "23505"

// Repository implements persistence interfaces on PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// New constructs a Repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ensure Repository satisfies interfaces.
var (
	_ repository.UserRepository   = (*Repository)(nil)
	_ repository.TenantRepository = (*Repository)(nil)
)

// CreateUser inserts a user.
func (r *Repository) CreateUser(ctx context.Context, user *domain.User) error {
	const query = `INSERT INTO users (id, tenant_id, email, password_hash, created_at)
		VALUES ($1, $2, $3, $4, $5)`
	_, err := r.pool.Exec(ctx, query, user.ID, user.TenantID, strings.ToLower(user.Email), user.PasswordHash, user.CreatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return repository.ErrConflict
	}
	return err
}

// GetUserByEmail fetches a user by email.
func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	const query = `SELECT id, tenant_id, email, password_hash, created_at FROM users WHERE LOWER(email) = LOWER($1)`
	return r.scanUser(r.pool.QueryRow(ctx, query, email))
}

// GetUserByID retrieves a user by identifier.
func (r *Repository) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	const query = `SELECT id, tenant_id, email, password_hash, created_at FROM users WHERE id = $1`
	return r.scanUser(r.pool.QueryRow(ctx, query, id))
}

func (r *Repository) scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	if err := row.Scan(&u.ID, &u.TenantID, &u.Email, &u.PasswordHash, &u.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

// ListTenantIDs returns all tenants with a stored document.
func (r *Repository) ListTenantIDs(ctx context.Context) ([]string, error) {
	const query = `SELECT tenant_id FROM tenant_documents ORDER BY tenant_id`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Load fetches a tenant document.
func (r *Repository) Load(ctx context.Context, tenantID string) (*domain.Document, error) {
	const query = `SELECT document FROM tenant_documents WHERE tenant_id = $1`
	var raw []byte
	if err := r.pool.QueryRow(ctx, query, tenantID).Scan(&raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return decodeDocument(raw)
}

// Update performs the read-modify-write inside one transaction holding a row
// lock on the tenant, so concurrent writers to other tenants are unaffected.
func (r *Repository) Update(ctx context.Context, tenantID string, fn repository.MutateFunc) (*domain.Document, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// Guarantee a row exists so FOR UPDATE has something to lock.
	const seed = `INSERT INTO tenant_documents (tenant_id, document) VALUES ($1, $2)
		ON CONFLICT (tenant_id) DO NOTHING`
	fresh, err := json.Marshal(domain.NewDocument(tenantID))
	if err != nil {
		return nil, err
	}
	if _, err := tx.Exec(ctx, seed, tenantID, fresh); err != nil {
		return nil, fmt.Errorf("seed tenant document: %w", err)
	}

	const selectForUpdate = `SELECT document FROM tenant_documents WHERE tenant_id = $1 FOR UPDATE`
	var raw []byte
	if err := tx.QueryRow(ctx, selectForUpdate, tenantID).Scan(&raw); err != nil {
		return nil, fmt.Errorf("lock tenant document: %w", err)
	}
	doc, err := decodeDocument(raw)
	if err != nil {
		return nil, err
	}
	if err := fn(doc); err != nil {
		return nil, err
	}
	doc.TenantID = tenantID
	doc.UpdatedAt = time.Now().UTC()
	encoded, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode tenant document: %w", err)
	}

	const write = `UPDATE tenant_documents SET document = $2, updated_at = $3 WHERE tenant_id = $1`
	if _, err := tx.Exec(ctx, write, tenantID, encoded, doc.UpdatedAt); err != nil {
		return nil, fmt.Errorf("write tenant document: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tenant document: %w", err)
	}
	return doc, nil
}

// Ping checks database connectivity.
func (r *Repository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func decodeDocument(raw []byte) (*domain.Document, error) {
	var doc domain.Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode tenant document: %w", err)
	}
	return &doc, nil
}
