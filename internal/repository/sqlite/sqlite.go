// Package sqlite stores tenant documents in a local SQLite file through gorm,
// for single-node deployments without PostgreSQL.
package sqlite

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/rikouu/serdo-v2-sub001/internal/domain"
	"github.com/rikouu/serdo-v2-sub001/internal/repository"
	"github.com/rikouu/serdo-v2-sub001/internal/repository/tenantlock"
)

type userRow struct {
	ID           string `gorm:"primaryKey"`
	TenantID     string `gorm:"not null"`
	Email        string `gorm:"uniqueIndex;not null"`
	PasswordHash []byte `gorm:"not null"`
	CreatedAt    time.Time
}

func (userRow) TableName() string { return "users" }

type documentRow struct {
	TenantID  string `gorm:"primaryKey"`
	Document  string `gorm:"type:text;not null"`
	UpdatedAt time.Time
}

func (documentRow) TableName() string { return "tenant_documents" }

// Repository is a gorm-backed TenantRepository and UserRepository.
type Repository struct {
	db    *gorm.DB
	locks *tenantlock.Locker
}

var (
	_ repository.UserRepository   = (*Repository)(nil)
	_ repository.TenantRepository = (*Repository)(nil)
)

// Open connects to the SQLite file at path and migrates the schema.
func Open(path string) (*Repository, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.AutoMigrate(&userRow{}, &documentRow{}); err != nil {
		return nil, fmt.Errorf("migrate sqlite: %w", err)
	}
	return &Repository{db: db, locks: tenantlock.New()}, nil
}

// CreateUser inserts a user.
func (r *Repository) CreateUser(ctx context.Context, user *domain.User) error {
	row := userRow{
		ID:           user.ID,
		TenantID:     user.TenantID,
		Email:        strings.ToLower(user.Email),
		PasswordHash: user.PasswordHash,
		CreatedAt:    user.CreatedAt,
	}
	err := r.db.WithContext(ctx).Create(&row).Error
	if err != nil && strings.Contains(strings.ToLower(err.Error()), "unique") {
		return repository.ErrConflict
	}
	return err
}

// GetUserByEmail fetches a user by email.
func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.findUser(ctx, "email = ?", strings.ToLower(email))
}

// GetUserByID retrieves a user by identifier.
func (r *Repository) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	return r.findUser(ctx, "id = ?", id)
}

func (r *Repository) findUser(ctx context.Context, where string, arg any) (*domain.User, error) {
	var row userRow
	if err := r.db.WithContext(ctx).Where(where, arg).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &domain.User{
		ID:           row.ID,
		TenantID:     row.TenantID,
		Email:        row.Email,
		PasswordHash: row.PasswordHash,
		CreatedAt:    row.CreatedAt,
	}, nil
}

// ListTenantIDs returns all tenants with a stored document.
func (r *Repository) ListTenantIDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).Model(&documentRow{}).Order("tenant_id").Pluck("tenant_id", &ids).Error
	return ids, err
}

// Load fetches a tenant document.
func (r *Repository) Load(ctx context.Context, tenantID string) (*domain.Document, error) {
	var row documentRow
	if err := r.db.WithContext(ctx).Where("tenant_id = ?", tenantID).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	var doc domain.Document
	if err := json.Unmarshal([]byte(row.Document), &doc); err != nil {
		return nil, fmt.Errorf("decode tenant document: %w", err)
	}
	return &doc, nil
}

// Update serialises writers per tenant in-process; SQLite has no row locks.
func (r *Repository) Update(ctx context.Context, tenantID string, fn repository.MutateFunc) (*domain.Document, error) {
	release := r.locks.Lock(tenantID)
	defer release()

	doc, err := r.Load(ctx, tenantID)
	if errors.Is(err, repository.ErrNotFound) {
		doc = domain.NewDocument(tenantID)
	} else if err != nil {
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
	row := documentRow{TenantID: tenantID, Document: string(encoded), UpdatedAt: doc.UpdatedAt}
	if err := r.db.WithContext(ctx).Save(&row).Error; err != nil {
		return nil, fmt.Errorf("write tenant document: %w", err)
	}
	return doc, nil
}

// Ping checks the underlying connection.
func (r *Repository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close releases the database handle.
func (r *Repository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
