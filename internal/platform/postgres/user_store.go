package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/tasker-api/internal/domain"
	"github.com/phrazzld/tasker-api/internal/platform/logger"
	"github.com/phrazzld/tasker-api/internal/store"
)

const userColumns = "id, username, email, hashed_password, created_at, updated_at"

// UserStore implements store.UserStore on a SQL database.
type UserStore struct {
	db      store.DBTX
	dialect Dialect
}

// NewUserStore creates a UserStore. A nil dialect means PostgreSQL.
func NewUserStore(db store.DBTX, dialect Dialect) *UserStore {
	if dialect == nil {
		dialect = PostgresDialect
	}
	return &UserStore{db: db, dialect: dialect}
}

var _ store.UserStore = (*UserStore)(nil)

// WithTx implements store.UserStore.WithTx
func (s *UserStore) WithTx(tx *sql.Tx) store.UserStore {
	return &UserStore{db: tx, dialect: s.dialect}
}

// Create implements store.UserStore.Create
func (s *UserStore) Create(ctx context.Context, user *domain.User) error {
	log := logger.FromContext(ctx)

	if user.HashedPassword == "" {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, domain.ErrEmptyHashedPassword)
	}

	query := s.dialect.Rebind(`
		INSERT INTO users (id, username, email, hashed_password, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`)

	_, err := s.db.ExecContext(ctx, query,
		user.ID,
		user.Username,
		user.Email,
		user.HashedPassword,
		user.CreatedAt.UTC(),
		user.UpdatedAt.UTC(),
	)
	if err != nil {
		if s.dialect.IsUniqueViolation(err) {
			log.Debug("username already registered")
			return MapUniqueViolation(s.dialect, err, store.ErrUsernameExists)
		}
		log.Error("failed to insert user", "user_id", user.ID, "error", err)
		return MapError(s.dialect, err)
	}

	// Plaintext is never kept past persistence.
	user.Password = ""
	return nil
}

// GetByID implements store.UserStore.GetByID
func (s *UserStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	query := s.dialect.Rebind(`SELECT ` + userColumns + ` FROM users WHERE id = $1`)
	return s.getOne(ctx, query, id)
}

// GetByUsername implements store.UserStore.GetByUsername
func (s *UserStore) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	query := s.dialect.Rebind(`SELECT ` + userColumns + ` FROM users WHERE username = $1`)
	return s.getOne(ctx, query, username)
}

func (s *UserStore) getOne(ctx context.Context, query string, arg any) (*domain.User, error) {
	var (
		user                 domain.User
		createdAt, updatedAt time.Time
	)
	err := s.db.QueryRowContext(ctx, query, arg).Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.HashedPassword,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrUserNotFound
		}
		logger.FromContext(ctx).Error("failed to get user", "error", err)
		return nil, MapError(s.dialect, err)
	}

	user.CreatedAt = createdAt.UTC()
	user.UpdatedAt = updatedAt.UTC()
	return &user, nil
}
