package user

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// FindByID returns nil when no user matches; absence is not an error.
func (r *Repository) FindByID(ctx context.Context, id string) (*User, error) {
	query := "SELECT id, username, phone, created_at FROM users WHERE id = $1"
	return r.scanOne(ctx, query, id)
}

func (r *Repository) FindByPhone(ctx context.Context, phone string) (*User, error) {
	query := "SELECT id, username, phone, created_at FROM users WHERE phone = $1"
	return r.scanOne(ctx, query, phone)
}

func (r *Repository) scanOne(ctx context.Context, query string, arg any) (*User, error) {
	u := &User{}
	err := r.db.QueryRowContext(ctx, query, arg).Scan(&u.ID, &u.Username, &u.Phone, &u.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("user lookup failed: %w", err)
	}
	return u, nil
}

func (r *Repository) List(ctx context.Context) ([]User, error) {
	query := "SELECT id, username, phone, created_at FROM users"
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("user listing failed: %w", err)
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Username, &u.Phone, &u.CreatedAt); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// FindByIDs is the batched lookup behind room aggregation: one query no
// matter how many rooms reference these users.
func (r *Repository) FindByIDs(ctx context.Context, ids []string) ([]User, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}
	query := fmt.Sprintf(
		"SELECT id, username, phone, created_at FROM users WHERE id IN (%s)",
		strings.Join(placeholders, ", "),
	)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("batched user lookup failed: %w", err)
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Username, &u.Phone, &u.CreatedAt); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// Create generates the id and timestamp here so concurrent identical calls
// both succeed. Duplicate phone numbers are not rejected at this layer.
func (r *Repository) Create(ctx context.Context, username, phone string) (*User, error) {
	u := &User{
		ID:        uuid.NewString(),
		Username:  username,
		Phone:     phone,
		CreatedAt: time.Now().UTC(),
	}

	query := "INSERT INTO users (id, username, phone, created_at) VALUES ($1, $2, $3, $4)"
	if _, err := r.db.ExecContext(ctx, query, u.ID, u.Username, u.Phone, u.CreatedAt); err != nil {
		return nil, fmt.Errorf("user insert failed: %w", err)
	}
	return u, nil
}
