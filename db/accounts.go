package db

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
)

// NewAccount is the insert shape for accounts.
type NewAccount struct {
	Email        string
	PasswordHash string
	IsAdmin      bool
}

// CreateAccount inserts a new account with a case-normalised email.
func (c *Client) CreateAccount(ctx context.Context, input NewAccount) (*Account, error) {
	now := time.Now().UTC()
	account := &Account{
		ID:           newID(),
		Email:        NormalizeEmail(input.Email),
		PasswordHash: input.PasswordHash,
		IsAdmin:      input.IsAdmin,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := c.conn(ctx).Create(account).Error; err != nil {
		return nil, wrapErr(err)
	}
	return account, nil
}

// FindAccountByID returns a non-deleted account by id.
func (c *Client) FindAccountByID(ctx context.Context, accountID uuid.UUID) (*Account, error) {
	var account Account
	err := c.conn(ctx).
		Where("id = ? AND deleted_at IS NULL", accountID).
		First(&account).Error
	if err != nil {
		return nil, wrapErr(err)
	}
	return &account, nil
}

// FindAccountByEmail returns a non-deleted account by case-normalised email.
func (c *Client) FindAccountByEmail(ctx context.Context, email string) (*Account, error) {
	var account Account
	err := c.conn(ctx).
		Where("email = ? AND deleted_at IS NULL", NormalizeEmail(email)).
		First(&account).Error
	if err != nil {
		return nil, wrapErr(err)
	}
	return &account, nil
}

// UpdateAccountPassword replaces the stored password hash.
func (c *Client) UpdateAccountPassword(ctx context.Context, accountID uuid.UUID, passwordHash string) error {
	res := c.conn(ctx).Model(&Account{}).
		Where("id = ? AND deleted_at IS NULL", accountID).
		Updates(map[string]any{
			"password_hash": passwordHash,
			"updated_at":    time.Now().UTC(),
		})
	if res.Error != nil {
		return wrapErr(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteAccount soft-deletes an account by tombstoning deleted_at.
func (c *Client) DeleteAccount(ctx context.Context, accountID uuid.UUID) error {
	now := time.Now().UTC()
	res := c.conn(ctx).Model(&Account{}).
		Where("id = ? AND deleted_at IS NULL", accountID).
		Updates(map[string]any{"deleted_at": &now, "updated_at": now})
	if res.Error != nil {
		return wrapErr(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// NormalizeEmail lower-cases and trims an email address for uniqueness.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// newID returns a time-ordered UUIDv7, falling back to v4 if the system
// clock source fails.
func newID() uuid.UUID {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New()
	}
	return id
}
