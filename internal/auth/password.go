// ABOUTME: Password verification for admin login using bcrypt
// ABOUTME: Constant-time behavior for unknown usernames via dummy comparisons

package auth

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/2389/chatd/internal/store"
)

// ErrInvalidCredentials is returned for any username/password mismatch.
// Callers must not distinguish unknown usernames from wrong passwords.
var ErrInvalidCredentials = errors.New("invalid username or password")

// dummyHash is compared against when the username doesn't exist, so the
// login path takes the same time whether or not the account is real.
const dummyHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

// AdminUserStore defines what credential verification needs from storage
type AdminUserStore interface {
	GetAdminUserByUsername(ctx context.Context, username string) (*store.AdminUser, error)
}

// HashPassword produces a bcrypt hash suitable for storing in admin_users.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}
	return string(hash), nil
}

// VerifyCredentials checks a username/password pair against the store and
// returns the matching admin user. All failures surface as
// ErrInvalidCredentials except store errors unrelated to lookup.
func VerifyCredentials(ctx context.Context, users AdminUserStore, username, password string) (*store.AdminUser, error) {
	if username == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	user, err := users.GetAdminUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Dummy comparison to maintain constant timing
			_ = bcrypt.CompareHashAndPassword([]byte(dummyHash), []byte(password))
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("looking up admin user: %w", err)
	}

	if user.PasswordHash == "" {
		_ = bcrypt.CompareHashAndPassword([]byte(dummyHash), []byte(password))
		return nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return user, nil
}
