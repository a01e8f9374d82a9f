package auth

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/vidcms/backend/internal/models"
)

// DefaultAdminPassword is the development fallback for the seeded admin account.
const DefaultAdminPassword = "admin123"

// AdminStore is the subset of user persistence needed to seed an administrator.
type AdminStore interface {
	CountAdmins(ctx context.Context) (int64, error)
	Create(ctx context.Context, user models.User) error
}

// AdminSeed describes the account created when no administrator exists.
type AdminSeed struct {
	Email    string
	Username string
	Password string
}

// EnsureAdmin creates the seed administrator when the store has none. It reports whether an
// account was created.
func EnsureAdmin(ctx context.Context, store AdminStore, seed AdminSeed, logger *slog.Logger) (bool, error) {
	count, err := store.CountAdmins(ctx)
	if err != nil {
		return false, fmt.Errorf("count admins: %w", err)
	}
	if count > 0 {
		return false, nil
	}

	hash, err := HashPassword(seed.Password)
	if err != nil {
		return false, err
	}

	now := time.Now().UTC()
	user := models.User{
		ID:        uuid.NewString(),
		Username:  seed.Username,
		Email:     seed.Email,
		Password:  hash,
		Role:      models.RoleAdmin,
		Status:    models.UserStatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := store.Create(ctx, user); err != nil {
		return false, fmt.Errorf("create admin: %w", err)
	}

	if logger != nil {
		logger.Info("created default admin", slog.String("email", seed.Email), slog.String("username", seed.Username))
		if seed.Password == DefaultAdminPassword {
			logger.Warn("default admin password in use; set VIDCMS_ADMIN_PASSWORD")
		}
	}
	return true, nil
}
