package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/perseo-cms/perseo/internal/platform/db"
	"github.com/perseo-cms/perseo/internal/rbac"
	"github.com/perseo-cms/perseo/internal/shared"
	"github.com/perseo-cms/perseo/internal/users"
)

// SeedOptions describes the optional first administrator. When LoginName is
// empty only the permission catalog is installed.
type SeedOptions struct {
	LoginName string
	Email     string
	Password  string
	Role      string
}

// SeedResult reports what the seed run touched.
type SeedResult struct {
	RoleIDs map[string]int64
	Admin   *users.Admin
}

// Seed installs the permission catalog and optionally creates an admin in a
// single transaction.
func Seed(ctx context.Context, pool *sql.DB, dialect db.Dialect, opts SeedOptions) (SeedResult, error) {
	var result SeedResult
	role := opts.Role
	if role == "" {
		role = shared.RoleAdministrator
	}

	err := db.WithTx(ctx, pool, func(tx *sql.Tx) error {
		roleIDs, err := rbac.SeedCatalog(ctx, tx, dialect)
		if err != nil {
			return err
		}
		result.RoleIDs = roleIDs
		if opts.LoginName == "" {
			return nil
		}

		roleID, ok := roleIDs[role]
		if !ok {
			return fmt.Errorf("seed: unknown role %q", role)
		}
		admin, err := users.NewService(nil).CreateAdmin(ctx, tx, dialect, users.NewAdmin{
			LoginName: opts.LoginName,
			Email:     opts.Email,
			Password:  opts.Password,
			RoleID:    roleID,
		})
		if err != nil {
			if errors.Is(err, users.ErrDuplicate) {
				return fmt.Errorf("seed: admin %q already exists: %w", opts.LoginName, err)
			}
			return err
		}
		result.Admin = &admin
		return nil
	})
	if err != nil {
		return SeedResult{}, err
	}
	return result, nil
}
