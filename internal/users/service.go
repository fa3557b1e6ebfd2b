package users

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/perseo-cms/perseo/internal/auth"
	"github.com/perseo-cms/perseo/internal/ids"
	"github.com/perseo-cms/perseo/internal/platform/db"
	"github.com/perseo-cms/perseo/internal/platform/httpx"
	"github.com/perseo-cms/perseo/internal/shared"
)

var (
	// ErrDuplicate is returned when the login name or email is taken.
	ErrDuplicate = fmt.Errorf("%w: login name or email already exists", httpx.ErrValidation)
	// ErrSelfDelete is returned when an admin tries to delete their own account.
	ErrSelfDelete = fmt.Errorf("%w: cannot delete your own account", httpx.ErrForbidden)
)

// RepositoryPort defines data access methods for users.
type RepositoryPort interface {
	ListAdmins(ctx context.Context, limit, offset int) ([]Admin, int, error)
	GetAdmin(ctx context.Context, id int64) (Admin, error)
	DeleteAdmin(ctx context.Context, id int64) error
	InTx(ctx context.Context, fn func(q db.Querier, dialect db.Dialect) error) error
}

// Service handles admin account business logic.
type Service struct {
	repo     RepositoryPort
	validate *validator.Validate
}

// NewService builds Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo, validate: validator.New()}
}

// ListAdmins returns one page of admins with pagination metadata.
func (s *Service) ListAdmins(ctx context.Context, page, perPage int) ([]Admin, shared.Pagination, error) {
	p := shared.NewPagination(page, perPage, 0)
	admins, total, err := s.repo.ListAdmins(ctx, p.PerPage, (p.Page-1)*p.PerPage)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return admins, shared.NewPagination(p.Page, p.PerPage, total), nil
}

// GetAdmin returns one admin.
func (s *Service) GetAdmin(ctx context.Context, id int64) (Admin, error) {
	return s.repo.GetAdmin(ctx, id)
}

// Create registers a new enabled admin in its own transaction.
func (s *Service) Create(ctx context.Context, in NewAdmin) (Admin, error) {
	in, err := s.prepareNew(in)
	if err != nil {
		return Admin{}, err
	}
	var admin Admin
	err = s.repo.InTx(ctx, func(q db.Querier, dialect db.Dialect) error {
		admin, err = insertNew(ctx, q, dialect, in)
		return err
	})
	if err != nil {
		return Admin{}, err
	}
	return admin, nil
}

// CreateAdmin validates input, hashes the password and inserts an enabled
// admin through q. Used by the seed command inside its transaction.
func (s *Service) CreateAdmin(ctx context.Context, q db.Querier, dialect db.Dialect, in NewAdmin) (Admin, error) {
	in, err := s.prepareNew(in)
	if err != nil {
		return Admin{}, err
	}
	return insertNew(ctx, q, dialect, in)
}

func (s *Service) prepareNew(in NewAdmin) (NewAdmin, error) {
	in.LoginName = strings.TrimSpace(in.LoginName)
	in.Email = strings.TrimSpace(in.Email)
	if err := s.validate.Struct(in); err != nil {
		return NewAdmin{}, fmt.Errorf("%w: %v", httpx.ErrValidation, err)
	}
	return in, nil
}

func insertNew(ctx context.Context, q db.Querier, dialect db.Dialect, in NewAdmin) (Admin, error) {
	taken, err := ExistsByLoginKey(ctx, q, dialect, in.LoginName, in.Email)
	if err != nil {
		return Admin{}, err
	}
	if taken {
		return Admin{}, ErrDuplicate
	}
	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return Admin{}, fmt.Errorf("users: hash password: %w", err)
	}
	admin := Admin{
		ULID:      ids.New(),
		LoginName: in.LoginName,
		Email:     in.Email,
		Status:    int(auth.StatusEnabled),
		RoleID:    in.RoleID,
	}
	admin.ID, err = InsertAdmin(ctx, q, dialect, admin, hash)
	if err != nil {
		return Admin{}, err
	}
	return admin, nil
}

// UpdateAdmin edits admin id. The password is rehashed only when supplied.
func (s *Service) UpdateAdmin(ctx context.Context, id int64, in AdminUpdate) (Admin, error) {
	in.LoginName = strings.TrimSpace(in.LoginName)
	in.Email = strings.TrimSpace(in.Email)
	if err := s.validate.Struct(in); err != nil {
		return Admin{}, fmt.Errorf("%w: %v", httpx.ErrValidation, err)
	}
	var hash string
	if in.Password != "" {
		var err error
		if hash, err = auth.HashPassword(in.Password); err != nil {
			return Admin{}, fmt.Errorf("users: hash password: %w", err)
		}
	}
	admin := Admin{ID: id, LoginName: in.LoginName, Email: in.Email, Status: in.Status, RoleID: in.RoleID}
	err := s.repo.InTx(ctx, func(q db.Querier, dialect db.Dialect) error {
		found, err := AdminExists(ctx, q, dialect, id)
		if err != nil {
			return err
		}
		if !found {
			return shared.ErrNotFound
		}
		taken, err := LoginKeyTakenByOther(ctx, q, dialect, id, in.LoginName, in.Email)
		if err != nil {
			return err
		}
		if taken {
			return ErrDuplicate
		}
		return UpdateAdmin(ctx, q, dialect, admin, hash)
	})
	if err != nil {
		return Admin{}, err
	}
	return admin, nil
}

// DeleteAdmin removes admin id on behalf of actorID.
func (s *Service) DeleteAdmin(ctx context.Context, actorID, id int64) error {
	if actorID == id {
		return ErrSelfDelete
	}
	return s.repo.DeleteAdmin(ctx, id)
}
