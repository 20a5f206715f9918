// Package services – UserService
//
// UserService manages application user records (subject id → role) for the
// admin routes and resolves roles during login. A user is provisioned with
// the default role the first time its subject logs in.
package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-movie-backend/internal/domain"
	"github.com/tbourn/go-movie-backend/internal/repo"
)

// UserService provides CRUD over users plus login-time role resolution.
type UserService struct {
	DB *gorm.DB
}

// List returns every user, including soft-deleted ones.
func (s *UserService) List(ctx context.Context) ([]domain.User, error) {
	tr := otel.Tracer("services/UserService")
	ctx, span := tr.Start(ctx, "List")
	defer span.End()

	return repo.ListUsers(ctx, s.DB)
}

// Stats returns the count and latest update time of the collection.
func (s *UserService) Stats(ctx context.Context) (int64, *time.Time, error) {
	return repo.CollectionStats(ctx, s.DB, &domain.User{})
}

// Get returns the user with id, deleted or not.
func (s *UserService) Get(ctx context.Context, id string) (*domain.User, error) {
	tr := otel.Tracer("services/UserService")
	ctx, span := tr.Start(ctx, "Get", trace.WithAttributes(attribute.String("user.id", id)))
	defer span.End()

	u, err := repo.GetUser(ctx, s.DB, id)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	return u, err
}

// Create stores a user. An empty id is replaced with a generated one; an
// empty role becomes the default role. Existing ids yield ErrUserExists.
func (s *UserService) Create(ctx context.Context, id, role string) (*domain.User, error) {
	tr := otel.Tracer("services/UserService")
	ctx, span := tr.Start(ctx, "Create")
	defer span.End()

	r, err := parseRoleOrDefault(role)
	if err != nil {
		return nil, err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		id = uuid.NewString()
	}

	u := &domain.User{ID: id, Role: r}
	if err := repo.CreateUser(ctx, s.DB, u); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			return nil, ErrUserExists
		}
		return nil, err
	}
	return u, nil
}

// Upsert writes the user at id, creating it when absent. An existing record
// keeps its creation time and deleted flag; an empty role keeps the stored
// role.
func (s *UserService) Upsert(ctx context.Context, id, role string) (*domain.User, error) {
	tr := otel.Tracer("services/UserService")
	ctx, span := tr.Start(ctx, "Upsert", trace.WithAttributes(attribute.String("user.id", id)))
	defer span.End()

	u := &domain.User{ID: id, Role: domain.DefaultRole, CreatedAt: time.Now().UTC()}
	existing, err := repo.GetUser(ctx, s.DB, id)
	switch {
	case err == nil:
		u.Role = existing.Role
		u.CreatedAt = existing.CreatedAt
		u.Deleted = existing.Deleted
	case !errors.Is(err, repo.ErrNotFound):
		return nil, err
	}

	if strings.TrimSpace(role) != "" {
		r, ok := domain.ParseRole(role)
		if !ok {
			return nil, ErrInvalidRole
		}
		u.Role = r
	}

	if err := repo.PutUser(ctx, s.DB, u); err != nil {
		return nil, err
	}
	return repo.GetUser(ctx, s.DB, id)
}

// Delete soft-deletes the user with id.
func (s *UserService) Delete(ctx context.Context, id string) error {
	tr := otel.Tracer("services/UserService")
	ctx, span := tr.Start(ctx, "Delete", trace.WithAttributes(attribute.String("user.id", id)))
	defer span.End()

	err := repo.PatchUser(ctx, s.DB, id, map[string]any{"deleted": true})
	if errors.Is(err, repo.ErrNotFound) {
		return ErrUserNotFound
	}
	return err
}

// ResolveRole returns the role stored for uid, provisioning a user with the
// default role when none exists. When two logins race, the first insert wins
// and both observe its role.
func (s *UserService) ResolveRole(ctx context.Context, uid string) (domain.Role, error) {
	tr := otel.Tracer("services/UserService")
	ctx, span := tr.Start(ctx, "ResolveRole", trace.WithAttributes(attribute.String("user.id", uid)))
	defer span.End()

	u, err := repo.GetUser(ctx, s.DB, uid)
	if err == nil {
		return u.Role, nil
	}
	if !errors.Is(err, repo.ErrNotFound) {
		return "", err
	}

	u = &domain.User{ID: uid, Role: domain.DefaultRole}
	if err := repo.CreateUser(ctx, s.DB, u); err != nil {
		if !errors.Is(err, repo.ErrDuplicate) {
			return "", err
		}
		existing, gerr := repo.GetUser(ctx, s.DB, uid)
		if gerr != nil {
			return "", gerr
		}
		return existing.Role, nil
	}
	span.SetAttributes(attribute.Bool("user.provisioned", true))
	return u.Role, nil
}

func parseRoleOrDefault(role string) (domain.Role, error) {
	if strings.TrimSpace(role) == "" {
		return domain.DefaultRole, nil
	}
	r, ok := domain.ParseRole(role)
	if !ok {
		return "", ErrInvalidRole
	}
	return r, nil
}
