// Package repo implements the document store gateway over GORM. This file
// provides repository functions for the User collection. User ids are the
// identity provider's subject ids and are never generated here.
package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-movie-backend/internal/domain"
)

// ErrMissingID is returned when a user is written without a subject id.
var ErrMissingID = errors.New("missing id")

// GetUser fetches a user by subject id, or ErrNotFound.
func GetUser(ctx context.Context, db *gorm.DB, id string) (*domain.User, error) {
	return getDoc[domain.User](ctx, db, "id", id)
}

// ListUsers returns every user, including soft-deleted ones.
func ListUsers(ctx context.Context, db *gorm.DB) ([]domain.User, error) {
	return listDocs[domain.User](ctx, db)
}

// CreateUser inserts u if no user with the same id exists (ErrDuplicate
// otherwise).
func CreateUser(ctx context.Context, db *gorm.DB, u *domain.User) error {
	if u.ID == "" {
		return ErrMissingID
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	return createDoc(ctx, db, u)
}

// PutUser writes u in full at u.ID, inserting it when absent.
func PutUser(ctx context.Context, db *gorm.DB, u *domain.User) error {
	if u.ID == "" {
		return ErrMissingID
	}
	return putDoc(ctx, db, u)
}

// PatchUser updates the given columns of user id.
func PatchUser(ctx context.Context, db *gorm.DB, id string, fields map[string]any) error {
	return patchDoc[domain.User](ctx, db, id, fields)
}
