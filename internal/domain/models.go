// Package domain defines the persistence models for movies, movie details,
// and application users. These types are mapped with GORM and form the core
// data layer of the movie backend.
package domain

import (
	"time"
)

// Movie is a locally persisted film entry. Records are never physically
// removed; Deleted is a soft-delete flag that stays readable.
//
// Fields:
//   - ID: opaque identifier (UUID for locally created rows).
//   - Title: human-readable title; used to correlate with the upstream catalog.
//   - ExternalID: upstream episode id recorded when the row was backfilled
//     from the catalog (nil for purely local movies). Unique when set.
//   - CreatedAt / UpdatedAt: timestamps.
//   - Deleted: soft deletion marker.
type Movie struct {
	ID         string    `json:"id"                    gorm:"type:varchar(64);primaryKey"`
	Title      string    `json:"title"                 gorm:"type:varchar(255);not null;index"`
	ExternalID *string   `json:"external_id,omitempty" gorm:"type:varchar(64);uniqueIndex"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
	Deleted    bool      `json:"deleted"               gorm:"not null;default:false"`
}

// TableName returns the database table name for Movie.
func (Movie) TableName() string { return "movies" }

// MovieDetail carries descriptive data about a film. Its lifecycle is
// independent from Movie; MovieID is informational and not FK-enforced.
type MovieDetail struct {
	ID          string    `json:"id"                 gorm:"type:varchar(64);primaryKey"`
	MovieID     *string   `json:"movie_id,omitempty" gorm:"type:varchar(64);index"`
	Title       string    `json:"title"              gorm:"type:varchar(255)"`
	ReleaseDate string    `json:"release_date"       gorm:"type:varchar(32)"`
	Director    string    `json:"director"           gorm:"type:varchar(255)"`
	Producer    string    `json:"producer"           gorm:"type:varchar(255)"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	Deleted     bool      `json:"deleted"            gorm:"not null;default:false"`
}

// TableName returns the database table name for MovieDetail.
func (MovieDetail) TableName() string { return "movie_details" }

// User is the application-side record of an authenticated principal. ID is
// the identity provider's subject id; Role drives route authorization.
type User struct {
	ID        string    `json:"id"         gorm:"type:varchar(128);primaryKey"`
	Role      Role      `json:"role"       gorm:"type:varchar(16);not null;default:'user';check:role IN ('user','admin')"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Deleted   bool      `json:"deleted"    gorm:"not null;default:false"`
}

// TableName returns the database table name for User.
func (User) TableName() string { return "users" }
