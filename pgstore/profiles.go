package pgstore

import (
	"context"
	"time"

	"github.com/kbukum/bizbackend/backend"
	"github.com/kbukum/bizbackend/errors"
)

// profileRow maps the profiles table.
type profileRow struct {
	ID           string    `gorm:"column:id;primaryKey;type:uuid"`
	Email        string    `gorm:"column:email;not null;default:''"`
	Name         *string   `gorm:"column:name"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime"`
	IsSuperAdmin *bool     `gorm:"column:is_super_admin;default:false"`
}

func (r profileRow) profile() *backend.UserProfile {
	p := &backend.UserProfile{
		ID:           r.ID,
		Email:        r.Email,
		CreatedAt:    r.CreatedAt,
		IsSuperAdmin: r.IsSuperAdmin,
	}
	if r.Name != nil {
		p.Name = *r.Name
	}
	return p
}

// AutoMigrate creates or alters the profiles table from the model.
func (s *Store) AutoMigrate(ctx context.Context) error {
	return s.db.WithContext(ctx).Table(s.profiles).AutoMigrate(&profileRow{})
}

// GetUserProfile returns the profile for id, or nil when there is none.
func (s *Store) GetUserProfile(ctx context.Context, id string) (*backend.UserProfile, error) {
	if id == "" {
		return nil, errors.InvalidInput("id", "user id is required")
	}
	var rows []profileRow
	err := s.db.WithContext(ctx).Table(s.profiles).Where(byID(id)).Limit(1).Find(&rows).Error
	if err != nil {
		return nil, translate(err, "get profile", s.profiles)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0].profile(), nil
}

// CreateUserProfile inserts the profile for id.
func (s *Store) CreateUserProfile(ctx context.Context, id string, profile backend.UserProfile) (*backend.UserProfile, error) {
	if id == "" {
		return nil, errors.InvalidInput("id", "user id is required")
	}
	row := profileRow{
		ID:           id,
		Email:        profile.Email,
		CreatedAt:    profile.CreatedAt,
		IsSuperAdmin: profile.IsSuperAdmin,
	}
	if profile.Name != "" {
		row.Name = &profile.Name
	}
	if err := s.db.WithContext(ctx).Table(s.profiles).Create(&row).Error; err != nil {
		return nil, translate(err, "create profile", s.profiles)
	}
	return row.profile(), nil
}

// UpdateUserProfile writes the set fields and returns the stored profile.
func (s *Store) UpdateUserProfile(ctx context.Context, id string, update backend.ProfileUpdate) (*backend.UserProfile, error) {
	if fields := update.Fields(); len(fields) > 0 {
		res := s.db.WithContext(ctx).Table(s.profiles).Where(byID(id)).Updates(fields)
		if res.Error != nil {
			return nil, translate(res.Error, "update profile", s.profiles)
		}
	}
	profile, err := s.GetUserProfile(ctx, id)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, errors.NotFound("user profile", id)
	}
	return profile, nil
}
