package backend

import (
	"context"

	"github.com/kbukum/bizbackend/errors"
)

// DefaultProfilesTable holds one profile row per auth identity.
const DefaultProfilesTable = "users"

// RecordProfiles implements ProfileStore on top of a RecordStore.
type RecordProfiles struct {
	Store RecordStore
	Table string
}

func (p RecordProfiles) table() string {
	if p.Table == "" {
		return DefaultProfilesTable
	}
	return p.Table
}

// GetUserProfile returns the profile or nil when no row exists.
func (p RecordProfiles) GetUserProfile(ctx context.Context, id string) (*UserProfile, error) {
	if id == "" {
		return nil, errors.InvalidInput("id", "user id is required")
	}
	return QueryOneAs[UserProfile](ctx, p.Store, From(p.table()).Eq("id", id)).Unwrap()
}

// CreateUserProfile inserts the row for id. The id argument wins over profile.ID.
func (p RecordProfiles) CreateUserProfile(ctx context.Context, id string, profile UserProfile) (*UserProfile, error) {
	if id == "" {
		return nil, errors.InvalidInput("id", "user id is required")
	}
	rec := Record{"id": id, "email": profile.Email}
	if profile.Name != "" {
		rec["name"] = profile.Name
	}
	if !profile.CreatedAt.IsZero() {
		rec["created_at"] = profile.CreatedAt
	}
	if profile.IsSuperAdmin != nil {
		rec["is_super_admin"] = *profile.IsSuperAdmin
	}
	return InsertAs[UserProfile](ctx, p.Store, p.table(), rec).Unwrap()
}

// UpdateUserProfile writes the non-nil fields and returns the stored row.
func (p RecordProfiles) UpdateUserProfile(ctx context.Context, id string, update ProfileUpdate) (*UserProfile, error) {
	fields := update.Fields()
	if len(fields) == 0 {
		profile, err := p.GetUserProfile(ctx, id)
		if err == nil && profile == nil {
			return nil, errors.NotFound("user profile", id)
		}
		return profile, err
	}
	profile, err := UpdateAs[UserProfile](ctx, p.Store, p.table(), id, fields).Unwrap()
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, errors.NotFound("user profile", id)
	}
	return profile, nil
}
