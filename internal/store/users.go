package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/linkup-social/chat-platform/internal/model"
)

// UserDirectory reads accounts, friendships and blocks. Accounts are owned by
// the account subsystem; the write methods exist for seeding and tests.
type UserDirectory struct {
	db *gorm.DB
}

// NewUserDirectory creates a new user directory.
func NewUserDirectory(db *gorm.DB) *UserDirectory {
	return &UserDirectory{db: db}
}

// FindUserByID returns the user with the given id, or model.ErrUserNotFound.
func (d *UserDirectory) FindUserByID(ctx context.Context, id string) (*model.User, error) {
	var rec userRecord
	if err := d.db.WithContext(ctx).First(&rec, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, model.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return rec.toModel(), nil
}

// FindUsersByIDs returns the users that exist among ids. Missing ids are skipped.
func (d *UserDirectory) FindUsersByIDs(ctx context.Context, ids []string) ([]model.User, error) {
	if len(ids) == 0 {
		return []model.User{}, nil
	}
	var recs []userRecord
	if err := d.db.WithContext(ctx).Where("id IN ?", ids).Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("failed to find users: %w", err)
	}
	out := make([]model.User, len(recs))
	for i := range recs {
		out[i] = *recs[i].toModel()
	}
	return out, nil
}

// AreFriends reports whether a and b have an accepted friendship in either direction.
func (d *UserDirectory) AreFriends(ctx context.Context, a, b string) (bool, error) {
	var count int64
	err := d.db.WithContext(ctx).Model(&friendshipRecord{}).
		Where("status = ?", FriendshipAccepted).
		Where("(requester_id = ? AND addressee_id = ?) OR (requester_id = ? AND addressee_id = ?)", a, b, b, a).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check friendship: %w", err)
	}
	return count > 0, nil
}

// IsBlocked reports whether either user has blocked the other.
func (d *UserDirectory) IsBlocked(ctx context.Context, a, b string) (bool, error) {
	var count int64
	err := d.db.WithContext(ctx).Model(&blockRecord{}).
		Where("(blocker_id = ? AND blocked_id = ?) OR (blocker_id = ? AND blocked_id = ?)", a, b, b, a).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check block: %w", err)
	}
	return count > 0, nil
}

// CreateUser inserts or replaces an account.
func (d *UserDirectory) CreateUser(ctx context.Context, u *model.User) error {
	rec := userRecord{
		ID:           u.ID,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		ProfileImage: u.ProfileImage,
		IsVerified:   u.IsVerified,
		CreatedAt:    time.Now().UTC(),
	}
	err := d.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"first_name", "last_name", "profile_image", "is_verified"}),
	}).Create(&rec).Error
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// SetFriendship records a friendship between a and b with the given status.
func (d *UserDirectory) SetFriendship(ctx context.Context, requesterID, addresseeID, status string) error {
	now := time.Now().UTC()
	rec := friendshipRecord{
		RequesterID: requesterID,
		AddresseeID: addresseeID,
		Status:      status,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	err := d.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "requester_id"}, {Name: "addressee_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"status", "updated_at"}),
	}).Create(&rec).Error
	if err != nil {
		return fmt.Errorf("failed to set friendship: %w", err)
	}
	return nil
}

// Befriend records an accepted friendship between a and b.
func (d *UserDirectory) Befriend(ctx context.Context, a, b string) error {
	return d.SetFriendship(ctx, a, b, FriendshipAccepted)
}

// Block records that blockerID has blocked blockedID.
func (d *UserDirectory) Block(ctx context.Context, blockerID, blockedID string) error {
	rec := blockRecord{BlockerID: blockerID, BlockedID: blockedID, CreatedAt: time.Now().UTC()}
	err := d.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&rec).Error
	if err != nil {
		return fmt.Errorf("failed to block user: %w", err)
	}
	return nil
}
