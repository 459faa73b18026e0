package services

import (
	"errors"
	"yatube/internal/models"

	"gorm.io/gorm"
)

// FollowService answers membership of and mutates the follower->followee
// relation.
type FollowService struct {
	db *gorm.DB
}

func NewFollowService(db *gorm.DB) *FollowService {
	return &FollowService{db: db}
}

// IsFollowing reports whether follower subscribes to followee.
func (s *FollowService) IsFollowing(followerID, followeeID uint) bool {
	var count int64
	s.db.Model(&models.Follow{}).
		Where("follower_id = ? AND followee_id = ?", followerID, followeeID).
		Count(&count)
	return count > 0
}

// Follow subscribes follower to followee. Self-follows are silently
// skipped and following twice leaves a single row; neither case is an
// error. The unique index on (follower_id, followee_id) backstops the
// check against concurrent duplicates.
func (s *FollowService) Follow(followerID, followeeID uint) error {
	if followerID == followeeID {
		return nil
	}
	if s.IsFollowing(followerID, followeeID) {
		return nil
	}

	follow := models.Follow{
		FollowerID: followerID,
		FolloweeID: followeeID,
	}
	if err := s.db.Create(&follow).Error; err != nil {
		// A concurrent request may have inserted the same pair first.
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil
		}
		return err
	}
	return nil
}

// Unfollow removes the subscription if present; a missing row is a no-op.
func (s *FollowService) Unfollow(followerID, followeeID uint) error {
	return s.db.
		Where("follower_id = ? AND followee_id = ?", followerID, followeeID).
		Delete(&models.Follow{}).Error
}

// FollowerCount returns how many users follow the given author.
func (s *FollowService) FollowerCount(followeeID uint) int64 {
	var count int64
	s.db.Model(&models.Follow{}).Where("followee_id = ?", followeeID).Count(&count)
	return count
}
