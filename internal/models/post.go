package models

import (
	"time"
)

type Post struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	Text     string `gorm:"type:text;not null" json:"text"`
	AuthorID uint   `gorm:"not null;index" json:"author_id"`
	Author   User   `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"author"`
	// Nullable so removing a group leaves its posts in place.
	GroupID   *uint     `gorm:"index" json:"group_id"`
	Group     *Group    `gorm:"constraint:OnUpdate:CASCADE,OnDelete:SET NULL;" json:"group"`
	Image     string    `json:"image"` // media-relative path, optional
	CreatedAt time.Time `gorm:"<-:create;index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Not a database column, filled at query time.
	CommentCount int `gorm:"-" json:"comment_count"`
}
