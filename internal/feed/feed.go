package feed

import (
	"errors"
	"fmt"
	"math"
	"yatube/internal/models"

	"gorm.io/gorm"
)

// PerPage is the fixed feed page size.
const PerPage = 10

// ErrNotFound is returned when a selector's slug or username does not
// resolve to a row.
var ErrNotFound = errors.New("not found")

const (
	kindAll       = "all"
	kindGroup     = "group"
	kindAuthor    = "author"
	kindFollowing = "following"
)

// Selector is the parameterized query shape defining a feed's membership.
type Selector struct {
	kind     string
	slug     string
	username string
	userID   uint
}

// All selects every post, unfiltered.
func All() Selector { return Selector{kind: kindAll} }

// ByGroup selects posts filed under the group with the given slug.
func ByGroup(slug string) Selector { return Selector{kind: kindGroup, slug: slug} }

// ByAuthor selects posts written by the user with the given username.
func ByAuthor(username string) Selector { return Selector{kind: kindAuthor, username: username} }

// FollowingOf selects posts by authors the given user follows. Callers
// are expected to pass an authenticated user's ID.
func FollowingOf(userID uint) Selector { return Selector{kind: kindFollowing, userID: userID} }

// Key returns the selector's canonical string form, used to build
// cache keys.
func (s Selector) Key() string {
	switch s.kind {
	case kindGroup:
		return "group:" + s.slug
	case kindAuthor:
		return "author:" + s.username
	case kindFollowing:
		return fmt.Sprintf("following:%d", s.userID)
	default:
		return "all"
	}
}

// Page is one ordered slice of a feed plus pagination metadata, the
// exact shape handed to templates.
type Page struct {
	Posts      []models.Post
	Number     int
	TotalPages int
	TotalCount int64
	HasNext    bool
	HasPrev    bool
}

// Assembler builds paginated feed pages from the post table.
type Assembler struct {
	db *gorm.DB
}

func NewAssembler(db *gorm.DB) *Assembler {
	return &Assembler{db: db}
}

// scope resolves a selector into a fresh-query factory so the same
// filter can back both the count and the page fetch.
func (a *Assembler) scope(sel Selector) (func() *gorm.DB, error) {
	switch sel.kind {
	case kindGroup:
		var group models.Group
		if err := a.db.Where("slug = ?", sel.slug).First(&group).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, fmt.Errorf("group %q: %w", sel.slug, ErrNotFound)
			}
			return nil, err
		}
		groupID := group.ID
		return func() *gorm.DB {
			return a.db.Model(&models.Post{}).Where("group_id = ?", groupID)
		}, nil
	case kindAuthor:
		var author models.User
		if err := a.db.Where("username = ?", sel.username).First(&author).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, fmt.Errorf("user %q: %w", sel.username, ErrNotFound)
			}
			return nil, err
		}
		authorID := author.ID
		return func() *gorm.DB {
			return a.db.Model(&models.Post{}).Where("author_id = ?", authorID)
		}, nil
	case kindFollowing:
		userID := sel.userID
		return func() *gorm.DB {
			return a.db.Model(&models.Post{}).Where("author_id IN (?)",
				a.db.Model(&models.Follow{}).Select("followee_id").Where("follower_id = ?", userID))
		}, nil
	default:
		return func() *gorm.DB {
			return a.db.Model(&models.Post{})
		}, nil
	}
}

// Page returns page `number` of the feed described by sel, most recent
// first. Page numbers are 1-based; anything below 1 means the first
// page and anything past the end clamps to the last valid page. An
// empty feed yields an empty page, not an error.
func (a *Assembler) Page(sel Selector, number int) (*Page, error) {
	scope, err := a.scope(sel)
	if err != nil {
		return nil, err
	}

	var total int64
	if err := scope().Count(&total).Error; err != nil {
		return nil, err
	}

	totalPages := int(math.Ceil(float64(total) / float64(PerPage)))
	if totalPages == 0 {
		totalPages = 1
	}
	if number < 1 {
		number = 1
	}
	if number > totalPages {
		number = totalPages
	}

	var posts []models.Post
	err = scope().
		Preload("Author").Preload("Group").
		Order("created_at DESC, id DESC").
		Limit(PerPage).
		Offset((number - 1) * PerPage).
		Find(&posts).Error
	if err != nil {
		return nil, err
	}

	a.fillCommentCounts(posts)

	return &Page{
		Posts:      posts,
		Number:     number,
		TotalPages: totalPages,
		TotalCount: total,
		HasNext:    number < totalPages,
		HasPrev:    number > 1,
	}, nil
}

// fillCommentCounts batch-fills CommentCount for a page of posts.
func (a *Assembler) fillCommentCounts(posts []models.Post) {
	if len(posts) == 0 {
		return
	}

	postIDs := make([]uint, len(posts))
	for i, p := range posts {
		postIDs[i] = p.ID
	}

	type countResult struct {
		PostID uint
		Count  int
	}
	var results []countResult
	a.db.Model(&models.Comment{}).
		Select("post_id, COUNT(*) as count").
		Where("post_id IN ?", postIDs).
		Group("post_id").
		Scan(&results)

	countMap := make(map[uint]int)
	for _, r := range results {
		countMap[r.PostID] = r.Count
	}

	for i := range posts {
		posts[i].CommentCount = countMap[posts[i].ID]
	}
}
