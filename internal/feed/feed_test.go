package feed

import (
	"fmt"
	"testing"
	"time"
	"yatube/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	// A named in-memory database so all pooled connections share it.
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_fk=1", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Group{},
		&models.Post{},
		&models.Comment{},
		&models.Follow{},
	))
	return db
}

func createUser(t *testing.T, db *gorm.DB, username string) models.User {
	user := models.User{
		Username: username,
		Email:    username + "@example.com",
		Password: "x",
	}
	require.NoError(t, db.Create(&user).Error)
	return user
}

func createGroup(t *testing.T, db *gorm.DB, title, slug string) models.Group {
	group := models.Group{Title: title, Slug: slug, Description: "test group"}
	require.NoError(t, db.Create(&group).Error)
	return group
}

func createPost(t *testing.T, db *gorm.DB, author models.User, group *models.Group, text string, createdAt time.Time) models.Post {
	post := models.Post{
		Text:      text,
		AuthorID:  author.ID,
		CreatedAt: createdAt,
	}
	if group != nil {
		post.GroupID = &group.ID
	}
	require.NoError(t, db.Create(&post).Error)
	return post
}

func postTexts(page *Page) []string {
	texts := make([]string, len(page.Posts))
	for i, p := range page.Posts {
		texts[i] = p.Text
	}
	return texts
}

func TestAllFeedOrderedNewestFirst(t *testing.T) {
	db := newTestDB(t)
	author := createUser(t, db, "leo")
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	createPost(t, db, author, nil, "oldest", base)
	createPost(t, db, author, nil, "middle", base.Add(time.Hour))
	createPost(t, db, author, nil, "newest", base.Add(2*time.Hour))

	page, err := NewAssembler(db).Page(All(), 1)
	require.NoError(t, err)

	assert.Equal(t, []string{"newest", "middle", "oldest"}, postTexts(page))
	assert.Equal(t, int64(3), page.TotalCount)
	assert.Equal(t, 1, page.TotalPages)
}

func TestEqualTimestampsBreakTiesByID(t *testing.T) {
	db := newTestDB(t)
	author := createUser(t, db, "leo")
	when := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	first := createPost(t, db, author, nil, "first", when)
	second := createPost(t, db, author, nil, "second", when)
	require.Greater(t, second.ID, first.ID)

	assembler := NewAssembler(db)
	// Same order on every request so pagination stays stable.
	for i := 0; i < 3; i++ {
		page, err := assembler.Page(All(), 1)
		require.NoError(t, err)
		assert.Equal(t, []string{"second", "first"}, postTexts(page))
	}
}

func TestPaginationAndClamping(t *testing.T) {
	db := newTestDB(t)
	author := createUser(t, db, "leo")
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 25; i++ {
		createPost(t, db, author, nil, fmt.Sprintf("post-%02d", i), base.Add(time.Duration(i)*time.Minute))
	}

	assembler := NewAssembler(db)

	page1, err := assembler.Page(All(), 1)
	require.NoError(t, err)
	assert.Len(t, page1.Posts, PerPage)
	assert.Equal(t, 3, page1.TotalPages)
	assert.Equal(t, int64(25), page1.TotalCount)
	assert.True(t, page1.HasNext)
	assert.False(t, page1.HasPrev)

	page3, err := assembler.Page(All(), 3)
	require.NoError(t, err)
	assert.Len(t, page3.Posts, 5)
	assert.False(t, page3.HasNext)
	assert.True(t, page3.HasPrev)

	// Beyond the last page clamps to the last page, never errors.
	clamped, err := assembler.Page(All(), 99)
	require.NoError(t, err)
	assert.Equal(t, 3, clamped.Number)
	assert.Equal(t, postTexts(page3), postTexts(clamped))

	// Below the first page means page one.
	floor, err := assembler.Page(All(), -4)
	require.NoError(t, err)
	assert.Equal(t, 1, floor.Number)
	assert.Equal(t, postTexts(page1), postTexts(floor))
}

func TestEmptyFeedIsNotAnError(t *testing.T) {
	db := newTestDB(t)

	page, err := NewAssembler(db).Page(All(), 1)
	require.NoError(t, err)

	assert.Empty(t, page.Posts)
	assert.Equal(t, 1, page.Number)
	assert.Equal(t, 1, page.TotalPages)
	assert.False(t, page.HasNext)
	assert.False(t, page.HasPrev)
}

func TestByGroupReturnsOnlyGroupPosts(t *testing.T) {
	db := newTestDB(t)
	author := createUser(t, db, "leo")
	tech := createGroup(t, db, "Tech", "tech")
	books := createGroup(t, db, "Books", "books")
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	createPost(t, db, author, &tech, "tech post", base)
	createPost(t, db, author, &books, "book post", base.Add(time.Minute))
	createPost(t, db, author, nil, "ungrouped", base.Add(2*time.Minute))

	page, err := NewAssembler(db).Page(ByGroup("tech"), 1)
	require.NoError(t, err)

	assert.Equal(t, []string{"tech post"}, postTexts(page))
}

func TestByGroupUnknownSlugIsNotFound(t *testing.T) {
	db := newTestDB(t)

	_, err := NewAssembler(db).Page(ByGroup("nonexistent-slug"), 1)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGroupScenario(t *testing.T) {
	db := newTestDB(t)
	author := createUser(t, db, "leo")
	group := createGroup(t, db, "testgroup", "1")
	createPost(t, db, author, &group, "T", time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))

	page, err := NewAssembler(db).Page(ByGroup("1"), 1)
	require.NoError(t, err)
	require.Len(t, page.Posts, 1)
	assert.Equal(t, "T", page.Posts[0].Text)
	assert.Equal(t, "leo", page.Posts[0].Author.Username)
}

func TestByAuthor(t *testing.T) {
	db := newTestDB(t)
	leo := createUser(t, db, "leo")
	mia := createUser(t, db, "mia")
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	createPost(t, db, leo, nil, "by leo", base)
	createPost(t, db, mia, nil, "by mia", base.Add(time.Minute))

	page, err := NewAssembler(db).Page(ByAuthor("leo"), 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"by leo"}, postTexts(page))

	_, err = NewAssembler(db).Page(ByAuthor("nobody"), 1)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFollowingFeed(t *testing.T) {
	db := newTestDB(t)
	reader := createUser(t, db, "reader")
	followed := createUser(t, db, "followed")
	stranger := createUser(t, db, "stranger")
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	createPost(t, db, followed, nil, "from followed", base)
	createPost(t, db, stranger, nil, "from stranger", base.Add(time.Minute))

	require.NoError(t, db.Create(&models.Follow{FollowerID: reader.ID, FolloweeID: followed.ID}).Error)

	assembler := NewAssembler(db)
	page, err := assembler.Page(FollowingOf(reader.ID), 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"from followed"}, postTexts(page))

	// After unfollow the author's posts disappear from the next feed.
	require.NoError(t, db.Where("follower_id = ? AND followee_id = ?", reader.ID, followed.ID).
		Delete(&models.Follow{}).Error)

	page, err = assembler.Page(FollowingOf(reader.ID), 1)
	require.NoError(t, err)
	assert.Empty(t, page.Posts)
}

func TestFollowingFeedOfAuthorWithNoPosts(t *testing.T) {
	db := newTestDB(t)
	reader := createUser(t, db, "reader")
	quiet := createUser(t, db, "quiet")

	require.NoError(t, db.Create(&models.Follow{FollowerID: reader.ID, FolloweeID: quiet.ID}).Error)

	page, err := NewAssembler(db).Page(FollowingOf(reader.ID), 1)
	require.NoError(t, err)
	assert.Empty(t, page.Posts)
}

func TestCommentCountsFilled(t *testing.T) {
	db := newTestDB(t)
	author := createUser(t, db, "leo")
	post := createPost(t, db, author, nil, "commented", time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))

	for i := 0; i < 3; i++ {
		require.NoError(t, db.Create(&models.Comment{
			PostID:   post.ID,
			AuthorID: author.ID,
			Text:     "hi",
		}).Error)
	}

	page, err := NewAssembler(db).Page(All(), 1)
	require.NoError(t, err)
	require.Len(t, page.Posts, 1)
	assert.Equal(t, 3, page.Posts[0].CommentCount)
}

func TestSelectorKeys(t *testing.T) {
	assert.Equal(t, "all", All().Key())
	assert.Equal(t, "group:tech", ByGroup("tech").Key())
	assert.Equal(t, "author:leo", ByAuthor("leo").Key())
	assert.Equal(t, "following:7", FollowingOf(7).Key())
}
