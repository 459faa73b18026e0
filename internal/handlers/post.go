package handlers

import (
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strconv"
	"yatube/internal/cache"
	"yatube/internal/db"
	"yatube/internal/feed"
	"yatube/internal/middleware"
	"yatube/internal/models"
	"yatube/internal/services"
	"yatube/internal/utils"

	"github.com/gin-gonic/gin"
)

type PostHandler struct {
	cache  *cache.FragmentCache
	feed   *feed.Assembler
	images *services.ImageService
}

func NewPostHandler(c *cache.FragmentCache, assembler *feed.Assembler, images *services.ImageService) *PostHandler {
	return &PostHandler{
		cache:  c,
		feed:   assembler,
		images: images,
	}
}

// pageNumber parses ?page=, defaulting to 1 on absent or invalid input.
func pageNumber(c *gin.Context) int {
	page, err := strconv.Atoi(c.Query("page"))
	if err != nil || page < 1 {
		return 1
	}
	return page
}

func indexPageKey(page int) string {
	return fmt.Sprintf("feed:%s:page:%d", feed.All().Key(), page)
}

// invalidateIndex drops every cached index feed page. Called by every
// write path that can change the global feed, so readers never see a
// stale index for the remainder of the ttl.
func (h *PostHandler) invalidateIndex() {
	h.cache.DeletePrefix("feed:all:")
}

// Index is the global feed. Rendered page data is cached for a short
// window and repopulated lazily on miss.
func (h *PostHandler) Index(c *gin.Context) {
	page := pageNumber(c)

	cacheKey := indexPageKey(page)
	if cachedData := h.cache.Get(cacheKey); cachedData != nil {
		if hData, ok := cachedData.(gin.H); ok {
			Render(c, http.StatusOK, "feed/index.html", hData)
			return
		}
	}

	feedPage, err := h.feed.Page(feed.All(), page)
	if err != nil {
		RenderError(c, http.StatusInternalServerError, "Could not load the feed")
		return
	}

	var groups []models.Group
	db.DB.Order("id ASC").Find(&groups)

	renderData := gin.H{
		"Title":   "Latest posts",
		"Page":    feedPage,
		"Groups":  groups,
		"BaseURL": "/",
	}

	h.cache.Set(cacheKey, renderData, cache.IndexTTL)

	Render(c, http.StatusOK, "feed/index.html", renderData)
}

func (h *PostHandler) ShowCreate(c *gin.Context) {
	var groups []models.Group
	db.DB.Order("id ASC").Find(&groups)

	Render(c, http.StatusOK, "post/form.html", gin.H{
		"Title":  "New post",
		"Groups": groups,
	})
}

// parseGroupID resolves the optional group_id form field. Returns nil
// when no group was picked.
func parseGroupID(c *gin.Context) (*uint, error) {
	raw := c.PostForm("group_id")
	if raw == "" {
		return nil, nil
	}
	id, err := strconv.Atoi(raw)
	if err != nil || id <= 0 {
		return nil, nil
	}

	var group models.Group
	if err := db.DB.First(&group, id).Error; err != nil {
		return nil, err
	}
	groupID := group.ID
	return &groupID, nil
}

func (h *PostHandler) renderPostForm(c *gin.Context, code int, errMsg string, post *models.Post) {
	var groups []models.Group
	db.DB.Order("id ASC").Find(&groups)

	title := "New post"
	if post != nil {
		title = "Edit post"
	}
	Render(c, code, "post/form.html", gin.H{
		"Title":  title,
		"Error":  errMsg,
		"Groups": groups,
		"Post":   post,
	})
}

func (h *PostHandler) Create(c *gin.Context) {
	user := c.MustGet(middleware.CheckUserKey).(*models.User)

	text := c.PostForm("text")
	if text == "" {
		h.renderPostForm(c, http.StatusBadRequest, "Text must not be empty", nil)
		return
	}

	groupID, err := parseGroupID(c)
	if err != nil {
		h.renderPostForm(c, http.StatusBadRequest, "Unknown group", nil)
		return
	}

	imagePath := ""
	if file, header, err := c.Request.FormFile("image"); err == nil {
		defer file.Close()
		imagePath, err = h.images.Save(file, header)
		if err != nil {
			if errors.Is(err, services.ErrNotImage) {
				h.renderPostForm(c, http.StatusBadRequest, "The uploaded file is not an image", nil)
				return
			}
			h.renderPostForm(c, http.StatusInternalServerError, "Could not store the image", nil)
			return
		}
	}

	post := models.Post{
		Text:     text,
		AuthorID: user.ID,
		GroupID:  groupID,
		Image:    imagePath,
	}
	if err := db.DB.Create(&post).Error; err != nil {
		h.renderPostForm(c, http.StatusInternalServerError, "Could not save the post", nil)
		return
	}

	// The new post changes the global feed, so cached pages must go.
	h.invalidateIndex()

	c.Redirect(http.StatusFound, "/")
}

func (h *PostHandler) renderDetail(c *gin.Context, code int, post models.Post, formError string) {
	var comments []models.Comment
	db.DB.Preload("Author").
		Where("post_id = ?", post.ID).
		Order("created_at ASC, id ASC").
		Find(&comments)

	type renderedComment struct {
		models.Comment
		TextHTML template.HTML
	}
	rendered := make([]renderedComment, len(comments))
	for i, com := range comments {
		rendered[i] = renderedComment{
			Comment:  com,
			TextHTML: utils.RenderMarkdown(com.Text),
		}
	}

	isAuthor := false
	if user, exists := c.Get(middleware.CheckUserKey); exists {
		isAuthor = user.(*models.User).ID == post.AuthorID
	}

	Render(c, code, "post/detail.html", gin.H{
		"Title":     fmt.Sprintf("Post by %s", post.Author.Username),
		"Post":      post,
		"PostText":  utils.RenderMarkdown(post.Text),
		"Comments":  rendered,
		"IsAuthor":  isAuthor,
		"FormError": formError,
	})
}

// postID parses the :id route param; 0 means invalid.
func postID(c *gin.Context) int {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return 0
	}
	return id
}

func (h *PostHandler) Detail(c *gin.Context) {
	id := postID(c)

	var post models.Post
	if id <= 0 || db.DB.Preload("Author").Preload("Group").First(&post, id).Error != nil {
		RenderError(c, http.StatusNotFound, "Post not found")
		return
	}

	h.renderDetail(c, http.StatusOK, post, "")
}

// loadOwnPost fetches the post and checks the current user authored it.
// A foreign post yields a redirect to the read-only view, matching the
// forbidden-edit behavior.
func (h *PostHandler) loadOwnPost(c *gin.Context) (*models.Post, bool) {
	user := c.MustGet(middleware.CheckUserKey).(*models.User)
	id := postID(c)

	var post models.Post
	if id <= 0 || db.DB.Preload("Author").First(&post, id).Error != nil {
		RenderError(c, http.StatusNotFound, "Post not found")
		return nil, false
	}

	if post.AuthorID != user.ID {
		c.Redirect(http.StatusFound, fmt.Sprintf("/p/%d", post.ID))
		return nil, false
	}
	return &post, true
}

func (h *PostHandler) ShowEdit(c *gin.Context) {
	post, ok := h.loadOwnPost(c)
	if !ok {
		return
	}

	var groups []models.Group
	db.DB.Order("id ASC").Find(&groups)

	Render(c, http.StatusOK, "post/form.html", gin.H{
		"Title":  "Edit post",
		"Post":   post,
		"Groups": groups,
	})
}

func (h *PostHandler) Update(c *gin.Context) {
	post, ok := h.loadOwnPost(c)
	if !ok {
		return
	}

	text := c.PostForm("text")
	if text == "" {
		h.renderPostForm(c, http.StatusBadRequest, "Text must not be empty", post)
		return
	}

	groupID, err := parseGroupID(c)
	if err != nil {
		h.renderPostForm(c, http.StatusBadRequest, "Unknown group", post)
		return
	}

	updates := map[string]interface{}{
		"text":     text,
		"group_id": groupID,
	}

	if file, header, err := c.Request.FormFile("image"); err == nil {
		defer file.Close()
		imagePath, err := h.images.Save(file, header)
		if err != nil {
			if errors.Is(err, services.ErrNotImage) {
				h.renderPostForm(c, http.StatusBadRequest, "The uploaded file is not an image", post)
				return
			}
			h.renderPostForm(c, http.StatusInternalServerError, "Could not store the image", post)
			return
		}
		updates["image"] = imagePath
	}

	// Updates keeps the creation timestamp untouched.
	if err := db.DB.Model(post).Updates(updates).Error; err != nil {
		h.renderPostForm(c, http.StatusInternalServerError, "Could not save the post", post)
		return
	}

	h.invalidateIndex()

	c.Redirect(http.StatusFound, fmt.Sprintf("/p/%d", post.ID))
}

func (h *PostHandler) Delete(c *gin.Context) {
	post, ok := h.loadOwnPost(c)
	if !ok {
		return
	}

	// Hard delete; comments go with it via the FK cascade.
	if err := db.DB.Delete(post).Error; err != nil {
		RenderError(c, http.StatusInternalServerError, "Could not delete the post")
		return
	}

	h.invalidateIndex()

	c.Redirect(http.StatusFound, "/")
}

func (h *PostHandler) CreateComment(c *gin.Context) {
	user := c.MustGet(middleware.CheckUserKey).(*models.User)
	id := postID(c)

	var post models.Post
	if id <= 0 || db.DB.Preload("Author").Preload("Group").First(&post, id).Error != nil {
		RenderError(c, http.StatusNotFound, "Post not found")
		return
	}

	text := c.PostForm("text")
	if text == "" {
		h.renderDetail(c, http.StatusBadRequest, post, "Comment must not be empty")
		return
	}

	comment := models.Comment{
		PostID:   post.ID,
		AuthorID: user.ID,
		Text:     text,
	}
	if err := db.DB.Create(&comment).Error; err != nil {
		h.renderDetail(c, http.StatusInternalServerError, post, "Could not save the comment")
		return
	}

	// Cached index cards show comment counts, so those pages are stale now.
	h.invalidateIndex()

	c.Redirect(http.StatusFound, fmt.Sprintf("/p/%d", post.ID))
}
