package handlers

import (
	"errors"
	"net/http"
	"yatube/internal/db"
	"yatube/internal/feed"
	"yatube/internal/middleware"
	"yatube/internal/models"
	"yatube/internal/services"

	"github.com/gin-gonic/gin"
)

type ProfileHandler struct {
	feed    *feed.Assembler
	follows *services.FollowService
}

func NewProfileHandler(assembler *feed.Assembler, follows *services.FollowService) *ProfileHandler {
	return &ProfileHandler{
		feed:    assembler,
		follows: follows,
	}
}

// Profile is the per-author feed plus follow state for the viewer.
func (h *ProfileHandler) Profile(c *gin.Context) {
	username := c.Param("username")

	var author models.User
	if err := db.DB.Where("username = ?", username).First(&author).Error; err != nil {
		RenderError(c, http.StatusNotFound, "User not found")
		return
	}

	feedPage, err := h.feed.Page(feed.ByAuthor(username), pageNumber(c))
	if err != nil {
		if errors.Is(err, feed.ErrNotFound) {
			RenderError(c, http.StatusNotFound, "User not found")
			return
		}
		RenderError(c, http.StatusInternalServerError, "Could not load the feed")
		return
	}

	// Whether the logged-in viewer already follows this author.
	following := false
	isSelf := false
	if viewer, exists := c.Get(middleware.CheckUserKey); exists {
		viewerID := viewer.(*models.User).ID
		isSelf = viewerID == author.ID
		following = h.follows.IsFollowing(viewerID, author.ID)
	}

	Render(c, http.StatusOK, "user/profile.html", gin.H{
		"Title":         author.Username,
		"Author":        author,
		"Page":          feedPage,
		"Following":     following,
		"IsSelf":        isSelf,
		"FollowerCount": h.follows.FollowerCount(author.ID),
		"BaseURL":       "/u/" + author.Username,
	})
}

// FollowIndex is the feed of posts by authors the current user follows.
func (h *ProfileHandler) FollowIndex(c *gin.Context) {
	user := c.MustGet(middleware.CheckUserKey).(*models.User)

	feedPage, err := h.feed.Page(feed.FollowingOf(user.ID), pageNumber(c))
	if err != nil {
		RenderError(c, http.StatusInternalServerError, "Could not load the feed")
		return
	}

	Render(c, http.StatusOK, "feed/follow.html", gin.H{
		"Title":   "Following",
		"Page":    feedPage,
		"BaseURL": "/follow",
	})
}

// resolveAuthor looks up the :username route param.
func resolveAuthor(c *gin.Context) (*models.User, bool) {
	var author models.User
	if err := db.DB.Where("username = ?", c.Param("username")).First(&author).Error; err != nil {
		RenderError(c, http.StatusNotFound, "User not found")
		return nil, false
	}
	return &author, true
}

func (h *ProfileHandler) Follow(c *gin.Context) {
	user := c.MustGet(middleware.CheckUserKey).(*models.User)

	author, ok := resolveAuthor(c)
	if !ok {
		return
	}

	if err := h.follows.Follow(user.ID, author.ID); err != nil {
		RenderError(c, http.StatusInternalServerError, "Could not follow")
		return
	}

	c.Redirect(http.StatusFound, "/u/"+author.Username)
}

func (h *ProfileHandler) Unfollow(c *gin.Context) {
	user := c.MustGet(middleware.CheckUserKey).(*models.User)

	author, ok := resolveAuthor(c)
	if !ok {
		return
	}

	if err := h.follows.Unfollow(user.ID, author.ID); err != nil {
		RenderError(c, http.StatusInternalServerError, "Could not unfollow")
		return
	}

	c.Redirect(http.StatusFound, "/u/"+author.Username)
}
