package handlers

import (
	"errors"
	"net/http"
	"yatube/internal/db"
	"yatube/internal/feed"
	"yatube/internal/models"

	"github.com/gin-gonic/gin"
)

type GroupHandler struct {
	feed *feed.Assembler
}

func NewGroupHandler(assembler *feed.Assembler) *GroupHandler {
	return &GroupHandler{feed: assembler}
}

// ListGroups shows every community.
func (h *GroupHandler) ListGroups(c *gin.Context) {
	var groups []models.Group
	db.DB.Order("id ASC").Find(&groups)

	Render(c, http.StatusOK, "group/list.html", gin.H{
		"Title":  "Groups",
		"Groups": groups,
	})
}

// ListBySlug is the per-group feed.
func (h *GroupHandler) ListBySlug(c *gin.Context) {
	slug := c.Param("slug")

	var group models.Group
	if err := db.DB.Where("slug = ?", slug).First(&group).Error; err != nil {
		RenderError(c, http.StatusNotFound, "Group not found")
		return
	}

	feedPage, err := h.feed.Page(feed.ByGroup(slug), pageNumber(c))
	if err != nil {
		if errors.Is(err, feed.ErrNotFound) {
			RenderError(c, http.StatusNotFound, "Group not found")
			return
		}
		RenderError(c, http.StatusInternalServerError, "Could not load the feed")
		return
	}

	Render(c, http.StatusOK, "feed/group.html", gin.H{
		"Title":   group.Title,
		"Group":   group,
		"Page":    feedPage,
		"BaseURL": "/group/" + group.Slug,
	})
}
