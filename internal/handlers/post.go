package handlers

import (
	"net/http"

	"krafink/internal/middleware"
	"krafink/internal/services"

	"github.com/gin-gonic/gin"
)

type PostHandler struct {
	content *services.ContentService
	feed    *services.FeedService
}

func NewPostHandler(content *services.ContentService, feed *services.FeedService) *PostHandler {
	return &PostHandler{content: content, feed: feed}
}

func (h *PostHandler) Create(c *gin.Context) {
	var in services.PostInput
	if !bindJSON(c, &in) {
		return
	}
	item, err := h.content.CreatePost(c.Request.Context(), middleware.CurrentUserID(c), in)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

func (h *PostHandler) Get(c *gin.Context) {
	item, err := h.content.GetPost(c.Request.Context(), middleware.CurrentUserID(c), c.Param("id"))
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

func (h *PostHandler) Update(c *gin.Context) {
	var in services.PostUpdate
	if !bindJSON(c, &in) {
		return
	}
	item, err := h.content.UpdatePost(c.Request.Context(), middleware.CurrentUserID(c), c.Param("id"), in)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

func (h *PostHandler) Delete(c *gin.Context) {
	if err := h.content.DeletePost(c.Request.Context(), middleware.CurrentUserID(c), c.Param("id")); err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Post deleted"})
}

// Feed 首页：自己和关注的人
func (h *PostHandler) Feed(c *gin.Context) {
	h.respondFeed(c, func(viewerID string, page services.Page) ([]services.FeedItem, error) {
		return h.feed.Home(c.Request.Context(), viewerID, page)
	})
}

func (h *PostHandler) Explore(c *gin.Context) {
	h.respondFeed(c, func(viewerID string, page services.Page) ([]services.FeedItem, error) {
		return h.feed.Explore(c.Request.Context(), viewerID, page)
	})
}

func (h *PostHandler) Saved(c *gin.Context) {
	h.respondFeed(c, func(viewerID string, page services.Page) ([]services.FeedItem, error) {
		return h.feed.Saved(c.Request.Context(), viewerID, page)
	})
}

func (h *PostHandler) Hashtag(c *gin.Context) {
	h.respondFeed(c, func(viewerID string, page services.Page) ([]services.FeedItem, error) {
		return h.feed.Hashtag(c.Request.Context(), viewerID, c.Param("tag"), page)
	})
}

func (h *PostHandler) respondFeed(c *gin.Context, load func(string, services.Page) ([]services.FeedItem, error)) {
	items, err := load(middleware.CurrentUserID(c), pageFromQuery(c))
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

func (h *PostHandler) Comments(c *gin.Context) {
	comments, err := h.content.ListComments(c.Request.Context(), middleware.CurrentUserID(c), c.Param("id"))
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, comments)
}

func (h *PostHandler) CreateComment(c *gin.Context) {
	var in services.CommentInput
	if !bindJSON(c, &in) {
		return
	}
	comment, err := h.content.CreateComment(c.Request.Context(), middleware.CurrentUserID(c), c.Param("id"), in)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, comment)
}

func (h *PostHandler) DeleteComment(c *gin.Context) {
	if err := h.content.DeleteComment(c.Request.Context(), middleware.CurrentUserID(c), c.Param("id")); err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Comment deleted"})
}
