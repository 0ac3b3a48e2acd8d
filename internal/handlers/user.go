package handlers

import (
	"net/http"

	"krafink/internal/middleware"
	"krafink/internal/services"

	"github.com/gin-gonic/gin"
)

type UserHandler struct {
	identity *services.IdentityService
	graph    *services.GraphService
	feed     *services.FeedService
}

func NewUserHandler(identity *services.IdentityService, graph *services.GraphService, feed *services.FeedService) *UserHandler {
	return &UserHandler{identity: identity, graph: graph, feed: feed}
}

// Profile 用户主页，:ref 可以是 ID 或用户名
func (h *UserHandler) Profile(c *gin.Context) {
	profile, err := h.identity.GetProfile(c.Request.Context(), middleware.CurrentUserID(c), c.Param("ref"))
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

func (h *UserHandler) UpdateProfile(c *gin.Context) {
	var in services.ProfileInput
	if !bindJSON(c, &in) {
		return
	}
	user, err := h.identity.UpdateProfile(c.Request.Context(), middleware.CurrentUserID(c), in)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *UserHandler) Followers(c *gin.Context) {
	users, err := h.graph.Followers(c.Request.Context(), c.Param("ref"), pageFromQuery(c))
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, users)
}

func (h *UserHandler) Following(c *gin.Context) {
	users, err := h.graph.Following(c.Request.Context(), c.Param("ref"), pageFromQuery(c))
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, users)
}

// Posts 个人主页帖子流
func (h *UserHandler) Posts(c *gin.Context) {
	items, err := h.feed.Profile(c.Request.Context(), middleware.CurrentUserID(c), c.Param("ref"), pageFromQuery(c))
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

// Follow 切换关注状态
func (h *UserHandler) Follow(c *gin.Context) {
	res, err := h.graph.ToggleFollow(c.Request.Context(), middleware.CurrentUserID(c), c.Param("ref"))
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *UserHandler) IsFollowing(c *gin.Context) {
	target, err := h.identity.ResolveUser(c.Request.Context(), c.Param("ref"))
	if err != nil {
		RespondError(c, err)
		return
	}
	following, err := h.graph.IsFollowing(c.Request.Context(), middleware.CurrentUserID(c), target.ID)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"following": following})
}

// Block 切换拉黑状态
func (h *UserHandler) Block(c *gin.Context) {
	res, err := h.graph.ToggleBlock(c.Request.Context(), middleware.CurrentUserID(c), c.Param("ref"))
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *UserHandler) Blocks(c *gin.Context) {
	users, err := h.graph.BlockedUsers(c.Request.Context(), middleware.CurrentUserID(c))
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, users)
}
