package handlers

import (
	"net/http"

	"krafink/internal/middleware"
	"krafink/internal/services"
	"krafink/internal/utils"

	"github.com/gin-gonic/gin"
)

type SearchHandler struct {
	search *services.SearchService
}

func NewSearchHandler(search *services.SearchService) *SearchHandler {
	return &SearchHandler{search: search}
}

// Search GET /search?q=&type=all|users|posts&limit=
func (h *SearchHandler) Search(c *gin.Context) {
	kind := c.DefaultQuery("type", "all")
	limit := utils.StringToInt(c.Query("limit"), 0)
	res, err := h.search.Search(c.Request.Context(), middleware.CurrentUserID(c), c.Query("q"), kind, limit)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *SearchHandler) Users(c *gin.Context) {
	limit := utils.StringToInt(c.Query("limit"), 0)
	users, err := h.search.SearchUsers(c.Request.Context(), middleware.CurrentUserID(c), c.Query("q"), limit)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, users)
}
