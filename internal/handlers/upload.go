package handlers

import (
	"net/http"

	"krafink/internal/logger"
	"krafink/internal/middleware"
	"krafink/internal/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type UploadHandler struct {
	media *services.MediaService
}

func NewUploadHandler(media *services.MediaService) *UploadHandler {
	return &UploadHandler{media: media}
}

// UploadImage 处理图片上传，表单字段 file 或 image
func (h *UploadHandler) UploadImage(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.media.MaxBytes()+1<<20)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		fileHeader, err = c.FormFile("image")
	}
	if err != nil {
		badRequest(c, "No image uploaded")
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		badRequest(c, "Failed to read image")
		return
	}
	defer file.Close()

	url, err := h.media.SaveImage(file, fileHeader.Size)
	if err != nil {
		RespondError(c, err)
		return
	}

	logger.Info("Image uploaded",
		zap.String("user_id", middleware.CurrentUserID(c)),
		zap.String("url", url),
		zap.Int64("size", fileHeader.Size))
	c.JSON(http.StatusOK, gin.H{"url": url})
}
