package services

import (
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

const defaultUploadMaxBytes = 10 << 20

// 允许的图片类型及扩展名，按内容识别而不是信任客户端的 Content-Type
var imageExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// MediaService 图片保存到本地目录，通过 /uploads 静态访问
type MediaService struct {
	dir      string
	maxBytes int64
	now      func() time.Time
}

func NewMediaService(dir string, maxBytes int64) *MediaService {
	if dir == "" {
		dir = "./uploads"
	}
	if maxBytes <= 0 {
		maxBytes = defaultUploadMaxBytes
	}
	return &MediaService{dir: dir, maxBytes: maxBytes, now: time.Now}
}

func (s *MediaService) Dir() string {
	return s.dir
}

func (s *MediaService) MaxBytes() int64 {
	return s.maxBytes
}

// SaveImage 校验大小和类型后写入 <dir>/<yyyy>/<mm>/<uuid><ext>，返回访问 URL
func (s *MediaService) SaveImage(r io.Reader, size int64) (string, error) {
	if size > s.maxBytes {
		return "", ErrImageTooLarge
	}
	data, err := io.ReadAll(io.LimitReader(r, s.maxBytes+1))
	if err != nil {
		return "", fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > s.maxBytes {
		return "", ErrImageTooLarge
	}
	if len(data) == 0 {
		return "", ErrUnsupportedImage
	}

	mt := mimetype.Detect(data)
	ext, ok := imageExtensions[mt.String()]
	if !ok {
		return "", ErrUnsupportedImage
	}

	now := s.now()
	rel := path.Join(now.Format("2006"), now.Format("01"), uuid.NewString()+ext)
	full := filepath.Join(s.dir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return "", fmt.Errorf("write upload: %w", err)
	}
	return "/uploads/" + rel, nil
}
