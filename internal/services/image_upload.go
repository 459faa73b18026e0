package services

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"time"

	// Register the decoders used to validate uploads.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
)

// ErrNotImage is returned when an uploaded file does not decode as an
// image. Surfaced to the user as a form field error.
var ErrNotImage = errors.New("uploaded file is not a valid image")

// ImageService validates uploaded images and stores them under the
// media directory. Stored paths are media-relative.
type ImageService struct {
	mediaDir string
}

func NewImageService(mediaDir string) *ImageService {
	return &ImageService{mediaDir: mediaDir}
}

// Save reads the upload, verifies it decodes as an image and writes it
// to <mediaDir>/posts/. Returns the media-relative path for storage on
// the post row.
func (s *ImageService) Save(file multipart.File, header *multipart.FileHeader) (string, error) {
	fileBytes, err := io.ReadAll(file)
	if err != nil {
		return "", fmt.Errorf("read upload: %w", err)
	}

	_, format, err := image.Decode(bytes.NewReader(fileBytes))
	if err != nil {
		return "", ErrNotImage
	}

	ext := "." + format
	if format == "jpeg" {
		ext = ".jpg"
	}

	dir := filepath.Join(s.mediaDir, "posts")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create media dir: %w", err)
	}

	name := fmt.Sprintf("%d%s", time.Now().UnixNano(), ext)
	if err := os.WriteFile(filepath.Join(dir, name), fileBytes, 0o644); err != nil {
		return "", fmt.Errorf("write image: %w", err)
	}

	return filepath.ToSlash(filepath.Join("posts", name)), nil
}
