package storage

import (
	"io"
	"path/filepath"
)

type UsageStats struct {
	TotalBytes uint64
	FreeBytes  uint64
}

// Storage abstracts the file tree backing uploaded images and documents.
type Storage interface {
	Read(path string) (io.ReadCloser, error)

	Write(path string, data io.Reader) error

	Delete(path string) error

	List(path string) ([]string, error)

	Exists(path string) (bool, error)

	Size(path string) (int64, error)

	Usage() (UsageStats, error)

	// Location returns the root of the storage tree on disk, used to mount
	// the static /uploads file server.
	Location() string
}

const (
	ImageDir     = "images"
	DocumentDir  = "documents"
	ThumbnailDir = "thumbnails"
)

func ImagePath(field, filename string) string {
	return filepath.Join(ImageDir, field, filename)
}

func DocumentPath(field, filename string) string {
	return filepath.Join(DocumentDir, field, filename)
}

func ThumbnailPath(field, filename string) string {
	return filepath.Join(ThumbnailDir, field, filename)
}
