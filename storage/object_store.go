package storage

import (
	"context"
	"io"
	"mime"
	"path/filepath"
	"strings"
)

// ObjectStore archives uploaded source files.
type ObjectStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Delete(ctx context.Context, key string) error
	// URI names the stored object, e.g. gs://bucket/key.
	URI(key string) string
}

// SourceKey is the archive key of the file a guide was generated from.
func SourceKey(guideID, filename string) string {
	return "sources/" + guideID + strings.ToLower(filepath.Ext(filename))
}

// ContentType guesses a MIME type from the key's extension.
func ContentType(key string) string {
	ext := strings.ToLower(filepath.Ext(key))
	switch ext {
	case ".md":
		return "text/markdown; charset=utf-8"
	case ".docx":
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case ".m4a":
		return "audio/mp4"
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
