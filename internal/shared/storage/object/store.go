package object

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"
)

// ObjectStore saves and retrieves archived artifacts by key.
type ObjectStore interface {
	Put(ctx context.Context, key, contentType string, r io.Reader) (int64, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// ErrInvalidKey is returned for keys that are empty or escape the store root.
var ErrInvalidKey = errors.New("invalid storage key")

// Artifact names written for every analyzed report.
const (
	ArtifactResponse = "response.txt"
	ArtifactReport   = "report.json"
)

// ArchiveKey returns the key under which an artifact of a report is stored.
func ArchiveKey(reportID, name string) (string, error) {
	id, err := sanitizeSegment(reportID)
	if err != nil {
		return "", err
	}
	file, err := sanitizeSegment(name)
	if err != nil {
		return "", err
	}
	return path.Join("reports", id, file), nil
}

// CleanKey validates a slash-separated key and returns its canonical form.
func CleanKey(key string) (string, error) {
	trimmed := strings.TrimSpace(key)
	if trimmed == "" || strings.HasPrefix(trimmed, "/") || strings.Contains(trimmed, "\\") {
		return "", ErrInvalidKey
	}
	clean := path.Clean(trimmed)
	if clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", ErrInvalidKey
	}
	return clean, nil
}

// sanitizeSegment removes path separators and rejects traversal patterns.
func sanitizeSegment(name string) (string, error) {
	if strings.Contains(name, "..") {
		return "", ErrInvalidKey
	}
	s := strings.TrimSpace(name)
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	if s == "" {
		return "", ErrInvalidKey
	}
	return s, nil
}
