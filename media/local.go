package media

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Local stores uploads in a directory on disk and serves them under a
// public base URL. Intended for development and tests.
type Local struct {
	dir     string
	baseURL string
}

func NewLocal(dir, baseURL string) *Local {
	return &Local{dir: dir, baseURL: strings.TrimRight(baseURL, "/")}
}

// Upload writes the file under a uuid filename that keeps the original
// extension, and returns its public URL. Already-hosted URLs pass through.
func (l *Local) Upload(_ context.Context, file File, folder string) (string, error) {
	if file.URL != "" {
		return file.URL, nil
	}
	if len(file.Content) == 0 {
		return "", nil
	}

	target := filepath.Join(l.dir, folder)
	if err := os.MkdirAll(target, 0o755); err != nil {
		return "", fmt.Errorf("creating upload dir: %w", err)
	}

	name := uuid.NewString() + filepath.Ext(file.Name)
	if err := os.WriteFile(filepath.Join(target, name), file.Content, 0o644); err != nil {
		return "", fmt.Errorf("saving upload: %w", err)
	}

	return fmt.Sprintf("%s/uploads/%s/%s", l.baseURL, folder, name), nil
}
