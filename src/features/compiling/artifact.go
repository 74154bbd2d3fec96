package compiling

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ArtifactWriter writes compiled output next to the main file, named after
// its stem. Writes go to a temp file first and land with a rename, so a
// reader polling the artifact (a PDF viewer, typically) never sees a partial
// file.
type ArtifactWriter struct {
	dir  string
	name string
}

// NewArtifactWriter derives the artifact location from the main file path.
func NewArtifactWriter(mainFile string) *ArtifactWriter {
	base := filepath.Base(mainFile)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return &ArtifactWriter{
		dir:  filepath.Dir(mainFile),
		name: stem + ".pdf",
	}
}

// Path returns the final artifact path.
func (w *ArtifactWriter) Path() string {
	return filepath.Join(w.dir, w.name)
}

// Write persists the artifact atomically and returns its path.
func (w *ArtifactWriter) Write(artifact []byte) (string, error) {
	tmp, err := os.CreateTemp(w.dir, "."+w.name+".*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp artifact: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(artifact); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to write artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to close temp artifact: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return "", fmt.Errorf("failed to set artifact permissions: %w", err)
	}

	final := w.Path()
	if err := os.Rename(tmp.Name(), final); err != nil {
		return "", fmt.Errorf("failed to move artifact into place: %w", err)
	}
	return final, nil
}
