package manifest

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"texwatch/src/features/ignore"
)

// ErrMainFileExcluded means the main file did not survive collection: it
// vanished, became unreadable, or an ignore rule excluded it. The setup is
// structurally broken, so callers treat this as fatal.
var ErrMainFileExcluded = errors.New("main file is not part of the manifest")

// Collector binds a watched project to its ruleset so the orchestrator can
// take fresh snapshots.
type Collector struct {
	root     string
	mainFile string
	rules    *ignore.RuleSet
}

// NewCollector creates a collector for the watched project.
func NewCollector(root, mainFile string, rules *ignore.RuleSet) *Collector {
	return &Collector{root: root, mainFile: mainFile, rules: rules}
}

// Collect produces the manifest for one build attempt.
func (c *Collector) Collect() (*Manifest, error) {
	return Collect(c.root, c.mainFile, c.rules)
}

// Collect walks the watched root and produces the manifest for one build
// attempt. Entries are visited in lexicographic order and excluded directories
// are pruned without descending, so an unchanged tree always yields a
// byte-identical manifest. Unreadable files are skipped with a warning.
func Collect(root, mainFile string, rules *ignore.RuleSet) (*Manifest, error) {
	mainRel, err := filepath.Rel(root, mainFile)
	if err != nil {
		return nil, fmt.Errorf("failed to relativize main file: %w", err)
	}
	m := &Manifest{MainRel: filepath.ToSlash(mainRel)}

	if err := collectDir(root, root, "", m, rules); err != nil {
		return nil, err
	}

	for _, f := range m.Files {
		if f.RelPath == m.MainRel {
			return m, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrMainFileExcluded, m.MainRel)
}

func collectDir(root, dir, rel string, m *Manifest, rules *ignore.RuleSet) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if rel == "" {
			return fmt.Errorf("failed to read watch directory: %w", err)
		}
		slog.Warn("Skipping unreadable directory", "path", rel, "error", err)
		return nil
	}

	for _, entry := range entries {
		entryRel := path.Join(rel, entry.Name())
		entryPath := filepath.Join(dir, entry.Name())

		isDir := entry.IsDir()
		if entry.Type()&fs.ModeSymlink != 0 {
			target, ok := resolveLink(root, entryPath)
			if !ok {
				slog.Debug("Skipping symlink leaving the watched root", "path", entryRel)
				continue
			}
			info, err := os.Stat(target)
			if err != nil {
				slog.Warn("Skipping broken symlink", "path", entryRel, "error", err)
				continue
			}
			isDir = info.IsDir()
		}

		if isDir {
			if !rules.IsIncluded(entryRel, true) {
				continue
			}
			if err := collectDir(root, entryPath, entryRel, m, rules); err != nil {
				return err
			}
			continue
		}

		if !rules.IsIncluded(entryRel, false) {
			continue
		}
		data, err := os.ReadFile(entryPath)
		if err != nil {
			// Editors replace files during saves; losing the race is not fatal.
			slog.Warn("Skipping unreadable file", "path", entryRel, "error", err)
			continue
		}
		m.Files = append(m.Files, File{
			RelPath: entryRel,
			Binary:  classify(data),
			Data:    data,
		})
	}
	return nil
}

// resolveLink follows a symlink and reports whether its target stays inside
// the watched root. Targets escaping the root are excluded from the manifest.
func resolveLink(root, linkPath string) (string, bool) {
	target, err := filepath.EvalSymlinks(linkPath)
	if err != nil {
		return "", false
	}
	resolvedRoot, err := filepath.EvalSymlinks(root)
	if err != nil {
		return "", false
	}
	rel, err := filepath.Rel(resolvedRoot, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return target, true
}
