package ignore

import (
	"bufio"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// UserFile is the project ignore file, gitignore syntax, looked up in the
// watch directory.
const UserFile = ".latexignore"

// DefaultRules always apply and are evaluated before any user rule, so user
// rules win ties. They cover editor droppings, LaTeX build residue, generated
// artifacts, version control and interpreter caches.
var DefaultRules = []string{
	".*",
	"*~",
	"*.aux",
	"*.log",
	"*.out",
	"*.toc",
	"*.bbl",
	"*.blg",
	"*.fdb_latexmk",
	"*.fls",
	"*.synctex.gz",
	"*.pdf",
	".git/",
	".svn/",
	"__pycache__/",
	".DS_Store",
	"Thumbs.db",
}

// RuleSet is an ordered list of compiled rules. Evaluation order is
// significant: the last rule that matches a path decides its fate.
type RuleSet struct {
	rules []*Rule
}

// Compile builds a RuleSet from default lines followed by user lines.
// Malformed lines are skipped with a warning, never fatal.
func Compile(defaultLines, userLines []string) *RuleSet {
	rs := &RuleSet{}
	for _, line := range defaultLines {
		rs.add(line)
	}
	for _, line := range userLines {
		rs.add(line)
	}
	return rs
}

func (rs *RuleSet) add(line string) {
	rule, err := parseRule(line)
	if err != nil {
		slog.Warn("Skipping malformed ignore pattern", "pattern", strings.TrimSpace(line), "error", err)
		return
	}
	if rule != nil {
		rs.rules = append(rs.rules, rule)
	}
}

// Len returns the number of compiled rules.
func (rs *RuleSet) Len() int {
	return len(rs.rules)
}

// IsIncluded reports whether a root-relative path belongs in the manifest.
// Paths use slashes regardless of platform. An excluded ancestor directory is
// final: no later negation can resurrect anything beneath it.
func (rs *RuleSet) IsIncluded(relPath string, isDir bool) bool {
	relPath = strings.Trim(path.Clean(strings.ReplaceAll(relPath, "\\", "/")), "/")
	if relPath == "" || relPath == "." {
		return true
	}

	parts := strings.Split(relPath, "/")
	for i := 1; i < len(parts); i++ {
		if rs.excluded(strings.Join(parts[:i], "/"), true) {
			return false
		}
	}
	return !rs.excluded(relPath, isDir)
}

// excluded runs plain last-match-wins evaluation for one path.
func (rs *RuleSet) excluded(relPath string, isDir bool) bool {
	verdict := false
	for _, r := range rs.rules {
		if r.matches(relPath, isDir) {
			verdict = !r.Negated
		}
	}
	return verdict
}

// ReadUserFile loads the project ignore file's lines. A missing file is not an
// error; the defaults still apply.
func ReadUserFile(dir string) []string {
	f, err := os.Open(filepath.Join(dir, UserFile))
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("Failed to read ignore file", "error", err)
		}
		return nil
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		slog.Warn("Failed to read ignore file", "error", err)
	}
	if len(lines) > 0 {
		slog.Info("Loaded ignore patterns", "file", UserFile, "lines", len(lines))
	}
	return lines
}
