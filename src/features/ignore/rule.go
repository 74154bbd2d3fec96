package ignore

import (
	"fmt"
	"regexp"
	"strings"
)

// Rule is a single compiled ignore pattern. Immutable once parsed.
type Rule struct {
	Pattern  string
	Negated  bool
	DirOnly  bool
	Anchored bool

	re *regexp.Regexp
}

// parseRule compiles one pattern line into a Rule. Blank lines and comments
// return (nil, nil); malformed patterns return an error so the caller can skip
// them without aborting the whole set.
func parseRule(line string) (*Rule, error) {
	text := strings.TrimSpace(line)
	if text == "" || strings.HasPrefix(text, "#") {
		return nil, nil
	}

	r := &Rule{Pattern: text}

	if strings.HasPrefix(text, "!") {
		r.Negated = true
		text = text[1:]
	}
	if strings.HasSuffix(text, "/") {
		r.DirOnly = true
		text = strings.TrimRight(text, "/")
	}
	if strings.HasPrefix(text, "/") {
		r.Anchored = true
		text = strings.TrimLeft(text, "/")
	}
	if text == "" {
		return nil, fmt.Errorf("empty pattern")
	}

	body, err := translate(text)
	if err != nil {
		return nil, err
	}

	var expr string
	if r.Anchored {
		expr = "^" + body + "$"
	} else {
		expr = "^(?:.*/)?" + body + "$"
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, err
	}
	r.re = re
	return r, nil
}

// matches reports whether the rule applies to a root-relative slash path.
// Directory-only rules apply to directories alone; their effect on descendants
// comes from the ancestor walk in RuleSet.IsIncluded.
func (r *Rule) matches(relPath string, isDir bool) bool {
	if r.DirOnly && !isDir {
		return false
	}
	return r.re.MatchString(relPath)
}

// translate converts a gitignore glob into a regular expression body.
// `*` stops at separators, `?` matches one non-separator, `**` crosses them.
func translate(pattern string) (string, error) {
	var b strings.Builder
	for i := 0; i < len(pattern); i++ {
		c := pattern[i]
		switch c {
		case '*':
			if i+1 < len(pattern) && pattern[i+1] == '*' {
				// Collapse "**/" so that "a/**/b" also matches "a/b".
				if i+2 < len(pattern) && pattern[i+2] == '/' {
					b.WriteString("(?:[^/]*/)*")
					i += 2
				} else {
					b.WriteString(".*")
					i++
				}
			} else {
				b.WriteString("[^/]*")
			}
		case '?':
			b.WriteString("[^/]")
		case '[':
			end := strings.IndexRune(pattern[i+1:], ']')
			if end < 0 {
				return "", fmt.Errorf("unterminated character class in %q", pattern)
			}
			class := pattern[i+1 : i+1+end]
			if strings.HasPrefix(class, "!") {
				class = "^" + class[1:]
			}
			b.WriteString("[" + class + "]")
			i += end + 1
		default:
			b.WriteString(regexp.QuoteMeta(string(c)))
		}
	}
	return b.String(), nil
}
