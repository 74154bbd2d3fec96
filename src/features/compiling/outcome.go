package compiling

import "strings"

// OutcomeKind tags the result of one compile attempt.
type OutcomeKind int

const (
	// Success carries the compiled artifact bytes.
	Success OutcomeKind = iota
	// CompileFailure means the server ran but reported a build error. This is
	// ordinary operator feedback, not a program fault.
	CompileFailure
	// TransportFailure means the server could not be reached at all.
	TransportFailure
)

// Outcome is the tagged result of one compile attempt.
type Outcome struct {
	Kind     OutcomeKind
	Artifact []byte
	Log      string
	Err      error
}

// ErrorLines extracts the interesting tail of a compile log: the last lines
// that mention an error, capped so a huge log stays readable. An empty result
// means the log had no obvious error lines.
func ErrorLines(log string) []string {
	lines := strings.Split(log, "\n")
	if len(lines) > 20 {
		lines = lines[len(lines)-20:]
	}
	var relevant []string
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		if strings.Contains(strings.ToLower(line), "error") {
			relevant = append(relevant, strings.TrimSpace(line))
		}
	}
	if len(relevant) > 10 {
		relevant = relevant[len(relevant)-10:]
	}
	return relevant
}
