package manifest

import (
	"bytes"
	"unicode/utf8"
)

// File is one entry of a build manifest: a root-relative slash path, its
// content classification and its raw bytes.
type File struct {
	RelPath string
	Binary  bool
	Data    []byte
}

// Manifest is the immutable, ordered snapshot of project files prepared for
// one build attempt. It is created per trigger and discarded afterwards.
type Manifest struct {
	MainRel string
	Files   []File
}

// Main returns the main file entry. The collector guarantees it is present.
func (m *Manifest) Main() File {
	for _, f := range m.Files {
		if f.RelPath == m.MainRel {
			return f
		}
	}
	return File{}
}

// probeSize bounds the leading sample inspected for non-text bytes.
const probeSize = 8000

// classify decides whether content must travel as binary. A NUL in the leading
// sample or invalid UTF-8 anywhere means the text encoding cannot carry it
// losslessly.
func classify(data []byte) bool {
	sample := data
	if len(sample) > probeSize {
		sample = sample[:probeSize]
	}
	if bytes.IndexByte(sample, 0) >= 0 {
		return true
	}
	return !utf8.Valid(data)
}
