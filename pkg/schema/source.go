package schema

import (
	"path/filepath"
	"strings"
)

// Source identifies where a schema document originated.
type Source interface {
	Kind() SourceKind
	Location() string
}

// SourceKind enumerates where documents come from.
type SourceKind string

const (
	SourceKindFile   SourceKind = "file"
	SourceKindUpload SourceKind = "upload"
	SourceKindInline SourceKind = "inline"
)

type fileSource struct {
	path string
}

func (s fileSource) Location() string { return s.path }
func (s fileSource) Kind() SourceKind { return SourceKindFile }

// SourceFromFile returns a Source pointing to a file path.
func SourceFromFile(path string) Source {
	return fileSource{path: filepath.Clean(path)}
}

type uploadSource struct {
	filename string
}

func (s uploadSource) Location() string { return s.filename }
func (s uploadSource) Kind() SourceKind { return SourceKindUpload }

// SourceFromUpload identifies a multipart upload by its client filename.
func SourceFromUpload(filename string) Source {
	return uploadSource{filename: filename}
}

type inlineSource struct{}

func (inlineSource) Location() string { return "inline" }
func (inlineSource) Kind() SourceKind { return SourceKindInline }

// SourceInline identifies a request body or literal payload.
func SourceInline() Source {
	return inlineSource{}
}

// Format is the encoding of a schema document.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatFromLocation infers the format from a file extension. Anything that is
// not .yaml/.yml is treated as JSON.
func FormatFromLocation(location string) Format {
	switch strings.ToLower(filepath.Ext(location)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}
