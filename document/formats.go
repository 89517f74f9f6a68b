package document

import (
	"path/filepath"
	"sort"
	"strings"
)

// Type is the coarse category of an uploaded file.
type Type string

const (
	TypeText        Type = "text"
	TypeDocument    Type = "document"
	TypeSpreadsheet Type = "spreadsheet"
	TypeImage       Type = "image"
	TypeCode        Type = "code"
	TypeUnknown     Type = "unknown"
)

var extensions = map[Type][]string{
	TypeText:        {".txt", ".md", ".json", ".csv", ".log"},
	TypeDocument:    {".pdf", ".docx", ".doc"},
	TypeSpreadsheet: {".xlsx", ".xls"},
	TypeImage:       {".jpg", ".jpeg", ".png", ".gif", ".bmp", ".webp"},
	TypeCode:        {".py", ".js", ".html", ".css", ".java", ".cpp", ".c", ".go", ".rs"},
}

var byExtension = func() map[string]Type {
	m := make(map[string]Type)
	for t, exts := range extensions {
		for _, ext := range exts {
			m[ext] = t
		}
	}
	return m
}()

// TypeOf classifies name by its extension, case-insensitively.
func TypeOf(name string) Type {
	if t, ok := byExtension[strings.ToLower(filepath.Ext(name))]; ok {
		return t
	}
	return TypeUnknown
}

// Supported reports whether name has an accepted extension. Accepted does
// not imply that text can be extracted; see Extractor.
func Supported(name string) bool { return TypeOf(name) != TypeUnknown }

// Formats returns the accepted extensions per type, each list sorted.
func Formats() map[Type][]string {
	out := make(map[Type][]string, len(extensions))
	for t, exts := range extensions {
		sorted := append([]string(nil), exts...)
		sort.Strings(sorted)
		out[t] = sorted
	}
	return out
}
