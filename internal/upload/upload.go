// Package upload carries files accepted by the upload middleware to the entity services.
package upload

import (
	"context"
)

// File is one uploaded file already written to the blob store.
type File struct {
	Field       string
	Filename    string // stored name, referenced by entity records
	Path        string // blob store path, e.g. "products/images-<uuid>.png"
	Size        int64
	ContentType string
}

// Set groups pending uploads by form field. The zero value is an empty set.
type Set map[string][]File

// Single returns the first file uploaded for field.
func (s Set) Single(field string) (File, bool) {
	files := s[field]
	if len(files) == 0 {
		return File{}, false
	}
	return files[0], true
}

// Field returns every file uploaded for field.
func (s Set) Field(field string) []File {
	return s[field]
}

// Files flattens the set.
func (s Set) Files() []File {
	var out []File
	for _, files := range s {
		out = append(out, files...)
	}
	return out
}

// Filenames returns the stored names of the files uploaded for field, in upload order.
func (s Set) Filenames(field string) []string {
	files := s[field]
	names := make([]string, 0, len(files))
	for _, f := range files {
		names = append(names, f.Filename)
	}
	return names
}

// Empty reports whether no file was uploaded.
func (s Set) Empty() bool {
	for _, files := range s {
		if len(files) > 0 {
			return false
		}
	}
	return true
}

// Add appends f under its field, allocating the set on first use.
func (s *Set) Add(f File) {
	if *s == nil {
		*s = make(Set)
	}
	(*s)[f.Field] = append((*s)[f.Field], f)
}

type setKey struct{}

// WithSet attaches pending uploads to ctx.
func WithSet(ctx context.Context, set Set) context.Context {
	return context.WithValue(ctx, setKey{}, set)
}

// FromContext returns the pending uploads stored by WithSet.
func FromContext(ctx context.Context) Set {
	set, _ := ctx.Value(setKey{}).(Set)
	return set
}
