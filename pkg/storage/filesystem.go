package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// FileSystemSource reads schema documents from the top level of a directory
type FileSystemSource struct {
	rootDir string
}

// NewFileSystemSource creates a filesystem source. The directory must exist.
func NewFileSystemSource(rootDir string) (*FileSystemSource, error) {
	if rootDir == "" {
		return nil, errors.New("schema directory is required")
	}
	info, err := os.Stat(rootDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open schema directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", rootDir)
	}
	return &FileSystemSource{rootDir: rootDir}, nil
}

// Dir returns the watched directory
func (s *FileSystemSource) Dir() string {
	return s.rootDir
}

// Kind implements Source
func (s *FileSystemSource) Kind() string {
	return TypeFilesystem
}

// FormatForPath returns the format implied by a file extension
func FormatForPath(path string) (Format, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, true
	case ".yaml", ".yml":
		return FormatYAML, true
	}
	return "", false
}

// NameForPath returns the schema name of a file, its base name without the
// extension
func NameForPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// List implements Source. Hidden files and files of other types are skipped.
// Two files with the same stem yield two documents of the same name.
func (s *FileSystemSource) List(ctx context.Context) ([]Document, error) {
	entries, err := os.ReadDir(s.rootDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema directory: %w", err)
	}

	var docs []Document
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		format, ok := FormatForPath(entry.Name())
		if !ok {
			continue
		}
		doc, err := s.read(entry.Name(), format)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}

	sort.SliceStable(docs, func(i, j int) bool { return docs[i].Name < docs[j].Name })
	return docs, nil
}

// Get implements Source. JSON is preferred over YAML when both exist.
func (s *FileSystemSource) Get(ctx context.Context, name string) (Document, error) {
	if name == "" || strings.ContainsAny(name, `/\`) || strings.HasPrefix(name, ".") {
		return Document{}, fmt.Errorf("%w: %q", ErrSchemaNotFound, name)
	}
	for _, ext := range []string{".json", ".yaml", ".yml"} {
		format, _ := FormatForPath(ext)
		doc, err := s.read(name+ext, format)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		return doc, err
	}
	return Document{}, fmt.Errorf("%w: %q", ErrSchemaNotFound, name)
}

func (s *FileSystemSource) read(file string, format Format) (Document, error) {
	path := filepath.Join(s.rootDir, file)
	data, err := os.ReadFile(path)
	if err != nil {
		return Document{}, fmt.Errorf("failed to read schema file: %w", err)
	}
	return Document{
		Name:     NameForPath(file),
		Data:     data,
		Format:   format,
		Location: path,
	}, nil
}

// Close implements Source
func (s *FileSystemSource) Close() error {
	return nil
}
