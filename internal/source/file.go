package source

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// FileSource reads every file matching a set of glob patterns, `**` matches
// across directories.
type FileSource struct {
	patterns []string
}

func NewFileSource(patterns ...string) (FileSource, error) {
	for _, pattern := range patterns {
		if !doublestar.ValidatePathPattern(filepath.ToSlash(pattern)) {
			return FileSource{}, fmt.Errorf("invalid glob pattern '%s'", pattern)
		}
	}
	return FileSource{patterns: patterns}, nil
}

func (s FileSource) Name() string {
	return strings.Join(s.patterns, ",")
}

func (s FileSource) Fetch(ctx context.Context) ([]Blob, error) {
	seen := map[string]struct{}{}
	var blobs []Blob
	for _, pattern := range s.patterns {
		matches, err := doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("glob %s: %w", pattern, err)
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("glob %s: %w", pattern, os.ErrNotExist)
		}

		for _, path := range matches {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if _, ok := seen[path]; ok {
				continue
			}
			seen[path] = struct{}{}

			content, err := os.ReadFile(path)
			if err != nil {
				return nil, err
			}
			switch strings.ToLower(filepath.Ext(path)) {
			case ".html", ".htm":
				blobs = append(blobs, SplitHtml(path, string(content))...)
			default:
				blobs = append(blobs, Blob{Origin: path, Text: string(content)})
			}
		}
	}
	return blobs, nil
}
