// Package codeindex defines the optional read-only code search used during
// analysis.
package codeindex

import (
	"bufio"
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Hit is one search result.
type Hit struct {
	Path    string  `json:"path"`
	Snippet string  `json:"snippet"`
	Score   float64 `json:"score"`
}

// Index is the search interface. Analysis degrades gracefully when no
// index is available or a search fails.
type Index interface {
	Search(ctx context.Context, repositoryPath, query string, limit int) ([]Hit, error)
}

// GrepIndex is a minimal built-in index: a case-insensitive term scan over
// tracked-looking source files. It exists so analysis has some retrieval
// without an external indexing service.
type GrepIndex struct {
	// MaxFileSize skips files larger than this many bytes.
	MaxFileSize int64
}

// NewGrepIndex creates the built-in index.
func NewGrepIndex() *GrepIndex {
	return &GrepIndex{MaxFileSize: 512 * 1024}
}

var skipDirs = map[string]bool{
	".git": true, "node_modules": true, "vendor": true, "target": true,
	"bin": true, "obj": true, "dist": true, ".venv": true,
	"__pycache__": true,
}

// Search scans the repository for files mentioning the query terms and
// returns the best-matching files with a matching line as snippet.
func (g *GrepIndex) Search(ctx context.Context, repositoryPath, query string, limit int) ([]Hit, error) {
	terms := strings.Fields(strings.ToLower(query))
	if len(terms) == 0 || limit <= 0 {
		return nil, nil
	}

	var hits []Hit
	err := filepath.WalkDir(repositoryPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			if skipDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		info, err := d.Info()
		if err != nil || info.Size() > g.MaxFileSize {
			return nil
		}
		hit, ok := g.scanFile(path, terms)
		if ok {
			rel, rerr := filepath.Rel(repositoryPath, path)
			if rerr == nil {
				hit.Path = rel
			} else {
				hit.Path = path
			}
			hits = append(hits, hit)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

func (g *GrepIndex) scanFile(path string, terms []string) (Hit, bool) {
	f, err := os.Open(path)
	if err != nil {
		return Hit{}, false
	}
	defer func() { _ = f.Close() }()

	var snippet string
	matched := 0
	seen := make(map[string]bool)

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 256*1024)
	for sc.Scan() {
		line := sc.Text()
		lower := strings.ToLower(line)
		for _, term := range terms {
			if !seen[term] && strings.Contains(lower, term) {
				seen[term] = true
				matched++
				if snippet == "" {
					snippet = strings.TrimSpace(line)
				}
			}
		}
		if matched == len(terms) {
			break
		}
	}
	if matched == 0 {
		return Hit{}, false
	}
	return Hit{Snippet: snippet, Score: float64(matched) / float64(len(terms))}, true
}
