package processing

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"slices"
	"strings"

	"github.com/systemstart/gitops-release/pkg/api"
)

// DiscoverPipeline walks root looking for the pipeline file up to maxDepth
// and loads the shallowest one. A maxDepth of -1 means unlimited, 0 means
// only root itself. Two candidates at the same depth are ambiguous.
func DiscoverPipeline(root string, maxDepth int) (*api.Pipeline, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving root path: %w", err)
	}

	paths, err := collectConfigPaths(absRoot, maxDepth)
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no %s found in %s", api.DefaultConfigFile, root)
	}

	slices.SortFunc(paths, func(a, b string) int {
		return pathDepth(a) - pathDepth(b)
	})
	if len(paths) > 1 && pathDepth(paths[0]) == pathDepth(paths[1]) {
		return nil, fmt.Errorf("ambiguous pipeline files %s and %s, use -config", paths[0], paths[1])
	}

	return api.LoadPipeline(paths[0])
}

func collectConfigPaths(absRoot string, maxDepth int) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("walk error at %s: %w", path, err)
		}

		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			if maxDepth >= 0 {
				rel, relErr := filepath.Rel(absRoot, path)
				if relErr != nil {
					return fmt.Errorf("computing relative path for %s: %w", path, relErr)
				}
				if pathDepth(rel) > maxDepth {
					return filepath.SkipDir
				}
			}
		}

		if !d.IsDir() && d.Name() == api.DefaultConfigFile {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking directory tree: %w", err)
	}
	return paths, nil
}

func pathDepth(p string) int {
	if p == "." {
		return 0
	}
	return strings.Count(filepath.ToSlash(p), "/") + 1
}
