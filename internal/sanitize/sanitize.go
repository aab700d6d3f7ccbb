// Package sanitize repairs a freshly extracted directory tree so it is
// safe to leave on disk and safe to recurse into: symlinks that would
// resolve outside the tree are rewritten or removed, and permissions are
// normalized so every branch stays walkable and every leaf readable.
//
// Grounded on unblob's extractor.fix_symlink/fix_permission/
// fix_extracted_directory and the exhaustive parametrized cases in its
// test suite - this package reproduces the same input/output pairs for
// absolute targets, relative targets, traversal, and symlink cycles,
// using Go's own primitives (there is no stdlib equivalent of Python
// pathlib's non-strict resolve(), so the chain-walk below rebuilds it).
package sanitize

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/nicholas-fedor/blobextract/internal/report"
)

const (
	dirMode  fs.FileMode = 0o775
	fileMode fs.FileMode = 0o644

	// maxSymlinkHops bounds chain resolution so a cycle can only cost a
	// fixed amount of work before being detected and removed.
	maxSymlinkHops = 40
)

// Sanitize walks root, rewriting or removing symlinks that would escape
// root and normalizing permissions, so the tree can be safely recursed
// into and so cleanup (e.g. os.RemoveAll) never trips over a directory
// it can't read. Directories are fixed before their children are
// visited: filepath.WalkDir calls back for a directory before reading
// its entries, so a directory stripped of its execute bit by the
// archive it came from is still reachable.
func Sanitize(root string) []report.Report {
	var reports []report.Report

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			reports = append(reports, report.New(report.UnknownError, path, err))

			return nil
		}

		if d.Type()&fs.ModeSymlink != 0 {
			if err := fixSymlink(path, root); err != nil {
				reports = append(reports, report.New(report.UnknownError, path, err))
			}

			return nil
		}

		mode := fileMode
		if d.IsDir() {
			mode = dirMode
		}

		if err := os.Chmod(path, mode); err != nil {
			reports = append(reports, report.New(report.UnknownError, path, err))
		}

		return nil
	})
	if err != nil {
		reports = append(reports, report.New(report.UnknownError, root, err))
	}

	return reports
}

// resolveSymlinkChain follows linkPath's target, and every further
// symlink it points to, lexically - without requiring any component to
// exist - stopping at the first non-symlink component. It reports
// resolvable=false if the chain revisits a path (a cycle) or exceeds
// maxSymlinkHops.
func resolveSymlinkChain(linkPath, root string) (final string, resolvable bool) {
	visited := make(map[string]struct{}, maxSymlinkHops)
	current := linkPath

	for i := 0; i < maxSymlinkHops; i++ {
		if _, seen := visited[current]; seen {
			return "", false
		}

		visited[current] = struct{}{}

		target, err := os.Readlink(current)
		if err != nil {
			return current, true
		}

		if filepath.IsAbs(target) {
			rel := strings.TrimPrefix(target, string(filepath.Separator))
			current = filepath.Join(root, rel)
		} else {
			current = filepath.Clean(filepath.Join(filepath.Dir(current), target))
		}
	}

	return "", false
}

// fixSymlink rewrites linkPath's target to a root-safe relative path, or
// removes linkPath entirely if it cannot be resolved (a cycle) or would
// resolve outside root.
func fixSymlink(linkPath, root string) error {
	final, ok := resolveSymlinkChain(linkPath, root)
	if !ok {
		return removeSymlink(linkPath)
	}

	rel, err := filepath.Rel(root, final)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return removeSymlink(linkPath)
	}

	newTarget, err := filepath.Rel(filepath.Dir(linkPath), final)
	if err != nil {
		return removeSymlink(linkPath)
	}

	if oldTarget, readErr := os.Readlink(linkPath); readErr == nil && oldTarget == newTarget {
		return nil
	}

	if err := os.Remove(linkPath); err != nil {
		return fmt.Errorf("remove stale symlink %s: %w", linkPath, err)
	}

	if err := os.Symlink(newTarget, linkPath); err != nil {
		return fmt.Errorf("rewrite symlink %s: %w", linkPath, err)
	}

	return nil
}

func removeSymlink(linkPath string) error {
	if err := os.Remove(linkPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove unsafe symlink %s: %w", linkPath, err)
	}

	return nil
}
