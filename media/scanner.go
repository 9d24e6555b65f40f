// Package media - Directory walking and classification.
package media

import (
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/trailsense/go-detect/images"
)

// Scanner enumerates media files under a root directory. Scan is restartable:
// every call re-walks the tree and produces a fresh, deterministic sequence.
type Scanner struct {
	// Root is the directory to walk.
	Root string
	// Skip holds paths (as emitted by a previous run's export) to exclude,
	// used by resume mode. Nil means skip nothing.
	Skip map[string]bool
}

// ScanResult is the outcome of one walk.
type ScanResult struct {
	Items []Item
	// Unsupported counts files whose extension matched no known format.
	Unsupported int
	// Skipped counts files excluded by resume mode.
	Skipped int
}

// Scan walks the tree, classifies files by extension and returns the items in
// sorted path order with scan-order IDs assigned. Hidden files and hidden
// directories are ignored. Unsupported extensions are counted and logged,
// never fatal; only an unreadable root is an error.
func (s *Scanner) Scan() (*ScanResult, error) {
	result := &ScanResult{}

	err := filepath.WalkDir(s.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == s.Root {
				return err
			}
			// A vanished or unreadable entry mid-walk is a per-file
			// problem, not a run killer.
			log.WithError(err).WithField("path", path).Warn("skipping unreadable entry")
			return nil
		}

		name := d.Name()
		if strings.HasPrefix(name, ".") && path != s.Root {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}

		format := images.FormatForPath(path)
		if format == images.FormatUnknown {
			result.Unsupported++
			log.WithField("path", path).Debug("unsupported extension")
			return nil
		}
		if s.Skip != nil && s.Skip[path] {
			result.Skipped++
			return nil
		}

		kind := KindImage
		if format.IsVideo() {
			kind = KindVideo
		}
		result.Items = append(result.Items, Item{
			Path:   path,
			Kind:   kind,
			Format: format,
		})
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "scanning %s", s.Root)
	}

	sort.Slice(result.Items, func(i, j int) bool {
		return result.Items[i].Path < result.Items[j].Path
	})
	for i := range result.Items {
		result.Items[i].ID = i
		result.Items[i].CaptureTime = captureTime(&result.Items[i])
	}

	return result, nil
}
