// Package organize maintains the on-disk layout of a profile directory:
// media files sorted into images/ and videos/, everything else removable.
package organize

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"unicode"

	"github.com/keagan/instavideo/internal/logging"
	"github.com/keagan/instavideo/internal/media"
)

// MaxProfileNameLen bounds ValidateProfileName.
const MaxProfileNameLen = 30

// Stats counts the outcome of Organize, or the organized media for Count.
type Stats struct {
	Images int
	Videos int
	Failed int
}

// CleanupStats reports what Cleanup did.
type CleanupStats struct {
	Removed []string
	// Skipped holds entries that could not be removed, typically
	// non-empty directories.
	Skipped []string
}

// ValidateProfileName accepts 1..30 characters of letters, digits, '_' and '.'.
func ValidateProfileName(name string) error {
	if name == "" {
		return errors.New("profile name is empty")
	}
	if n := len([]rune(name)); n > MaxProfileNameLen {
		return fmt.Errorf("profile name %q is %d characters, max %d", name, n, MaxProfileNameLen)
	}
	for _, r := range name {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' && r != '.' {
			return fmt.Errorf("profile name %q contains %q", name, r)
		}
	}
	return nil
}

// Organize moves recognized top-level files of dir into images/ and
// videos/, creating them as needed. A file that cannot be moved is logged
// and counted in Failed; it does not stop the run.
func Organize(dir string, sink logging.Sink) (Stats, error) {
	if sink == nil {
		sink = logging.Nop()
	}
	var stats Stats

	entries, err := readProfile(dir)
	if err != nil {
		return stats, err
	}

	for _, sub := range []string{media.ImagesDir, media.VideosDir} {
		path := filepath.Join(dir, sub)
		if err := os.MkdirAll(path, 0o755); err != nil {
			return stats, fmt.Errorf("create %s: %w", path, err)
		}
	}
	sink.Info("organizing profile", "dir", dir, "entries", len(entries))

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		kind, ok := media.KindOf(name)
		if !ok {
			continue
		}

		sub := media.ImagesDir
		if kind == media.KindVideo {
			sub = media.VideosDir
		}
		src := filepath.Join(dir, name)
		dst := filepath.Join(dir, sub, name)
		if err := os.Rename(src, dst); err != nil {
			stats.Failed++
			sink.Warn("failed to move file", "file", name, "error", err.Error())
			continue
		}

		if kind == media.KindVideo {
			stats.Videos++
		} else {
			stats.Images++
		}
	}

	sink.Info("profile organized", "dir", dir, "images", stats.Images, "videos", stats.Videos, "failed", stats.Failed)
	return stats, nil
}

// Cleanup removes every top-level entry of dir except images/ and videos/.
// Files and empty directories are removed; anything else is skipped.
func Cleanup(dir string, sink logging.Sink) (CleanupStats, error) {
	if sink == nil {
		sink = logging.Nop()
	}
	var stats CleanupStats

	entries, err := readProfile(dir)
	if err != nil {
		return stats, err
	}

	for _, entry := range entries {
		name := entry.Name()
		if name == media.ImagesDir || name == media.VideosDir {
			continue
		}
		path := filepath.Join(dir, name)
		// os.Remove refuses non-empty directories.
		if err := os.Remove(path); err != nil {
			stats.Skipped = append(stats.Skipped, path)
			sink.Warn("could not remove entry", "path", path, "error", err.Error())
			continue
		}
		stats.Removed = append(stats.Removed, path)
	}

	sink.Info("cleanup completed", "dir", dir, "removed", len(stats.Removed), "skipped", len(stats.Skipped))
	return stats, nil
}

// Count reports how many recognized files sit in images/ and videos/.
// Missing subdirectories count as empty.
func Count(dir string) (Stats, error) {
	var stats Stats
	if _, err := readProfile(dir); err != nil {
		return stats, err
	}

	if imagesDir := filepath.Join(dir, media.ImagesDir); isDir(imagesDir) {
		images, _, err := media.Classify(imagesDir, false, true)
		if err != nil {
			return stats, err
		}
		stats.Images = len(images)
	}
	if videosDir := filepath.Join(dir, media.VideosDir); isDir(videosDir) {
		_, videos, err := media.Classify(videosDir, true, false)
		if err != nil {
			return stats, err
		}
		stats.Videos = len(videos)
	}
	return stats, nil
}

func readProfile(dir string) ([]os.DirEntry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, &media.DirectoryNotFoundError{Path: dir, Err: err}
	}
	return entries, nil
}

func isDir(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.IsDir()
}
