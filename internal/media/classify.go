package media

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Names of the subdirectories an organized profile directory contains.
const (
	ImagesDir = "images"
	VideosDir = "videos"
)

var (
	imageExts = []string{".jpg", ".png"}
	videoExts = []string{".mp4"}
)

// DirectoryNotFoundError means the source path is missing or not a directory.
type DirectoryNotFoundError struct {
	Path string
	Err  error
}

func (e *DirectoryNotFoundError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("source directory not found: %s: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("source directory not found: %s", e.Path)
}

func (e *DirectoryNotFoundError) Unwrap() error { return e.Err }

// IsDirectoryNotFound reports whether err is a DirectoryNotFoundError.
func IsDirectoryNotFound(err error) bool {
	var e *DirectoryNotFoundError
	return errors.As(err, &e)
}

// KindOf classifies a file name by extension. ok is false for anything the
// assembler does not use. Matching is case-sensitive.
func KindOf(name string) (Kind, bool) {
	for _, ext := range imageExts {
		if strings.HasSuffix(name, ext) {
			return KindImage, true
		}
	}
	for _, ext := range videoExts {
		if strings.HasSuffix(name, ext) {
			return KindVideo, true
		}
	}
	return "", false
}

// Classify lists dir (non-recursively) and splits recognized files into
// images and videos, each in directory enumeration order. Subdirectories and
// unrecognized files are skipped.
func Classify(dir string, skipImages, skipVideos bool) (images, videos []Unit, err error) {
	abs, err := requireDir(dir)
	if err != nil {
		return nil, nil, err
	}

	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, nil, &DirectoryNotFoundError{Path: dir, Err: err}
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		kind, ok := KindOf(name)
		if !ok {
			continue
		}

		path := filepath.Join(abs, name)
		if entry.Type()&os.ModeSymlink != 0 {
			fi, statErr := os.Stat(path)
			if statErr != nil || fi.IsDir() {
				continue
			}
		}

		switch kind {
		case KindImage:
			if !skipImages {
				images = append(images, NewImage(path))
			}
		case KindVideo:
			if !skipVideos {
				videos = append(videos, NewVideo(path))
			}
		}
	}

	return images, videos, nil
}

// Scan classifies a profile directory. When dir holds the organized layout
// (an images/ and/or videos/ subdirectory), images come from images/ and
// videos from videos/, followed by any loose files left at the top level.
// Otherwise dir is classified in place.
func Scan(dir string, skipImages, skipVideos bool) (images, videos []Unit, err error) {
	abs, err := requireDir(dir)
	if err != nil {
		return nil, nil, err
	}

	imagesDir := filepath.Join(abs, ImagesDir)
	videosDir := filepath.Join(abs, VideosDir)
	hasImages, hasVideos := isDir(imagesDir), isDir(videosDir)

	if !hasImages && !hasVideos {
		return Classify(abs, skipImages, skipVideos)
	}

	if hasImages && !skipImages {
		imgs, _, err := Classify(imagesDir, false, true)
		if err != nil {
			return nil, nil, err
		}
		images = append(images, imgs...)
	}
	if hasVideos && !skipVideos {
		_, vids, err := Classify(videosDir, true, false)
		if err != nil {
			return nil, nil, err
		}
		videos = append(videos, vids...)
	}

	looseImages, looseVideos, err := Classify(abs, skipImages, skipVideos)
	if err != nil {
		return nil, nil, err
	}
	return append(images, looseImages...), append(videos, looseVideos...), nil
}

func requireDir(dir string) (string, error) {
	if strings.TrimSpace(dir) == "" {
		return "", &DirectoryNotFoundError{Path: dir}
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", &DirectoryNotFoundError{Path: dir, Err: err}
	}
	fi, err := os.Stat(abs)
	if err != nil {
		return "", &DirectoryNotFoundError{Path: dir, Err: err}
	}
	if !fi.IsDir() {
		return "", &DirectoryNotFoundError{Path: dir, Err: fmt.Errorf("not a directory")}
	}
	return abs, nil
}

func isDir(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.IsDir()
}
