// Package media classifies source files into image and video units.
//
// A Unit is a closed variant: the only implementations are Image and Video.
// Only Video is Probeable, since still images have no intrinsic duration.
package media

import (
	"context"
	"fmt"
)

// Kind names the variant of a Unit.
type Kind string

const (
	KindImage Kind = "image"
	KindVideo Kind = "video"
)

// Unit is one classified source file. Units are immutable.
type Unit interface {
	Path() string
	Kind() Kind
	sealed()
}

// DurationProber measures the raw duration of a media file in seconds.
type DurationProber interface {
	ProbeDuration(ctx context.Context, path string) (float64, error)
}

// Probeable is implemented by units with an intrinsic duration.
type Probeable interface {
	Unit
	Duration(ctx context.Context, p DurationProber) (float64, error)
}

// Image is a still picture (.jpg, .png).
type Image struct {
	path string
}

// NewImage returns an image unit for an absolute path.
func NewImage(path string) Image { return Image{path: path} }

func (i Image) Path() string   { return i.path }
func (i Image) Kind() Kind     { return KindImage }
func (i Image) String() string { return "image:" + i.path }
func (Image) sealed()          {}

// Video is a clip (.mp4).
type Video struct {
	path string
}

// NewVideo returns a video unit for an absolute path.
func NewVideo(path string) Video { return Video{path: path} }

func (v Video) Path() string   { return v.path }
func (v Video) Kind() Kind     { return KindVideo }
func (v Video) String() string { return "video:" + v.path }
func (Video) sealed()          {}

// Duration probes the container for the clip's raw duration.
func (v Video) Duration(ctx context.Context, p DurationProber) (float64, error) {
	d, err := p.ProbeDuration(ctx, v.path)
	if err != nil {
		return 0, fmt.Errorf("probe %s: %w", v.path, err)
	}
	return d, nil
}
