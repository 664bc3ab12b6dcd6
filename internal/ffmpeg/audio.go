package ffmpeg

import (
	"fmt"

	"github.com/keagan/instavideo/pkg/util"
)

// AudioSegment selects [Start, Start+Duration) of an audio source to be
// muxed as the only audio stream of a render.
type AudioSegment struct {
	Path     string
	Start    float64
	Duration float64
}

func (a AudioSegment) validate() error {
	if a.Path == "" {
		return fmt.Errorf("audio path is required")
	}
	if a.Duration <= 0 {
		return fmt.Errorf("invalid audio duration for %s: %v", a.Path, a.Duration)
	}
	return nil
}

func (a AudioSegment) inputArgs() []string {
	var args []string
	if a.Start > 0 {
		args = append(args, "-ss", util.FormatSeconds(a.Start))
	}
	return append(args,
		"-t", util.FormatSeconds(a.Duration),
		"-i", a.Path,
	)
}

// audioFilter rebases the selected window to zero. A track shorter than the
// video ends early; nothing is padded or looped.
func (a AudioSegment) audioFilter() string {
	return fmt.Sprintf("atrim=duration=%s,asetpts=PTS-STARTPTS", util.FormatSeconds(a.Duration))
}
