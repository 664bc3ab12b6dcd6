package ffmpeg

import (
	"fmt"
	"strconv"

	"github.com/keagan/instavideo/pkg/util"
)

// Segment is one input of a composed render: a trim window of a video, or a
// still image held on screen for Duration seconds.
type Segment struct {
	Path     string
	Still    bool
	Start    float64 // seconds into the source; ignored for stills
	Duration float64 // seconds on the output timeline
}

func (s Segment) validate() error {
	if s.Path == "" {
		return fmt.Errorf("segment path is required")
	}
	if s.Duration <= 0 {
		return fmt.Errorf("invalid segment duration for %s: %v", s.Path, s.Duration)
	}
	if s.Start < 0 {
		return fmt.Errorf("invalid segment start for %s: %v", s.Path, s.Start)
	}
	return nil
}

// inputArgs returns the "-i" block for the segment. Trimming happens on the
// input side so ffmpeg only decodes the window it needs.
func (s Segment) inputArgs(fps int) []string {
	if s.Still {
		return []string{
			"-loop", "1",
			"-framerate", strconv.Itoa(fps),
			"-t", util.FormatSeconds(s.Duration),
			"-i", s.Path,
		}
	}

	var args []string
	if s.Start > 0 {
		args = append(args, "-ss", util.FormatSeconds(s.Start))
	}
	return append(args,
		"-t", util.FormatSeconds(s.Duration),
		"-i", s.Path,
	)
}
