package ffmpeg

import (
	"fmt"
	"strconv"
)

// Canvas is the frame size every segment is padded onto before concat.
type Canvas struct {
	Width  int
	Height int
}

// CanvasFor returns the smallest even-sized canvas that holds every size.
func CanvasFor(sizes [][2]int) Canvas {
	var c Canvas
	for _, s := range sizes {
		if s[0] > c.Width {
			c.Width = s[0]
		}
		if s[1] > c.Height {
			c.Height = s[1]
		}
	}
	c.Width += c.Width % 2
	c.Height += c.Height % 2
	return c
}

// concatGraph builds the filter graph joining segments back to back with
// hard cuts. Each input is normalized (size, SAR, rate, pixel format,
// duration) so concat never rejects a mismatched segment. The output video
// pad is labelled "vout"; when audio is set its chain ends in "aout".
func concatGraph(segments []Segment, canvas Canvas, fps int, audio *AudioSegment) string {
	g := &FilterGraph{}

	labels := make([]string, 0, len(segments))
	for i, seg := range segments {
		label := "v" + strconv.Itoa(i)
		chain := NewFilterBuilder().
			FitWithin(canvas.Width, canvas.Height).
			PadCenter(canvas.Width, canvas.Height, "black").
			SetSAR("1").
			FPS(fps).
			Format(DefaultPixFmt).
			TrimDuration(seg.Duration).
			Build()
		g.Chain([]string{strconv.Itoa(i) + ":v:0"}, chain, []string{label})
		labels = append(labels, label)
	}

	g.Chain(labels, fmt.Sprintf("concat=n=%d:v=1:a=0", len(segments)), []string{"vout"})

	if audio != nil {
		g.Chain([]string{strconv.Itoa(len(segments)) + ":a:0"}, audio.audioFilter(), []string{"aout"})
	}

	return g.String()
}
