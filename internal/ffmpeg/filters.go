package ffmpeg

import (
	"fmt"
	"strings"

	"github.com/keagan/instavideo/pkg/util"
)

// FilterBuilder helps construct a single comma-separated filter chain
type FilterBuilder struct {
	filters []string
}

// NewFilterBuilder creates a new filter builder
func NewFilterBuilder() *FilterBuilder {
	return &FilterBuilder{
		filters: make([]string, 0),
	}
}

// Scale adds a scale filter
func (fb *FilterBuilder) Scale(width, height int) *FilterBuilder {
	if width <= 0 || height <= 0 {
		// Return self without adding filter - allows chaining to continue
		return fb
	}
	fb.filters = append(fb.filters, fmt.Sprintf("scale=%d:%d", width, height))
	return fb
}

// FitWithin shrinks frames larger than width x height, keeping the aspect
// ratio. Smaller frames pass through untouched.
func (fb *FilterBuilder) FitWithin(width, height int) *FilterBuilder {
	if width <= 0 || height <= 0 {
		return fb
	}
	fb.filters = append(fb.filters,
		fmt.Sprintf("scale='min(iw,%d)':'min(ih,%d)':force_original_aspect_ratio=decrease", width, height))
	return fb
}

// PadCenter places the frame in the middle of a width x height canvas.
func (fb *FilterBuilder) PadCenter(width, height int, color string) *FilterBuilder {
	if width <= 0 || height <= 0 {
		return fb
	}
	if color == "" {
		color = "black"
	}
	fb.filters = append(fb.filters,
		fmt.Sprintf("pad=%d:%d:(ow-iw)/2:(oh-ih)/2:color=%s", width, height, color))
	return fb
}

// SetSAR forces a square (or given) sample aspect ratio so concat accepts
// inputs from different sources.
func (fb *FilterBuilder) SetSAR(sar string) *FilterBuilder {
	if sar == "" {
		sar = "1"
	}
	fb.filters = append(fb.filters, "setsar="+sar)
	return fb
}

// FPS adds an fps filter
func (fb *FilterBuilder) FPS(fps int) *FilterBuilder {
	if fps <= 0 {
		return fb
	}
	fb.filters = append(fb.filters, fmt.Sprintf("fps=%d", fps))
	return fb
}

// Format adds a pixel format conversion
func (fb *FilterBuilder) Format(pixFmt string) *FilterBuilder {
	if pixFmt == "" {
		return fb
	}
	fb.filters = append(fb.filters, "format="+pixFmt)
	return fb
}

// TrimDuration cuts the stream after seconds and rebases timestamps to zero.
func (fb *FilterBuilder) TrimDuration(seconds float64) *FilterBuilder {
	if seconds <= 0 {
		return fb
	}
	fb.filters = append(fb.filters,
		"trim=duration="+util.FormatSeconds(seconds),
		"setpts=PTS-STARTPTS")
	return fb
}

// Custom adds a custom filter string
func (fb *FilterBuilder) Custom(filter string) *FilterBuilder {
	fb.filters = append(fb.filters, filter)
	return fb
}

// Build returns the complete filter string joined with commas
func (fb *FilterBuilder) Build() string {
	if len(fb.filters) == 0 {
		return ""
	}
	return strings.Join(fb.filters, ",")
}

// FilterGraph collects labelled chains for -filter_complex.
type FilterGraph struct {
	chains []string
}

// Chain appends "[in...]filters[out...]". Empty filters map to null.
func (g *FilterGraph) Chain(inputs []string, filters string, outputs []string) *FilterGraph {
	if filters == "" {
		filters = "null"
	}
	var b strings.Builder
	for _, in := range inputs {
		b.WriteString("[" + in + "]")
	}
	b.WriteString(filters)
	for _, out := range outputs {
		b.WriteString("[" + out + "]")
	}
	g.chains = append(g.chains, b.String())
	return g
}

// String joins chains with semicolons.
func (g *FilterGraph) String() string {
	return strings.Join(g.chains, ";")
}
