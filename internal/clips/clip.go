package clips

import (
	"github.com/keagan/instavideo/internal/ffmpeg"
	"github.com/keagan/instavideo/internal/media"
	"github.com/keagan/instavideo/internal/randx"
)

// Size is a frame size in pixels.
type Size struct {
	Width  int
	Height int
}

// Clip is one renderable span of the final timeline. It borrows its source
// file; nothing is copied or extracted until render time.
type Clip struct {
	ID          string
	Unit        media.Unit
	Duration    float64 // seconds on the output timeline, > 0
	TrimStart   float64 // seconds into the source, 0 for images
	RawDuration float64 // probed source length, 0 for images
	Width       int     // display size after rotation
	Height      int
	// Resize is reserved; the assembler never sets or honours it yet.
	Resize *Size
}

// Kind returns the media kind of the source unit.
func (c *Clip) Kind() media.Kind { return c.Unit.Kind() }

// Path returns the source file path.
func (c *Clip) Path() string { return c.Unit.Path() }

// TrimEnd is the exclusive end of the trim window in source time.
func (c *Clip) TrimEnd() float64 { return c.TrimStart + c.Duration }

// Segment describes the clip as a render input.
func (c *Clip) Segment() ffmpeg.Segment {
	return ffmpeg.Segment{
		Path:     c.Path(),
		Still:    c.Kind() == media.KindImage,
		Start:    c.TrimStart,
		Duration: c.Duration,
	}
}

// Manager holds the clip sequence of one assembly job.
type Manager struct {
	clips []*Clip
}

// NewManager creates a new clip manager
func NewManager(initial ...*Clip) *Manager {
	m := &Manager{clips: make([]*Clip, 0, len(initial))}
	m.clips = append(m.clips, initial...)
	return m
}

// Add adds a clip to the manager
func (m *Manager) Add(clip *Clip) {
	m.clips = append(m.clips, clip)
}

// Get retrieves a clip by ID
func (m *Manager) Get(id string) *Clip {
	for _, clip := range m.clips {
		if clip.ID == id {
			return clip
		}
	}
	return nil
}

// All returns all clips in timeline order
func (m *Manager) All() []*Clip {
	return m.clips
}

// Len returns the number of clips.
func (m *Manager) Len() int { return len(m.clips) }

// Shuffle permutes the sequence uniformly using src.
func (m *Manager) Shuffle(src randx.Source) {
	src.Shuffle(len(m.clips), func(i, j int) {
		m.clips[i], m.clips[j] = m.clips[j], m.clips[i]
	})
}

// TotalDuration is the sum of clip durations: the length of the
// concatenated timeline.
func (m *Manager) TotalDuration() float64 {
	var total float64
	for _, c := range m.clips {
		total += c.Duration
	}
	return total
}

// Canvas returns the render canvas that fits every clip.
func (m *Manager) Canvas() ffmpeg.Canvas {
	sizes := make([][2]int, 0, len(m.clips))
	for _, c := range m.clips {
		sizes = append(sizes, [2]int{c.Width, c.Height})
	}
	return ffmpeg.CanvasFor(sizes)
}

// Segments returns the render inputs in timeline order.
func (m *Manager) Segments() []ffmpeg.Segment {
	out := make([]ffmpeg.Segment, 0, len(m.clips))
	for _, c := range m.clips {
		out = append(out, c.Segment())
	}
	return out
}
