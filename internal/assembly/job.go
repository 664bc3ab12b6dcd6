package assembly

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/keagan/instavideo/internal/audio"
	"github.com/keagan/instavideo/internal/clips"
	"github.com/keagan/instavideo/internal/ffmpeg"
)

// State is a step of the assembly job lifecycle.
type State string

const (
	StateCollecting    State = "collecting"
	StateOrdering      State = "ordering"
	StateConcatenating State = "concatenating"
	StateMixing        State = "mixing"
	StateRendering     State = "rendering"
	StateDone          State = "done"
	StateFailed        State = "failed"
)

// Terminal reports whether no further transition is allowed.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}

var transitions = map[State][]State{
	StateCollecting:    {StateOrdering},
	StateOrdering:      {StateConcatenating},
	StateConcatenating: {StateMixing, StateRendering},
	StateMixing:        {StateRendering},
	StateRendering:     {StateDone},
}

// Job is one end-to-end run producing exactly one output file. It lives for
// the duration of Assemble and is never persisted.
type Job struct {
	ID           string
	State        State
	Clips        *clips.Manager
	Audio        *audio.Track
	Output       string
	FrameRate    int
	AudioEnabled bool
	Canvas       ffmpeg.Canvas
	// Duration is the planned timeline length: the sum of clip durations.
	Duration float64
	// RenderedDuration is the probed length of the written file, 0 if the
	// probe failed.
	RenderedDuration float64
	Err              error

	history []State
}

func newJob(output string, frameRate int, audioEnabled bool) *Job {
	return &Job{
		ID:           uuid.NewString(),
		State:        StateCollecting,
		Output:       output,
		FrameRate:    frameRate,
		AudioEnabled: audioEnabled,
		history:      []State{StateCollecting},
	}
}

// History lists every state the job entered, in order.
func (j *Job) History() []State {
	out := make([]State, len(j.history))
	copy(out, j.history)
	return out
}

func (j *Job) advance(next State) error {
	if j.State.Terminal() {
		return fmt.Errorf("job %s already %s", j.ID, j.State)
	}
	if next == StateFailed {
		j.enter(next)
		return nil
	}
	for _, allowed := range transitions[j.State] {
		if allowed == next {
			j.enter(next)
			return nil
		}
	}
	return fmt.Errorf("job %s: illegal transition %s -> %s", j.ID, j.State, next)
}

func (j *Job) enter(s State) {
	j.State = s
	j.history = append(j.history, s)
}
