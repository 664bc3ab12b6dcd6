package assembly

import "github.com/keagan/instavideo/internal/ffmpeg"

// Observer receives job lifecycle events. The assembler only emits events;
// presenting them is up to the caller. Implementations used by the batch
// command must be safe for concurrent use.
type Observer interface {
	OnStateChange(job *Job, from, to State)
	OnProgress(job *Job, p *ffmpeg.Progress)
}

type nopObserver struct{}

func (nopObserver) OnStateChange(*Job, State, State)   {}
func (nopObserver) OnProgress(*Job, *ffmpeg.Progress) {}
