package assembly

import (
	"errors"
	"fmt"
)

// ErrNoClips is returned when a job is started with an empty clip set.
var ErrNoClips = errors.New("no clips to assemble")

// RenderError wraps any failure while encoding or committing the output.
// Whatever ffmpeg wrote never reaches Path; the caller may retry with a new
// random composition but must not assume a file exists.
type RenderError struct {
	Path string
	Err  error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render of %s failed: %v", e.Path, e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }

// IsRenderError reports whether err is a RenderError.
func IsRenderError(err error) bool {
	var e *RenderError
	return errors.As(err, &e)
}
