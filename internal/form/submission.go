package form

import (
	"context"
	"sync/atomic"
)

// Submission is the handle of one in-flight request.
type Submission struct {
	cancel  context.CancelFunc
	aborted atomic.Bool
	done    chan struct{}
	err     error
}

// Done is closed once the submission has settled and the view is updated.
func (s *Submission) Done() <-chan struct{} {
	return s.done
}

// Wait blocks until the submission settles and returns its error.
func (s *Submission) Wait() error {
	<-s.done
	return s.err
}

// Cancel aborts the request. A cancelled submission never changes the results
// of its view.
func (s *Submission) Cancel() {
	s.aborted.Store(true)
	s.cancel()
}
