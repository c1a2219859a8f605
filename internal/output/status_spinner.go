// internal/output/status_spinner.go
package output

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"golang.org/x/term"
)

var statusSpinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// StatusSpinner displays an animated spinner with a status message while
// the pipeline waits on the network. Thread-safe for concurrent updates.
// It stays silent when its output is not a terminal.
type StatusSpinner struct {
	out      io.Writer
	enabled  bool
	frameIdx int
	message  string
	stop     chan struct{}
	done     chan struct{}
	mu       sync.Mutex
	running  bool
}

// NewStatusSpinner creates a new StatusSpinner writing to stderr.
func NewStatusSpinner() *StatusSpinner {
	return NewStatusSpinnerWithWriter(os.Stderr, IsTerminal(os.Stderr))
}

// NewStatusSpinnerWithWriter creates a StatusSpinner writing to out.
func NewStatusSpinnerWithWriter(out io.Writer, enabled bool) *StatusSpinner {
	return &StatusSpinner{out: out, enabled: enabled}
}

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// Start begins the spinner animation with the given message.
func (s *StatusSpinner) Start(message string) {
	s.mu.Lock()
	if s.running || !s.enabled {
		s.message = message
		s.mu.Unlock()
		return
	}
	s.running = true
	s.message = message
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	s.mu.Unlock()

	go func() {
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()
		defer close(s.done)

		for {
			select {
			case <-s.stop:
				return
			case <-ticker.C:
				s.render()
			}
		}
	}()
}

// Update changes the spinner message.
func (s *StatusSpinner) Update(message string) {
	s.mu.Lock()
	s.message = message
	running := s.running
	s.mu.Unlock()
	if running {
		s.render()
	}
}

// Message returns the current status message.
func (s *StatusSpinner) Message() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.message
}

// Stop stops the spinner and clears the line.
func (s *StatusSpinner) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stop)
	s.mu.Unlock()

	<-s.done
	fmt.Fprintf(s.out, "\r%80s\r", "") // Clear line
}

func (s *StatusSpinner) render() {
	s.mu.Lock()
	msg := s.message
	idx := s.frameIdx
	s.frameIdx = (s.frameIdx + 1) % len(statusSpinnerFrames)
	s.mu.Unlock()

	fmt.Fprintf(s.out, "\r%s %s          ", statusSpinnerFrames[idx], msg)
}
