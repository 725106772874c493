package passes

import "time"

// Status captures the state of one pass within a run.
type Status string

const (
	// StatusQueued indicates the pass is waiting to start.
	StatusQueued Status = "queued"
	// StatusWorking indicates the pass is running.
	StatusWorking Status = "working"
	// StatusDone indicates the pass finished.
	StatusDone Status = "done"
	// StatusError indicates the pass failed and aborted the run.
	StatusError Status = "error"
)

// Event reports progress for one pass.
type Event struct {
	Pass       string
	Status     Status
	Iterations int
	Err        error
	Elapsed    time.Duration
}

// ProgressSink consumes progress events.
type ProgressSink interface {
	OnEvent(Event)
}

// ChannelSink forwards events into a channel.
type ChannelSink struct {
	Ch chan<- Event
}

func (s ChannelSink) OnEvent(evt Event) {
	if s.Ch == nil {
		return
	}
	s.Ch <- evt
}

// SetProgress installs sink; nil disables progress events.
func (m *Manager) SetProgress(sink ProgressSink) { m.progress = sink }

func (m *Manager) emit(evt Event) {
	if m.progress != nil {
		m.progress.OnEvent(evt)
	}
}
