package dispatch

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

// Notice is a short user-facing message. Diagnostic detail goes to the log.
type Notice struct {
	Level   Level  `json:"level"`
	Message string `json:"message"`
}

// Notifier receives notices as they happen.
type Notifier interface {
	Notify(ctx context.Context, n Notice)
}

type logNotifier struct{}

// LogNotifier writes notices to the structured log. Background paths use it
// since nobody is waiting for a response.
func LogNotifier() Notifier {
	return logNotifier{}
}

func (logNotifier) Notify(ctx context.Context, n Notice) {
	if n.Level == LevelError {
		slog.WarnContext(ctx, "notice", "level", n.Level, "message", n.Message)
		return
	}
	slog.InfoContext(ctx, "notice", "level", n.Level, "message", n.Message)
}

// SelfFlagWindow is how long a self flag mark hides the matching flag event.
const SelfFlagWindow = time.Minute

// SelfFlags remembers posts this process flagged itself so the flag watcher can
// ignore the echo of its own request. Marks lapse after the window.
type SelfFlags struct {
	mu     sync.Mutex
	marks  map[int64]time.Time
	window time.Duration
	now    func() time.Time
}

func NewSelfFlags() *SelfFlags {
	return NewSelfFlagsWithClock(SelfFlagWindow, time.Now)
}

func NewSelfFlagsWithClock(window time.Duration, now func() time.Time) *SelfFlags {
	return &SelfFlags{marks: make(map[int64]time.Time), window: window, now: now}
}

func (s *SelfFlags) Mark(postID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for id, at := range s.marks {
		if now.Sub(at) > s.window {
			delete(s.marks, id)
		}
	}
	s.marks[postID] = now
}

// Clear drops the mark for a flag that never reached the site.
func (s *SelfFlags) Clear(postID int64) {
	s.mu.Lock()
	delete(s.marks, postID)
	s.mu.Unlock()
}

func (s *SelfFlags) Has(postID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	at, ok := s.marks[postID]
	if !ok {
		return false
	}
	if s.now().Sub(at) > s.window {
		delete(s.marks, postID)
		return false
	}
	return true
}
