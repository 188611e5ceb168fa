// Package notify surfaces passive notices to the user.
package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/text/message"

	"git.home.luguber.info/inful/bedshift/internal/logfields"
	"git.home.luguber.info/inful/bedshift/internal/timeofday"
)

// Kind identifies what a notice is about.
type Kind string

const (
	KindPreNotice          Kind = "pre_notice"
	KindSleepPrompt        Kind = "sleep_prompt"
	KindNightMissed        Kind = "night_missed"
	KindPermissionRequired Kind = "permission_required"
	KindAlarmClockFallback Kind = "alarm_clock_fallback"
)

// Notice is one passive notice.
type Notice struct {
	Kind    Kind                `json:"kind"`
	CycleID string              `json:"cycle_id,omitempty"`
	At      time.Time           `json:"at"`
	Bedtime timeofday.TimeOfDay `json:"bedtime"`
	Text    string              `json:"text"`
}

// Notifier delivers notices. Implementations must not block for long.
type Notifier interface {
	Notify(ctx context.Context, n Notice)
}

// NoopNotifier drops every notice.
type NoopNotifier struct{}

// Notify implements Notifier.
func (NoopNotifier) Notify(context.Context, Notice) {}

// LogNotifier renders notices for a locale and writes them through slog. It
// also keeps the most recent notices for display.
type LogNotifier struct {
	printer *message.Printer
	logger  *slog.Logger

	mu     sync.Mutex
	recent []Notice
	keep   int
}

// NewLogNotifier returns a LogNotifier for locale (a BCP 47 tag). Unknown or
// malformed tags fall back to English.
func NewLogNotifier(locale string, logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{
		printer: message.NewPrinter(MatchLocale(locale)),
		logger:  logger,
		keep:    20,
	}
}

// Notify implements Notifier.
func (l *LogNotifier) Notify(ctx context.Context, n Notice) {
	n.Text = l.Render(n)
	l.logger.InfoContext(ctx, n.Text,
		slog.String("notice", string(n.Kind)),
		logfields.CycleID(n.CycleID),
		logfields.Instant(n.At))

	l.mu.Lock()
	defer l.mu.Unlock()
	l.recent = append(l.recent, n)
	if len(l.recent) > l.keep {
		l.recent = l.recent[len(l.recent)-l.keep:]
	}
}

// Render formats the notice text in the notifier's locale.
func (l *LogNotifier) Render(n Notice) string {
	key, ok := messageKeys[n.Kind]
	if !ok {
		return string(n.Kind)
	}
	return l.printer.Sprintf(key, n.Bedtime.String())
}

// Recent returns the retained notices, oldest first.
func (l *LogNotifier) Recent() []Notice {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Notice(nil), l.recent...)
}
