package channel

import (
	"context"
	"fmt"

	"github.com/bulletops/bullet/internal/telemetry"
)

// Sender delivers one event over one transport.
type Sender interface {
	// Name identifies the transport in logs and delivery records.
	Name() string

	// Send delivers the event. Implementations must respect ctx and
	// return an error on any delivery failure.
	Send(ctx context.Context, event *Event) error
}

// SendSafe delivers an event and converts every failure mode, panics
// included, into a false return. Dispatch must survive a misbehaving
// transport.
func SendSafe(ctx context.Context, s Sender, event *Event) (ok bool) {
	log := telemetry.LogFromContext(ctx).WithField("channel", s.Name())
	defer func() {
		if r := recover(); r != nil {
			log.WithField("panic", fmt.Sprintf("%v", r)).Error("Channel send panicked")
			ok = false
		}
	}()

	if err := s.Send(ctx, event); err != nil {
		log.WithField("error", err.Error()).Error("Channel send failed")
		return false
	}
	return true
}

// truncateRunes shortens s to at most max runes. Descriptions and labels are
// often Chinese, so cutting by byte index would split a rune.
func truncateRunes(s string, max int) string {
	if max <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
