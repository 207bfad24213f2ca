package events

import "github.com/rs/zerolog"

// EntityEventTypes lists every allow-list event the services publish.
var EntityEventTypes = []string{EventEntityRegistered, EventEntityActivated, EventEntityDeactivated}

// AuditLog returns a handler that writes one log line per allow-list change.
func AuditLog(logger *zerolog.Logger) EventHandler {
	return func(event *Event) error {
		p, err := event.Entity()
		if err != nil {
			return err
		}
		logger.Info().
			Str("event", event.Type).
			Str("kind", string(p.Kind)).
			Int64("id", p.ID).
			Str("username", p.Username).
			Int64("changed_by", p.ChangedByID).
			Time("at", event.CreatedAt).
			Msg("Allow-list changed")
		return nil
	}
}
