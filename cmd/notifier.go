package main

import (
	"context"
	"log"

	"github.com/greywatch/sentinel/internal/scheduler"
)

// noopNotifier logs instead of sending mail; a missing collaborator
// disables the capability rather than failing startup.
type noopNotifier struct{}

func (noopNotifier) Notify(ctx context.Context, userID string) error {
	log.Printf("sentinel: notify skipped for user %s, no email provider configured", userID)
	return nil
}

// newNotifier returns the logging no-op whether or not apiKey is set: no
// mail sender is implemented in this module. This is the seam an
// operator wires a concrete mail sender into.
func newNotifier(apiKey string) scheduler.Notifier {
	if apiKey == "" {
		return noopNotifier{}
	}
	return noopNotifier{}
}
