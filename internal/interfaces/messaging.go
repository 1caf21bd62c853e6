package interfaces

import "context"

// Publisher fans terminal generation events out to external consumers
type Publisher interface {
	Publish(ctx context.Context, subject string, payload interface{}) error
	Close() error
}
