package stage

import (
	"context"

	"permavid/internal/queue"
)

// Handler describes the contract the scheduler needs from each pipeline stage.
// Prepare validates preconditions and primes the item's progress message;
// Execute performs the work and persists the outcome. Both receive a mutable
// copy of the item loaded at dispatch time.
type Handler interface {
	Prepare(context.Context, *queue.Item) error
	Execute(context.Context, *queue.Item) error
	HealthCheck(context.Context) Health
}
