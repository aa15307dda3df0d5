package bus

import (
	"context"

	"github.com/waypointcpa/taskpool-backend/internal/realtime"
)

type Bus interface {
	Publish(ctx context.Context, event realtime.TaskEvent) error
	StartForwarder(ctx context.Context, onEvent func(e realtime.TaskEvent)) error
	Close() error
}
