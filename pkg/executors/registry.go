package executors

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/chatflow-io/chatflow/pkg/gateway"
	"github.com/chatflow-io/chatflow/pkg/models"
)

// Executor runs one activity kind against the platform gateway.
type Executor interface {
	Execute(ctx context.Context, ec *Context) error
}

// Registry maps activity kinds to executors. Registration is an explicit
// table populated at construction, not discovered at runtime.
type Registry struct {
	executors map[string]Executor
	logger    *slog.Logger
}

func NewRegistry(platform gateway.Platform, logger *slog.Logger) *Registry {
	r := &Registry{
		executors: make(map[string]Executor),
		logger:    logger.With("module", "executor_registry"),
	}

	r.Register(models.ActivitySendMessage, &SendMessage{platform: platform})
	r.Register(models.ActivityPinMessage, &PinMessage{platform: platform})
	r.Register(models.ActivityUnpinMessage, &UnpinMessage{platform: platform})
	r.Register(models.ActivityCreateRoom, &CreateRoom{platform: platform})
	r.Register(models.ActivityAddRoomMember, &AddRoomMember{platform: platform})
	r.Register(models.ActivityRemoveRoomMember, &RemoveRoomMember{platform: platform})
	r.Register(models.ActivityPromoteRoomOwner, &PromoteRoomOwner{platform: platform})
	r.Register(models.ActivityGetUser, &GetUser{platform: platform})
	r.Register(models.ActivityGetUserStreams, &GetUserStreams{platform: platform})
	r.Register(models.ActivityExecuteRequest, &ExecuteRequest{platform: platform})

	return r
}

func (r *Registry) Register(kind string, executor Executor) {
	r.executors[kind] = executor
}

func (r *Registry) Lookup(kind string) (Executor, error) {
	executor, ok := r.executors[kind]
	if !ok {
		return nil, fmt.Errorf("activity kind '%s' not registered", kind)
	}

	return executor, nil
}
