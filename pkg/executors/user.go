package executors

import (
	"context"
	"fmt"

	"github.com/chatflow-io/chatflow/pkg/gateway"
)

type GetUser struct {
	platform gateway.Platform
}

func (e *GetUser) Execute(ctx context.Context, ec *Context) error {
	userID := ec.StringParam("user-id")

	user, err := e.platform.User(ctx, ec.OBO, userID)
	if err != nil {
		return fmt.Errorf("failed to get user %s: %w", userID, err)
	}

	ec.SetOutput("user_id", user.ID)
	ec.SetOutput("display_name", user.DisplayName)
	ec.SetOutput("email", user.Email)

	return nil
}

type GetUserStreams struct {
	platform gateway.Platform
}

func (e *GetUserStreams) Execute(ctx context.Context, ec *Context) error {
	userID := ec.StringParam("user-id")

	streams, err := e.platform.UserStreams(ctx, ec.OBO, userID, ec.StringsParam("types"))
	if err != nil {
		return fmt.Errorf("failed to get streams for user %s: %w", userID, err)
	}

	streamIDs := make([]string, 0, len(streams))
	for _, stream := range streams {
		streamIDs = append(streamIDs, stream.ID)
	}

	ec.SetOutput("stream_ids", streamIDs)

	return nil
}
