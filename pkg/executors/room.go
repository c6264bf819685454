package executors

import (
	"context"
	"fmt"

	"github.com/chatflow-io/chatflow/pkg/gateway"
)

type CreateRoom struct {
	platform gateway.Platform
}

func (e *CreateRoom) Execute(ctx context.Context, ec *Context) error {
	streamID, err := e.platform.CreateRoom(ctx, ec.OBO, ec.StringParam("name"), ec.StringsParam("user-ids"))
	if err != nil {
		return fmt.Errorf("failed to create room: %w", err)
	}

	ec.SetOutput("stream_id", streamID)

	return nil
}

type AddRoomMember struct {
	platform gateway.Platform
}

func (e *AddRoomMember) Execute(ctx context.Context, ec *Context) error {
	streamID := ec.StreamID()
	if streamID == "" {
		return ErrNoTargetStream
	}

	for _, userID := range memberIDs(ec) {
		if err := e.platform.AddRoomMember(ctx, ec.OBO, streamID, userID); err != nil {
			return fmt.Errorf("failed to add member %s: %w", userID, err)
		}
	}

	return nil
}

type RemoveRoomMember struct {
	platform gateway.Platform
}

func (e *RemoveRoomMember) Execute(ctx context.Context, ec *Context) error {
	streamID := ec.StreamID()
	if streamID == "" {
		return ErrNoTargetStream
	}

	for _, userID := range memberIDs(ec) {
		if err := e.platform.RemoveRoomMember(ctx, ec.OBO, streamID, userID); err != nil {
			return fmt.Errorf("failed to remove member %s: %w", userID, err)
		}
	}

	return nil
}

type PromoteRoomOwner struct {
	platform gateway.Platform
}

func (e *PromoteRoomOwner) Execute(ctx context.Context, ec *Context) error {
	streamID := ec.StreamID()
	if streamID == "" {
		return ErrNoTargetStream
	}

	for _, userID := range memberIDs(ec) {
		if err := e.platform.PromoteRoomOwner(ctx, ec.OBO, streamID, userID); err != nil {
			return fmt.Errorf("failed to promote owner %s: %w", userID, err)
		}
	}

	return nil
}

func memberIDs(ec *Context) []string {
	if ids := ec.StringsParam("user-ids"); len(ids) > 0 {
		return ids
	}

	if id := ec.StringParam("user-id"); id != "" {
		return []string{id}
	}

	return nil
}
