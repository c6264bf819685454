package executors

import (
	"context"
	"errors"
	"fmt"

	"github.com/chatflow-io/chatflow/pkg/gateway"
)

var ErrNoTargetStream = errors.New("no target stream: activity declares no stream-id and no event stream is in scope")

// ErrOboUnpinIM: the platform rejects on-behalf-of unpinning in instant
// messages, so the executor fails fast instead of silently no-oping.
var ErrOboUnpinIM = errors.New("unpin-message does not support on-behalf-of sessions in instant messages")

type SendMessage struct {
	platform gateway.Platform
}

func (e *SendMessage) Execute(ctx context.Context, ec *Context) error {
	streamID := ec.StreamID()
	if streamID == "" {
		return ErrNoTargetStream
	}

	messageID, err := e.platform.SendMessage(ctx, ec.OBO, streamID, ec.StringParam("content"))
	if err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}

	ec.SetOutput("status", "sent")
	ec.SetOutput("message_id", messageID)
	ec.SetOutput("stream_id", streamID)

	return nil
}

type PinMessage struct {
	platform gateway.Platform
}

func (e *PinMessage) Execute(ctx context.Context, ec *Context) error {
	streamID := ec.StreamID()
	if streamID == "" {
		return ErrNoTargetStream
	}

	messageID := ec.StringParam("message-id")
	if messageID == "" {
		messageID = ec.LastMessageID
	}

	if err := e.platform.PinMessage(ctx, ec.OBO, streamID, messageID); err != nil {
		return fmt.Errorf("failed to pin message: %w", err)
	}

	ec.SetOutput("status", "pinned")

	return nil
}

type UnpinMessage struct {
	platform gateway.Platform
}

func (e *UnpinMessage) Execute(ctx context.Context, ec *Context) error {
	streamID := ec.StreamID()
	if streamID == "" {
		return ErrNoTargetStream
	}

	if ec.OBO != "" {
		streamType, err := e.platform.StreamType(ctx, streamID)
		if err != nil {
			return fmt.Errorf("failed to resolve stream type: %w", err)
		}

		if streamType == gateway.StreamTypeIM {
			return ErrOboUnpinIM
		}
	}

	if err := e.platform.UnpinMessage(ctx, ec.OBO, streamID); err != nil {
		return fmt.Errorf("failed to unpin message: %w", err)
	}

	ec.SetOutput("status", "unpinned")

	return nil
}
