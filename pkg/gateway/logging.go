package gateway

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// Logging is a Platform stub that records every call instead of talking to a
// real platform. Used for local runs and tests.
type Logging struct {
	logger *slog.Logger
}

func NewLogging(logger *slog.Logger) *Logging {
	return &Logging{logger: logger.With("module", "platform_gateway")}
}

func (g *Logging) SendMessage(_ context.Context, obo, streamID, content string) (string, error) {
	messageID := uuid.New().String()
	g.logger.Info("Send message", "obo", obo, "stream_id", streamID, "content", content, "message_id", messageID)

	return messageID, nil
}

func (g *Logging) PinMessage(_ context.Context, obo, streamID, messageID string) error {
	g.logger.Info("Pin message", "obo", obo, "stream_id", streamID, "message_id", messageID)

	return nil
}

func (g *Logging) UnpinMessage(_ context.Context, obo, streamID string) error {
	g.logger.Info("Unpin message", "obo", obo, "stream_id", streamID)

	return nil
}

func (g *Logging) CreateRoom(_ context.Context, obo, name string, userIDs []string) (string, error) {
	streamID := uuid.New().String()
	g.logger.Info("Create room", "obo", obo, "name", name, "users", userIDs, "stream_id", streamID)

	return streamID, nil
}

func (g *Logging) AddRoomMember(_ context.Context, obo, streamID, userID string) error {
	g.logger.Info("Add room member", "obo", obo, "stream_id", streamID, "user_id", userID)

	return nil
}

func (g *Logging) RemoveRoomMember(_ context.Context, obo, streamID, userID string) error {
	g.logger.Info("Remove room member", "obo", obo, "stream_id", streamID, "user_id", userID)

	return nil
}

func (g *Logging) PromoteRoomOwner(_ context.Context, obo, streamID, userID string) error {
	g.logger.Info("Promote room owner", "obo", obo, "stream_id", streamID, "user_id", userID)

	return nil
}

func (g *Logging) User(_ context.Context, obo, userID string) (*User, error) {
	g.logger.Info("Get user", "obo", obo, "user_id", userID)

	return &User{ID: userID}, nil
}

func (g *Logging) UserStreams(_ context.Context, obo, userID string, streamTypes []string) ([]Stream, error) {
	g.logger.Info("Get user streams", "obo", obo, "user_id", userID, "types", streamTypes)

	return nil, nil
}

func (g *Logging) StreamType(_ context.Context, _ string) (string, error) {
	return StreamTypeRoom, nil
}

func (g *Logging) Do(_ context.Context, method, url string, _ map[string]string, _ any) (int, map[string]any, error) {
	g.logger.Info("Execute request", "method", method, "url", url)

	return 200, map[string]any{}, nil
}
