// Package gateway defines the platform client surface the activity executors
// depend on. The concrete messaging/user/stream client is an external
// collaborator wired in at process startup.
package gateway

import "context"

// Stream types as reported by the platform.
const (
	StreamTypeRoom = "ROOM"
	StreamTypeIM   = "IM"
)

type User struct {
	ID          string
	DisplayName string
	Email       string
}

type Stream struct {
	ID   string
	Type string
}

// Platform is the chat platform client. An empty obo argument runs the call
// under the bot's own session; a user id runs it on behalf of that user.
type Platform interface {
	SendMessage(ctx context.Context, obo, streamID, content string) (messageID string, err error)
	PinMessage(ctx context.Context, obo, streamID, messageID string) error
	UnpinMessage(ctx context.Context, obo, streamID string) error

	CreateRoom(ctx context.Context, obo, name string, userIDs []string) (streamID string, err error)
	AddRoomMember(ctx context.Context, obo, streamID, userID string) error
	RemoveRoomMember(ctx context.Context, obo, streamID, userID string) error
	PromoteRoomOwner(ctx context.Context, obo, streamID, userID string) error

	User(ctx context.Context, obo, userID string) (*User, error)
	UserStreams(ctx context.Context, obo, userID string, streamTypes []string) ([]Stream, error)
	StreamType(ctx context.Context, streamID string) (string, error)

	// Do performs an arbitrary HTTP request through the platform's outbound
	// client, for execute-request activities.
	Do(ctx context.Context, method, url string, headers map[string]string, body any) (status int, response map[string]any, err error)
}
