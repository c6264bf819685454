package executors

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatflow-io/chatflow/pkg/gateway"
	"github.com/chatflow-io/chatflow/pkg/models"
)

// fakePlatform records calls and lets tests script stream types and failures.
type fakePlatform struct {
	streamType string
	sendErr    error

	sent     []string
	pinned   []string
	unpinned []string
	added    []string
	removed  []string
	promoted []string

	requests []string
}

func (f *fakePlatform) SendMessage(_ context.Context, _, streamID, content string) (string, error) {
	if f.sendErr != nil {
		return "", f.sendErr
	}

	f.sent = append(f.sent, streamID+":"+content)

	return "msg-1", nil
}

func (f *fakePlatform) PinMessage(_ context.Context, _, streamID, messageID string) error {
	f.pinned = append(f.pinned, streamID+":"+messageID)

	return nil
}

func (f *fakePlatform) UnpinMessage(_ context.Context, _, streamID string) error {
	f.unpinned = append(f.unpinned, streamID)

	return nil
}

func (f *fakePlatform) CreateRoom(_ context.Context, _, _ string, _ []string) (string, error) {
	return "room-1", nil
}

func (f *fakePlatform) AddRoomMember(_ context.Context, _, streamID, userID string) error {
	f.added = append(f.added, streamID+":"+userID)

	return nil
}

func (f *fakePlatform) RemoveRoomMember(_ context.Context, _, streamID, userID string) error {
	f.removed = append(f.removed, streamID+":"+userID)

	return nil
}

func (f *fakePlatform) PromoteRoomOwner(_ context.Context, _, streamID, userID string) error {
	f.promoted = append(f.promoted, streamID+":"+userID)

	return nil
}

func (f *fakePlatform) User(_ context.Context, _, userID string) (*gateway.User, error) {
	return &gateway.User{ID: userID, DisplayName: "Jo Doe", Email: "jo@example.com"}, nil
}

func (f *fakePlatform) UserStreams(_ context.Context, _, _ string, _ []string) ([]gateway.Stream, error) {
	return []gateway.Stream{{ID: "s1", Type: gateway.StreamTypeRoom}, {ID: "s2", Type: gateway.StreamTypeIM}}, nil
}

func (f *fakePlatform) StreamType(_ context.Context, _ string) (string, error) {
	if f.streamType == "" {
		return gateway.StreamTypeRoom, nil
	}

	return f.streamType, nil
}

func (f *fakePlatform) Do(_ context.Context, method, url string, _ map[string]string, _ any) (int, map[string]any, error) {
	f.requests = append(f.requests, method+" "+url)

	return 201, map[string]any{"ok": true}, nil
}

func activityContext(platform gateway.Platform, kind string, params map[string]any) *Context {
	return NewContext(&models.Activity{Kind: kind, ID: kind + "-1", Parameters: params}, platform, nil)
}

func TestSendMessageOutputs(t *testing.T) {
	platform := &fakePlatform{}
	ec := activityContext(platform, models.ActivitySendMessage, map[string]any{
		"stream-id": "room",
		"content":   "hello",
	})

	require.NoError(t, (&SendMessage{platform: platform}).Execute(t.Context(), ec))

	assert.Equal(t, map[string]any{
		"status":     "sent",
		"message_id": "msg-1",
		"stream_id":  "room",
	}, ec.Outputs())
	assert.Equal(t, []string{"room:hello"}, platform.sent)
}

func TestSendMessageFallsBackToEventStream(t *testing.T) {
	platform := &fakePlatform{}
	ec := activityContext(platform, models.ActivitySendMessage, map[string]any{"content": "hi"})
	ec.EventStreamID = "origin"

	require.NoError(t, (&SendMessage{platform: platform}).Execute(t.Context(), ec))
	assert.Equal(t, []string{"origin:hi"}, platform.sent)
}

func TestSendMessageWithoutStreamFails(t *testing.T) {
	platform := &fakePlatform{}
	ec := activityContext(platform, models.ActivitySendMessage, map[string]any{"content": "hi"})

	err := (&SendMessage{platform: platform}).Execute(t.Context(), ec)
	require.ErrorIs(t, err, ErrNoTargetStream)
}

func TestSendMessageWrapsPlatformError(t *testing.T) {
	platform := &fakePlatform{sendErr: errors.New("rate limited")}
	ec := activityContext(platform, models.ActivitySendMessage, map[string]any{
		"stream-id": "room",
		"content":   "hi",
	})

	err := (&SendMessage{platform: platform}).Execute(t.Context(), ec)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limited")
}

func TestPinMessageUsesLastMessage(t *testing.T) {
	platform := &fakePlatform{}
	ec := activityContext(platform, models.ActivityPinMessage, map[string]any{"stream-id": "room"})
	ec.LastMessageID = "msg-7"

	require.NoError(t, (&PinMessage{platform: platform}).Execute(t.Context(), ec))
	assert.Equal(t, []string{"room:msg-7"}, platform.pinned)
}

func TestUnpinMessageRejectsOboInInstantMessage(t *testing.T) {
	platform := &fakePlatform{streamType: gateway.StreamTypeIM}
	ec := activityContext(platform, models.ActivityUnpinMessage, map[string]any{"stream-id": "im"})
	ec.OBO = "someone"

	err := (&UnpinMessage{platform: platform}).Execute(t.Context(), ec)
	require.ErrorIs(t, err, ErrOboUnpinIM)
	assert.Empty(t, platform.unpinned)
}

func TestUnpinMessageOboInRoomSucceeds(t *testing.T) {
	platform := &fakePlatform{streamType: gateway.StreamTypeRoom}
	ec := activityContext(platform, models.ActivityUnpinMessage, map[string]any{"stream-id": "room"})
	ec.OBO = "someone"

	require.NoError(t, (&UnpinMessage{platform: platform}).Execute(t.Context(), ec))
	assert.Equal(t, []string{"room"}, platform.unpinned)
}

func TestAddRoomMemberList(t *testing.T) {
	platform := &fakePlatform{}
	ec := activityContext(platform, models.ActivityAddRoomMember, map[string]any{
		"stream-id": "room",
		"user-ids":  []any{"u1", "u2"},
	})

	require.NoError(t, (&AddRoomMember{platform: platform}).Execute(t.Context(), ec))
	assert.Equal(t, []string{"room:u1", "room:u2"}, platform.added)
}

func TestRemoveRoomMemberSingle(t *testing.T) {
	platform := &fakePlatform{}
	ec := activityContext(platform, models.ActivityRemoveRoomMember, map[string]any{
		"stream-id": "room",
		"user-id":   "u1",
	})

	require.NoError(t, (&RemoveRoomMember{platform: platform}).Execute(t.Context(), ec))
	assert.Equal(t, []string{"room:u1"}, platform.removed)
}

func TestGetUserOutputs(t *testing.T) {
	platform := &fakePlatform{}
	ec := activityContext(platform, models.ActivityGetUser, map[string]any{"user-id": "u9"})

	require.NoError(t, (&GetUser{platform: platform}).Execute(t.Context(), ec))
	assert.Equal(t, map[string]any{
		"user_id":      "u9",
		"display_name": "Jo Doe",
		"email":        "jo@example.com",
	}, ec.Outputs())
}

func TestGetUserStreamsOutputs(t *testing.T) {
	platform := &fakePlatform{}
	ec := activityContext(platform, models.ActivityGetUserStreams, map[string]any{"user-id": "u9"})

	require.NoError(t, (&GetUserStreams{platform: platform}).Execute(t.Context(), ec))
	assert.Equal(t, map[string]any{"stream_ids": []string{"s1", "s2"}}, ec.Outputs())
}

func TestExecuteRequestDefaultsToGet(t *testing.T) {
	platform := &fakePlatform{}
	ec := activityContext(platform, models.ActivityExecuteRequest, map[string]any{
		"url": "https://example.com/hook",
	})

	require.NoError(t, (&ExecuteRequest{platform: platform}).Execute(t.Context(), ec))
	assert.Equal(t, []string{"GET https://example.com/hook"}, platform.requests)
	assert.Equal(t, 201, ec.Outputs()["status"])
}

func TestExecuteRequestRequiresURL(t *testing.T) {
	platform := &fakePlatform{}
	ec := activityContext(platform, models.ActivityExecuteRequest, map[string]any{})

	err := (&ExecuteRequest{platform: platform}).Execute(t.Context(), ec)
	require.ErrorIs(t, err, ErrMissingURL)
}

func TestRegistryLookup(t *testing.T) {
	registry := NewRegistry(&fakePlatform{}, slog.Default())

	for _, kind := range []string{
		models.ActivitySendMessage, models.ActivityPinMessage, models.ActivityUnpinMessage,
		models.ActivityCreateRoom, models.ActivityAddRoomMember, models.ActivityRemoveRoomMember,
		models.ActivityPromoteRoomOwner, models.ActivityGetUser, models.ActivityGetUserStreams,
		models.ActivityExecuteRequest,
	} {
		executor, err := registry.Lookup(kind)
		require.NoError(t, err, kind)
		assert.NotNil(t, executor, kind)
	}

	_, err := registry.Lookup("no-such-kind")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no-such-kind")
}
