package queue

import (
	"encoding/json"
	"fmt"
	"time"
)

type EventType string

const (
	EventPostCreated     EventType = "post_created"
	EventPostUpdated     EventType = "post_updated"
	EventPostDeleted     EventType = "post_deleted"
	EventFollowCreated   EventType = "follow_created"
	EventFollowDeleted   EventType = "follow_deleted"
	EventLikeSet         EventType = "like_set"
	EventDislikeSet      EventType = "dislike_set"
	EventReactionRemoved EventType = "reaction_removed"
	EventCommentCreated  EventType = "comment_created"
	EventCommentDeleted  EventType = "comment_deleted"
	EventUserDeleted     EventType = "user_deleted"
)

// Event is the envelope on the feed events topic. Origin names the instance
// that produced it so a consumer can skip its own writes.
type Event struct {
	Type      EventType       `json:"type"`
	Origin    string          `json:"origin,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

func NewEvent(eventType EventType, origin string, data interface{}) (Event, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Event{}, fmt.Errorf("failed to marshal %s payload: %w", eventType, err)
	}
	return Event{Type: eventType, Origin: origin, Timestamp: time.Now().UTC(), Data: raw}, nil
}

func DecodeEvent(value []byte) (Event, error) {
	var event Event
	if err := json.Unmarshal(value, &event); err != nil {
		return Event{}, fmt.Errorf("failed to unmarshal event: %w", err)
	}
	return event, nil
}

func (e Event) DecodeData(dest interface{}) error {
	if err := json.Unmarshal(e.Data, dest); err != nil {
		return fmt.Errorf("failed to unmarshal %s payload: %w", e.Type, err)
	}
	return nil
}

type PostEventData struct {
	PostID string `json:"post_id"`
	UserID string `json:"user_id"`
}

type FollowEventData struct {
	FollowerID  string `json:"follower_id"`
	FollowingID string `json:"following_id"`
}

type ReactionEventData struct {
	UserID string `json:"user_id"`
	PostID string `json:"post_id"`
	Kind   string `json:"kind,omitempty"`
}

type CommentEventData struct {
	CommentID string `json:"comment_id"`
	UserID    string `json:"user_id"`
	PostID    string `json:"post_id"`
}

type UserEventData struct {
	UserID string `json:"user_id"`
}
