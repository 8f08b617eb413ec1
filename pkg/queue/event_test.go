package queue

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventEnvelope(t *testing.T) {
	event, err := NewEvent(EventFollowCreated, "api-1", FollowEventData{FollowerID: "a", FollowingID: "b"})
	require.NoError(t, err)

	// what KafkaProducer.Publish writes
	wire, err := json.Marshal(event)
	require.NoError(t, err)

	decoded, err := DecodeEvent(wire)
	require.NoError(t, err)
	assert.Equal(t, EventFollowCreated, decoded.Type)
	assert.Equal(t, "api-1", decoded.Origin)
	assert.False(t, decoded.Timestamp.IsZero())

	var data FollowEventData
	require.NoError(t, decoded.DecodeData(&data))
	assert.Equal(t, FollowEventData{FollowerID: "a", FollowingID: "b"}, data)
}

func TestDecodeEventRejectsGarbage(t *testing.T) {
	_, err := DecodeEvent([]byte("not json"))
	assert.Error(t, err)
}
