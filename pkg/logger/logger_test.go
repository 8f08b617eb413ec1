package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoggerWithLevel(t *testing.T) {
	assert.Equal(t, logrus.DebugLevel, NewLoggerWithLevel("debug").GetLevel())
	assert.Equal(t, logrus.InfoLevel, NewLoggerWithLevel("nonsense").GetLevel())
}

func TestJSONOutput(t *testing.T) {
	l := NewLogger()
	var buf bytes.Buffer
	l.SetOutput(&buf)

	l.WithFields(logrus.Fields{"user_id": "u1"}).Info("followed user successfully")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "followed user successfully", entry["msg"])
	assert.Equal(t, "u1", entry["user_id"])
	assert.Equal(t, "info", entry["level"])
}
