package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSpecificErrorsMatchCategory(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		category error
	}{
		{"user not found", ErrUserNotFound, ErrNotFound},
		{"post not found", ErrPostNotFound, ErrNotFound},
		{"comment not found", ErrCommentNotFound, ErrNotFound},
		{"not following", ErrNotFollowing, ErrNotFound},
		{"already following", ErrAlreadyFollowing, ErrConflict},
		{"already liked", ErrAlreadyLiked, ErrConflict},
		{"already disliked", ErrAlreadyDisliked, ErrConflict},
		{"not comment author", ErrNotCommentAuthor, ErrUnauthorized},
		{"not post author", ErrNotPostAuthor, ErrUnauthorized},
		{"self follow", ErrSelfFollow, ErrInvalidInput},
		{"empty comment", ErrEmptyComment, ErrInvalidInput},
		{"invalid id", ErrInvalidID, ErrInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := fmt.Errorf("service: %w", tt.err)
			assert.True(t, errors.Is(wrapped, tt.err))
			assert.True(t, errors.Is(wrapped, tt.category))
		})
	}
}

func TestStoreKeepsCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Store("count likes", cause)

	assert.True(t, errors.Is(err, ErrStoreFailure))
	assert.True(t, errors.Is(err, cause))
	assert.False(t, errors.Is(err, ErrNotFound))
	assert.Equal(t, "failed to count likes: connection refused", err.Error())
}

func TestInvalid(t *testing.T) {
	err := Invalid("title is required")
	assert.True(t, errors.Is(err, ErrInvalidInput))
	assert.Contains(t, err.Error(), "title is required")
}
