package common

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsTransient_StatusCodes(t *testing.T) {
	assert.True(t, IsTransient(&HTTPStatusError{StatusCode: 429}))
	assert.True(t, IsTransient(&HTTPStatusError{StatusCode: 503}))
	assert.False(t, IsTransient(&HTTPStatusError{StatusCode: 404}))
	assert.False(t, IsTransient(&HTTPStatusError{StatusCode: 400}))
}

func TestIsTransient_ContextDeadline(t *testing.T) {
	assert.True(t, IsTransient(context.DeadlineExceeded))
	assert.True(t, IsTransient(context.Canceled))
}

func TestIsTransient_UnknownError(t *testing.T) {
	assert.False(t, IsTransient(errors.New("something unexpected")))
}

func TestIsTransient_WrappedStatusError(t *testing.T) {
	err := errors.Join(errors.New("request failed"), &HTTPStatusError{StatusCode: 500})
	assert.True(t, IsTransient(err))
}
