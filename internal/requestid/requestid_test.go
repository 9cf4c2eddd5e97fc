package requestid

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRequestID_RoundTrip(t *testing.T) {
	ctx := WithID(context.Background(), "req-123")
	assert.Equal(t, "req-123", FromContext(ctx))
}

func TestRequestID_Missing(t *testing.T) {
	assert.Equal(t, "", FromContext(context.Background()))
}
