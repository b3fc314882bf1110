package httpcontext

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/valyala/fasthttp"
)

func TestAttach(t *testing.T) {
	var req fasthttp.RequestCtx
	req.Request.Header.Set("X-Request-ID", "abc")
	req.Request.Header.SetUserAgent("tests")

	ctx, cancel := NewAdapter(time.Second).Attach(&req)
	defer cancel()

	deadline, ok := ctx.Deadline()
	assert.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(time.Second), deadline, 200*time.Millisecond)
	assert.Equal(t, "abc", string(req.Response.Header.Peek("X-Request-ID")))
	assert.Equal(t, "tests", ctx.Value(KeyUserAgent))
}

func TestAttachGeneratesRequestID(t *testing.T) {
	var req fasthttp.RequestCtx
	ctx, cancel := NewAdapter(0).Attach(&req)
	cancel()

	assert.NotEmpty(t, string(req.Response.Header.Peek("X-Request-ID")))
	assert.ErrorIs(t, ctx.Err(), context.Canceled)
}
