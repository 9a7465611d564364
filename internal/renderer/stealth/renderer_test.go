package stealth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/hourswatch/internal/hours"
)

func TestNewValidation(t *testing.T) {
	t.Parallel()

	_, err := New(Config{MaxParallel: -1}, nil)
	require.Error(t, err)

	r, err := New(Config{}, nil)
	require.NoError(t, err)
	assert.Equal(t, defaultTimeout, r.cfg.Timeout)
	assert.Nil(t, r.limiter)

	r, err = New(Config{MaxParallel: 3, Timeout: time.Second}, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, cap(r.limiter))
}

func TestRenderAfterCloseFails(t *testing.T) {
	t.Parallel()

	r, err := New(Config{}, nil)
	require.NoError(t, err)
	r.Close()

	_, err = r.Render(context.Background(), hours.RenderRequest{URL: "https://example.com"})
	require.ErrorIs(t, err, hours.ErrRenderFailed)
	assert.Equal(t, hours.ClassRender, hours.Classify(err))
}

func TestRenderSlotWaitHonorsContext(t *testing.T) {
	t.Parallel()

	r, err := New(Config{MaxParallel: 1}, nil)
	require.NoError(t, err)
	r.limiter <- struct{}{}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = r.Render(ctx, hours.RenderRequest{URL: "https://example.com"})
	require.ErrorIs(t, err, hours.ErrRenderFailed)
	require.ErrorIs(t, err, context.Canceled)
}

func TestRenderSlotWaitTimesOut(t *testing.T) {
	t.Parallel()

	r, err := New(Config{MaxParallel: 1, Timeout: 50 * time.Millisecond}, nil)
	require.NoError(t, err)
	assert.Equal(t, 50*time.Millisecond, r.cfg.QueueTimeout)
	r.limiter <- struct{}{}

	done := make(chan error, 1)
	go func() {
		_, err := r.Render(context.Background(), hours.RenderRequest{URL: "https://example.com"})
		done <- err
	}()

	select {
	case err := <-done:
		require.ErrorIs(t, err, hours.ErrRenderTimeout)
		assert.Equal(t, hours.ClassRender, hours.Classify(err))
	case <-time.After(2 * time.Second):
		t.Fatal("render still queued for a slot after its queue timeout")
	}
}

func TestTextPresentFuncQuotes(t *testing.T) {
	t.Parallel()

	js, err := textPresentFunc(`Hours "pending" review`)
	require.NoError(t, err)
	assert.Equal(t, `() => !!document.body && document.body.innerText.includes("Hours \"pending\" review")`, js)
}
