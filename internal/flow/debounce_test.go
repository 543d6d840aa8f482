package flow

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDebouncerSingleRunPerKey(t *testing.T) {
	d := NewDebouncer()
	defer d.Stop()

	var runs atomic.Int32
	fn := func() { runs.Add(1) }

	assert.True(t, d.Schedule("k", time.Hour, fn))
	assert.False(t, d.Schedule("k", time.Hour, fn), "second schedule for a pending key is a no-op")
	assert.True(t, d.Pending("k"))

	require.True(t, d.Flush("k"))
	assert.Equal(t, int32(1), runs.Load())
	assert.False(t, d.Pending("k"))
	assert.False(t, d.Flush("k"), "flushed key has no pending work")
	assert.Equal(t, int32(1), runs.Load())
}

func TestDebouncerTimerFires(t *testing.T) {
	d := NewDebouncer()
	defer d.Stop()

	done := make(chan struct{})
	require.True(t, d.Schedule("k", time.Millisecond, func() { close(done) }))
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("debounced function never fired")
	}
	assert.False(t, d.Pending("k"))
}

func TestDebouncerCancel(t *testing.T) {
	d := NewDebouncer()
	defer d.Stop()

	var runs atomic.Int32
	require.True(t, d.Schedule("a/1", time.Hour, func() { runs.Add(1) }))
	require.True(t, d.Schedule("a/2", time.Hour, func() { runs.Add(1) }))
	require.True(t, d.Schedule("b/1", time.Hour, func() { runs.Add(1) }))

	assert.True(t, d.Cancel("a/1"))
	assert.False(t, d.Cancel("a/1"))
	assert.Equal(t, 1, d.CancelPrefix("a/"))
	assert.True(t, d.Pending("b/1"))
	assert.Equal(t, int32(0), runs.Load())
}

func TestDebouncerStop(t *testing.T) {
	d := NewDebouncer()
	var runs atomic.Int32
	require.True(t, d.Schedule("k", time.Hour, func() { runs.Add(1) }))
	d.Stop()
	assert.False(t, d.Schedule("k2", time.Hour, func() { runs.Add(1) }), "stopped debouncer accepts no work")
	assert.False(t, d.Flush("k"))
	assert.Equal(t, int32(0), runs.Load())
}
