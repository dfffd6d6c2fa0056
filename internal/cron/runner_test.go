package cronrunner

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddRejectsBadSpec(t *testing.T) {
	r := New(nil, context.Background())
	_, err := r.Add("pipeline", "not a spec", func(context.Context) {})
	assert.Error(t, err)
}

func TestJobRunsAndRecoversFromPanic(t *testing.T) {
	r := New(nil, context.Background())
	var fired atomic.Int32
	_, err := r.Add("pipeline", "* * * * * *", func(context.Context) {
		fired.Add(1)
		panic("job failed")
	})
	require.NoError(t, err)

	r.Start()
	defer r.Stop()
	require.Eventually(t, func() bool { return fired.Load() >= 1 }, 3*time.Second, 20*time.Millisecond)
}

func TestSkipsAfterBaseContextDone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := New(nil, ctx)
	var fired atomic.Int32
	_, err := r.Add("pipeline", "* * * * * *", func(context.Context) { fired.Add(1) })
	require.NoError(t, err)

	r.Start()
	time.Sleep(1200 * time.Millisecond)
	r.Stop()
	assert.Zero(t, fired.Load())
}

func TestNextAfterStart(t *testing.T) {
	r := New(nil, context.Background())
	id, err := r.Add("pipeline", "0 0 17 * * 1-5", func(context.Context) {})
	require.NoError(t, err)
	r.Start()
	defer r.Stop()

	next := r.Next(id)
	require.False(t, next.IsZero())
	assert.Equal(t, 17, next.UTC().Hour())
	assert.NotEqual(t, time.Saturday, next.UTC().Weekday())
	assert.NotEqual(t, time.Sunday, next.UTC().Weekday())
}
