package pool

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPool(t *testing.T) {
	p, err := NewPool("test", BackgroundPool, DefaultConfig())
	require.NoError(t, err)
	defer func() { _ = p.ReleaseTimeout(time.Second) }()

	assert.Equal(t, "test", p.Name())
	assert.Equal(t, BackgroundPool, p.Type())
	assert.Equal(t, 64, p.Stats().Capacity)

	_, err = NewPool("bad", BackgroundPool, &Config{Capacity: 0})
	assert.Error(t, err)
}

func TestPoolSubmit(t *testing.T) {
	p, err := NewPool("test", BackgroundPool, &Config{Capacity: 10, ExpiryDuration: time.Second})
	require.NoError(t, err)
	defer func() { _ = p.ReleaseTimeout(time.Second) }()

	var counter atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		err := p.Submit(func() {
			defer wg.Done()
			counter.Add(1)
		})
		if !assert.NoError(t, err) {
			wg.Done()
		}
	}
	wg.Wait()

	assert.EqualValues(t, 100, counter.Load())
	assert.Eventually(t, func() bool { return p.Stats().Completed == 100 }, time.Second, 5*time.Millisecond)
	assert.EqualValues(t, 100, p.Stats().Submitted)
}

func TestPoolOverload(t *testing.T) {
	p, err := NewPool("tiny", BackgroundPool, &Config{Capacity: 1, ExpiryDuration: time.Second, Nonblocking: true})
	require.NoError(t, err)
	defer func() { _ = p.ReleaseTimeout(time.Second) }()

	block := make(chan struct{})
	require.NoError(t, p.Submit(func() { <-block }))
	err = p.Submit(func() {})
	assert.ErrorIs(t, err, ErrPoolOverload)
	assert.EqualValues(t, 1, p.Stats().Rejected)
	close(block)
}

func TestPoolPanicRecovered(t *testing.T) {
	recovered := make(chan interface{}, 1)
	p, err := NewPool("panicky", BackgroundPool, &Config{
		Capacity:       1,
		ExpiryDuration: time.Second,
		PanicHandler:   func(r interface{}) { recovered <- r },
	})
	require.NoError(t, err)
	defer func() { _ = p.ReleaseTimeout(time.Second) }()

	require.NoError(t, p.Submit(func() { panic("boom") }))
	select {
	case r := <-recovered:
		assert.Equal(t, "boom", r)
	case <-time.After(time.Second):
		t.Fatal("panic handler not called")
	}
	assert.EqualValues(t, 1, p.Stats().Panics)
}

func TestPoolClosed(t *testing.T) {
	p, err := NewPool("closing", TranscriptPool, DefaultConfig())
	require.NoError(t, err)
	require.NoError(t, p.ReleaseTimeout(time.Second))
	require.NoError(t, p.ReleaseTimeout(time.Second))

	assert.ErrorIs(t, p.Submit(func() {}), ErrPoolClosed)
}

func TestManager(t *testing.T) {
	m := NewManager()
	bg, err := m.Register(BackgroundPool, DefaultConfig())
	require.NoError(t, err)
	_, err = m.Register(TranscriptPool, DefaultConfig())
	require.NoError(t, err)

	_, err = m.Register(BackgroundPool, DefaultConfig())
	assert.ErrorIs(t, err, ErrPoolAlreadyExists)

	got, err := m.Get(BackgroundPool)
	require.NoError(t, err)
	assert.Same(t, bg, got)

	stats := m.Stats()
	require.Len(t, stats, 2)
	assert.Equal(t, "background", stats[0].Name)
	assert.Equal(t, "transcript", stats[1].Name)

	require.NoError(t, m.ReleaseAllTimeout(time.Second))
	_, err = m.Get(BackgroundPool)
	assert.ErrorIs(t, err, ErrPoolClosed)
	assert.ErrorIs(t, bg.Submit(func() {}), ErrPoolClosed)
}
