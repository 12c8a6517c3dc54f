package server

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *recorder) add(s string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, s)
}

func (r *recorder) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func hook(rec *recorder, name string, startErr error) Hook {
	return Hook{
		ID: name,
		OnStart: func(context.Context) error {
			rec.add("start:" + name)
			return startErr
		},
		OnStop: func(context.Context) error {
			rec.add("stop:" + name)
			return nil
		},
	}
}

func TestManager_StartStopOrder(t *testing.T) {
	rec := &recorder{}
	m := NewManager(time.Second, hook(rec, "a", nil))
	m.AddServer(hook(rec, "b", nil))

	require.NoError(t, m.Start(context.Background()))
	require.Error(t, m.Start(context.Background()))
	require.NoError(t, m.Stop(context.Background()))
	require.NoError(t, m.Stop(context.Background()))

	assert.Equal(t, []string{"start:a", "start:b", "stop:b", "stop:a"}, rec.list())
}

func TestManager_StartFailureRollsBack(t *testing.T) {
	rec := &recorder{}
	boom := errors.New("bind failed")
	m := NewManager(time.Second, hook(rec, "a", nil), hook(rec, "b", boom), hook(rec, "c", nil))

	err := m.Start(context.Background())
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "b")
	assert.Equal(t, []string{"start:a", "start:b", "stop:a"}, rec.list())
}

func TestManager_StopAggregatesErrors(t *testing.T) {
	m := NewManager(time.Second,
		Hook{ID: "db", OnStop: func(context.Context) error { return errors.New("db close") }},
		Hook{ID: "http", OnStop: func(context.Context) error { return errors.New("http close") }},
	)
	require.NoError(t, m.Start(context.Background()))

	err := m.Stop(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db close")
	assert.Contains(t, err.Error(), "http close")
}

func TestManager_RunStopsOnCancel(t *testing.T) {
	rec := &recorder{}
	m := NewManager(time.Second, hook(rec, "a", nil))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	require.Eventually(t, func() bool { return len(rec.list()) == 1 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.Equal(t, []string{"start:a", "stop:a"}, rec.list())
}

func TestHook_NilFuncs(t *testing.T) {
	h := Hook{ID: "noop"}
	assert.Equal(t, "noop", h.Name())
	assert.NoError(t, h.Start(context.Background()))
	assert.NoError(t, h.Stop(context.Background()))
}
