package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/MimeLyc/srs-generator/internal/config"
	"github.com/MimeLyc/srs-generator/internal/jobs"
	"github.com/MimeLyc/srs-generator/internal/persistence"
	"github.com/MimeLyc/srs-generator/pkg/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeScheduler struct {
	started bool
	stopped bool
	err     error
}

func (f *fakeScheduler) Start(context.Context) error {
	f.started = true
	return f.err
}

func (f *fakeScheduler) Stop() {
	f.stopped = true
}

type fakeHTTP struct {
	listenCalled chan struct{}
	shutdownOnce sync.Once
	shutdownCh   chan struct{}
}

func newFakeHTTP() *fakeHTTP {
	return &fakeHTTP{
		listenCalled: make(chan struct{}),
		shutdownCh:   make(chan struct{}),
	}
}

func (f *fakeHTTP) ListenAndServe(string) error {
	close(f.listenCalled)
	<-f.shutdownCh
	return http.ErrServerClosed
}

func (f *fakeHTTP) Shutdown(context.Context) error {
	f.shutdownOnce.Do(func() { close(f.shutdownCh) })
	return nil
}

func TestRunWithComponents_StartsJanitorAndHTTP(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sweeper := &fakeScheduler{}
	httpSrv := newFakeHTTP()

	doneCh := make(chan error, 1)
	go func() {
		doneCh <- runWithComponents(ctx, "127.0.0.1:0", sweeper, httpSrv)
	}()

	select {
	case <-httpSrv.listenCalled:
	case <-time.After(2 * time.Second):
		t.Fatal("http server did not start")
	}

	cancel()

	select {
	case err := <-doneCh:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("runWithComponents did not exit after cancellation")
	}

	assert.True(t, sweeper.started)
	assert.True(t, sweeper.stopped)
}

func TestRunWithComponents_WithoutJanitor(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	httpSrv := newFakeHTTP()

	doneCh := make(chan error, 1)
	go func() {
		doneCh <- runWithComponents(ctx, "127.0.0.1:0", nil, httpSrv)
	}()
	<-httpSrv.listenCalled
	cancel()

	select {
	case err := <-doneCh:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("runWithComponents did not exit after cancellation")
	}
}

func TestRunWithComponents_JanitorStartFailure(t *testing.T) {
	sweeper := &fakeScheduler{err: errors.New("bad schedule")}

	err := runWithComponents(context.Background(), "127.0.0.1:0", sweeper, newFakeHTTP())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad schedule")
	assert.False(t, sweeper.stopped)
}

func TestOpenStore(t *testing.T) {
	ctx := context.Background()

	t.Run("none", func(t *testing.T) {
		store, closeFn, err := openStore(ctx, config.DatabaseConfig{Driver: config.DriverNone})
		require.NoError(t, err)
		defer closeFn()
		assert.IsType(t, &jobs.MemoryStore{}, store)
	})

	t.Run("sqlite", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "db", "srs.db")
		store, closeFn, err := openStore(ctx, config.DatabaseConfig{Driver: config.DriverSQLite, Path: path})
		require.NoError(t, err)
		defer closeFn()
		assert.IsType(t, &persistence.SQLiteStore{}, store)
	})

	t.Run("unknown", func(t *testing.T) {
		_, _, err := openStore(ctx, config.DatabaseConfig{Driver: "mongo"})
		assert.Error(t, err)
	})
}

func TestNewGenerator(t *testing.T) {
	gen, err := newGenerator(config.LLMConfig{})
	require.NoError(t, err)
	assert.Nil(t, gen)

	gen, err = newGenerator(config.LLMConfig{
		APIKey:      "key",
		APIURL:      "https://example.invalid/v1",
		Model:       "gpt-4o-mini",
		MaxTokens:   100,
		Temperature: 0.8,
		Timeout:     10,
	})
	require.NoError(t, err)
	assert.NotNil(t, gen)

	_, err = newGenerator(config.LLMConfig{APIKey: "key"})
	assert.Error(t, err)
}

func TestInitLogging_WritesToLogFile(t *testing.T) {
	prev := log.GetLogger()
	t.Cleanup(func() { log.SetLogger(prev) })

	path := filepath.Join(t.TempDir(), "logs", "srs.log")
	closeLog, err := initLogging(&config.Config{LogLevel: "info", LogFile: path})
	require.NoError(t, err)

	log.Info("service started on %s", ":8000")
	log.Debug("not at this level")
	closeLog()

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), "service started on :8000")
	assert.NotContains(t, string(content), "not at this level")
}

func TestInitLogging_Stdout(t *testing.T) {
	prev := log.GetLogger()
	t.Cleanup(func() { log.SetLogger(prev) })

	closeLog, err := initLogging(&config.Config{LogLevel: "warn"})
	require.NoError(t, err)
	defer closeLog()
	assert.Equal(t, log.LevelWarn, log.GetLogger().Level())
}
