package cli

import (
	"bytes"
	"context"
	"io"
	"net"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"headbench/internal/coordinator"
	"headbench/internal/dummy"
	"headbench/internal/runner"
	"headbench/internal/storage"
)

func localConfig(t *testing.T, addr net.Addr) runner.Config {
	t.Helper()
	tcp := addr.(*net.TCPAddr)
	cfg := runner.Default()
	cfg.Host = tcp.IP.String()
	cfg.Port = tcp.Port
	cfg.Mode = runner.ModeGoroutine
	cfg.Timeout = 5 * time.Second
	return cfg
}

func TestStartPrintsReportOnce(t *testing.T) {
	target := dummy.New(dummy.ServerConfig{})
	srv := httptest.NewServer(target)
	defer srv.Close()

	cfg := localConfig(t, srv.Listener.Addr())
	cfg.Workers = 1
	cfg.Requests = 10
	cfg.Concurrency = 5

	logger := log.New(io.Discard)
	var out bytes.Buffer
	rep, err := Start(context.Background(), cfg, Options{
		Spawner: &coordinator.LocalSpawner{Cfg: cfg, Logger: logger},
		Logger:  logger,
		Out:     &out,
	})
	require.NoError(t, err)

	assert.Equal(t, 1, strings.Count(out.String(), "HTTP requests in"))
	assert.Contains(t, out.String(), rep.String())
	assert.Contains(t, out.String(), "HEAD "+cfg.TargetURL())
	assert.EqualValues(t, 10, target.Hits())
	assert.True(t, rep.Elapsed > 0)
}

func TestStartRecordsHistory(t *testing.T) {
	srv := httptest.NewServer(dummy.New(dummy.ServerConfig{}))
	defer srv.Close()

	store, err := storage.Open(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = store.Close()
	})

	cfg := localConfig(t, srv.Listener.Addr())
	cfg.Workers = 2
	cfg.Requests = 20

	logger := log.New(io.Discard)
	rep, err := Start(context.Background(), cfg, Options{
		Spawner: &coordinator.LocalSpawner{Cfg: cfg, Logger: logger},
		Logger:  logger,
		Out:     io.Discard,
		History: store,
	})
	require.NoError(t, err)

	runs, err := store.List()
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, rep.ID, runs[0].ID)
	assert.Equal(t, 20, runs[0].Summary.Issued)
	assert.Equal(t, cfg, runs[0].Config)
}

func TestStartZeroWorkers(t *testing.T) {
	cfg := runner.Default()
	cfg.Workers = 0

	var out bytes.Buffer
	rep, err := Start(context.Background(), cfg, Options{
		Spawner: &coordinator.LocalSpawner{Cfg: cfg},
		Logger:  log.New(io.Discard),
		Out:     &out,
	})
	require.NoError(t, err)
	assert.True(t, rep.Skipped)
	assert.Contains(t, out.String(), "throughput undefined")
	assert.NotContains(t, out.String(), "rps")
}

func TestStartInvalidConfig(t *testing.T) {
	cfg := runner.Default()
	cfg.Path = "no-slash"

	var out bytes.Buffer
	_, err := Start(context.Background(), cfg, Options{
		Spawner: &coordinator.LocalSpawner{Cfg: cfg},
		Logger:  log.New(io.Discard),
		Out:     &out,
	})
	assert.ErrorIs(t, err, runner.ErrInvalidConfig)
	assert.NotContains(t, out.String(), "HTTP requests in")
}

func TestStartTUIInvalidConfigReturns(t *testing.T) {
	cfg := runner.Default()
	cfg.Workers = 2
	cfg.Concurrency = 0

	errc := make(chan error, 1)
	go func() {
		_, err := Start(context.Background(), cfg, Options{
			Spawner: &coordinator.LocalSpawner{Cfg: cfg},
			Logger:  log.New(io.Discard),
			Out:     io.Discard,
			TUI:     true,
		})
		errc <- err
	}()

	select {
	case err := <-errc:
		assert.ErrorIs(t, err, runner.ErrInvalidConfig)
	case <-time.After(3 * time.Second):
		t.Fatal("Start with an invalid config and the progress view did not return")
	}
}

func TestUnboundedRunIsRecorded(t *testing.T) {
	store, err := storage.Open(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = store.Close()
	})

	rep := coordinator.Report{ID: "fast-run", Requests: 4, Issued: 4, Workers: 1, Unbounded: true}
	_, err = store.Save(record(runner.Default(), rep))
	require.NoError(t, err)

	got, err := store.Get("fast-run")
	require.NoError(t, err)
	assert.True(t, got.Summary.Unbounded)
	assert.Zero(t, got.Summary.RPS)
}
