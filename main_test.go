package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cepro/solarmonitor/config"
	"github.com/cepro/solarmonitor/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackgroundWaitsForTasks(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	var finished atomic.Int32
	task := func(ctx context.Context) {
		<-ctx.Done()
		// still busy for a while after the cancellation
		time.Sleep(50 * time.Millisecond)
		finished.Add(1)
	}

	wait := background(ctx, task, task, task)
	cancel()
	wait()

	assert.Equal(t, int32(3), finished.Load())
}

func TestRunStopsCleanly(t *testing.T) {
	dir := t.TempDir()

	prices := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer prices.Close()

	cfg := config.Config{
		DatabasePath:      filepath.Join(dir, "solar.sqlite"),
		RatesPath:         filepath.Join(dir, "pricing.json"),
		MetricsListenAddr: "127.0.0.1:0",
		Devices: config.DevicesConfig{
			// nothing listens on port 1, so every poll fails fast
			Piko15: config.Piko15Config{Host: "127.0.0.1:1"},
		},
		Omie:    config.OmieConfig{URLTemplate: prices.URL + "/YYYYMMDD"},
		Reports: config.ReportsConfig{Dir: filepath.Join(dir, "reports")},
	}
	cfg.Normalize()
	require.NoError(t, cfg.Validate())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	err := run(ctx, cfg, config.Secrets{})
	require.NoError(t, err)

	// the reporter had finished its first render before run returned
	_, err = os.Stat(filepath.Join(dir, "reports", "economics.json"))
	assert.NoError(t, err)

	repo, err := repository.New(cfg.DatabasePath)
	require.NoError(t, err)
	assert.NoError(t, repo.Close())
}
