package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/cepro/solarmonitor/api"
	"github.com/cepro/solarmonitor/collector"
	"github.com/cepro/solarmonitor/config"
	dataplatform "github.com/cepro/solarmonitor/data_platform"
	"github.com/cepro/solarmonitor/ksem"
	"github.com/cepro/solarmonitor/metrics"
	"github.com/cepro/solarmonitor/modbus"
	"github.com/cepro/solarmonitor/omie"
	"github.com/cepro/solarmonitor/piko15"
	"github.com/cepro/solarmonitor/pikoci"
	"github.com/cepro/solarmonitor/rates"
	"github.com/cepro/solarmonitor/report"
	"github.com/cepro/solarmonitor/repository"
	"github.com/cepro/solarmonitor/supabase"
)

func main() {

	configPath := flag.String("config", "config.yaml", "path to the YAML config file")
	flag.Parse()

	cfg, err := config.Read(*configPath)
	if err != nil {
		slog.Error("Failed to read config", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	slog.Info("Starting solar monitor...", "config", *configPath)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = run(ctx, cfg, config.ReadSecrets())
	if err != nil {
		slog.Error("Exiting with error", "error", err)
		os.Exit(1)
	}

	slog.Info("Exiting")
}

func run(ctx context.Context, cfg config.Config, secrets config.Secrets) error {

	metrics.Init()

	repo, err := repository.New(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("open repository: %w", err)
	}
	defer repo.Close()

	var readers []collector.Reader
	devices := cfg.Devices
	if devices.Piko15.Host != "" {
		readers = append(readers, piko15.New("http://"+devices.Piko15.Host, cfg.DeviceTimeout()))
	}
	if devices.PikoCI50.Host != "" {
		client := modbus.NewClient(hostPort(devices.PikoCI50.Host, devices.PikoCI50.Port), devices.PikoCI50.UnitID, cfg.DeviceTimeout())
		defer client.Close()
		readers = append(readers, pikoci.New(client))
	}
	if devices.Ksem.Host != "" {
		meter := ksem.New(hostPort(devices.Ksem.Host, devices.Ksem.Port), devices.Ksem.UnitID, devices.Ksem.BaseAddr, cfg.DeviceTimeout())
		defer meter.Close()
		readers = append(readers, meter)
	}

	coll := collector.New(repo, cfg.DeviceTimeout(), readers...)
	prices := omie.New(cfg.Omie.URLTemplate, cfg.DeviceTimeout(), repo)

	tasks := []func(context.Context){
		func(ctx context.Context) { coll.Run(ctx, cfg.PollInterval()) },
		func(ctx context.Context) { prices.Run(ctx, cfg.OmieFetchInterval()) },
	}

	if cfg.DataPlatform.Supabase.Url != "" && secrets.SupabaseKey != "" {
		client, err := supabase.New(cfg.DataPlatform.Supabase.Url, secrets.SupabaseKey, secrets.SupabaseUserKey, cfg.DataPlatform.Supabase.Schema)
		if err != nil {
			return fmt.Errorf("create supabase client: %w", err)
		}
		platform := dataplatform.New(repo, client)
		tasks = append(tasks, func(ctx context.Context) { platform.Run(ctx, cfg.UploadInterval()) })
	} else {
		slog.Info("Supabase not configured, points are only kept locally")
	}

	ratesStore := rates.NewStore(cfg.RatesPath)
	reporter := report.New(repo, ratesStore, repo, report.Settings{
		Dir:               cfg.Reports.Dir,
		RatedPowerW:       cfg.Reports.RatedPowerW,
		CO2FactorKgPerKWh: cfg.Reports.CO2FactorKgPerKWh,
	})
	if cfg.Reports.Dir != "" {
		tasks = append(tasks, func(ctx context.Context) { reporter.Run(ctx, cfg.ReportInterval()) })
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	api.Register(mux, reporter, repo, ratesStore)
	server := &http.Server{
		Addr:              cfg.MetricsListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	wait := background(ctx, tasks...)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.ListenAndServe()
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case err := <-serverErr:
		if !errors.Is(err, http.ErrServerClosed) {
			runErr = fmt.Errorf("http server: %w", err)
		}
	}
	cancel()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), time.Second)
	defer cancelShutdown()
	shutdownErr := server.Shutdown(shutdownCtx)

	// the deferred closes must not run while a component may still be writing
	wait()
	slog.Info("All components stopped")

	return errors.Join(runErr, shutdownErr)
}

// background runs each task in its own goroutine. The returned function blocks until every task has returned.
func background(ctx context.Context, tasks ...func(context.Context)) (wait func()) {
	var wg sync.WaitGroup
	for _, task := range tasks {
		task := task
		wg.Add(1)
		go func() {
			defer wg.Done()
			task(ctx)
		}()
	}
	return wg.Wait
}

func hostPort(host string, port int) string {
	return net.JoinHostPort(host, strconv.Itoa(port))
}
