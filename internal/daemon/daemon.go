// Package daemon implements the daemon lifecycle manager.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"slices"
	"strconv"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"firestige.xyz/acpipe/internal/channel"
	"firestige.xyz/acpipe/internal/config"
	logpkg "firestige.xyz/acpipe/internal/log"
	"firestige.xyz/acpipe/internal/metrics"
	"firestige.xyz/acpipe/internal/protocol"
	"firestige.xyz/acpipe/internal/sink"
)

// Version is reported in the startup log line.
var Version = "0.1.0"

// Daemon manages the acpipe process lifecycle.
type Daemon struct {
	// Configuration
	config     *config.GlobalConfig
	configPath string
	pidFile    string

	// Core components
	sink          sink.Sink
	server        *channel.Server
	metricsServer *metrics.Server // nil if metrics disabled

	stopOnce sync.Once
}

// New creates a Daemon from the config file at configPath. An empty
// configPath uses built-in defaults; a non-empty pidFile overrides the
// configured one.
func New(configPath, pidFile string) (*Daemon, error) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if pidFile == "" {
		pidFile = cfg.PIDFile
	}

	return &Daemon{
		config:     cfg,
		configPath: configPath,
		pidFile:    pidFile,
	}, nil
}

func loadConfig(path string) (*config.GlobalConfig, error) {
	if path == "" {
		return config.Default()
	}
	return config.Load(path)
}

// Start initializes every component and opens the report channel socket.
// It does not accept peers until Run.
func (d *Daemon) Start() error {
	// 1. Initialize logging system
	if err := d.initLogging(); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}

	slog.Info("starting acpipe daemon",
		"version", Version,
		"config", d.configPath,
		"socket", d.config.Channel.Socket,
	)

	// 2. Write PID file
	if err := d.writePIDFile(); err != nil {
		return fmt.Errorf("failed to write PID file: %w", err)
	}

	// 3. Start metrics server
	if err := d.startMetrics(); err != nil {
		return fmt.Errorf("failed to start metrics server: %w", err)
	}

	// 4. Build sinks
	s, err := buildSink(d.config.Sinks)
	if err != nil {
		return fmt.Errorf("failed to build sinks: %w", err)
	}
	d.sink = s

	// 5. Open the report channel
	order, err := protocol.ParseByteOrder(d.config.Protocol.ByteOrder)
	if err != nil {
		return err
	}
	d.server = channel.NewServer(channel.OptionsFromConfig(d.config.Channel, order), d.sink)
	if err := d.server.Listen(); err != nil {
		return err
	}

	slog.Info("daemon started successfully")
	return nil
}

func buildSink(cfg config.SinksConfig) (sink.Sink, error) {
	sinks := sink.Multi{sink.NewLogSink(nil)}
	if cfg.Kafka.Enabled {
		k, err := sink.NewKafkaSink(cfg.Kafka)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, k)
	}
	return sinks, nil
}

// Run serves the report channel until ctx is cancelled or SIGTERM/SIGINT
// arrives, then stops the daemon. SIGHUP reloads the configuration.
func (d *Daemon) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT, syscall.SIGHUP)
	defer signal.Stop(sigChan)

	slog.Info("daemon running, waiting for peers")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return d.server.Start(gctx)
	})
	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case sig := <-sigChan:
				if sig == syscall.SIGHUP {
					slog.Info("received reload signal")
					if err := d.Reload(); err != nil {
						slog.Error("failed to reload config", "error", err)
					}
					continue
				}
				slog.Info("received shutdown signal", "signal", sig)
				cancel()
				return nil
			}
		}
	})

	err := g.Wait()
	d.Stop()
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// Stop performs graceful shutdown of all daemon components. It is safe to
// call more than once.
func (d *Daemon) Stop() {
	d.stopOnce.Do(d.stop)
}

func (d *Daemon) stop() {
	slog.Info("initiating graceful shutdown")

	// 1. Stop accepting peers and end sessions
	if d.server != nil {
		d.server.Stop()
	}

	// 2. Flush sinks
	if d.sink != nil {
		if err := d.sink.Close(); err != nil {
			slog.Error("error closing sinks", "error", err)
		}
	}

	// 3. Stop metrics server
	if d.metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := d.metricsServer.Stop(shutdownCtx); err != nil {
			slog.Error("error stopping metrics server", "error", err)
		}
	}

	// 4. Remove PID file
	if err := d.removePIDFile(); err != nil {
		slog.Error("error removing PID file", "error", err)
	}

	slog.Info("daemon stopped gracefully")

	// 5. Flush logs
	logpkg.Flush()
}

// Reload re-reads the config file. Only the log section is applied live;
// changes elsewhere are reported as requiring a restart.
func (d *Daemon) Reload() error {
	slog.Info("reloading configuration", "path", d.configPath)

	newConfig, err := loadConfig(d.configPath)
	if err != nil {
		return fmt.Errorf("failed to load new config: %w", err)
	}

	old := d.config
	d.config = newConfig

	var hotReloaded []string
	if err := d.initLogging(); err != nil {
		d.config = old
		return fmt.Errorf("failed to reinitialize logging: %w", err)
	}
	if newConfig.Log != old.Log {
		hotReloaded = append(hotReloaded, "log")
	}

	var requiresRestart []string
	if newConfig.Channel != old.Channel {
		requiresRestart = append(requiresRestart, "channel")
	}
	if newConfig.Protocol != old.Protocol {
		requiresRestart = append(requiresRestart, "protocol")
	}
	if newConfig.Metrics != old.Metrics {
		requiresRestart = append(requiresRestart, "metrics")
	}
	if !kafkaEqual(newConfig.Sinks.Kafka, old.Sinks.Kafka) {
		requiresRestart = append(requiresRestart, "sinks.kafka")
	}

	slog.Info("configuration reloaded",
		"hot_reloaded", hotReloaded,
		"requires_restart", requiresRestart,
	)
	return nil
}

func kafkaEqual(a, b config.KafkaSinkConfig) bool {
	if !slices.Equal(a.Brokers, b.Brokers) {
		return false
	}
	a.Brokers, b.Brokers = nil, nil
	return a == b
}

// initLogging initializes the logging system from config.
func (d *Daemon) initLogging() error {
	if err := logpkg.Init(d.config.Log); err != nil {
		return err
	}

	slog.Debug("logging initialized",
		"level", d.config.Log.Level,
		"format", d.config.Log.Format,
	)
	return nil
}

// startMetrics starts the metrics HTTP server if enabled.
func (d *Daemon) startMetrics() error {
	if !d.config.Metrics.Enabled {
		slog.Info("metrics server disabled")
		return nil
	}

	d.metricsServer = metrics.NewServer(d.config.Metrics.Listen, d.config.Metrics.Path)
	return d.metricsServer.Start(context.Background())
}

// writePIDFile writes the current process ID to the PID file.
func (d *Daemon) writePIDFile() error {
	if d.pidFile == "" {
		return nil
	}

	pid := os.Getpid()
	data := []byte(strconv.Itoa(pid) + "\n")

	if err := os.WriteFile(d.pidFile, data, 0644); err != nil {
		return fmt.Errorf("failed to write PID file %s: %w", d.pidFile, err)
	}

	slog.Debug("PID file written", "path", d.pidFile, "pid", pid)
	return nil
}

// removePIDFile removes the PID file.
func (d *Daemon) removePIDFile() error {
	if d.pidFile == "" {
		return nil
	}

	if err := os.Remove(d.pidFile); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove PID file %s: %w", d.pidFile, err)
	}

	slog.Debug("PID file removed", "path", d.pidFile)
	return nil
}
