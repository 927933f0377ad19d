package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/visiona/studio-capture/internal/capture"
	"github.com/visiona/studio-capture/internal/config"
	"github.com/visiona/studio-capture/internal/emitter"
	"github.com/visiona/studio-capture/internal/server"
	"github.com/visiona/studio-capture/internal/studio"
	"github.com/visiona/studio-capture/internal/upload"
)

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the studio capture service",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return runService(cfg)
		},
	}
}

// loadConfig loads the configured file, falling back to defaults plus
// environment overrides when the file is absent.
func loadConfig() (*config.Config, error) {
	path := flagConfig
	if _, err := os.Stat(path); os.IsNotExist(err) {
		slog.Info("config file not found, using defaults", "path", path)
		path = ""
	}
	return config.Load(path)
}

func newBackend() capture.Backend {
	if flagMock {
		slog.Info("using synthetic capture backend")
		return capture.NewMockBackend()
	}
	return capture.NewGstBackend()
}

func runService(cfg *config.Config) error {
	slog.Info("starting studio capture service",
		"instance_id", cfg.InstanceID,
		"spool_dir", cfg.SpoolDir,
		"ready_threshold", cfg.Quality.ReadyThreshold,
		"max_recording_s", cfg.Capture.MaxRecordingSeconds,
	)

	if err := os.MkdirAll(cfg.SpoolDir, 0o755); err != nil {
		return err
	}

	devices := capture.NewManager(newBackend())

	var uploader *upload.Client
	if cfg.Upload.BaseURL != "" {
		uploader = upload.NewClient(cfg.Upload.BaseURL, time.Duration(cfg.Upload.TimeoutS)*time.Second)
	}

	st := studio.New(cfg, devices, uploader)

	srv := server.New(cfg.Server.Addr)
	srv.AttachController(st)
	st.AddSnapshotSink(srv)

	var mq *emitter.MQTTEmitter
	if cfg.MQTT.Broker != "" {
		mq = emitter.NewMQTTEmitter(cfg)
		if err := mq.Connect(context.Background()); err != nil {
			// Telemetry is best-effort; the studio runs without it.
			slog.Warn("mqtt unavailable, continuing without telemetry", "error", err)
			mq = nil
		} else {
			st.AddSnapshotSink(mq)
			st.AddEventSink(mq)
		}
	}

	srv.Start()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	slog.Info("received shutdown signal", "signal", sig.String())

	// Reset tears the live session down before the outer surfaces go.
	st.Reset()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("server shutdown incomplete", "error", err)
	}
	if mq != nil {
		mq.Disconnect()
	}

	slog.Info("studio capture service stopped")
	return nil
}
