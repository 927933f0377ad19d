package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/visiona/studio-capture/internal/version"
)

var (
	flagConfig string
	flagDebug  bool
	flagMock   bool
)

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "studiod",
		Short: "Video self-recording studio with capture quality gating",
		Long: "studiod runs the capture pipeline for browser-based video self-recording:\n" +
			"it scores camera, lighting, audio and positioning quality, gates recording\n" +
			"on a composite readiness score, records chunked clips and hands them to\n" +
			"the upload collaborator.",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			setupLogging(flagDebug)
		},
	}

	rootCmd.Version = version.Version
	rootCmd.SetVersionTemplate(version.Full() + "\n")

	rootCmd.PersistentFlags().StringVarP(&flagConfig, "config", "c", "config/studio.yaml", "path to configuration file")
	rootCmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&flagMock, "mock", false, "use the synthetic capture backend (no hardware)")

	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newDevicesCmd())
	rootCmd.AddCommand(newDoctorCmd())
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(version.Full())
		},
	})

	return rootCmd
}

func setupLogging(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)
}
