package main

import (
	"context"
	"fmt"
	"os/exec"
	"time"

	"github.com/spf13/cobra"

	"github.com/visiona/studio-capture/internal/capture"
	"github.com/visiona/studio-capture/internal/types"
)

func newDoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check capture prerequisites",
		RunE: func(cmd *cobra.Command, args []string) error {
			ok := true

			if _, err := exec.LookPath("gst-launch-1.0"); err != nil {
				printCheck("GStreamer", false, "gst-launch-1.0 not found on PATH")
				ok = false
			} else {
				printCheck("GStreamer", true, "installed")
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
			defer cancel()

			devices := capture.NewManager(newBackend())
			list := devices.ListDevices(ctx)

			video, audio := 0, 0
			for _, d := range list {
				switch d.Kind {
				case types.DeviceVideo:
					video++
				case types.DeviceAudio:
					audio++
				}
			}

			if video > 0 {
				printCheck("Camera", true, fmt.Sprintf("%d device(s)", video))
			} else {
				printCheck("Camera", false, "no video source found")
				ok = false
			}
			if audio > 0 {
				printCheck("Microphone", true, fmt.Sprintf("%d device(s)", audio))
			} else {
				printCheck("Microphone", false, "no audio source found")
				ok = false
			}

			cfg, err := loadConfig()
			if err != nil {
				printCheck("Configuration", false, err.Error())
				ok = false
			} else {
				printCheck("Configuration", true, "valid")
				if cfg.Upload.BaseURL != "" {
					printCheck("Upload collaborator", true, cfg.Upload.BaseURL)
				} else {
					printCheck("Upload collaborator", false, "STUDIO_UPLOAD_URL not set; clips stay local")
				}
			}

			if ok {
				fmt.Println("\nAll prerequisites met. Ready to record.")
			} else {
				fmt.Println("\nSome prerequisites are missing.")
			}
			return nil
		},
	}
}

func printCheck(name string, ok bool, detail string) {
	mark := "✓"
	if !ok {
		mark = "✗"
	}
	fmt.Printf("%s %-20s %s\n", mark, name, detail)
}
