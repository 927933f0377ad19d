package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/visiona/studio-capture/internal/capture"
)

func newDevicesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List available capture devices",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
			defer cancel()

			devices := capture.NewManager(newBackend())
			list := devices.ListDevices(ctx)
			if len(list) == 0 {
				fmt.Println("no capture devices found")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "KIND\tID\tLABEL")
			for _, d := range list {
				fmt.Fprintf(w, "%s\t%s\t%s\n", d.Kind, d.ID, d.Label)
			}
			return w.Flush()
		},
	}
}
