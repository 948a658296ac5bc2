package main

import (
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/vango-dev/vdiff/pkg/protocol"
	"github.com/vango-dev/vdiff/pkg/server"
)

func watchCmd() *cobra.Command {
	var pretty bool

	cmd := &cobra.Command{
		Use:   "watch URL",
		Short: "Follow a served mount and print its HTML after every change",
		Long: `Connect to a mount's WebSocket endpoint, mirror the patch stream and
print the mirrored HTML after every frame.

Examples:
  vdiff watch ws://localhost:7070/mounts/todo/ws`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			w, err := server.Dial(ctx, args[0])
			if err != nil {
				return err
			}
			defer w.Close()

			out := cmd.OutOrStdout()
			err = w.Watch(ctx, func(f *protocol.Frame) error {
				if f.Type != protocol.FrameSync && f.Type != protocol.FramePatches {
					return nil
				}
				html, err := w.HTML(pretty)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "--- %s seq=%d\n%s\n", f.Type, w.Mirror().Seq(), html)
				return nil
			})
			if ctx.Err() != nil {
				return nil
			}
			return err
		},
	}

	cmd.Flags().BoolVarP(&pretty, "pretty", "p", false, "Pretty-print the HTML")

	return cmd
}
