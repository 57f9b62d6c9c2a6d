// Example plays the synthetic test pattern in a window, with the telemetry
// HUD and optional HMD distortion and head tracking.
//
// Prerequisites:
//
//	Install devbox: https://www.jetify.com/devbox
//	devbox shell              # enter the dev environment (provides Go + OpenGL/X11 headers)
//	go run ./example/ play    # run this example
//
// Keys: arrows turn the head, R recalibrates, D toggles the distortion,
// H toggles head tracking, Escape quits.
package main

import (
	"context"
	"fmt"
	"os"
	"runtime"

	"github.com/facebookincubator/go-belt"
	"github.com/facebookincubator/go-belt/tool/logger"
	xlogrus "github.com/facebookincubator/go-belt/tool/logger/implementation/logrus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func init() {
	// GLFW must run on the main thread.
	runtime.LockOSThread()
}

var (
	Root = &cobra.Command{
		Use: "example",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			ctx := cmd.Context()
			l := logger.FromCtx(ctx).WithLevel(LoggerLevel)
			logrus.SetLevel(xlogrus.LevelToLogrus(LoggerLevel))
			ctx = logger.CtxWithLogger(ctx, l)
			cmd.SetContext(ctx)
			logger.Debugf(ctx, "log-level: %v", LoggerLevel)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			logger.Debug(cmd.Context(), "end")
		},
	}

	Play = &cobra.Command{
		Use:   "play",
		Short: "play the test pattern",
		Args:  cobra.ExactArgs(0),
		RunE:  play,
	}

	LoggerLevel = logger.LevelWarning
)

func init() {
	Root.PersistentFlags().Var(&LoggerLevel, "log-level", "")

	flags := Play.Flags()
	flags.Int("width", 1280, "window width")
	flags.Int("height", 720, "window height")
	flags.Float64("fps", 30, "frame rate of the test pattern")
	flags.String("format", "yuv420p", "pixel format of the test pattern: yuv420p or yuv420sp")
	flags.Bool("distortion", false, "enable the HMD distortion correction")
	flags.Bool("head-tracking", false, "enable head tracking (arrow keys)")
	flags.String("settings", "", "path to the display/HMD calibration YAML file")
	flags.Bool("repeat-last-frame", true, "draw the last frame again when no new one is available")

	Root.AddCommand(Play)
}

func main() {
	ll := xlogrus.DefaultLogrusLogger()
	l := xlogrus.New(ll).WithLevel(logger.LevelTrace)
	ctx := logger.CtxWithLogger(context.Background(), l)
	defer belt.Flush(ctx)

	if err := Root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		belt.Flush(ctx)
		os.Exit(1)
	}
}
