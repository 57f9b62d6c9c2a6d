// Command gen renders the test pattern in every render mode, captures
// framebuffer pixels, and saves JPEG screenshots to doc/imgs/.
//
// Usage:
//
//	devbox shell
//	go run ./doc/gen/
package main

import (
	"context"
	"fmt"
	"image/jpeg"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/facebookincubator/go-belt"
	"github.com/facebookincubator/go-belt/tool/logger"
	xlogrus "github.com/facebookincubator/go-belt/tool/logger/implementation/logrus"
	"github.com/go-gl/gl/v4.1-core/gl"
	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/hashicorp/go-multierror"

	"github.com/go-theft-auto/videorender"
	"github.com/go-theft-auto/videorender/backend/opengl"
	"github.com/go-theft-auto/videorender/session"
	"github.com/go-theft-auto/videorender/settings"
	"github.com/go-theft-auto/videorender/synthetic"
)

const (
	width  = 960
	height = 540
)

func init() {
	runtime.LockOSThread()
}

func main() {
	l := xlogrus.New(xlogrus.DefaultLogrusLogger()).WithLevel(logger.LevelInfo)
	ctx := logger.CtxWithLogger(context.Background(), l)
	defer belt.Flush(ctx)

	if err := run(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		belt.Flush(ctx)
		os.Exit(1)
	}
}

// screenshot defines a single render mode to capture.
type screenshot struct {
	name   string // filename without extension
	format videorender.PixelFormat
	vp     videorender.Viewport
	yaw    float32 // head rotation applied before rendering, radians
	frames int     // frames to produce before capturing (0 = 1)
}

func buildScreenshots() []screenshot {
	window := videorender.Size{Width: width, Height: height}
	return []screenshot{
		{
			name:   "planar",
			format: videorender.PixelFormatYUV420Planar,
			vp:     videorender.Viewport{Window: window},
		},
		{
			name:   "semi-planar",
			format: videorender.PixelFormatYUV420SemiPlanar,
			vp:     videorender.Viewport{Window: window},
			frames: 30,
		},
		{
			name:   "head-tracking",
			format: videorender.PixelFormatYUV420Planar,
			vp:     videorender.Viewport{Window: window, HeadTracking: true},
			yaw:    0.2,
		},
		{
			name:   "distortion",
			format: videorender.PixelFormatYUV420Planar,
			vp:     videorender.Viewport{Window: window, DistortionCorrection: true},
		},
	}
}

func run(ctx context.Context) error {
	if err := glfw.Init(); err != nil {
		return fmt.Errorf("glfw init: %w", err)
	}
	defer glfw.Terminate()

	glfw.WindowHint(glfw.ContextVersionMajor, 4)
	glfw.WindowHint(glfw.ContextVersionMinor, 1)
	glfw.WindowHint(glfw.OpenGLProfile, glfw.OpenGLCoreProfile)
	glfw.WindowHint(glfw.OpenGLForwardCompatible, glfw.True)
	glfw.WindowHint(glfw.Visible, glfw.False)

	window, err := glfw.CreateWindow(width, height, "screenshot-gen", nil, nil)
	if err != nil {
		return fmt.Errorf("create window: %w", err)
	}
	window.MakeContextCurrent()

	if err := gl.Init(); err != nil {
		return fmt.Errorf("gl init: %w", err)
	}

	calibration, err := settings.New(settings.Default())
	if err != nil {
		return err
	}

	outDir := filepath.Join("doc", "imgs")
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}

	var result *multierror.Error
	for _, shot := range buildScreenshots() {
		if err := capture(ctx, shot, calibration, outDir); err != nil {
			result = multierror.Append(result, fmt.Errorf("%s: %w", shot.name, err))
			continue
		}
		logger.Infof(ctx, "saved %s", shot.name)
	}
	return result.ErrorOrNil()
}

func capture(ctx context.Context, shot screenshot, calibration videorender.Settings, outDir string) (_err error) {
	cfg := synthetic.DefaultConfig()
	cfg.Format = shot.format
	decoder, err := synthetic.New(cfg)
	if err != nil {
		return err
	}
	defer decoder.Close(ctx)

	sess := session.New()
	sess.RotateHead(shot.yaw, 0)

	renderer := videorender.New(
		opengl.NewBackend(),
		videorender.WithSettings(calibration),
		videorender.WithSession(sess),
	)
	defer func() {
		if err := renderer.Close(ctx); err != nil && _err == nil {
			_err = err
		}
	}()

	if err := renderer.Configure(ctx, shot.vp); err != nil {
		return err
	}
	if err := renderer.AttachDecoder(ctx, decoder); err != nil {
		return err
	}

	frames := shot.frames
	if frames == 0 {
		frames = 1
	}
	for i := 0; i < frames; i++ {
		if err := decoder.Produce(ctx); err != nil {
			return err
		}
	}
	status, err := renderer.Render(ctx, time.Time{})
	if err != nil {
		return err
	}
	if status != videorender.RenderStatusRendered {
		return fmt.Errorf("nothing was rendered")
	}

	area, err := renderer.RenderArea()
	if err != nil {
		return err
	}
	img, err := opengl.Snapshot(area)
	if err != nil {
		return err
	}

	f, err := os.Create(filepath.Join(outDir, shot.name+".jpg"))
	if err != nil {
		return err
	}
	defer f.Close()
	return jpeg.Encode(f, img, &jpeg.Options{Quality: 90})
}
