package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/go-gl/gl/v4.1-core/gl"
	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/spf13/cobra"

	"github.com/go-theft-auto/videorender"
	"github.com/go-theft-auto/videorender/backend/opengl"
	"github.com/go-theft-auto/videorender/session"
	"github.com/go-theft-auto/videorender/settings"
	"github.com/go-theft-auto/videorender/synthetic"
)

const windowTitle = "videorender example"

type playFlags struct {
	width, height   int
	fps             float64
	format          string
	distortion      bool
	headTracking    bool
	settingsPath    string
	repeatLastFrame bool
}

func readPlayFlags(cmd *cobra.Command) (playFlags, error) {
	var (
		f    playFlags
		errs []error
		err  error
	)
	flags := cmd.Flags()
	f.width, err = flags.GetInt("width")
	errs = append(errs, err)
	f.height, err = flags.GetInt("height")
	errs = append(errs, err)
	f.fps, err = flags.GetFloat64("fps")
	errs = append(errs, err)
	f.format, err = flags.GetString("format")
	errs = append(errs, err)
	f.distortion, err = flags.GetBool("distortion")
	errs = append(errs, err)
	f.headTracking, err = flags.GetBool("head-tracking")
	errs = append(errs, err)
	f.settingsPath, err = flags.GetString("settings")
	errs = append(errs, err)
	f.repeatLastFrame, err = flags.GetBool("repeat-last-frame")
	errs = append(errs, err)
	return f, errors.Join(errs...)
}

func play(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	flags, err := readPlayFlags(cmd)
	if err != nil {
		return fmt.Errorf("unable to read the flags: %w", err)
	}

	cfg := synthetic.DefaultConfig()
	cfg.FPS = flags.fps
	if cfg.Format, err = videorender.ParsePixelFormat(flags.format); err != nil {
		return err
	}
	decoder, err := synthetic.New(cfg)
	if err != nil {
		return err
	}
	// registered first so it runs after the renderer has handed its queue back
	defer func() {
		if err := decoder.Close(ctx); err != nil {
			logger.Errorf(ctx, "unable to close the decoder: %v", err)
		}
	}()

	sess := session.New()
	opts := []videorender.Option{
		videorender.WithSession(sess),
		videorender.WithRepeatLastFrame(flags.repeatLastFrame),
	}
	if flags.settingsPath != "" {
		s, err := settings.Load(flags.settingsPath)
		if err != nil {
			return err
		}
		opts = append(opts, videorender.WithSettings(s))
	}

	if err := glfw.Init(); err != nil {
		return fmt.Errorf("glfw init: %w", err)
	}
	defer glfw.Terminate()

	glfw.WindowHint(glfw.ContextVersionMajor, 4)
	glfw.WindowHint(glfw.ContextVersionMinor, 1)
	glfw.WindowHint(glfw.OpenGLProfile, glfw.OpenGLCoreProfile)
	glfw.WindowHint(glfw.OpenGLForwardCompatible, glfw.True)

	window, err := glfw.CreateWindow(flags.width, flags.height, windowTitle, nil, nil)
	if err != nil {
		return fmt.Errorf("create window: %w", err)
	}
	window.MakeContextCurrent()
	glfw.SwapInterval(1) // vsync

	if err := gl.Init(); err != nil {
		return fmt.Errorf("gl init: %w", err)
	}
	logger.Infof(ctx, "OpenGL %s", opengl.Version())

	renderer := videorender.New(opengl.NewBackend(), opts...)
	defer func() {
		if err := renderer.Close(ctx); err != nil {
			logger.Errorf(ctx, "unable to close the renderer: %v", err)
		}
	}()

	if err := renderer.AttachDecoder(ctx, decoder); err != nil {
		return err
	}
	if err := decoder.Start(ctx); err != nil {
		return err
	}

	p := &player{
		ctx:      ctx,
		renderer: renderer,
		viewport: videorender.Viewport{
			DistortionCorrection: flags.distortion,
			HeadTracking:         flags.headTracking,
		},
		dirty: true,
	}

	adapter := opengl.NewGLFWHeadAdapter(window, sess)
	adapter.OnToggleDistortion = func() {
		p.viewport.DistortionCorrection = !p.viewport.DistortionCorrection
		p.dirty = true
	}
	adapter.OnToggleHeadTracking = func() {
		p.viewport.HeadTracking = !p.viewport.HeadTracking
		p.dirty = true
	}
	window.SetFramebufferSizeCallback(func(w *glfw.Window, width, height int) {
		p.dirty = true
	})

	return p.loop(window)
}

// player owns the render loop state. It is only touched from the main
// thread: GLFW runs the callbacks from PollEvents.
type player struct {
	ctx      context.Context
	renderer *videorender.Renderer
	viewport videorender.Viewport
	dirty    bool
}

func (p *player) configure(window *glfw.Window) error {
	w, h := window.GetFramebufferSize()
	p.viewport.Window = videorender.Size{Width: w, Height: h}
	p.dirty = false

	err := p.renderer.Configure(p.ctx, p.viewport)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, videorender.ErrDistortionDisabled):
		logger.Warnf(p.ctx, "%v", err)
		p.viewport.DistortionCorrection = false
		return nil
	default:
		return fmt.Errorf("unable to configure the renderer: %w", err)
	}
}

func (p *player) loop(window *glfw.Window) error {
	var lastRender time.Time
	for !window.ShouldClose() {
		glfw.PollEvents()
		if p.dirty {
			if err := p.configure(window); err != nil {
				return err
			}
		}

		status, err := p.renderer.Render(p.ctx, lastRender)
		lastRender = time.Now()
		if err != nil {
			logger.Errorf(p.ctx, "render: %v", err)
		}
		if status == videorender.RenderStatusNothingRendered {
			gl.ClearColor(0, 0, 0, 1)
			gl.Clear(gl.COLOR_BUFFER_BIT)
		}

		window.SwapBuffers()
	}
	return nil
}
