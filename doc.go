/*
Package videorender renders decoded video frames with an OpenGL shader
pipeline, with a telemetry HUD on top and an optional head-mounted display
pass. It uses a dedicated Renderer type per output surface, so several
renderers can live in one process.

# Overview

A Renderer pulls frames from a Decoder through an output queue, picks the
newest one, and draws it letterboxed into the render area. When the render
loop falls behind, older frames are released back to the decoder without
being shown. The GPU side is behind the Backend interface; package
backend/opengl implements it.

# Quick Start

	renderer := videorender.New(opengl.NewBackend(),
	    videorender.WithSettings(calibration),
	    videorender.WithSession(session.New()),
	)
	defer renderer.Close(ctx)

	renderer.Configure(ctx, videorender.Viewport{Window: size})
	renderer.AttachDecoder(ctx, decoder)

	var lastRender time.Time
	for !window.ShouldClose() {
	    renderer.Render(ctx, lastRender)
	    lastRender = time.Now()
	    window.SwapBuffers()
	}

# Render Modes

Plain: the frame is fitted into the render area, keeping its sample aspect
ratio.

Head tracking: the frame is panned by the difference between the viewer's
head orientation and its reference, so the picture stays fixed in space.

Distortion: the scene is drawn into an offscreen target and then warped once
per eye with a barrel distortion computed from the display and HMD
calibration. Configure returns ErrDistortionDisabled and falls back to the
plain mode when the pass cannot be set up.

# Keyboard Shortcuts Reference

The example player binds:

	Arrows   turn the head by two degrees
	R        recalibrate the head reference
	D        toggle the distortion pass
	H        toggle head tracking
	Escape   quit
*/
package videorender
