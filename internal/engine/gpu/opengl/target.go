package opengl

import (
	"fmt"

	"github.com/go-gl/gl/v4.1-core/gl"
)

// renderTarget is an offscreen HDR color texture with a depth attachment.
type renderTarget struct {
	fbo          uint32
	colorTexture uint32
	depthRBO     uint32
	width        int32
	height       int32
}

func newRenderTarget(width, height int32) (*renderTarget, error) {
	if width < 1 {
		width = 1
	}
	if height < 1 {
		height = 1
	}

	rt := &renderTarget{width: width, height: height}
	if err := rt.create(); err != nil {
		return nil, fmt.Errorf("creating render target: %w", err)
	}
	return rt, nil
}

func (rt *renderTarget) create() error {
	gl.GenFramebuffers(1, &rt.fbo)
	gl.BindFramebuffer(gl.FRAMEBUFFER, rt.fbo)

	gl.GenTextures(1, &rt.colorTexture)
	gl.BindTexture(gl.TEXTURE_2D, rt.colorTexture)
	gl.TexImage2D(gl.TEXTURE_2D, 0, gl.RGBA16F, rt.width, rt.height, 0, gl.RGBA, gl.FLOAT, nil)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, gl.LINEAR)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, gl.LINEAR)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_S, gl.CLAMP_TO_EDGE)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_T, gl.CLAMP_TO_EDGE)
	gl.FramebufferTexture2D(gl.FRAMEBUFFER, gl.COLOR_ATTACHMENT0, gl.TEXTURE_2D, rt.colorTexture, 0)

	gl.GenRenderbuffers(1, &rt.depthRBO)
	gl.BindRenderbuffer(gl.RENDERBUFFER, rt.depthRBO)
	gl.RenderbufferStorage(gl.RENDERBUFFER, gl.DEPTH_COMPONENT24, rt.width, rt.height)
	gl.FramebufferRenderbuffer(gl.FRAMEBUFFER, gl.DEPTH_ATTACHMENT, gl.RENDERBUFFER, rt.depthRBO)

	status := gl.CheckFramebufferStatus(gl.FRAMEBUFFER)
	gl.BindFramebuffer(gl.FRAMEBUFFER, 0)
	if status != gl.FRAMEBUFFER_COMPLETE {
		rt.destroy()
		return fmt.Errorf("framebuffer incomplete: 0x%x", status)
	}
	return nil
}

func (rt *renderTarget) bind() {
	gl.BindFramebuffer(gl.FRAMEBUFFER, rt.fbo)
	gl.Viewport(0, 0, rt.width, rt.height)
}

func (rt *renderTarget) destroy() {
	if rt.fbo != 0 {
		gl.DeleteFramebuffers(1, &rt.fbo)
		rt.fbo = 0
	}
	if rt.colorTexture != 0 {
		gl.DeleteTextures(1, &rt.colorTexture)
		rt.colorTexture = 0
	}
	if rt.depthRBO != 0 {
		gl.DeleteRenderbuffers(1, &rt.depthRBO)
		rt.depthRBO = 0
	}
}
