// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package surface

import (
	"errors"
	"fmt"
	"image"
	"unsafe"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// ErrCanvasReleased is returned when a released canvas is used.
var ErrCanvasReleased = errors.New("surface: canvas released")

// Canvas is the page-side render target the overlay draws into each frame.
// Implementations are owned by exactly one Manager.
type Canvas interface {
	// Configure (re)allocates the target for the given size. Calling it with
	// the current size is a no-op.
	Configure(width, height uint32) error

	// CurrentView returns the texture view to render the next frame into.
	CurrentView() (hal.TextureView, error)

	// Present makes the last rendered frame visible.
	Present() error

	// Size returns the configured dimensions.
	Size() (width, height uint32)

	// Release frees all GPU resources and removes the canvas from the page.
	// Safe to call multiple times.
	Release()
}

// CanvasFactory creates a canvas on the surface's device.
type CanvasFactory func(device hal.Device, queue hal.Queue, format gputypes.TextureFormat) (Canvas, error)

// OffscreenCanvas renders into a device-owned texture. It backs pages that
// composite the overlay themselves and is used by tests with a noop device.
type OffscreenCanvas struct {
	device hal.Device
	queue  hal.Queue
	format gputypes.TextureFormat

	tex  hal.Texture
	view hal.TextureView

	width, height uint32
	presented     uint64
	released      bool
}

// NewOffscreenCanvas is a CanvasFactory for OffscreenCanvas.
func NewOffscreenCanvas(device hal.Device, queue hal.Queue, format gputypes.TextureFormat) (Canvas, error) {
	if device == nil || queue == nil {
		return nil, errors.New("surface: offscreen canvas needs a device and queue")
	}
	return &OffscreenCanvas{device: device, queue: queue, format: format}, nil
}

// Configure creates or recreates the target texture if the requested
// dimensions differ from the current size.
func (c *OffscreenCanvas) Configure(width, height uint32) error {
	if c.released {
		return ErrCanvasReleased
	}
	if width == 0 || height == 0 {
		return fmt.Errorf("surface: invalid canvas size %dx%d", width, height)
	}
	if c.width == width && c.height == height && c.tex != nil {
		return nil
	}
	tex, err := c.device.CreateTexture(&hal.TextureDescriptor{
		Label:         "overlay_canvas",
		Size:          hal.Extent3D{Width: width, Height: height, DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        c.format,
		Usage:         gputypes.TextureUsageRenderAttachment | gputypes.TextureUsageCopySrc,
	})
	if err != nil {
		return fmt.Errorf("create canvas texture: %w", err)
	}
	view, err := c.device.CreateTextureView(tex, &hal.TextureViewDescriptor{Label: "overlay_canvas_view"})
	if err != nil {
		c.device.DestroyTexture(tex)
		return fmt.Errorf("create canvas texture view: %w", err)
	}

	// The old target stays usable until its replacement exists.
	c.destroyTexture()
	c.tex = tex
	c.view = view
	c.width = width
	c.height = height
	return nil
}

// CurrentView returns the canvas texture view.
func (c *OffscreenCanvas) CurrentView() (hal.TextureView, error) {
	if c.released {
		return nil, ErrCanvasReleased
	}
	if c.view == nil {
		return nil, errors.New("surface: canvas not configured")
	}
	return c.view, nil
}

// Present counts the frame; offscreen output is read back with Snapshot.
func (c *OffscreenCanvas) Present() error {
	if c.released {
		return ErrCanvasReleased
	}
	c.presented++
	return nil
}

// Presented returns the number of frames presented since creation.
func (c *OffscreenCanvas) Presented() uint64 { return c.presented }

// Size returns the configured dimensions.
func (c *OffscreenCanvas) Size() (uint32, uint32) { return c.width, c.height }

// Release destroys the target texture.
func (c *OffscreenCanvas) Release() {
	if c.released {
		return
	}
	c.destroyTexture()
	c.released = true
}

func (c *OffscreenCanvas) destroyTexture() {
	if c.view != nil {
		c.device.DestroyTextureView(c.view)
		c.view = nil
	}
	if c.tex != nil {
		c.device.DestroyTexture(c.tex)
		c.tex = nil
	}
	c.width = 0
	c.height = 0
}

// Snapshot copies the canvas contents back to the CPU as RGBA.
func (c *OffscreenCanvas) Snapshot() (*image.RGBA, error) {
	if c.released {
		return nil, ErrCanvasReleased
	}
	if c.tex == nil {
		return nil, errors.New("surface: canvas not configured")
	}
	w, h := c.width, c.height

	// WebGPU requires BytesPerRow aligned to 256 bytes.
	bytesPerRow := w * 4
	const copyPitchAlignment = 256
	alignedBytesPerRow := (bytesPerRow + copyPitchAlignment - 1) &^ (copyPitchAlignment - 1)
	stagingSize := uint64(alignedBytesPerRow) * uint64(h)

	staging, err := c.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "overlay_canvas_staging",
		Size:  stagingSize,
		Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("create staging buffer: %w", err)
	}
	defer c.device.DestroyBuffer(staging)

	encoder, err := c.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "overlay_snapshot_encoder"})
	if err != nil {
		return nil, fmt.Errorf("create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding("overlay_snapshot"); err != nil {
		return nil, fmt.Errorf("begin encoding: %w", err)
	}
	encoder.TransitionTextures([]hal.TextureBarrier{{
		Texture: c.tex,
		Usage: hal.TextureUsageTransition{
			OldUsage: gputypes.TextureUsageRenderAttachment,
			NewUsage: gputypes.TextureUsageCopySrc,
		},
	}})
	encoder.CopyTextureToBuffer(c.tex, staging, []hal.BufferTextureCopy{{
		BufferLayout: hal.ImageDataLayout{Offset: 0, BytesPerRow: alignedBytesPerRow, RowsPerImage: h},
		TextureBase:  hal.ImageCopyTexture{Texture: c.tex, MipLevel: 0},
		Size:         hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
	}})
	encoder.TransitionTextures([]hal.TextureBarrier{{
		Texture: c.tex,
		Usage: hal.TextureUsageTransition{
			OldUsage: gputypes.TextureUsageCopySrc,
			NewUsage: gputypes.TextureUsageRenderAttachment,
		},
	}})
	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return nil, fmt.Errorf("end encoding: %w", err)
	}
	defer c.device.FreeCommandBuffer(cmdBuf)

	if err := submitAndWait(c.device, c.queue, cmdBuf); err != nil {
		return nil, err
	}

	mapping, err := c.device.MapBuffer(staging, 0, stagingSize)
	if err != nil {
		return nil, fmt.Errorf("map staging buffer: %w", err)
	}
	readback := make([]byte, stagingSize)
	copy(readback, unsafe.Slice((*byte)(mapping.Ptr), stagingSize))
	if err := c.device.UnmapBuffer(staging); err != nil {
		return nil, fmt.Errorf("unmap staging buffer: %w", err)
	}

	img := image.NewRGBA(image.Rect(0, 0, int(w), int(h)))
	for row := uint32(0); row < h; row++ {
		src := readback[uint64(row)*uint64(alignedBytesPerRow):]
		dst := img.Pix[int(row)*img.Stride:]
		for x := uint32(0); x < w; x++ {
			i := x * 4
			if c.format == gputypes.TextureFormatBGRA8Unorm {
				dst[i], dst[i+1], dst[i+2], dst[i+3] = src[i+2], src[i+1], src[i], src[i+3]
			} else {
				copy(dst[i:i+4], src[i:i+4])
			}
		}
	}
	return img, nil
}

// submitAndWait submits one command buffer and blocks until it completes.
func submitAndWait(device hal.Device, queue hal.Queue, cmdBuf hal.CommandBuffer) error {
	idx, err := queue.Submit([]hal.CommandBuffer{cmdBuf})
	if err != nil {
		return fmt.Errorf("submit: %w", err)
	}
	if queue.PollCompleted() >= idx {
		return nil
	}
	if err := device.WaitIdle(); err != nil {
		return fmt.Errorf("wait for GPU: %w", err)
	}
	return nil
}
