// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package surface

import (
	"fmt"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/overlay"
)

// Backend creates HAL instances. Any wgpu HAL backend satisfies it,
// including hal/noop for tests and hal/vulkan at runtime.
type Backend interface {
	CreateInstance(desc *hal.InstanceDescriptor) (hal.Instance, error)
}

// halProvider is implemented by gpucontext providers that expose the
// underlying HAL device and queue.
type halProvider interface {
	HalDevice() any
	HalQueue() any
}

// device is the per-surface graphics device handle.
type device struct {
	instance hal.Instance
	device   hal.Device
	queue    hal.Queue
	format   gputypes.TextureFormat
	name     string

	// external is true when the device is shared by the host and must
	// not be destroyed on release.
	external bool
}

// openDevice creates an instance on backend and opens the preferred adapter.
// Every failure is reported as ErrDeviceUnavailable.
func openDevice(backend Backend, format gputypes.TextureFormat) (*device, error) {
	if backend == nil {
		return nil, fmt.Errorf("%w: no GPU backend", overlay.ErrDeviceUnavailable)
	}
	instance, err := backend.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return nil, fmt.Errorf("%w: create instance: %v", overlay.ErrDeviceUnavailable, err)
	}
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return nil, fmt.Errorf("%w: no GPU adapters found", overlay.ErrDeviceUnavailable)
	}
	selected := &adapters[0]
	for i := range adapters {
		if adapters[i].Info.DeviceType == gputypes.DeviceTypeDiscreteGPU ||
			adapters[i].Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
			selected = &adapters[i]
			break
		}
	}
	openDev, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		return nil, fmt.Errorf("%w: open device: %v", overlay.ErrDeviceUnavailable, err)
	}
	return &device{
		instance: instance,
		device:   openDev.Device,
		queue:    openDev.Queue,
		format:   format,
		name:     selected.Info.Name,
	}, nil
}

// sharedDevice adopts the HAL device of a host provider.
func sharedDevice(provider gpucontext.DeviceProvider) (*device, error) {
	hp, ok := provider.(halProvider)
	if !ok {
		return nil, fmt.Errorf("%w: provider does not expose HAL types", overlay.ErrDeviceUnavailable)
	}
	dev, ok := hp.HalDevice().(hal.Device)
	if !ok || dev == nil {
		return nil, fmt.Errorf("%w: provider HalDevice is not hal.Device", overlay.ErrDeviceUnavailable)
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return nil, fmt.Errorf("%w: provider HalQueue is not hal.Queue", overlay.ErrDeviceUnavailable)
	}
	format := provider.SurfaceFormat()
	if format == gputypes.TextureFormatUndefined {
		format = gputypes.TextureFormatBGRA8Unorm
	}
	return &device{device: dev, queue: queue, format: format, name: "shared", external: true}, nil
}

// release destroys the device and instance unless they belong to the host.
func (d *device) release() {
	if d == nil || d.external {
		return
	}
	if d.device != nil {
		d.device.Destroy()
		d.device = nil
	}
	if d.instance != nil {
		d.instance.Destroy()
		d.instance = nil
	}
	d.queue = nil
}
