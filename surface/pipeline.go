package surface

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/overlay"
	"github.com/gogpu/overlay/effect"
)

// Pipeline is an effect compiled for one device. It owns its shader modules
// and bindings; the geometry and uniform buffers it binds belong to the
// Manager.
type Pipeline struct {
	EffectID string

	vertex     hal.ShaderModule
	fragment   hal.ShaderModule
	bindLayout hal.BindGroupLayout
	pipeLayout hal.PipelineLayout
	bindGroup  hal.BindGroup
	pipeline   hal.RenderPipeline
}

// compilePipeline validates e and builds its render pipeline against the
// shared uniform buffer. Shader failures are reported as *overlay.CompileError
// and leave nothing allocated.
func compilePipeline(device hal.Device, format gputypes.TextureFormat, uniforms hal.Buffer, e effect.Effect, validate effect.Validator) (*Pipeline, error) {
	if validate != nil {
		if err := validate(e); err != nil {
			return nil, err
		}
	}

	p := &Pipeline{EffectID: e.ID}
	ok := false
	defer func() {
		if !ok {
			p.destroy(device)
		}
	}()

	var err error
	p.vertex, err = device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  e.ID + "_vertex",
		Source: hal.ShaderSource{WGSL: e.Vertex},
	})
	if err != nil {
		return nil, &overlay.CompileError{EffectID: e.ID, Stage: effect.StageVertex, Err: err}
	}
	p.fragment, err = device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  e.ID + "_fragment",
		Source: hal.ShaderSource{WGSL: e.Fragment},
	})
	if err != nil {
		return nil, &overlay.CompileError{EffectID: e.ID, Stage: effect.StageFragment, Err: err}
	}

	p.bindLayout, err = device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: e.ID + "_uniform_layout",
		Entries: []gputypes.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: gputypes.ShaderStageFragment,
				Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform},
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create %s uniform layout: %w", e.ID, err)
	}

	p.pipeLayout, err = device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            e.ID + "_pipe_layout",
		BindGroupLayouts: []hal.BindGroupLayout{p.bindLayout},
	})
	if err != nil {
		return nil, fmt.Errorf("create %s pipeline layout: %w", e.ID, err)
	}

	p.bindGroup, err = device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:  e.ID + "_uniforms",
		Layout: p.bindLayout,
		Entries: []gputypes.BindGroupEntry{
			{Binding: 0, Resource: gputypes.BufferBinding{Buffer: uniforms.NativeHandle(), Offset: 0, Size: uniformSize}},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create %s bind group: %w", e.ID, err)
	}

	premulBlend := gputypes.BlendStatePremultiplied()
	p.pipeline, err = device.CreateRenderPipeline(&hal.RenderPipelineDescriptor{
		Label:  e.ID + "_pipeline",
		Layout: p.pipeLayout,
		Vertex: hal.VertexState{
			Module:     p.vertex,
			EntryPoint: effect.VertexEntryPoint,
			Buffers:    quadVertexLayout(),
		},
		Fragment: &hal.FragmentState{
			Module:     p.fragment,
			EntryPoint: effect.FragmentEntryPoint,
			Targets: []gputypes.ColorTargetState{
				{
					Format:    format,
					Blend:     &premulBlend,
					WriteMask: gputypes.ColorWriteMaskAll,
				},
			},
		},
		Primitive: gputypes.PrimitiveState{
			Topology: gputypes.PrimitiveTopologyTriangleList,
			CullMode: gputypes.CullModeNone,
		},
		Multisample: gputypes.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		return nil, &overlay.CompileError{EffectID: e.ID, Stage: effect.StageFragment, Err: err}
	}

	ok = true
	return p, nil
}

func quadVertexLayout() []gputypes.VertexBufferLayout {
	return []gputypes.VertexBufferLayout{
		{
			ArrayStride: quadVertexStride,
			StepMode:    gputypes.VertexStepModeVertex,
			Attributes: []gputypes.VertexAttribute{
				{Format: gputypes.VertexFormatFloat32x2, Offset: 0, ShaderLocation: 0},
			},
		},
	}
}

// destroy releases pipeline resources in reverse creation order.
func (p *Pipeline) destroy(device hal.Device) {
	if p.pipeline != nil {
		device.DestroyRenderPipeline(p.pipeline)
		p.pipeline = nil
	}
	if p.bindGroup != nil {
		device.DestroyBindGroup(p.bindGroup)
		p.bindGroup = nil
	}
	if p.pipeLayout != nil {
		device.DestroyPipelineLayout(p.pipeLayout)
		p.pipeLayout = nil
	}
	if p.bindLayout != nil {
		device.DestroyBindGroupLayout(p.bindLayout)
		p.bindLayout = nil
	}
	if p.fragment != nil {
		device.DestroyShaderModule(p.fragment)
		p.fragment = nil
	}
	if p.vertex != nil {
		device.DestroyShaderModule(p.vertex)
		p.vertex = nil
	}
}
