package surface

import (
	"encoding/binary"
	"math"
)

// Full-screen quad as two triangles in clip space, float32x2 per vertex.
var quadVertices = [...]float32{
	-1, -1, 1, -1, 1, 1,
	-1, -1, 1, 1, -1, 1,
}

const (
	quadVertexStride = 8
	quadVertexCount  = uint32(len(quadVertices) / 2)

	// uniformSize matches the WGSL Uniforms struct: time f32, pad f32,
	// resolution vec2<f32>.
	uniformSize = 16
)

func quadVertexBytes() []byte {
	buf := make([]byte, len(quadVertices)*4)
	for i, v := range quadVertices {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

// encodeUniforms writes the time uniform into dst, which must be at least
// uniformSize bytes.
func encodeUniforms(dst []byte, seconds float32, width, height uint32) {
	binary.LittleEndian.PutUint32(dst[0:], math.Float32bits(seconds))
	binary.LittleEndian.PutUint32(dst[4:], 0)
	binary.LittleEndian.PutUint32(dst[8:], math.Float32bits(float32(width)))
	binary.LittleEndian.PutUint32(dst[12:], math.Float32bits(float32(height)))
}
