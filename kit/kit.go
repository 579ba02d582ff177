// Copyright (c) 2026 fathom3d
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package kit carries small application-side helpers shared by the
// demos: per-frame uniform data and the host buffers that carry it to
// the GPU without racing frames still in flight.
package kit

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/fathom3d/fathom/core"
)

// FrameData is the per-frame uniform block. Cameras holds one
// view-projection matrix per eye; desktop rendering uses index 0 only.
// Anim is a free scalar for time-driven effects.
type FrameData struct {
	Cameras [2]mgl32.Mat4
	Anim    float32
}

// frameDataSize is the std140 footprint of FrameData: two mat4s plus
// the anim scalar padded to 16 bytes.
const frameDataSize = 2*16*4 + 16

// FrameUBO owns one host-visible uniform buffer per frame in flight,
// so writing slot N never touches memory a previous frame's commands
// may still read.
type FrameUBO struct {
	core    *core.Core
	buffers []core.Buffer
}

// NewFrameUBO allocates slots buffers of FrameData size.
func NewFrameUBO(c *core.Core, slots int) (*FrameUBO, error) {
	u := &FrameUBO{core: c}
	for i := 0; i < slots; i++ {
		buf, err := c.Device.CreateHostBuffer(frameDataSize)
		if err != nil {
			u.Destroy()
			return nil, err
		}
		u.buffers = append(u.buffers, buf)
	}
	return u, nil
}

// Write serializes data into the slot's buffer.
func (u *FrameUBO) Write(slot int, data FrameData) error {
	if slot < 0 || slot >= len(u.buffers) {
		return fmt.Errorf("kit: frame ubo slot %d out of range", slot)
	}

	var buf bytes.Buffer
	buf.Grow(frameDataSize)
	for eye := range data.Cameras {
		if err := binary.Write(&buf, binary.LittleEndian, data.Cameras[eye]); err != nil {
			return err
		}
	}
	if err := binary.Write(&buf, binary.LittleEndian, data.Anim); err != nil {
		return err
	}
	// Pad the anim scalar out to its std140 slot.
	buf.Write(make([]byte, frameDataSize-buf.Len()))

	return u.core.Device.WriteBuffer(u.buffers[slot], 0, buf.Bytes())
}

// Buffer returns the slot's buffer handle for descriptor binding.
func (u *FrameUBO) Buffer(slot int) core.Buffer {
	return u.buffers[slot]
}

// Destroy releases all slot buffers. Safe to call more than once.
func (u *FrameUBO) Destroy() {
	for _, buf := range u.buffers {
		u.core.Device.DestroyBuffer(buf)
	}
	u.buffers = nil
}
