// Copyright (c) 2026 fathom3d
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// NullDevice is an in-memory Device for headless dry-runs and tests.
// It mints real handles, enforces handle validity, tracks live resource
// counts, and gives fences honest wait/timeout semantics. Submissions
// signal their fence immediately unless ManualFences is set, in which
// case tests drive completion through Signal.
type NullDevice struct {
	// ManualFences disables automatic fence signaling on Submit.
	ManualFences bool

	mu           sync.Mutex
	next         uint64
	fences       map[Fence]*nullFence
	semaphores   map[Semaphore]bool
	attachments  map[Image]AttachmentInfo
	views        map[ImageView]bool
	framebuffers map[Framebuffer]int
	commands     map[CommandBuffer]bool
	buffers      map[Buffer][]byte
	submits      []SubmitInfo
	idleWaits    int
	queueWaits   int
}

type nullFence struct {
	signaled chan struct{} // closed when signaled
}

// NewNullDevice creates an empty in-memory device.
func NewNullDevice() *NullDevice {
	return &NullDevice{
		fences:       make(map[Fence]*nullFence),
		semaphores:   make(map[Semaphore]bool),
		attachments:  make(map[Image]AttachmentInfo),
		views:        make(map[ImageView]bool),
		framebuffers: make(map[Framebuffer]int),
		commands:     make(map[CommandBuffer]bool),
		buffers:      make(map[Buffer][]byte),
	}
}

func (d *NullDevice) handle() uint64 {
	d.next++
	return d.next
}

// NewSwapImages mints n images standing in for a platform-owned swap
// image set.
func (d *NullDevice) NewSwapImages(n int) []Image {
	d.mu.Lock()
	defer d.mu.Unlock()
	images := make([]Image, n)
	for i := range images {
		images[i] = Image(d.handle())
	}
	return images
}

// CreateFence implements Device.
func (d *NullDevice) CreateFence(signaled bool) (Fence, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	f := &nullFence{signaled: make(chan struct{})}
	if signaled {
		close(f.signaled)
	}
	handle := Fence(d.handle())
	d.fences[handle] = f
	return handle, nil
}

// Signal marks a fence signaled, as the GPU would on work completion.
func (d *NullDevice) Signal(fence Fence) {
	d.mu.Lock()
	f, ok := d.fences[fence]
	d.mu.Unlock()
	if !ok {
		panic(fmt.Sprintf("nulldevice: signal of unknown fence %d", fence))
	}
	select {
	case <-f.signaled:
	default:
		close(f.signaled)
	}
}

// Signaled reports whether a fence is currently signaled.
func (d *NullDevice) Signaled(fence Fence) bool {
	d.mu.Lock()
	f, ok := d.fences[fence]
	d.mu.Unlock()
	if !ok {
		panic(fmt.Sprintf("nulldevice: query of unknown fence %d", fence))
	}
	select {
	case <-f.signaled:
		return true
	default:
		return false
	}
}

// WaitForFence implements Device.
func (d *NullDevice) WaitForFence(fence Fence, timeout time.Duration) error {
	d.mu.Lock()
	f, ok := d.fences[fence]
	d.mu.Unlock()
	if !ok {
		return fmt.Errorf("nulldevice: wait on unknown fence %d", fence)
	}
	select {
	case <-f.signaled:
		return nil
	case <-time.After(timeout):
		return ErrFenceTimeout
	}
}

// ResetFence implements Device.
func (d *NullDevice) ResetFence(fence Fence) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	f, ok := d.fences[fence]
	if !ok {
		return fmt.Errorf("nulldevice: reset of unknown fence %d", fence)
	}
	select {
	case <-f.signaled:
		d.fences[fence] = &nullFence{signaled: make(chan struct{})}
		return nil
	default:
		return errors.New("nulldevice: reset of unsignaled fence")
	}
}

// DestroyFence implements Device.
func (d *NullDevice) DestroyFence(fence Fence) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.fences, fence)
}

// CreateSemaphore implements Device.
func (d *NullDevice) CreateSemaphore() (Semaphore, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	handle := Semaphore(d.handle())
	d.semaphores[handle] = true
	return handle, nil
}

// DestroySemaphore implements Device.
func (d *NullDevice) DestroySemaphore(sem Semaphore) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.semaphores, sem)
}

// CreateAttachment implements Device.
func (d *NullDevice) CreateAttachment(info AttachmentInfo) (Attachment, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	img := Image(d.handle())
	view := ImageView(d.handle())
	d.attachments[img] = info
	d.views[view] = true
	return Attachment{Image: img, View: view}, nil
}

// DestroyAttachment implements Device.
func (d *NullDevice) DestroyAttachment(att Attachment) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.attachments, att.Image)
	delete(d.views, att.View)
}

// CreateSwapImageView implements Device.
func (d *NullDevice) CreateSwapImageView(img Image, layers uint32) (ImageView, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	view := ImageView(d.handle())
	d.views[view] = true
	return view, nil
}

// DestroyImageView implements Device.
func (d *NullDevice) DestroyImageView(view ImageView) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.views, view)
}

// CreateFramebuffer implements Device.
func (d *NullDevice) CreateFramebuffer(rp RenderPass, views []ImageView, extent Extent2D) (Framebuffer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, view := range views {
		if !d.views[view] {
			return 0, fmt.Errorf("nulldevice: framebuffer references dead view %d", view)
		}
	}
	handle := Framebuffer(d.handle())
	d.framebuffers[handle] = len(views)
	return handle, nil
}

// DestroyFramebuffer implements Device.
func (d *NullDevice) DestroyFramebuffer(fb Framebuffer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.framebuffers, fb)
}

// CreateRenderPass implements Device.
func (d *NullDevice) CreateRenderPass(samples int) (RenderPass, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return RenderPass(d.handle()), nil
}

// AllocateCommandBuffers implements Device.
func (d *NullDevice) AllocateCommandBuffers(count int) ([]CommandBuffer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	cmds := make([]CommandBuffer, count)
	for i := range cmds {
		cmds[i] = CommandBuffer(d.handle())
		d.commands[cmds[i]] = true
	}
	return cmds, nil
}

// BeginRender implements Device.
func (d *NullDevice) BeginRender(cmd CommandBuffer, fb Framebuffer, rp RenderPass, extent Extent2D) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.commands[cmd] {
		return fmt.Errorf("nulldevice: begin on unknown command buffer %d", cmd)
	}
	if _, ok := d.framebuffers[fb]; !ok {
		return fmt.Errorf("nulldevice: begin against dead framebuffer %d", fb)
	}
	return nil
}

// EndRender implements Device.
func (d *NullDevice) EndRender(cmd CommandBuffer) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.commands[cmd] {
		return fmt.Errorf("nulldevice: end on unknown command buffer %d", cmd)
	}
	return nil
}

// Submit implements Device. Unless ManualFences is set, the submission
// completes instantly and its fence is signaled.
func (d *NullDevice) Submit(info SubmitInfo) error {
	d.mu.Lock()
	d.submits = append(d.submits, info)
	manual := d.ManualFences
	d.mu.Unlock()
	if info.Fence != 0 && !manual {
		d.Signal(info.Fence)
	}
	return nil
}

// Submits returns a copy of everything submitted so far.
func (d *NullDevice) Submits() []SubmitInfo {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]SubmitInfo, len(d.submits))
	copy(out, d.submits)
	return out
}

// CreateHostBuffer implements Device.
func (d *NullDevice) CreateHostBuffer(size int) (Buffer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	handle := Buffer(d.handle())
	d.buffers[handle] = make([]byte, size)
	return handle, nil
}

// WriteBuffer implements Device.
func (d *NullDevice) WriteBuffer(buf Buffer, offset int, data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	mem, ok := d.buffers[buf]
	if !ok {
		return fmt.Errorf("nulldevice: write to unknown buffer %d", buf)
	}
	if offset < 0 || offset+len(data) > len(mem) {
		return fmt.Errorf("nulldevice: write of %d bytes at %d overflows buffer of %d",
			len(data), offset, len(mem))
	}
	copy(mem[offset:], data)
	return nil
}

// BufferContents returns a copy of a buffer's memory.
func (d *NullDevice) BufferContents(buf Buffer) []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	mem := d.buffers[buf]
	out := make([]byte, len(mem))
	copy(out, mem)
	return out
}

// DestroyBuffer implements Device.
func (d *NullDevice) DestroyBuffer(buf Buffer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.buffers, buf)
}

// QueueWaitIdle implements Device.
func (d *NullDevice) QueueWaitIdle() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.queueWaits++
	return nil
}

// WaitIdle implements Device.
func (d *NullDevice) WaitIdle() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.idleWaits++
	return nil
}

// Live resource counters, for net-zero leak assertions.

// LiveAttachments returns the number of attachment images not yet destroyed.
func (d *NullDevice) LiveAttachments() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.attachments)
}

// LiveImageViews returns the number of image views not yet destroyed.
func (d *NullDevice) LiveImageViews() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.views)
}

// LiveFramebuffers returns the number of framebuffers not yet destroyed.
func (d *NullDevice) LiveFramebuffers() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.framebuffers)
}

// LiveFences returns the number of fences not yet destroyed.
func (d *NullDevice) LiveFences() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.fences)
}

// LiveSemaphores returns the number of semaphores not yet destroyed.
func (d *NullDevice) LiveSemaphores() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.semaphores)
}

// AttachmentLayers returns the array layer count an attachment was
// created with.
func (d *NullDevice) AttachmentLayers(img Image) uint32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	info, ok := d.attachments[img]
	if !ok {
		panic(fmt.Sprintf("nulldevice: layer query of unknown attachment %d", img))
	}
	return info.Layers
}

// Attachments returns the infos of all live attachments.
func (d *NullDevice) Attachments() []AttachmentInfo {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]AttachmentInfo, 0, len(d.attachments))
	for _, info := range d.attachments {
		out = append(out, info)
	}
	return out
}

// IdleWaits returns how many times WaitIdle was called.
func (d *NullDevice) IdleWaits() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.idleWaits
}

// QueueIdleWaits returns how many times QueueWaitIdle was called.
func (d *NullDevice) QueueIdleWaits() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.queueWaits
}
