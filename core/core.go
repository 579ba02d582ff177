// Copyright (c) 2026 fathom3d
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package core implements the frame synchronization and framebuffer
// lifecycle that every rendered frame depends on. It talks to the GPU
// through the Device boundary, so the same machinery drives a real
// Vulkan device, a headless run, or a test double.
package core

import "time"

// Opaque GPU handles. Handles are minted by a Device and are only
// meaningful to the Device that created them. The zero value is the
// null handle.
type (
	// Fence is a CPU-observable primitive signalled by the GPU on
	// completion of submitted work.
	Fence uint64

	// Semaphore orders operations across queue submissions without
	// CPU involvement.
	Semaphore uint64

	// Image is a GPU image. Swap images are owned by the presentation
	// engine or compositor and are imported, never created, here.
	Image uint64

	// ImageView is a view over a single Image.
	ImageView uint64

	// Framebuffer binds a render pass' attachments to image views for
	// one draw target.
	Framebuffer uint64

	// RenderPass is supplied by the application and treated as opaque.
	RenderPass uint64

	// CommandBuffer records one frame's commands.
	CommandBuffer uint64

	// Buffer is a host-visible GPU buffer.
	Buffer uint64
)

// Extent2D is a framebuffer or surface size in pixels.
type Extent2D struct {
	Width  uint32
	Height uint32
}

// AttachmentKind selects the format and usage class of an attachment
// image. The concrete formats are the Device's business.
type AttachmentKind int

const (
	// DepthAttachment is the per-framebuffer depth buffer.
	DepthAttachment AttachmentKind = iota

	// ColorAttachment is the transient multisampled color target that
	// gets resolved into the swap image.
	ColorAttachment
)

// AttachmentInfo describes an attachment image to allocate.
type AttachmentInfo struct {
	Kind    AttachmentKind
	Extent  Extent2D
	Layers  uint32
	Samples int
}

// Attachment is an allocated attachment image with its single view.
type Attachment struct {
	Image Image
	View  ImageView
}

// SubmitInfo carries one frame's submission to the device queue.
// Wait and Signal are consulted only when UseSemaphores is set;
// headless and compositor sessions submit without them.
type SubmitInfo struct {
	Commands      CommandBuffer
	Wait          Semaphore
	Signal        Semaphore
	UseSemaphores bool
	Fence         Fence
}

// Device is the boundary to the GPU. It owns the queue and the device
// handle; all submissions are issued through it from a single thread.
// Every Create has a matching Destroy, and Destroy calls are safe on
// handles that were already destroyed.
type Device interface {
	// CreateFence creates a fence, optionally in the signaled state.
	CreateFence(signaled bool) (Fence, error)

	// WaitForFence blocks until the fence is signaled. A timeout is
	// reported as ErrFenceTimeout.
	WaitForFence(fence Fence, timeout time.Duration) error

	// ResetFence returns a signaled fence to the unsignaled state.
	ResetFence(fence Fence) error

	DestroyFence(fence Fence)

	CreateSemaphore() (Semaphore, error)
	DestroySemaphore(sem Semaphore)

	// CreateAttachment allocates an attachment image and its view.
	// Memory comes from the device's allocator; the caller only names
	// the usage class.
	CreateAttachment(info AttachmentInfo) (Attachment, error)
	DestroyAttachment(att Attachment)

	// CreateSwapImageView builds a view over an imported swap image.
	CreateSwapImageView(img Image, layers uint32) (ImageView, error)
	DestroyImageView(view ImageView)

	CreateFramebuffer(rp RenderPass, views []ImageView, extent Extent2D) (Framebuffer, error)
	DestroyFramebuffer(fb Framebuffer)

	// CreateRenderPass builds the default render pass matching the
	// framebuffer layout for the given sample count. Applications with
	// custom attachment needs bring their own pass instead.
	CreateRenderPass(samples int) (RenderPass, error)

	// AllocateCommandBuffers allocates count primary command buffers
	// from the device's command pool. They live until the device is
	// destroyed.
	AllocateCommandBuffers(count int) ([]CommandBuffer, error)

	// BeginRender resets cmd and begins recording into fb with the
	// given render pass, render area and a full viewport/scissor.
	BeginRender(cmd CommandBuffer, fb Framebuffer, rp RenderPass, extent Extent2D) error

	// EndRender closes the render pass and the command buffer.
	EndRender(cmd CommandBuffer) error

	// Submit hands one frame to the device queue. The fence, when not
	// null, is signaled by the GPU on completion.
	Submit(info SubmitInfo) error

	CreateHostBuffer(size int) (Buffer, error)
	WriteBuffer(buf Buffer, offset int, data []byte) error
	DestroyBuffer(buf Buffer)

	// QueueWaitIdle blocks until the queue has drained.
	QueueWaitIdle() error

	// WaitIdle blocks until the whole device is idle. Required before
	// freeing resources that in-flight frames may still reference.
	WaitIdle() error
}

// Core is the single ownership root handed to every subsystem at
// construction. Subsystems borrow it; they never create or destroy the
// device themselves.
type Core struct {
	Device Device
	Config Configuration
}

// NewCore wraps a device and a configuration into a context root.
// The configuration is normalised with defaults first.
func NewCore(dev Device, cfg Configuration) *Core {
	return &Core{
		Device: dev,
		Config: cfg.withDefaults(),
	}
}
