// Copyright (c) 2026 fathom3d
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core

import (
	"errors"
	"fmt"
	"math"
	"time"
	"unsafe"

	vk "github.com/vulkan-go/vulkan"
)

// Default attachment formats. The swapchain color format may be
// overridden by the session after querying the surface; see
// SetColorFormat.
const (
	DefaultColorFormat = vk.FormatB8g8r8a8Srgb
	DefaultDepthFormat = vk.FormatD32Sfloat
)

// VulkanDevice implements Device over a logical Vulkan device. Handles
// returned to the rest of the engine are indices into internal tables,
// so nothing outside this file touches a raw Vulkan handle.
type VulkanDevice struct {
	device         vk.Device
	physicalDevice vk.PhysicalDevice
	queue          vk.Queue
	queueFamily    uint32

	colorFormat vk.Format
	depthFormat vk.Format

	memProperties vk.PhysicalDeviceMemoryProperties
	commandPool   vk.CommandPool

	fences         []vk.Fence
	semaphores     []vk.Semaphore
	images         []vk.Image
	imageMemory    []vk.DeviceMemory // nil entry: image is imported, not owned
	views          []vk.ImageView
	framebuffers   []vk.Framebuffer
	fbAttachments  []int // attachment count per framebuffer, for clear values
	renderPasses   []vk.RenderPass
	commandBuffers []vk.CommandBuffer
	buffers        []vk.Buffer
	bufferMemory   []vk.DeviceMemory
	bufferMapped   []unsafe.Pointer
}

// NewVulkanDevice wraps an already-created logical device and its
// graphics/present queue. The device and queue stay owned by the
// caller; Destroy only releases what this wrapper created.
func NewVulkanDevice(device vk.Device, physicalDevice vk.PhysicalDevice, queue vk.Queue, queueFamily uint32) (*VulkanDevice, error) {
	d := &VulkanDevice{
		device:         device,
		physicalDevice: physicalDevice,
		queue:          queue,
		queueFamily:    queueFamily,
		colorFormat:    DefaultColorFormat,
		depthFormat:    DefaultDepthFormat,
	}

	vk.GetPhysicalDeviceMemoryProperties(physicalDevice, &d.memProperties)
	d.memProperties.Deref()

	cpci := vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit),
		QueueFamilyIndex: queueFamily,
	}
	var commandPool vk.CommandPool
	if err := vk.Error(vk.CreateCommandPool(device, &cpci, nil, &commandPool)); err != nil {
		return nil, errors.New("vk.CreateCommandPool(): " + err.Error())
	}
	d.commandPool = commandPool

	return d, nil
}

// SetColorFormat overrides the swap image color format, typically with
// the format the surface actually reported.
func (d *VulkanDevice) SetColorFormat(format vk.Format) {
	d.colorFormat = format
}

// Queue returns the raw device queue for session-level present calls.
func (d *VulkanDevice) Queue() vk.Queue {
	return d.queue
}

// QueueFamily returns the queue family index the queue was created from.
func (d *VulkanDevice) QueueFamily() uint32 {
	return d.queueFamily
}

// Handle returns the raw logical device for session-level swapchain calls.
func (d *VulkanDevice) Handle() vk.Device {
	return d.device
}

// PhysicalDevice returns the underlying physical device.
func (d *VulkanDevice) PhysicalDevice() vk.PhysicalDevice {
	return d.physicalDevice
}

// CreateFence implements Device.
func (d *VulkanDevice) CreateFence(signaled bool) (Fence, error) {
	fci := vk.FenceCreateInfo{
		SType: vk.StructureTypeFenceCreateInfo,
	}
	if signaled {
		fci.Flags = vk.FenceCreateFlags(vk.FenceCreateSignaledBit)
	}

	var fence vk.Fence
	if err := vk.Error(vk.CreateFence(d.device, &fci, nil, &fence)); err != nil {
		return 0, errors.New("vk.CreateFence(): " + err.Error())
	}
	d.fences = append(d.fences, fence)
	return Fence(len(d.fences)), nil
}

// WaitForFence implements Device. A non-positive timeout waits forever.
func (d *VulkanDevice) WaitForFence(fence Fence, timeout time.Duration) error {
	f, err := d.fence(fence)
	if err != nil {
		return err
	}

	ns := uint64(math.MaxUint64)
	if timeout > 0 {
		ns = uint64(timeout.Nanoseconds())
	}

	result := vk.WaitForFences(d.device, 1, []vk.Fence{f}, vk.True, ns)
	if result == vk.Timeout {
		return ErrFenceTimeout
	}
	if err := vk.Error(result); err != nil {
		return errors.New("vk.WaitForFences(): " + err.Error())
	}
	return nil
}

// ResetFence implements Device.
func (d *VulkanDevice) ResetFence(fence Fence) error {
	f, err := d.fence(fence)
	if err != nil {
		return err
	}
	if err := vk.Error(vk.ResetFences(d.device, 1, []vk.Fence{f})); err != nil {
		return errors.New("vk.ResetFences(): " + err.Error())
	}
	return nil
}

// DestroyFence implements Device.
func (d *VulkanDevice) DestroyFence(fence Fence) {
	if f, err := d.fence(fence); err == nil {
		vk.DestroyFence(d.device, f, nil)
		d.fences[fence-1] = vk.NullFence
	}
}

// CreateSemaphore implements Device.
func (d *VulkanDevice) CreateSemaphore() (Semaphore, error) {
	sci := vk.SemaphoreCreateInfo{
		SType: vk.StructureTypeSemaphoreCreateInfo,
	}
	var sem vk.Semaphore
	if err := vk.Error(vk.CreateSemaphore(d.device, &sci, nil, &sem)); err != nil {
		return 0, errors.New("vk.CreateSemaphore(): " + err.Error())
	}
	d.semaphores = append(d.semaphores, sem)
	return Semaphore(len(d.semaphores)), nil
}

// DestroySemaphore implements Device.
func (d *VulkanDevice) DestroySemaphore(sem Semaphore) {
	if s, err := d.semaphore(sem); err == nil {
		vk.DestroySemaphore(d.device, s, nil)
		d.semaphores[sem-1] = vk.NullSemaphore
	}
}

// VkSemaphore resolves a semaphore handle to its Vulkan object, for
// session-level acquire and present calls.
func (d *VulkanDevice) VkSemaphore(sem Semaphore) vk.Semaphore {
	s, err := d.semaphore(sem)
	if err != nil {
		panic(err.Error())
	}
	return s
}

// ImportImage registers a platform-owned image (a swap image) and
// returns a handle for it. The image is never destroyed here; its
// lifetime belongs to the swapchain or compositor.
func (d *VulkanDevice) ImportImage(img vk.Image) Image {
	d.images = append(d.images, img)
	d.imageMemory = append(d.imageMemory, vk.NullDeviceMemory)
	return Image(len(d.images))
}

// CreateAttachment implements Device.
func (d *VulkanDevice) CreateAttachment(info AttachmentInfo) (Attachment, error) {
	format := d.depthFormat
	usage := vk.ImageUsageFlags(vk.ImageUsageDepthStencilAttachmentBit)
	aspect := vk.ImageAspectFlags(vk.ImageAspectDepthBit)
	if info.Kind == ColorAttachment {
		format = d.colorFormat
		usage = vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit | vk.ImageUsageTransientAttachmentBit)
		aspect = vk.ImageAspectFlags(vk.ImageAspectColorBit)
	}

	ici := vk.ImageCreateInfo{
		SType:     vk.StructureTypeImageCreateInfo,
		ImageType: vk.ImageType2d,
		Format:    format,
		Extent: vk.Extent3D{
			Width:  info.Extent.Width,
			Height: info.Extent.Height,
			Depth:  1,
		},
		MipLevels:     1,
		ArrayLayers:   info.Layers,
		Samples:       sampleCountFlag(info.Samples),
		Tiling:        vk.ImageTilingOptimal,
		Usage:         usage,
		SharingMode:   vk.SharingModeExclusive,
		InitialLayout: vk.ImageLayoutUndefined,
	}

	var image vk.Image
	if err := vk.Error(vk.CreateImage(d.device, &ici, nil, &image)); err != nil {
		return Attachment{}, errors.New("vk.CreateImage(): " + err.Error())
	}

	var memoryRequirements vk.MemoryRequirements
	vk.GetImageMemoryRequirements(d.device, image, &memoryRequirements)
	memoryRequirements.Deref()

	memory, err := d.allocate(memoryRequirements, vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit))
	if err != nil {
		vk.DestroyImage(d.device, image, nil)
		return Attachment{}, err
	}

	if err := vk.Error(vk.BindImageMemory(d.device, image, memory, 0)); err != nil {
		vk.FreeMemory(d.device, memory, nil)
		vk.DestroyImage(d.device, image, nil)
		return Attachment{}, errors.New("vk.BindImageMemory(): " + err.Error())
	}

	view, err := d.createView(image, format, aspect, info.Layers)
	if err != nil {
		vk.FreeMemory(d.device, memory, nil)
		vk.DestroyImage(d.device, image, nil)
		return Attachment{}, err
	}

	d.images = append(d.images, image)
	d.imageMemory = append(d.imageMemory, memory)
	return Attachment{
		Image: Image(len(d.images)),
		View:  view,
	}, nil
}

// DestroyAttachment implements Device.
func (d *VulkanDevice) DestroyAttachment(att Attachment) {
	d.DestroyImageView(att.View)
	if img, err := d.image(att.Image); err == nil {
		vk.DestroyImage(d.device, img, nil)
		if mem := d.imageMemory[att.Image-1]; mem != vk.NullDeviceMemory {
			vk.FreeMemory(d.device, mem, nil)
		}
		d.images[att.Image-1] = vk.NullImage
		d.imageMemory[att.Image-1] = vk.NullDeviceMemory
	}
}

// CreateSwapImageView implements Device.
func (d *VulkanDevice) CreateSwapImageView(img Image, layers uint32) (ImageView, error) {
	image, err := d.image(img)
	if err != nil {
		return 0, err
	}
	return d.createView(image, d.colorFormat, vk.ImageAspectFlags(vk.ImageAspectColorBit), layers)
}

// DestroyImageView implements Device.
func (d *VulkanDevice) DestroyImageView(view ImageView) {
	if v, err := d.view(view); err == nil {
		vk.DestroyImageView(d.device, v, nil)
		d.views[view-1] = vk.NullImageView
	}
}

func (d *VulkanDevice) createView(image vk.Image, format vk.Format, aspect vk.ImageAspectFlags, layers uint32) (ImageView, error) {
	viewType := vk.ImageViewType2d
	if layers > 1 {
		viewType = vk.ImageViewType2dArray
	}

	ivci := vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    image,
		ViewType: viewType,
		Format:   format,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask:     aspect,
			BaseMipLevel:   0,
			LevelCount:     1,
			BaseArrayLayer: 0,
			LayerCount:     layers,
		},
	}

	var view vk.ImageView
	if err := vk.Error(vk.CreateImageView(d.device, &ivci, nil, &view)); err != nil {
		return 0, errors.New("vk.CreateImageView(): " + err.Error())
	}
	d.views = append(d.views, view)
	return ImageView(len(d.views)), nil
}

// CreateFramebuffer implements Device.
func (d *VulkanDevice) CreateFramebuffer(rp RenderPass, views []ImageView, extent Extent2D) (Framebuffer, error) {
	renderPass, err := d.renderPass(rp)
	if err != nil {
		return 0, err
	}

	attachments := make([]vk.ImageView, len(views))
	for i, view := range views {
		if attachments[i], err = d.view(view); err != nil {
			return 0, err
		}
	}

	fci := vk.FramebufferCreateInfo{
		SType:           vk.StructureTypeFramebufferCreateInfo,
		RenderPass:      renderPass,
		AttachmentCount: uint32(len(attachments)),
		PAttachments:    attachments,
		Width:           extent.Width,
		Height:          extent.Height,
		Layers:          1,
	}

	var framebuffer vk.Framebuffer
	if err := vk.Error(vk.CreateFramebuffer(d.device, &fci, nil, &framebuffer)); err != nil {
		return 0, errors.New("vk.CreateFramebuffer(): " + err.Error())
	}
	d.framebuffers = append(d.framebuffers, framebuffer)
	d.fbAttachments = append(d.fbAttachments, len(attachments))
	return Framebuffer(len(d.framebuffers)), nil
}

// DestroyFramebuffer implements Device.
func (d *VulkanDevice) DestroyFramebuffer(fb Framebuffer) {
	if f, err := d.framebuffer(fb); err == nil {
		vk.DestroyFramebuffer(d.device, f, nil)
		d.framebuffers[fb-1] = vk.NullFramebuffer
	}
}

// AllocateCommandBuffers implements Device.
func (d *VulkanDevice) AllocateCommandBuffers(count int) ([]CommandBuffer, error) {
	cbai := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        d.commandPool,
		Level:              vk.CommandBufferLevelPrimary,
		CommandBufferCount: uint32(count),
	}

	commandBuffers := make([]vk.CommandBuffer, count)
	if err := vk.Error(vk.AllocateCommandBuffers(d.device, &cbai, commandBuffers)); err != nil {
		return nil, errors.New("vk.AllocateCommandBuffers(): " + err.Error())
	}

	handles := make([]CommandBuffer, count)
	for i, cb := range commandBuffers {
		d.commandBuffers = append(d.commandBuffers, cb)
		handles[i] = CommandBuffer(len(d.commandBuffers))
	}
	return handles, nil
}

// BeginRender implements Device.
func (d *VulkanDevice) BeginRender(cmd CommandBuffer, fb Framebuffer, rp RenderPass, extent Extent2D) error {
	commandBuffer, err := d.commandBuffer(cmd)
	if err != nil {
		return err
	}
	framebuffer, err := d.framebuffer(fb)
	if err != nil {
		return err
	}
	renderPass, err := d.renderPass(rp)
	if err != nil {
		return err
	}

	if err := vk.Error(vk.ResetCommandBuffer(commandBuffer, 0)); err != nil {
		return errors.New("vk.ResetCommandBuffer(): " + err.Error())
	}

	cbbi := vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
	}
	if err := vk.Error(vk.BeginCommandBuffer(commandBuffer, &cbbi)); err != nil {
		return errors.New("vk.BeginCommandBuffer(): " + err.Error())
	}

	// Attachment layout is [swap, depth] without MSAA and
	// [color, depth, resolve] with it; the depth clear sits at index 1
	// either way.
	clearValues := make([]vk.ClearValue, d.fbAttachments[fb-1])
	for i := range clearValues {
		clearValues[i].SetColor([]float32{0, 0, 0, 1})
	}
	clearValues[1].SetDepthStencil(1, 0)

	rpbi := vk.RenderPassBeginInfo{
		SType:       vk.StructureTypeRenderPassBeginInfo,
		RenderPass:  renderPass,
		Framebuffer: framebuffer,
		RenderArea: vk.Rect2D{
			Offset: vk.Offset2D{X: 0, Y: 0},
			Extent: vk.Extent2D{Width: extent.Width, Height: extent.Height},
		},
		ClearValueCount: uint32(len(clearValues)),
		PClearValues:    clearValues,
	}
	vk.CmdBeginRenderPass(commandBuffer, &rpbi, vk.SubpassContentsInline)

	vk.CmdSetViewport(commandBuffer, 0, 1, []vk.Viewport{{
		X:        0,
		Y:        0,
		Width:    float32(extent.Width),
		Height:   float32(extent.Height),
		MinDepth: 0,
		MaxDepth: 1,
	}})
	vk.CmdSetScissor(commandBuffer, 0, 1, []vk.Rect2D{{
		Offset: vk.Offset2D{X: 0, Y: 0},
		Extent: vk.Extent2D{Width: extent.Width, Height: extent.Height},
	}})

	return nil
}

// EndRender implements Device.
func (d *VulkanDevice) EndRender(cmd CommandBuffer) error {
	commandBuffer, err := d.commandBuffer(cmd)
	if err != nil {
		return err
	}
	vk.CmdEndRenderPass(commandBuffer)
	if err := vk.Error(vk.EndCommandBuffer(commandBuffer)); err != nil {
		return errors.New("vk.EndCommandBuffer(): " + err.Error())
	}
	return nil
}

// Submit implements Device.
func (d *VulkanDevice) Submit(info SubmitInfo) error {
	commandBuffer, err := d.commandBuffer(info.Commands)
	if err != nil {
		return err
	}

	submit := vk.SubmitInfo{
		SType:              vk.StructureTypeSubmitInfo,
		CommandBufferCount: 1,
		PCommandBuffers:    []vk.CommandBuffer{commandBuffer},
	}

	if info.UseSemaphores {
		wait, err := d.semaphore(info.Wait)
		if err != nil {
			return err
		}
		signal, err := d.semaphore(info.Signal)
		if err != nil {
			return err
		}
		submit.WaitSemaphoreCount = 1
		submit.PWaitSemaphores = []vk.Semaphore{wait}
		submit.PWaitDstStageMask = []vk.PipelineStageFlags{
			vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
		}
		submit.SignalSemaphoreCount = 1
		submit.PSignalSemaphores = []vk.Semaphore{signal}
	}

	fence := vk.NullFence
	if info.Fence != 0 {
		if fence, err = d.fence(info.Fence); err != nil {
			return err
		}
	}

	if err := vk.Error(vk.QueueSubmit(d.queue, 1, []vk.SubmitInfo{submit}, fence)); err != nil {
		return errors.New("vk.QueueSubmit(): " + err.Error())
	}
	return nil
}

// CreateHostBuffer implements Device. The buffer is persistently mapped
// for the duration of its life.
func (d *VulkanDevice) CreateHostBuffer(size int) (Buffer, error) {
	bci := vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(size),
		Usage:       vk.BufferUsageFlags(vk.BufferUsageUniformBufferBit),
		SharingMode: vk.SharingModeExclusive,
	}

	var buffer vk.Buffer
	if err := vk.Error(vk.CreateBuffer(d.device, &bci, nil, &buffer)); err != nil {
		return 0, errors.New("vk.CreateBuffer(): " + err.Error())
	}

	var memoryRequirements vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(d.device, buffer, &memoryRequirements)
	memoryRequirements.Deref()

	memory, err := d.allocate(memoryRequirements,
		vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit))
	if err != nil {
		vk.DestroyBuffer(d.device, buffer, nil)
		return 0, err
	}

	if err := vk.Error(vk.BindBufferMemory(d.device, buffer, memory, 0)); err != nil {
		vk.FreeMemory(d.device, memory, nil)
		vk.DestroyBuffer(d.device, buffer, nil)
		return 0, errors.New("vk.BindBufferMemory(): " + err.Error())
	}

	var mapped unsafe.Pointer
	if err := vk.Error(vk.MapMemory(d.device, memory, 0, vk.DeviceSize(size), 0, &mapped)); err != nil {
		vk.FreeMemory(d.device, memory, nil)
		vk.DestroyBuffer(d.device, buffer, nil)
		return 0, errors.New("vk.MapMemory(): " + err.Error())
	}

	d.buffers = append(d.buffers, buffer)
	d.bufferMemory = append(d.bufferMemory, memory)
	d.bufferMapped = append(d.bufferMapped, mapped)
	return Buffer(len(d.buffers)), nil
}

// WriteBuffer implements Device.
func (d *VulkanDevice) WriteBuffer(buf Buffer, offset int, data []byte) error {
	if buf == 0 || int(buf) > len(d.buffers) || d.buffers[buf-1] == vk.NullBuffer {
		return fmt.Errorf("vulkan: write to unknown buffer %d", buf)
	}
	dst := unsafe.Pointer(uintptr(d.bufferMapped[buf-1]) + uintptr(offset))
	vk.Memcopy(dst, data)
	return nil
}

// DestroyBuffer implements Device.
func (d *VulkanDevice) DestroyBuffer(buf Buffer) {
	if buf == 0 || int(buf) > len(d.buffers) || d.buffers[buf-1] == vk.NullBuffer {
		return
	}
	vk.UnmapMemory(d.device, d.bufferMemory[buf-1])
	vk.DestroyBuffer(d.device, d.buffers[buf-1], nil)
	vk.FreeMemory(d.device, d.bufferMemory[buf-1], nil)
	d.buffers[buf-1] = vk.NullBuffer
	d.bufferMemory[buf-1] = vk.NullDeviceMemory
	d.bufferMapped[buf-1] = nil
}

// QueueWaitIdle implements Device.
func (d *VulkanDevice) QueueWaitIdle() error {
	if err := vk.Error(vk.QueueWaitIdle(d.queue)); err != nil {
		return errors.New("vk.QueueWaitIdle(): " + err.Error())
	}
	return nil
}

// WaitIdle implements Device.
func (d *VulkanDevice) WaitIdle() error {
	if err := vk.Error(vk.DeviceWaitIdle(d.device)); err != nil {
		return errors.New("vk.DeviceWaitIdle(): " + err.Error())
	}
	return nil
}

// CreateRenderPass builds the default render pass matching the
// framebuffer layout: [swap, depth] for single-sampled rendering,
// [color, depth, resolve-to-swap] when samples > 1. Applications with
// custom attachment needs bring their own render pass instead.
func (d *VulkanDevice) CreateRenderPass(samples int) (RenderPass, error) {
	sampleFlag := sampleCountFlag(samples)

	var (
		attachments []vk.AttachmentDescription
		colorRef    vk.AttachmentReference
		depthRef    vk.AttachmentReference
		resolveRefs []vk.AttachmentReference
	)

	if samples > 1 {
		attachments = []vk.AttachmentDescription{
			{
				Format:         d.colorFormat,
				Samples:        sampleFlag,
				LoadOp:         vk.AttachmentLoadOpClear,
				StoreOp:        vk.AttachmentStoreOpDontCare,
				StencilLoadOp:  vk.AttachmentLoadOpDontCare,
				StencilStoreOp: vk.AttachmentStoreOpDontCare,
				InitialLayout:  vk.ImageLayoutUndefined,
				FinalLayout:    vk.ImageLayoutColorAttachmentOptimal,
			},
			{
				Format:         d.depthFormat,
				Samples:        sampleFlag,
				LoadOp:         vk.AttachmentLoadOpClear,
				StoreOp:        vk.AttachmentStoreOpDontCare,
				StencilLoadOp:  vk.AttachmentLoadOpDontCare,
				StencilStoreOp: vk.AttachmentStoreOpDontCare,
				InitialLayout:  vk.ImageLayoutUndefined,
				FinalLayout:    vk.ImageLayoutDepthStencilAttachmentOptimal,
			},
			{
				Format:         d.colorFormat,
				Samples:        vk.SampleCount1Bit,
				LoadOp:         vk.AttachmentLoadOpDontCare,
				StoreOp:        vk.AttachmentStoreOpStore,
				StencilLoadOp:  vk.AttachmentLoadOpDontCare,
				StencilStoreOp: vk.AttachmentStoreOpDontCare,
				InitialLayout:  vk.ImageLayoutUndefined,
				FinalLayout:    vk.ImageLayoutPresentSrc,
			},
		}
		colorRef = vk.AttachmentReference{Attachment: 0, Layout: vk.ImageLayoutColorAttachmentOptimal}
		depthRef = vk.AttachmentReference{Attachment: 1, Layout: vk.ImageLayoutDepthStencilAttachmentOptimal}
		resolveRefs = []vk.AttachmentReference{
			{Attachment: 2, Layout: vk.ImageLayoutColorAttachmentOptimal},
		}
	} else {
		attachments = []vk.AttachmentDescription{
			{
				Format:         d.colorFormat,
				Samples:        vk.SampleCount1Bit,
				LoadOp:         vk.AttachmentLoadOpClear,
				StoreOp:        vk.AttachmentStoreOpStore,
				StencilLoadOp:  vk.AttachmentLoadOpDontCare,
				StencilStoreOp: vk.AttachmentStoreOpDontCare,
				InitialLayout:  vk.ImageLayoutUndefined,
				FinalLayout:    vk.ImageLayoutPresentSrc,
			},
			{
				Format:         d.depthFormat,
				Samples:        vk.SampleCount1Bit,
				LoadOp:         vk.AttachmentLoadOpClear,
				StoreOp:        vk.AttachmentStoreOpDontCare,
				StencilLoadOp:  vk.AttachmentLoadOpDontCare,
				StencilStoreOp: vk.AttachmentStoreOpDontCare,
				InitialLayout:  vk.ImageLayoutUndefined,
				FinalLayout:    vk.ImageLayoutDepthStencilAttachmentOptimal,
			},
		}
		colorRef = vk.AttachmentReference{Attachment: 0, Layout: vk.ImageLayoutColorAttachmentOptimal}
		depthRef = vk.AttachmentReference{Attachment: 1, Layout: vk.ImageLayoutDepthStencilAttachmentOptimal}
	}

	subpass := vk.SubpassDescription{
		PipelineBindPoint:       vk.PipelineBindPointGraphics,
		ColorAttachmentCount:    1,
		PColorAttachments:       []vk.AttachmentReference{colorRef},
		PDepthStencilAttachment: &depthRef,
		PResolveAttachments:     resolveRefs,
	}

	dependency := vk.SubpassDependency{
		SrcSubpass:    vk.SubpassExternal,
		DstSubpass:    0,
		SrcStageMask:  vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
		SrcAccessMask: 0,
		DstStageMask:  vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
		DstAccessMask: vk.AccessFlags(vk.AccessColorAttachmentReadBit | vk.AccessColorAttachmentWriteBit),
	}

	rpci := vk.RenderPassCreateInfo{
		SType:           vk.StructureTypeRenderPassCreateInfo,
		AttachmentCount: uint32(len(attachments)),
		PAttachments:    attachments,
		SubpassCount:    1,
		PSubpasses:      []vk.SubpassDescription{subpass},
		DependencyCount: 1,
		PDependencies:   []vk.SubpassDependency{dependency},
	}

	var renderPass vk.RenderPass
	if err := vk.Error(vk.CreateRenderPass(d.device, &rpci, nil, &renderPass)); err != nil {
		return 0, errors.New("vk.CreateRenderPass(): " + err.Error())
	}
	d.renderPasses = append(d.renderPasses, renderPass)
	return RenderPass(len(d.renderPasses)), nil
}

// Destroy waits for the device to go idle and releases everything this
// wrapper still owns. The logical device itself stays alive; the
// session that created it destroys it last.
func (d *VulkanDevice) Destroy() {
	vk.DeviceWaitIdle(d.device)

	for i, fb := range d.framebuffers {
		if fb != vk.NullFramebuffer {
			vk.DestroyFramebuffer(d.device, fb, nil)
			d.framebuffers[i] = vk.NullFramebuffer
		}
	}
	for i, view := range d.views {
		if view != vk.NullImageView {
			vk.DestroyImageView(d.device, view, nil)
			d.views[i] = vk.NullImageView
		}
	}
	for i, img := range d.images {
		if img != vk.NullImage && d.imageMemory[i] != vk.NullDeviceMemory {
			vk.DestroyImage(d.device, img, nil)
			vk.FreeMemory(d.device, d.imageMemory[i], nil)
		}
		d.images[i] = vk.NullImage
		d.imageMemory[i] = vk.NullDeviceMemory
	}
	for i := range d.buffers {
		d.DestroyBuffer(Buffer(i + 1))
	}
	for i, rp := range d.renderPasses {
		if rp != vk.NullRenderPass {
			vk.DestroyRenderPass(d.device, rp, nil)
			d.renderPasses[i] = vk.NullRenderPass
		}
	}
	for i, sem := range d.semaphores {
		if sem != vk.NullSemaphore {
			vk.DestroySemaphore(d.device, sem, nil)
			d.semaphores[i] = vk.NullSemaphore
		}
	}
	for i, fence := range d.fences {
		if fence != vk.NullFence {
			vk.DestroyFence(d.device, fence, nil)
			d.fences[i] = vk.NullFence
		}
	}

	vk.DestroyCommandPool(d.device, d.commandPool, nil)
}

func (d *VulkanDevice) allocate(req vk.MemoryRequirements, properties vk.MemoryPropertyFlags) (vk.DeviceMemory, error) {
	memoryType, err := d.findMemoryType(req.MemoryTypeBits, properties)
	if err != nil {
		return vk.NullDeviceMemory, err
	}

	mai := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  req.Size,
		MemoryTypeIndex: memoryType,
	}

	var memory vk.DeviceMemory
	if err := vk.Error(vk.AllocateMemory(d.device, &mai, nil, &memory)); err != nil {
		return vk.NullDeviceMemory, errors.New("vk.AllocateMemory(): " + err.Error())
	}
	return memory, nil
}

func (d *VulkanDevice) findMemoryType(filter uint32, properties vk.MemoryPropertyFlags) (uint32, error) {
	for idx := uint32(0); idx < d.memProperties.MemoryTypeCount; idx++ {
		d.memProperties.MemoryTypes[idx].Deref()
		if filter&(1<<idx) != 0 && (d.memProperties.MemoryTypes[idx].PropertyFlags&properties) == properties {
			return idx, nil
		}
	}
	return 0, errors.New("vulkan: suitable memory type not found")
}

func sampleCountFlag(samples int) vk.SampleCountFlagBits {
	switch {
	case samples >= 64:
		return vk.SampleCount64Bit
	case samples >= 32:
		return vk.SampleCount32Bit
	case samples >= 16:
		return vk.SampleCount16Bit
	case samples >= 8:
		return vk.SampleCount8Bit
	case samples >= 4:
		return vk.SampleCount4Bit
	case samples >= 2:
		return vk.SampleCount2Bit
	default:
		return vk.SampleCount1Bit
	}
}

// Registry lookups. Handle 0 is null; indices are handle-1.

func (d *VulkanDevice) fence(h Fence) (vk.Fence, error) {
	if h == 0 || int(h) > len(d.fences) || d.fences[h-1] == vk.NullFence {
		return vk.NullFence, fmt.Errorf("vulkan: unknown fence %d", h)
	}
	return d.fences[h-1], nil
}

func (d *VulkanDevice) semaphore(h Semaphore) (vk.Semaphore, error) {
	if h == 0 || int(h) > len(d.semaphores) || d.semaphores[h-1] == vk.NullSemaphore {
		return vk.NullSemaphore, fmt.Errorf("vulkan: unknown semaphore %d", h)
	}
	return d.semaphores[h-1], nil
}

func (d *VulkanDevice) image(h Image) (vk.Image, error) {
	if h == 0 || int(h) > len(d.images) || d.images[h-1] == vk.NullImage {
		return vk.NullImage, fmt.Errorf("vulkan: unknown image %d", h)
	}
	return d.images[h-1], nil
}

func (d *VulkanDevice) view(h ImageView) (vk.ImageView, error) {
	if h == 0 || int(h) > len(d.views) || d.views[h-1] == vk.NullImageView {
		return vk.NullImageView, fmt.Errorf("vulkan: unknown image view %d", h)
	}
	return d.views[h-1], nil
}

func (d *VulkanDevice) framebuffer(h Framebuffer) (vk.Framebuffer, error) {
	if h == 0 || int(h) > len(d.framebuffers) || d.framebuffers[h-1] == vk.NullFramebuffer {
		return vk.NullFramebuffer, fmt.Errorf("vulkan: unknown framebuffer %d", h)
	}
	return d.framebuffers[h-1], nil
}

func (d *VulkanDevice) renderPass(h RenderPass) (vk.RenderPass, error) {
	if h == 0 || int(h) > len(d.renderPasses) || d.renderPasses[h-1] == vk.NullRenderPass {
		return vk.NullRenderPass, fmt.Errorf("vulkan: unknown render pass %d", h)
	}
	return d.renderPasses[h-1], nil
}

func (d *VulkanDevice) commandBuffer(h CommandBuffer) (vk.CommandBuffer, error) {
	if h == 0 || int(h) > len(d.commandBuffers) {
		return nil, fmt.Errorf("vulkan: unknown command buffer %d", h)
	}
	return d.commandBuffers[h-1], nil
}
