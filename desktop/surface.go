// Copyright (c) 2026 fathom3d
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package desktop

import (
	"errors"
	"math"

	vk "github.com/vulkan-go/vulkan"

	"github.com/fathom3d/fathom/core"
)

// vkSurface implements core.Surface over a window-system swapchain.
// Rebuild chains the previous swapchain through OldSwapchain so
// in-flight presents finish against the retired one.
type vkSurface struct {
	device     *core.VulkanDevice
	surface    vk.Surface
	format     vk.Format
	colorSpace vk.ColorSpace

	width  uint32
	height uint32

	swapchain vk.Swapchain
}

func (v *vkSurface) Rebuild() ([]core.Image, core.Extent2D, error) {
	var surfaceCapabilities vk.SurfaceCapabilities
	if err := vk.Error(vk.GetPhysicalDeviceSurfaceCapabilities(v.device.PhysicalDevice(), v.surface, &surfaceCapabilities)); err != nil {
		return nil, core.Extent2D{}, errors.New("vk.GetPhysicalDeviceSurfaceCapabilities(): " + err.Error())
	}
	surfaceCapabilities.Deref()
	surfaceCapabilities.CurrentExtent.Deref()

	// CurrentExtent of MaxUint32 means the window manager lets the
	// swapchain pick; keep the last known size then.
	if surfaceCapabilities.CurrentExtent.Width != math.MaxUint32 {
		v.width = surfaceCapabilities.CurrentExtent.Width
		v.height = surfaceCapabilities.CurrentExtent.Height
	}

	imageCount := surfaceCapabilities.MinImageCount + 1
	if surfaceCapabilities.MaxImageCount > 0 && imageCount > surfaceCapabilities.MaxImageCount {
		imageCount = surfaceCapabilities.MaxImageCount
	}

	compositeAlpha := vk.CompositeAlphaOpaqueBit
	compositeAlphaFlags := []vk.CompositeAlphaFlagBits{
		vk.CompositeAlphaOpaqueBit,
		vk.CompositeAlphaPreMultipliedBit,
		vk.CompositeAlphaPostMultipliedBit,
		vk.CompositeAlphaInheritBit,
	}
	for i := 0; i < len(compositeAlphaFlags); i++ {
		alphaFlags := vk.CompositeAlphaFlags(compositeAlphaFlags[i])
		if surfaceCapabilities.SupportedCompositeAlpha&alphaFlags != 0 {
			compositeAlpha = compositeAlphaFlags[i]
			break
		}
	}

	scci := vk.SwapchainCreateInfo{
		SType:           vk.StructureTypeSwapchainCreateInfo,
		Surface:         v.surface,
		MinImageCount:   imageCount,
		ImageFormat:     v.format,
		ImageColorSpace: v.colorSpace,
		ImageExtent: vk.Extent2D{
			Width:  v.width,
			Height: v.height,
		},
		ImageUsage:       vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit),
		PreTransform:     vk.SurfaceTransformIdentityBit,
		CompositeAlpha:   compositeAlpha,
		PresentMode:      vk.PresentModeFifo,
		Clipped:          vk.True,
		ImageArrayLayers: 1,
		ImageSharingMode: vk.SharingModeExclusive,
		OldSwapchain:     v.swapchain,
	}

	var swapchain vk.Swapchain
	if err := vk.Error(vk.CreateSwapchain(v.device.Handle(), &scci, nil, &swapchain)); err != nil {
		return nil, core.Extent2D{}, errors.New("vk.CreateSwapchain(): " + err.Error())
	}
	if v.swapchain != vk.NullSwapchain {
		vk.DestroySwapchain(v.device.Handle(), v.swapchain, nil)
	}
	v.swapchain = swapchain

	var numImages uint32
	if err := vk.Error(vk.GetSwapchainImages(v.device.Handle(), v.swapchain, &numImages, nil)); err != nil {
		return nil, core.Extent2D{}, errors.New("vk.GetSwapchainImages(num): " + err.Error())
	}
	swapImages := make([]vk.Image, numImages)
	if err := vk.Error(vk.GetSwapchainImages(v.device.Handle(), v.swapchain, &numImages, swapImages)); err != nil {
		return nil, core.Extent2D{}, errors.New("vk.GetSwapchainImages(images): " + err.Error())
	}

	images := make([]core.Image, numImages)
	for i, img := range swapImages {
		images[i] = v.device.ImportImage(img)
	}
	return images, core.Extent2D{Width: v.width, Height: v.height}, nil
}

func (v *vkSurface) Acquire(imageAvailable core.Semaphore) (uint32, error) {
	var imageIndex uint32
	result := vk.AcquireNextImage(v.device.Handle(), v.swapchain, math.MaxUint64,
		v.device.VkSemaphore(imageAvailable), vk.NullFence, &imageIndex)
	if result == vk.ErrorOutOfDate {
		return 0, core.ErrOutOfDate
	}
	// Suboptimal still delivered a usable image.
	if result != vk.Suboptimal {
		if err := vk.Error(result); err != nil {
			return 0, errors.New("vk.AcquireNextImage(): " + err.Error())
		}
	}
	return imageIndex, nil
}

func (v *vkSurface) Present(imageIndex uint32, renderFinished core.Semaphore) error {
	presentInfo := vk.PresentInfo{
		SType:              vk.StructureTypePresentInfo,
		WaitSemaphoreCount: 1,
		PWaitSemaphores:    []vk.Semaphore{v.device.VkSemaphore(renderFinished)},
		SwapchainCount:     1,
		PSwapchains:        []vk.Swapchain{v.swapchain},
		PImageIndices:      []uint32{imageIndex},
	}

	result := vk.QueuePresent(v.device.Queue(), &presentInfo)
	if result == vk.ErrorOutOfDate {
		return core.ErrOutOfDate
	}
	if result != vk.Suboptimal {
		if err := vk.Error(result); err != nil {
			return errors.New("vk.QueuePresent(): " + err.Error())
		}
	}
	return nil
}

func (v *vkSurface) Destroy() {
	if v.swapchain != vk.NullSwapchain {
		vk.DestroySwapchain(v.device.Handle(), v.swapchain, nil)
		v.swapchain = vk.NullSwapchain
	}
}
