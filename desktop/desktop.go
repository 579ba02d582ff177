// Copyright (c) 2026 fathom3d
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package desktop runs the frame loop against an SDL window and a
// window-system swapchain. Sessions created here report a single view
// and synchronize present with semaphores.
package desktop

import (
	"errors"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/veandco/go-sdl2/sdl"
	vk "github.com/vulkan-go/vulkan"

	"github.com/fathom3d/fathom/core"
	"github.com/fathom3d/fathom/loop"
)

// Session is a window-backed loop.Session. Create it with NewSession
// on the thread that will run the loop; SDL requires both to stay on
// the same OS thread.
type Session struct {
	window   *sdl.Window
	instance vk.Instance
	surface  vk.Surface

	logicalDevice vk.Device
	device        *core.VulkanDevice
	swapchain     *core.SwapchainController

	exitRequested bool
	destroyed     bool
}

// NewSession brings up SDL, a Vulkan instance, a window surface and a
// logical device, and wires a swapchain controller around them. The
// swapchain itself is built lazily on the first acquire.
func NewSession(cfg core.Configuration) (*Session, error) {
	if err := sdl.Init(sdl.INIT_VIDEO | sdl.INIT_EVENTS); err != nil {
		return nil, errors.New("sdl.Init(): " + err.Error())
	}
	if err := sdl.VulkanLoadLibrary(""); err != nil {
		sdl.Quit()
		return nil, errors.New("sdl.VulkanLoadLibrary(): " + err.Error())
	}

	window, err := sdl.CreateWindow(cfg.AppName,
		sdl.WINDOWPOS_UNDEFINED,
		sdl.WINDOWPOS_UNDEFINED,
		int32(cfg.ScreenWidth),
		int32(cfg.ScreenHeight),
		sdl.WINDOW_VULKAN|sdl.WINDOW_RESIZABLE)
	if err != nil {
		sdl.VulkanUnloadLibrary()
		sdl.Quit()
		return nil, errors.New("sdl.CreateWindow(): " + err.Error())
	}

	s := &Session{window: window}
	if err := s.initVulkan(cfg); err != nil {
		window.Destroy()
		sdl.VulkanUnloadLibrary()
		sdl.Quit()
		return nil, err
	}
	return s, nil
}

func (s *Session) initVulkan(cfg core.Configuration) error {
	vk.SetGetInstanceProcAddr(sdl.VulkanGetVkGetInstanceProcAddr())
	if err := vk.Init(); err != nil {
		return errors.New("vk.Init(): " + err.Error())
	}

	extensions := safeStrings(s.window.VulkanGetInstanceExtensions())
	var layers []string
	if cfg.DebugMode {
		layers = append(layers, safeString("VK_LAYER_KHRONOS_validation"))
	}

	appInfo := &vk.ApplicationInfo{
		SType:              vk.StructureTypeApplicationInfo,
		ApiVersion:         vk.MakeVersion(1, 0, 0),
		ApplicationVersion: vk.MakeVersion(1, 0, 0),
		PApplicationName:   safeString(cfg.AppName),
		PEngineName:        safeString("fathom"),
	}

	instanceInfo := vk.InstanceCreateInfo{
		SType:                   vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo:        appInfo,
		EnabledExtensionCount:   uint32(len(extensions)),
		PpEnabledExtensionNames: extensions,
		EnabledLayerCount:       uint32(len(layers)),
		PpEnabledLayerNames:     layers,
	}

	var instance vk.Instance
	if err := vk.Error(vk.CreateInstance(&instanceInfo, nil, &instance)); err != nil {
		return errors.New("vk.CreateInstance(): " + err.Error())
	}
	vk.InitInstance(instance)
	s.instance = instance

	surfacePtr, err := s.window.VulkanCreateSurface(instance)
	if err != nil {
		return errors.New("sdl.VulkanCreateSurface(): " + err.Error())
	}
	s.surface = vk.SurfaceFromPointer(uintptr(surfacePtr))

	physicalDevice, queueFamily, err := pickPhysicalDevice(instance, s.surface)
	if err != nil {
		return err
	}

	queueInfos := []vk.DeviceQueueCreateInfo{{
		SType:            vk.StructureTypeDeviceQueueCreateInfo,
		QueueFamilyIndex: queueFamily,
		QueueCount:       1,
		PQueuePriorities: []float32{1},
	}}
	requiredExtensions := []string{
		safeString(vk.KhrSwapchainExtensionName),
	}
	dci := vk.DeviceCreateInfo{
		SType:                   vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount:    uint32(len(queueInfos)),
		PQueueCreateInfos:       queueInfos,
		EnabledExtensionCount:   uint32(len(requiredExtensions)),
		PpEnabledExtensionNames: requiredExtensions,
	}

	var logicalDevice vk.Device
	if err := vk.Error(vk.CreateDevice(physicalDevice, &dci, nil, &logicalDevice)); err != nil {
		return errors.New("vk.CreateDevice(): " + err.Error())
	}
	s.logicalDevice = logicalDevice

	var queue vk.Queue
	vk.GetDeviceQueue(logicalDevice, queueFamily, 0, &queue)

	device, err := core.NewVulkanDevice(logicalDevice, physicalDevice, queue, queueFamily)
	if err != nil {
		return err
	}
	s.device = device

	format, colorSpace, err := pickSurfaceFormat(physicalDevice, s.surface)
	if err != nil {
		return err
	}
	device.SetColorFormat(format)

	s.swapchain = core.NewSwapchainController(&vkSurface{
		device:     device,
		surface:    s.surface,
		format:     format,
		colorSpace: colorSpace,
		width:      cfg.ScreenWidth,
		height:     cfg.ScreenHeight,
	}, cfg.AcquireRetries)

	log.WithField("queueFamily", queueFamily).Debug("desktop session ready")
	return nil
}

// Device exposes the session's device for core.NewCore.
func (s *Session) Device() core.Device {
	return s.device
}

// PumpEvents implements loop.Session. Every event is forwarded to the
// application; a window quit exits regardless of what the application
// answered.
func (s *Session) PumpEvents(app loop.App) (bool, error) {
	if s.exitRequested {
		return true, nil
	}
	for event := sdl.PollEvent(); event != nil; event = sdl.PollEvent() {
		exit, err := app.Event(event)
		if err != nil {
			return false, err
		}
		if _, quit := event.(*sdl.QuitEvent); quit || exit {
			return true, nil
		}
	}
	return false, nil
}

// Running implements loop.Session. A window session always wants
// frames.
func (s *Session) Running() bool {
	return true
}

// Stereo implements loop.Session.
func (s *Session) Stereo() bool {
	return false
}

// PresentSync implements loop.Session. Window presents are ordered
// with the acquire and render-finished semaphores.
func (s *Session) PresentSync() bool {
	return true
}

// Acquire implements loop.Session.
func (s *Session) Acquire(imageAvailable core.Semaphore) (loop.AcquireResult, error) {
	index, rebuild, err := s.swapchain.Acquire(imageAvailable)
	if err != nil {
		return loop.AcquireResult{}, err
	}
	result := loop.AcquireResult{ImageIndex: index}
	if rebuild != nil {
		result.Resize = &loop.ResizeInfo{
			Images: rebuild.Images,
			Extent: rebuild.Extent,
		}
	}
	return result, nil
}

// Present implements loop.Session. The frame's views are not needed;
// the compositor contract is the only consumer of those.
func (s *Session) Present(imageIndex uint32, renderFinished core.Semaphore, _ loop.FrameReturn) error {
	return s.swapchain.Present(imageIndex, renderFinished)
}

// RequestExit implements loop.Session.
func (s *Session) RequestExit() {
	s.exitRequested = true
}

// Destroy implements loop.Session. It tears down in reverse creation
// order and is safe to call once.
func (s *Session) Destroy() {
	if s.destroyed {
		return
	}
	s.destroyed = true

	if s.device != nil {
		s.device.WaitIdle()
	}
	if s.swapchain != nil {
		s.swapchain.Destroy()
	}
	if s.device != nil {
		s.device.Destroy()
	}
	if s.logicalDevice != nil {
		vk.DestroyDevice(s.logicalDevice, nil)
	}
	if s.surface != vk.NullSurface {
		vk.DestroySurface(s.instance, s.surface, nil)
	}
	if s.instance != nil {
		vk.DestroyInstance(s.instance, nil)
	}
	if s.window != nil {
		s.window.Destroy()
	}
	sdl.VulkanUnloadLibrary()
	sdl.Quit()
}

func pickPhysicalDevice(instance vk.Instance, surface vk.Surface) (vk.PhysicalDevice, uint32, error) {
	var deviceCount uint32
	if err := vk.Error(vk.EnumeratePhysicalDevices(instance, &deviceCount, nil)); err != nil {
		return nil, 0, errors.New("vk.EnumeratePhysicalDevices(): " + err.Error())
	}
	if deviceCount == 0 {
		return nil, 0, errors.New("vulkan: no physical devices available")
	}
	devices := make([]vk.PhysicalDevice, deviceCount)
	if err := vk.Error(vk.EnumeratePhysicalDevices(instance, &deviceCount, devices)); err != nil {
		return nil, 0, errors.New("vk.EnumeratePhysicalDevices(): " + err.Error())
	}

	for _, device := range devices {
		var queueFamilyCount uint32
		vk.GetPhysicalDeviceQueueFamilyProperties(device, &queueFamilyCount, nil)
		queueFamilies := make([]vk.QueueFamilyProperties, queueFamilyCount)
		vk.GetPhysicalDeviceQueueFamilyProperties(device, &queueFamilyCount, queueFamilies)

		for i := uint32(0); i < queueFamilyCount; i++ {
			queueFamilies[i].Deref()
			if queueFamilies[i].QueueFlags&vk.QueueFlags(vk.QueueGraphicsBit) == 0 {
				continue
			}
			var supportsPresent vk.Bool32
			vk.GetPhysicalDeviceSurfaceSupport(device, i, surface, &supportsPresent)
			if supportsPresent.B() {
				return device, i, nil
			}
		}
	}
	return nil, 0, errors.New("vulkan: no queue family with graphics and present support")
}

func pickSurfaceFormat(device vk.PhysicalDevice, surface vk.Surface) (vk.Format, vk.ColorSpace, error) {
	var formatCount uint32
	if err := vk.Error(vk.GetPhysicalDeviceSurfaceFormats(device, surface, &formatCount, nil)); err != nil {
		return 0, 0, errors.New("vk.GetPhysicalDeviceSurfaceFormats(): " + err.Error())
	}
	formats := make([]vk.SurfaceFormat, formatCount)
	if err := vk.Error(vk.GetPhysicalDeviceSurfaceFormats(device, surface, &formatCount, formats)); err != nil {
		return 0, 0, errors.New("vk.GetPhysicalDeviceSurfaceFormats(): " + err.Error())
	}
	if formatCount == 0 {
		return 0, 0, errors.New("vulkan: surface reports no formats")
	}

	for i := range formats {
		formats[i].Deref()
		if formats[i].Format == core.DefaultColorFormat {
			return formats[i].Format, formats[i].ColorSpace, nil
		}
	}
	return formats[0].Format, formats[0].ColorSpace, nil
}

func safeString(s string) string {
	if strings.HasSuffix(s, "\x00") {
		return s
	}
	return s + "\x00"
}

func safeStrings(list []string) []string {
	out := make([]string, len(list))
	for i, s := range list {
		out[i] = safeString(s)
	}
	return out
}
