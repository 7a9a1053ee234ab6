//go:build !headless

// vdp_vulkan.go - Vulkan device probe for the VDP

/*
 ██▓ ███▄    █ ▄▄▄█████▓ █    ██  ██▓▄▄▄█████▓ ██▓ ▒█████   ███▄    █    ▓█████  ███▄    █   ▄████  ██▓ ███▄    █ ▓█████
▓██▒ ██ ▀█   █ ▓  ██▒ ▓▒ ██  ▓██▒▓██▒▓  ██▒ ▓▒▓██▒▒██▒  ██▒ ██ ▀█   █    ▓█   ▀  ██ ▀█   █  ██▒ ▀█▒▓██▒ ██ ▀█   █ ▓█   ▀
▒██▒▓██  ▀█ ██▒▒ ▓██░ ▒░▓██  ▒██░▒██▒▒ ▓██░ ▒░▒██▒▒██░  ██▒▓██  ▀█ ██▒   ▒███   ▓██  ▀█ ██▒▒██░▄▄▄░▒██▒▓██  ▀█ ██▒▒███
░██░▓██▒  ▐▌██▒░ ▓██▓ ░ ▓▓█  ░██░░██░░ ▓██▓ ░ ░██░▒██   ██░▓██▒  ▐▌██▒   ▒▓█  ▄ ▓██▒  ▐▌██▒░▓█  ██▓░██░▓██▒  ▐▌██▒▒▓█  ▄
░██░▒██░   ▓██░  ▒██▒ ░ ▒▒█████▓ ░██░  ▒██▒ ░ ░██░░ ████▓▒░▒██░   ▓██░   ░▒████▒▒██░   ▓██░░▒▓███▀▒░██░▒██░   ▓██░░▒████▒
░▓  ░ ▒░   ▒ ▒   ▒ ░░   ░▒▓▒ ▒ ▒ ░▓    ▒ ░░   ░▓  ░ ▒░▒░▒░ ░ ▒░   ▒ ▒    ░░ ▒░ ░░ ▒░   ▒ ▒  ░▒   ▒ ░▓  ░ ▒░   ▒ ▒ ░░ ▒░ ░
 ▒ ░░ ░░   ░ ▒░    ░    ░░▒░ ░ ░  ▒ ░    ░     ▒ ░  ░ ▒ ▒░ ░ ░░   ░ ▒░    ░ ░  ░░ ░░   ░ ▒░  ░   ░  ▒ ░░ ░░   ░ ▒░ ░ ░  ░
 ▒ ░   ░   ░ ░   ░       ░░░ ░ ░  ▒ ░  ░       ▒ ░░ ░ ░ ▒     ░   ░ ░       ░      ░   ░ ░ ░ ░   ░  ▒ ░   ░   ░ ░    ░
 ░           ░             ░      ░            ░      ░ ░           ░       ░  ░         ░       ░  ░           ░    ░  ░

(c) 2024 - 2026 Zayn Otley
https://github.com/IntuitionAmiga/IntuitionEngine
Buy me a coffee: https://ko-fi.com/intuition/tip

License: GPLv3 or later
*/

/*
vdp_vulkan.go - Vulkan device probe for the VDP

The Vulkan backend creates an instance and selects the first physical
device so the host can report what it would render on. Command execution
is delegated to the embedded software backend; compute pipelines are
executed on the CPU against the staged device VRAM copy.

When no Vulkan loader or device is present the backend falls back to the
software path silently apart from a log entry.
*/

package main

import (
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/intuitionamiga/nyxbox/logger"
)

type VulkanBackend struct {
	*VDPSoftwareBackend

	instance   vk.Instance
	available  bool
	deviceName string
}

func NewVulkanBackend() *VulkanBackend {
	vb := &VulkanBackend{
		VDPSoftwareBackend: NewVDPSoftwareBackend(),
		deviceName:         "software",
	}
	if err := vb.probe(); err != nil {
		logger.Logf("vulkan", "unavailable, using software rasterizer: %v", err)
	}
	return vb
}

func (vb *VulkanBackend) probe() error {
	if err := vk.SetDefaultGetInstanceProcAddr(); err != nil {
		return fmt.Errorf("loader: %w", err)
	}
	if err := vk.Init(); err != nil {
		return fmt.Errorf("init: %w", err)
	}

	appInfo := vk.ApplicationInfo{
		SType:              vk.StructureTypeApplicationInfo,
		PApplicationName:   "NyxBox\x00",
		ApplicationVersion: vk.MakeVersion(1, 0, 0),
		PEngineName:        "NyxBox VDP\x00",
		EngineVersion:      vk.MakeVersion(1, 0, 0),
		ApiVersion:         vk.MakeVersion(1, 0, 0),
	}
	createInfo := vk.InstanceCreateInfo{
		SType:            vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo: &appInfo,
	}

	var instance vk.Instance
	if res := vk.CreateInstance(&createInfo, nil, &instance); res != vk.Success {
		return fmt.Errorf("create instance: result %d", res)
	}

	var count uint32
	if res := vk.EnumeratePhysicalDevices(instance, &count, nil); res != vk.Success || count == 0 {
		vk.DestroyInstance(instance, nil)
		return fmt.Errorf("no physical devices")
	}
	devices := make([]vk.PhysicalDevice, count)
	if res := vk.EnumeratePhysicalDevices(instance, &count, devices); res != vk.Success {
		vk.DestroyInstance(instance, nil)
		return fmt.Errorf("enumerate physical devices: result %d", res)
	}

	var props vk.PhysicalDeviceProperties
	vk.GetPhysicalDeviceProperties(devices[0], &props)
	props.Deref()

	vb.instance = instance
	vb.available = true
	vb.deviceName = vk.ToString(props.DeviceName[:])
	logger.Logf("vulkan", "device %s", vb.deviceName)
	return nil
}

// DeviceName reports the selected physical device, or "software".
func (vb *VulkanBackend) DeviceName() string {
	return vb.deviceName
}

func (vb *VulkanBackend) Destroy() {
	vb.VDPSoftwareBackend.Destroy()
	if vb.available {
		vk.DestroyInstance(vb.instance, nil)
		vb.available = false
	}
}
