// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package main

import (
	"context"
	"flag"
	"math"
	"os"
	"runtime"
	"runtime/pprof"
	"runtime/trace"
	"sync"
	"sync/atomic"
	"time"

	"github.com/devblok/vkswap/core"
	"github.com/devblok/vkswap/device"
	"github.com/devblok/vkswap/gfx/vkr"
	"github.com/devblok/vkswap/swapchain"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/veandco/go-sdl2/sdl"
	vk "github.com/vulkan-go/vulkan"
)

func init() {
	runtime.LockOSThread()
}

var (
	frameCounter int64
	recreations  int64
)

// Profiling
var (
	cpuProfile   = flag.String("cpuprof", "", "Profile CPU usage to file")
	memProfile   = flag.String("memprof", "", "Profile memory usage into a file")
	traceProfile = flag.String("trace", "", "Trace output for profiling")
	debug        = flag.Bool("vkdbg", false, "Load Vulkan validation layers")
)

func newWindow(cfg core.RendererConfiguration) (*sdl.Window, error) {
	return sdl.CreateWindow("Koru3D",
		sdl.WINDOWPOS_UNDEFINED,
		sdl.WINDOWPOS_UNDEFINED,
		int32(cfg.ScreenWidth),
		int32(cfg.ScreenHeight),
		sdl.WINDOW_VULKAN|sdl.WINDOW_RESIZABLE)
}

func main() {
	flag.Parse()

	configuration, err := core.LoadConfiguration()
	if err != nil {
		log.WithError(err).Fatal("Failed to load configuration")
	}
	log.SetLevel(configuration.LogLevel)
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	if *cpuProfile != "" {
		f, err := os.Create(*cpuProfile)
		if err != nil {
			panic(err)
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			panic(err)
		}
		defer pprof.StopCPUProfile()
	}

	if *traceProfile != "" {
		f, err := os.Create(*traceProfile)
		if err != nil {
			panic(err)
		}
		if err := trace.Start(f); err != nil {
			panic(err)
		}
		defer trace.Stop()
	}

	if err := run(configuration); err != nil {
		log.WithError(err).Error("Exited with an error")
	}

	if *memProfile != "" {
		f, err := os.Create(*memProfile)
		if err != nil {
			panic(err)
		}
		if err := pprof.WriteHeapProfile(f); err != nil {
			panic(err)
		}
	}
}

func run(configuration core.Configuration) error {
	if err := sdl.Init(sdl.INIT_VIDEO | sdl.INIT_EVENTS); err != nil {
		return errors.Wrap(err, "sdl.Init()")
	}
	defer sdl.Quit()

	if err := sdl.VulkanLoadLibrary(""); err != nil {
		return errors.Wrap(err, "sdl.VulkanLoadLibrary()")
	}
	defer sdl.VulkanUnloadLibrary()

	sdlWindow, err := newWindow(configuration.Renderer)
	if err != nil {
		return errors.Wrap(err, "sdl.CreateWindow()")
	}
	defer sdlWindow.Destroy()

	instance, err := vkr.NewInstance(vkr.DefaultApplicationInfo, sdl.VulkanGetVkGetInstanceProcAddr(), vkr.InstanceConfig{
		DebugMode:  *debug || configuration.Renderer.DebugMode,
		Extensions: sdlWindow.VulkanGetInstanceExtensions(),
	})
	if err != nil {
		return err
	}
	defer instance.Destroy()

	infos := device.Inventory(instance.PhysicalDevices())
	picked, err := device.Pick(infos, []string{vkr.SwapchainExtension})
	if err != nil {
		return err
	}
	pdev := instance.PhysicalDevices()[picked]
	log.WithFields(log.Fields{
		"device": infos[picked].Name,
		"type":   infos[picked].Type,
		"driver": infos[picked].DriverVersion,
	}).Info("Physical device picked")

	srf, err := sdlWindow.VulkanCreateSurface(instance.Handle())
	if err != nil {
		return errors.Wrap(err, "sdl.VulkanCreateSurface()")
	}
	surface := vkr.NewSurface(instance, pdev, uintptr(srf))
	defer surface.Destroy()

	families, err := device.FindQueueFamilies(pdev, surface.Handle())
	if err != nil {
		return err
	}
	dev, err := vkr.NewDevice(pdev, families, nil)
	if err != nil {
		return err
	}
	defer dev.Destroy()

	manager, err := swapchain.New(swapchain.Config{
		Device:        dev,
		Surface:       surface,
		Swapchains:    vkr.NewSwapchainFactory(dev, surface),
		GraphicsQueue: dev.GraphicsQueue(),
		PresentQueue:  dev.PresentQueue(),
		PreferredFormats: []swapchain.SurfaceFormat{
			{Format: vk.FormatB8g8r8a8Unorm, ColorSpace: vk.ColorSpaceSrgbNonlinear},
		},
		PreferredPresentModes: configuration.Renderer.PresentModes,
		ImageUsage:            vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit | vk.ImageUsageTransferDstBit),
		FenceTimeout:          configuration.Renderer.FenceTimeout,
		ChainOldSwapchain:     true,
		Logger:                log.WithField("component", "swapchain"),
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := manager.Close(); err != nil {
			log.WithError(err).Warn("Swapchain did not close cleanly")
		}
	}()

	clearer, err := vkr.NewClearer(dev, len(manager.ImageIndices()))
	if err != nil {
		return err
	}
	defer clearer.Destroy()
	defer dev.WaitIdle()

	timeService := core.NewTime(configuration.Time)
	defer timeService.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	programSync := sync.WaitGroup{}
	resized := make(chan struct{}, 1)

	/* Swapchain events */
	go func() {
		for event := range manager.Events() {
			if _, ok := event.(swapchain.Recreated); ok {
				atomic.AddInt64(&recreations, 1)
			}
		}
	}()

	/* Frame counter loop */
	programSync.Add(1)
	go func(ctx context.Context, wg *sync.WaitGroup) {
		defer wg.Done()
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				log.WithFields(log.Fields{
					"frames":     atomic.SwapInt64(&frameCounter, 0),
					"recreated":  atomic.LoadInt64(&recreations),
					"cgo_calls":  runtime.NumCgoCall(),
					"goroutines": runtime.NumGoroutine(),
				}).Info("Frame count")
			}
		}
	}(ctx, &programSync)

	/* Renderer loop */
	programSync.Add(1)
	go func(ctx context.Context, wg *sync.WaitGroup) {
		defer wg.Done()
		var constant float64
		for {
			select {
			case <-ctx.Done():
				log.Debug("Draw loop exited")
				return
			case <-resized:
				if err := manager.Recreate(); err != nil {
					log.WithError(err).Warn("Recreate after resize failed")
				}
			case <-timeService.FpsTicker().C:
				if err := drawFrame(ctx, manager, clearer, constant); err != nil {
					log.WithError(err).Error("Draw error")
					cancel()
					return
				}
				constant += 0.005
			}
		}
	}(ctx, &programSync)

	/* Event loop */
EventLoop:
	for {
		select {
		case <-ctx.Done():
			break EventLoop
		case <-timeService.EventTicker().C:
			var event sdl.Event
			for event = sdl.PollEvent(); event != nil; event = sdl.PollEvent() {
				switch et := event.(type) {
				case *sdl.KeyboardEvent:
					if et.Keysym.Sym == sdl.K_ESCAPE {
						cancel()
						continue EventLoop
					}
				case *sdl.WindowEvent:
					if et.Event == sdl.WINDOWEVENT_SIZE_CHANGED {
						w, h := sdlWindow.VulkanGetDrawableSize()
						log.WithFields(log.Fields{"width": w, "height": h}).Debug("Window resized")
						select {
						case resized <- struct{}{}:
						default:
						}
					}
				case *sdl.QuitEvent:
					cancel()
					continue EventLoop
				}
			}
		}
	}

	programSync.Wait()
	return nil
}

// drawFrame acquires an image, clears it to a color cycling with constant
// and presents it. Frames that cannot be drawn right now are skipped.
func drawFrame(ctx context.Context, manager *swapchain.Manager, clearer *vkr.Clearer, constant float64) error {
	img, err := manager.Acquire(ctx)
	switch {
	case errors.Is(err, context.Canceled):
		return nil
	case errors.Is(err, swapchain.ErrZeroExtent):
		// Minimized, try again on the next tick.
		return nil
	case err != nil:
		return err
	}

	color := [4]float32{
		float32(0.5 + 0.5*math.Sin(constant)),
		float32(0.5 + 0.5*math.Sin(constant+2*math.Pi/3)),
		float32(0.5 + 0.5*math.Sin(constant+4*math.Pi/3)),
		1,
	}
	if err := clearer.Clear(img, color); err != nil {
		return err
	}

	if err := img.Present(); err != nil {
		if errors.Is(err, swapchain.ErrOutOfDate) {
			if err := manager.Recreate(); err != nil && !errors.Is(err, swapchain.ErrZeroExtent) {
				return err
			}
			return nil
		}
		return err
	}
	atomic.AddInt64(&frameCounter, 1)
	return nil
}
