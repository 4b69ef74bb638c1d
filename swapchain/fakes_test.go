package swapchain

import (
	"fmt"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	vk "github.com/vulkan-go/vulkan"
)

// recorder keeps the order in which fake objects were destroyed.
type recorder struct {
	destroyed []string
}

type fakeObject struct {
	name      string
	rec       *recorder
	destroys  int
	destroyFn func() error
}

func (o *fakeObject) Destroy() error {
	o.destroys++
	o.rec.destroyed = append(o.rec.destroyed, o.name)
	if o.destroyFn != nil {
		return o.destroyFn()
	}
	return nil
}

type fakeFence struct {
	fakeObject
	signaled bool

	// timeouts is the number of upcoming waits that time out.
	timeouts int
	waits    int
	waitErr  error
}

func (f *fakeFence) Wait(time.Duration) (bool, error) {
	f.waits++
	if f.waitErr != nil {
		return false, f.waitErr
	}
	if f.timeouts > 0 {
		f.timeouts--
		return false, nil
	}
	return f.signaled, nil
}

func (f *fakeFence) Signaled() (bool, error) {
	return f.signaled, nil
}

func (f *fakeFence) Reset() error {
	f.signaled = false
	return nil
}

type fakeDevice struct {
	rec *recorder

	views      []*fakeObject
	semaphores []*fakeObject
	fences     []*fakeFence

	// fail* make the n-th creation of that kind fail, counting from 1.
	failViewAt      int
	failSemaphoreAt int
	failFenceAt     int
}

func (d *fakeDevice) CreateImageView(img Image, _ vk.Format) (ImageView, error) {
	if len(d.views)+1 == d.failViewAt {
		return nil, errors.New("out of device memory")
	}
	v := &fakeObject{name: fmt.Sprintf("view(%v)", img), rec: d.rec}
	d.views = append(d.views, v)
	return v, nil
}

func (d *fakeDevice) CreateSemaphore() (Semaphore, error) {
	if len(d.semaphores)+1 == d.failSemaphoreAt {
		return nil, errors.New("out of device memory")
	}
	s := &fakeObject{name: fmt.Sprintf("semaphore%d", len(d.semaphores)), rec: d.rec}
	d.semaphores = append(d.semaphores, s)
	return s, nil
}

func (d *fakeDevice) CreateFence(signaled bool) (Fence, error) {
	if len(d.fences)+1 == d.failFenceAt {
		return nil, errors.New("out of device memory")
	}
	f := &fakeFence{
		fakeObject: fakeObject{name: fmt.Sprintf("fence%d", len(d.fences)), rec: d.rec},
		signaled:   signaled,
	}
	d.fences = append(d.fences, f)
	return f, nil
}

func (d *fakeDevice) live() int {
	n := 0
	for _, v := range d.views {
		if v.destroys == 0 {
			n++
		}
	}
	for _, s := range d.semaphores {
		if s.destroys == 0 {
			n++
		}
	}
	for _, f := range d.fences {
		if f.destroys == 0 {
			n++
		}
	}
	return n
}

type fakeSurface struct {
	caps    SurfaceCapabilities
	formats []SurfaceFormat
	modes   []vk.PresentMode
	capsErr error
}

func (s *fakeSurface) Capabilities() (SurfaceCapabilities, error) { return s.caps, s.capsErr }
func (s *fakeSurface) Formats() ([]SurfaceFormat, error)        { return s.formats, nil }
func (s *fakeSurface) PresentModes() ([]vk.PresentMode, error)  { return s.modes, nil }

type fakeSwapchain struct {
	fakeObject
	images []Image

	// script is replayed by AcquireNextImage; once it runs out images
	// are handed out round robin.
	script   []AcquireResult
	next     uint32
	acquires int
}

func (s *fakeSwapchain) Images() ([]Image, error) {
	return s.images, nil
}

func (s *fakeSwapchain) AcquireNextImage(timeout time.Duration, _ Semaphore) (AcquireResult, error) {
	if timeout != 0 {
		return AcquireResult{}, errors.New("acquire must poll")
	}
	s.acquires++
	if len(s.script) > 0 {
		res := s.script[0]
		s.script = s.script[1:]
		return res, nil
	}
	idx := s.next
	s.next = (s.next + 1) % uint32(len(s.images))
	return AcquireResult{Status: AcquireSuccess, ImageIndex: idx}, nil
}

type fakeFactory struct {
	rec        *recorder
	imageCount int

	infos   []CreateInfo
	created []*fakeSwapchain

	// scripts[n] is the acquire script of the n-th swapchain.
	scripts [][]AcquireResult
	// errs[n] fails the n-th creation when set.
	errs []error
}

func (f *fakeFactory) CreateSwapchain(info CreateInfo) (NativeSwapchain, error) {
	n := len(f.infos)
	f.infos = append(f.infos, info)
	if n < len(f.errs) && f.errs[n] != nil {
		return nil, f.errs[n]
	}

	sc := &fakeSwapchain{fakeObject: fakeObject{name: fmt.Sprintf("swapchain%d", len(f.created)), rec: f.rec}}
	for idx := 0; idx < f.imageCount; idx++ {
		sc.images = append(sc.images, fmt.Sprintf("sc%d/img%d", len(f.created), idx))
	}
	if n < len(f.scripts) {
		sc.script = f.scripts[n]
	}
	f.created = append(f.created, sc)
	return sc, nil
}

type fakeQueue struct {
	family   uint32
	presents []PresentInfo
	status   PresentStatus
	err      error

	// keepFence leaves the present done fence unsignalled, as if the
	// presentation engine still used the image.
	keepFence bool
}

func (q *fakeQueue) FamilyIndex() uint32 { return q.family }

func (q *fakeQueue) Present(info PresentInfo) (PresentStatus, error) {
	q.presents = append(q.presents, info)
	if q.err != nil {
		return 0, q.err
	}
	if !q.keepFence {
		info.Signal.(*fakeFence).signaled = true
	}
	return q.status, nil
}

// fixture wires a complete set of fakes for a 640x480 surface with
// three swapchain images.
type fixture struct {
	rec     *recorder
	device  *fakeDevice
	surface *fakeSurface
	factory *fakeFactory
	queue   *fakeQueue
	logs    *test.Hook
	cfg     Config
}

func newFixture() *fixture {
	rec := &recorder{}
	log, hook := test.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)

	f := &fixture{
		rec:    rec,
		device: &fakeDevice{rec: rec},
		surface: &fakeSurface{
			caps: SurfaceCapabilities{
				MinImageCount:           2,
				MaxImageCount:           8,
				CurrentExtent:           vk.Extent2D{Width: 640, Height: 480},
				MinImageExtent:          vk.Extent2D{Width: 1, Height: 1},
				MaxImageExtent:          vk.Extent2D{Width: 4096, Height: 4096},
				CurrentTransform:        vk.SurfaceTransformIdentityBit,
				SupportedCompositeAlpha: vk.CompositeAlphaFlags(vk.CompositeAlphaOpaqueBit),
				SupportedUsageFlags:     vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit | vk.ImageUsageTransferDstBit),
			},
			formats: []SurfaceFormat{
				{Format: vk.FormatB8g8r8a8Unorm, ColorSpace: vk.ColorSpaceSrgbNonlinear},
				{Format: vk.FormatB8g8r8a8Srgb, ColorSpace: vk.ColorSpaceSrgbNonlinear},
			},
			modes: []vk.PresentMode{vk.PresentModeFifo, vk.PresentModeMailbox},
		},
		factory: &fakeFactory{rec: rec, imageCount: 3},
		queue:   &fakeQueue{},
		logs:    hook,
	}
	f.cfg = Config{
		Device:        f.device,
		Surface:       f.surface,
		Swapchains:    f.factory,
		GraphicsQueue: f.queue,
		PresentQueue:  f.queue,
		Logger:        log,
	}
	return f
}

func (f *fixture) newManager(t *testing.T) *Manager {
	t.Helper()
	m, err := New(f.cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { m.Close() })
	return m
}

// render stands in for the GPU work of a frame.
func render(img *SwapchainImage) {
	img.RenderDoneFence().(*fakeFence).signaled = true
}

// drain returns every event currently buffered.
func drain(m *Manager) []Event {
	var events []Event
	for {
		select {
		case e, ok := <-m.Events():
			if !ok {
				return events
			}
			events = append(events, e)
		default:
			return events
		}
	}
}

// kinds names the events in order, for compact assertions.
func kinds(events []Event) []string {
	out := make([]string, 0, len(events))
	for _, e := range events {
		out = append(out, e.Fields()["event"].(string))
	}
	return out
}
