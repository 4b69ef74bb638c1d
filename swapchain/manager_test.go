package swapchain

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	vk "github.com/vulkan-go/vulkan"
)

var background = context.Background()

func TestNewCreatesFirstSwapchain(t *testing.T) {
	f := newFixture()
	m := f.newManager(t)

	assert.Equal(t, []string{"created", "recreated"}, kinds(drain(m)))
	require.Len(t, f.factory.infos, 1)

	info := f.factory.infos[0]
	assert.Equal(t, uint32(3), info.MinImageCount)
	assert.Equal(t, vk.Extent2D{Width: 640, Height: 480}, info.Extent)
	assert.Equal(t, f.surface.formats[0], info.Format)
	assert.Equal(t, vk.PresentModeFifo, info.PresentMode)
	assert.Equal(t, DefaultImageUsage, info.Usage)
	assert.Equal(t, vk.SharingModeExclusive, info.SharingMode)
	assert.Equal(t, vk.CompositeAlphaOpaqueBit, info.CompositeAlpha)
	assert.Equal(t, vk.SurfaceTransformIdentityBit, info.PreTransform)
	assert.True(t, info.Clipped)
	assert.Nil(t, info.OldSwapchain)

	for _, fence := range f.device.fences {
		assert.True(t, fence.signaled, "%s starts signalled", fence.name)
	}
}

func TestNewUsesPreferences(t *testing.T) {
	f := newFixture()
	f.cfg.PreferredFormats = []SurfaceFormat{rgbaSrgb, bgraSrgb}
	f.cfg.PreferredPresentModes = []vk.PresentMode{vk.PresentModeMailbox}
	m := f.newManager(t)

	assert.Equal(t, bgraSrgb, m.Format())
	assert.Equal(t, vk.PresentModeMailbox, f.factory.infos[0].PresentMode)

	created := drain(m)[0].(Created)
	assert.Equal(t, uint64(1), created.HolderID)
	assert.Equal(t, vk.FormatB8g8r8a8Srgb, created.Format)
	assert.Equal(t, vk.PresentModeMailbox, created.PresentMode)
	assert.Equal(t, 3, created.ImageCount)
}

func TestSingleImageSurfaceGetsTwoImages(t *testing.T) {
	f := newFixture()
	f.surface.caps.MinImageCount = 1
	f.surface.caps.MaxImageCount = 0
	f.surface.caps.CurrentExtent = vk.Extent2D{Width: 640, Height: 480}
	f.surface.caps.MinImageExtent = vk.Extent2D{Width: 640, Height: 480}
	f.surface.caps.MaxImageExtent = vk.Extent2D{Width: 640, Height: 480}
	m := f.newManager(t)

	assert.Equal(t, uint32(2), f.factory.infos[0].MinImageCount)
	assert.Equal(t, vk.Extent2D{Width: 640, Height: 480}, m.Extent())
}

func TestSeparatePresentFamily(t *testing.T) {
	f := newFixture()
	f.cfg.GraphicsQueue = &fakeQueue{family: 1}
	f.newManager(t)

	info := f.factory.infos[0]
	assert.Equal(t, vk.SharingModeConcurrent, info.SharingMode)
	assert.Equal(t, []uint32{1, 0}, info.QueueFamilyIndices)
}

func TestNewValidatesConfig(t *testing.T) {
	f := newFixture()
	cfg := f.cfg
	cfg.PresentQueue = nil
	_, err := New(cfg)
	assert.ErrorIs(t, err, ErrMissingCollaborator)

	cfg = f.cfg
	cfg.MaxAcquireAttempts = -1
	_, err = New(cfg)
	assert.Error(t, err)
	assert.Empty(t, f.factory.infos)
}

func TestConfigIsCopied(t *testing.T) {
	f := newFixture()
	f.cfg.PreferredPresentModes = []vk.PresentMode{vk.PresentModeMailbox}
	m := f.newManager(t)

	f.cfg.PreferredPresentModes[0] = vk.PresentModeImmediate
	require.NoError(t, m.Recreate())
	assert.Equal(t, vk.PresentModeMailbox, f.factory.infos[1].PresentMode)
}

func TestNewFailsOnUnsupportedUsage(t *testing.T) {
	f := newFixture()
	f.cfg.ImageUsage = vk.ImageUsageFlags(vk.ImageUsageStorageBit)
	_, err := New(f.cfg)
	assert.ErrorIs(t, err, ErrUnsupportedUsage)
	assert.Empty(t, f.factory.infos)
}

func TestNewFailsOnZeroExtent(t *testing.T) {
	f := newFixture()
	f.surface.caps.CurrentExtent = vk.Extent2D{}
	f.surface.caps.MinImageExtent = vk.Extent2D{}
	_, err := New(f.cfg)
	assert.ErrorIs(t, err, ErrZeroExtent)
	assert.Empty(t, f.factory.infos)
}

func TestNewFailsWithoutImages(t *testing.T) {
	f := newFixture()
	f.factory.imageCount = 0
	_, err := New(f.cfg)
	assert.ErrorIs(t, err, ErrNoImages)
	assert.Equal(t, 1, f.factory.created[0].destroys)
}

func TestCreationRollsBackInReverseOrder(t *testing.T) {
	f := newFixture()
	f.device.failFenceAt = 3
	_, err := New(f.cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "create frame slot 1")

	assert.Equal(t, []string{
		"semaphore3", "semaphore2",
		"fence1", "fence0", "semaphore1", "semaphore0",
		"view(sc0/img2)", "view(sc0/img1)", "view(sc0/img0)",
		"swapchain0",
	}, f.rec.destroyed)
	assert.Zero(t, f.device.live())

	var failed *logrus.Entry
	for _, entry := range f.logs.AllEntries() {
		if entry.Data["event"] == "creationFailed" {
			failed = entry
		}
	}
	require.NotNil(t, failed, "creation failure is published")
	assert.Equal(t, logrus.ErrorLevel, failed.Level)
	assert.Equal(t, err.Error(), failed.Data[logrus.ErrorKey])
}

func TestRollbackOfViews(t *testing.T) {
	f := newFixture()
	f.device.failViewAt = 2
	_, err := New(f.cfg)
	require.Error(t, err)

	assert.Equal(t, []string{"view(sc0/img0)", "swapchain0"}, f.rec.destroyed)
	assert.Empty(t, f.device.semaphores)
}

func TestOutOfDateRecreatesOnce(t *testing.T) {
	f := newFixture()
	f.factory.scripts = [][]AcquireResult{{{Status: AcquireOutOfDate}}}
	m := f.newManager(t)
	drain(m)
	first := f.factory.created[0]

	img, err := m.Acquire(background)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), img.ImageIndex())
	assert.Len(t, f.factory.infos, 2, "exactly one recreation")

	events := drain(m)
	assert.Equal(t, []string{"imageAcquireFailed", "created", "recreated", "deleted", "imageAcquired"}, kinds(events))

	failed := events[0].(ImageAcquireFailed)
	assert.Equal(t, ReasonNeedsRecreation, failed.Reason)
	assert.Equal(t, uint64(1), failed.HolderID)
	assert.Equal(t, Recreated{OldHolderID: 1, NewHolderID: 2}, events[2])
	assert.Equal(t, Deleted{HolderID: 1}, events[3])
	assert.Equal(t, ImageAcquired{HolderID: 2, FrameIndex: 0, ImageIndex: 0}, events[4])

	assert.Equal(t, 1, first.destroys)
	assert.Equal(t, 0, f.factory.created[1].destroys)
}

func TestSuboptimalRecreates(t *testing.T) {
	f := newFixture()
	f.factory.scripts = [][]AcquireResult{{{Status: AcquireSuboptimal}}}
	m := f.newManager(t)

	_, err := m.Acquire(background)
	require.NoError(t, err)
	assert.Len(t, f.factory.infos, 2)
}

func TestTransientFailuresRetryWithoutRecreation(t *testing.T) {
	f := newFixture()
	f.factory.scripts = [][]AcquireResult{{
		{Status: AcquireNotReady},
		{Status: AcquireTimeout},
		{Status: AcquireSuccess, ImageIndex: 1},
	}}
	m := f.newManager(t)
	drain(m)

	img, err := m.Acquire(background)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), img.ImageIndex())
	assert.Equal(t, 0, img.FrameIndex(), "failed attempts do not advance the cursor")
	assert.Len(t, f.factory.infos, 1)

	events := drain(m)
	require.Len(t, events, 3)
	assert.Equal(t, ReasonNotReady, events[0].(ImageAcquireFailed).Reason)
	assert.Equal(t, ReasonTimeout, events[1].(ImageAcquireFailed).Reason)
	assert.IsType(t, ImageAcquired{}, events[2])
}

func TestFenceTimeoutRetries(t *testing.T) {
	f := newFixture()
	m := f.newManager(t)
	fence := m.current.slots[0].renderDoneFence.(*fakeFence)
	fence.timeouts = 2

	img, err := m.Acquire(background)
	require.NoError(t, err)
	assert.Equal(t, 0, img.FrameIndex())
	assert.Equal(t, 3, fence.waits)
	assert.Equal(t, 1, f.factory.created[0].acquires)
}

func TestAcquireAttemptsBound(t *testing.T) {
	f := newFixture()
	f.cfg.MaxAcquireAttempts = 3
	stalled := make([]AcquireResult, 6)
	for idx := range stalled {
		stalled[idx] = AcquireResult{Status: AcquireNotReady}
	}
	f.factory.scripts = [][]AcquireResult{stalled}
	m := f.newManager(t)

	_, err := m.Acquire(background)
	assert.ErrorIs(t, err, ErrAcquireAttemptsExhausted)
	assert.Equal(t, 3, f.factory.created[0].acquires)

	img, err := m.Acquire(background)
	assert.ErrorIs(t, err, ErrAcquireAttemptsExhausted, "the bound applies per call")
	assert.Nil(t, img)
	assert.Equal(t, 6, f.factory.created[0].acquires)
}

func TestAcquireHonoursContext(t *testing.T) {
	f := newFixture()
	m := f.newManager(t)

	ctx, cancel := context.WithCancel(background)
	cancel()
	_, err := m.Acquire(ctx)
	assert.Equal(t, context.Canceled, err)
	assert.Zero(t, f.factory.created[0].acquires)
}

func TestRecreateRetiresWithoutClosing(t *testing.T) {
	f := newFixture()
	f.queue.keepFence = true
	m := f.newManager(t)
	old := m.current

	img, err := m.Acquire(background)
	require.NoError(t, err)
	render(img)
	require.NoError(t, img.Present())

	require.NoError(t, m.Recreate())
	assert.NotSame(t, old, m.current)
	assert.Equal(t, []*holder{old}, m.stale)
	assert.False(t, old.closed, "recreate never closes the holder it retires")

	// Still presenting, so cleanUp keeps it.
	_, err = m.Acquire(background)
	require.NoError(t, err)
	assert.Len(t, m.stale, 1)
	assert.Zero(t, f.factory.created[0].destroys)

	old.slots[0].presentDoneFence.(*fakeFence).signaled = true
	_, err = m.Acquire(background)
	require.NoError(t, err)
	assert.Empty(t, m.stale)
	assert.True(t, old.closed)
	assert.Equal(t, 1, f.factory.created[0].destroys)
}

func TestFailedRecreateKeepsCurrent(t *testing.T) {
	f := newFixture()
	f.factory.errs = []error{nil, errors.New("device lost")}
	m := f.newManager(t)
	current := m.current
	drain(m)

	err := m.Recreate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "device lost")
	assert.Same(t, current, m.current)
	assert.Empty(t, m.stale)
	assert.Equal(t, []string{"creationFailed"}, kinds(drain(m)))

	img, err := m.Acquire(background)
	require.NoError(t, err)
	assert.Same(t, current, img.holder)
}

func TestFailedRecreateDuringAcquire(t *testing.T) {
	f := newFixture()
	f.factory.scripts = [][]AcquireResult{{{Status: AcquireOutOfDate}}}
	f.factory.errs = []error{nil, errors.New("surface lost")}
	m := f.newManager(t)
	current := m.current

	_, err := m.Acquire(background)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "surface lost")
	assert.Same(t, current, m.current)

	img, err := m.Acquire(background)
	require.NoError(t, err)
	assert.Same(t, current, img.holder)
}

func TestChainOldSwapchain(t *testing.T) {
	f := newFixture()
	f.cfg.ChainOldSwapchain = true
	m := f.newManager(t)

	require.NoError(t, m.Recreate())
	assert.Same(t, f.factory.created[0], f.factory.infos[1].OldSwapchain)
}

func TestImageIndices(t *testing.T) {
	f := newFixture()
	f.factory.imageCount = 4
	m := f.newManager(t)

	assert.Equal(t, []uint32{0, 1, 2, 3}, m.ImageIndices())
}

func TestCloseTwice(t *testing.T) {
	f := newFixture()
	f.queue.keepFence = true
	m := f.newManager(t)

	img, err := m.Acquire(background)
	require.NoError(t, err)
	require.NoError(t, img.Present())
	require.NoError(t, m.Recreate())
	require.Len(t, m.stale, 1, "stale holder is still presenting")

	require.NoError(t, m.Close())
	destroyed := len(f.rec.destroyed)
	assert.Zero(t, f.device.live(), "stale holders are closed regardless of readiness")
	for _, sc := range f.factory.created {
		assert.Equal(t, 1, sc.destroys)
	}

	require.NoError(t, m.Close())
	assert.Len(t, f.rec.destroyed, destroyed)

	events := drain(m)
	assert.Equal(t, "deleted", kinds(events)[len(events)-1])
	_, open := <-m.Events()
	assert.False(t, open)

	_, err = m.Acquire(background)
	assert.Equal(t, ErrClosed, err)
	assert.Equal(t, ErrClosed, m.Recreate())
}

func TestCloseAggregatesErrors(t *testing.T) {
	f := newFixture()
	m := f.newManager(t)

	f.device.views[0].destroyFn = func() error { return errors.New("view busy") }
	f.device.semaphores[3].destroyFn = func() error { return errors.New("semaphore busy") }

	err := m.Close()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "view busy")
	assert.Contains(t, err.Error(), "semaphore busy")
	assert.Zero(t, f.device.live(), "closing continues past failures")
	assert.Equal(t, 1, f.factory.created[0].destroys)
}

func TestFullEventBufferDropsEvents(t *testing.T) {
	f := newFixture()
	f.cfg.EventBuffer = 1
	m := f.newManager(t)

	assert.Equal(t, []string{"created"}, kinds(drain(m)))

	var dropped int
	for _, entry := range f.logs.AllEntries() {
		if entry.Level == logrus.WarnLevel && entry.Data["event"] == "recreated" {
			dropped++
		}
	}
	assert.Equal(t, 1, dropped)
}
