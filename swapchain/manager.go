// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package swapchain

import (
	"context"
	stderrors "errors"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	vk "github.com/vulkan-go/vulkan"
	"golang.org/x/exp/slices"
)

// Manager keeps a valid swapchain for one surface. Acquire recreates
// the swapchain when the surface changes; replaced swapchains are kept
// until the presentation engine is done with them.
//
// A Manager is meant to be driven from a single goroutine.
type Manager struct {
	cfg    Config
	log    logrus.FieldLogger
	events *eventStream

	lastID  uint64
	current *holder

	// mu guards stale and closed.
	mu     sync.Mutex
	stale  []*holder
	closed bool
}

// New creates a Manager and its first swapchain. If the swapchain
// cannot be created the error is returned and nothing is left behind.
func New(cfg Config) (*Manager, error) {
	cfg, err := cfg.validate()
	if err != nil {
		return nil, err
	}

	m := &Manager{
		cfg:    cfg,
		log:    cfg.Logger,
		events: newEventStream(cfg.Logger, cfg.EventBuffer),
	}
	if err := m.Recreate(); err != nil {
		m.events.close()
		return nil, err
	}
	return m, nil
}

// Events returns the lifecycle event stream. It is closed by Close.
func (m *Manager) Events() <-chan Event {
	return m.events.c
}

// Acquire returns the next image to render to. Transient failures are
// retried and an invalidated swapchain is recreated, so the only errors
// returned are fatal ones, ctx errors and ErrAcquireAttemptsExhausted.
func (m *Manager) Acquire(ctx context.Context) (*SwapchainImage, error) {
	for attempt := 1; ; attempt++ {
		if m.isClosed() {
			return nil, ErrClosed
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		img, err := m.tryAcquire()
		m.cleanUp()
		if err != nil {
			return nil, err
		}
		if img != nil {
			return img, nil
		}

		if m.cfg.MaxAcquireAttempts > 0 && attempt >= m.cfg.MaxAcquireAttempts {
			return nil, errors.Wrapf(ErrAcquireAttemptsExhausted, "gave up after %d attempts", attempt)
		}
	}
}

// tryAcquire makes one attempt. It returns a nil image and a nil error
// when the attempt should be repeated.
func (m *Manager) tryAcquire() (*SwapchainImage, error) {
	img, err := m.current.acquire()
	if err == nil {
		return img, nil
	}

	var aerr *AcquireError
	if !errors.As(err, &aerr) {
		return nil, err
	}
	switch aerr.Reason {
	case ReasonNeedsRecreation:
		if err := m.Recreate(); err != nil {
			return nil, err
		}
	case ReasonNotReady, ReasonTimeout, ReasonFenceTimeout:
		m.log.WithField("reason", aerr.Reason.String()).Debug("Retrying acquire")
	default:
		return nil, err
	}
	return nil, nil
}

// Recreate builds a new swapchain and makes it current. The previous
// one is retired, not destroyed; cleanUp deletes it once the
// presentation engine is done with it. If building fails the previous
// swapchain stays current.
func (m *Manager) Recreate() error {
	if m.isClosed() {
		return ErrClosed
	}

	h, err := m.createNewSwapchain()
	if err != nil {
		return err
	}

	old := m.current
	m.current = h

	var oldID uint64
	if old != nil {
		oldID = old.id
		m.mu.Lock()
		m.stale = append(m.stale, old)
		m.mu.Unlock()
	}
	m.events.publish(Recreated{OldHolderID: oldID, NewHolderID: h.id})
	return nil
}

// cleanUp deletes retired swapchains that are no longer in use.
func (m *Manager) cleanUp() {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.stale[:0]
	for _, h := range m.stale {
		if !h.readyForDeletion() {
			kept = append(kept, h)
			continue
		}
		if err := h.close(); err != nil {
			m.log.WithError(err).WithField("holder", h.id).Warn("Retired swapchain did not close cleanly")
		}
	}
	for i := len(kept); i < len(m.stale); i++ {
		m.stale[i] = nil
	}
	m.stale = kept
}

// ImageIndices returns the image indices of the current swapchain,
// in ascending order.
func (m *Manager) ImageIndices() []uint32 {
	if m.current == nil {
		return nil
	}
	indices := m.current.imageIndices()
	slices.Sort(indices)
	return indices
}

// Extent of the current swapchain.
func (m *Manager) Extent() vk.Extent2D {
	if m.current == nil {
		return vk.Extent2D{}
	}
	return m.current.extent
}

// Format of the current swapchain.
func (m *Manager) Format() SurfaceFormat {
	if m.current == nil {
		return SurfaceFormat{}
	}
	return m.current.format
}

// Close destroys the current swapchain and every retired one, whether
// or not they are still in use, and closes the event stream.
// Calling Close again does nothing.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	stale := m.stale
	m.stale = nil
	m.mu.Unlock()

	var errs []error
	if m.current != nil {
		errs = append(errs, m.current.close())
		m.current = nil
	}
	for _, h := range stale {
		errs = append(errs, h.close())
	}
	m.events.close()

	if err := stderrors.Join(errs...); err != nil {
		return errors.Wrap(err, "swapchain: close")
	}
	return nil
}

func (m *Manager) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// createNewSwapchain queries the surface, runs the selection policies and
// builds a holder. On failure everything created is destroyed again.
func (m *Manager) createNewSwapchain() (h *holder, err error) {
	var created scope
	defer func() {
		if err == nil {
			return
		}
		if rerr := created.release(); rerr != nil {
			m.log.WithError(rerr).Warn("Rollback of partially created swapchain failed")
		}
		m.events.publish(CreationFailed{Error: err.Error()})
	}()

	caps, err := m.cfg.Surface.Capabilities()
	if err != nil {
		return nil, errors.Wrap(err, "query surface capabilities")
	}
	formats, err := m.cfg.Surface.Formats()
	if err != nil {
		return nil, errors.Wrap(err, "query surface formats")
	}
	modes, err := m.cfg.Surface.PresentModes()
	if err != nil {
		return nil, errors.Wrap(err, "query surface present modes")
	}

	if missing := m.cfg.ImageUsage &^ caps.SupportedUsageFlags; missing != 0 {
		return nil, errors.Wrapf(ErrUnsupportedUsage, "missing usage flags %#x", uint32(missing))
	}

	format := PickFormat(m.cfg.PreferredFormats, formats)
	mode := PickPresentMode(m.cfg.PreferredPresentModes, modes)
	extent := PickExtent(caps.CurrentExtent, caps.MinImageExtent, caps.MaxImageExtent)
	if extent.Width == 0 || extent.Height == 0 {
		return nil, ErrZeroExtent
	}
	sharing, families := PickSharingMode(m.cfg.GraphicsQueue.FamilyIndex(), m.cfg.PresentQueue.FamilyIndex())

	info := CreateInfo{
		MinImageCount:      PickImageCount(caps.MinImageCount, caps.MaxImageCount),
		Format:             format,
		Extent:             extent,
		Usage:              m.cfg.ImageUsage,
		SharingMode:        sharing,
		QueueFamilyIndices: families,
		PreTransform:       PickTransform(caps),
		CompositeAlpha:     PickCompositeAlpha(m.cfg.CompositeAlpha, caps.SupportedCompositeAlpha),
		PresentMode:        mode,
		Clipped:            true,
	}
	if m.cfg.ChainOldSwapchain && m.current != nil {
		info.OldSwapchain = m.current.swapchain
	}

	native, err := m.cfg.Swapchains.CreateSwapchain(info)
	if err != nil {
		return nil, errors.Wrap(err, "create swapchain")
	}
	created.add(native)

	images, err := native.Images()
	if err != nil {
		return nil, errors.Wrap(err, "get swapchain images")
	}
	if len(images) == 0 {
		return nil, ErrNoImages
	}

	views := make(map[uint32]ImageView, len(images))
	for idx, img := range images {
		view, err := m.cfg.Device.CreateImageView(img, format.Format)
		if err != nil {
			return nil, errors.Wrapf(err, "create view of image %d", idx)
		}
		created.add(view)
		views[uint32(idx)] = view
	}

	slots := make([]frameSlot, len(images))
	for idx := range slots {
		if slots[idx], err = m.newFrameSlot(&created); err != nil {
			return nil, errors.Wrapf(err, "create frame slot %d", idx)
		}
	}

	m.lastID++
	h = &holder{
		id:           m.lastID,
		log:          m.log.WithField("holder", m.lastID),
		events:       m.events,
		swapchain:    native,
		images:       images,
		views:        views,
		slots:        slots,
		format:       format,
		presentMode:  mode,
		extent:       extent,
		fenceTimeout: m.cfg.FenceTimeout,
		presentQueue: m.cfg.PresentQueue,
		resources:    created,
	}
	m.events.publish(Created{
		HolderID:    h.id,
		Format:      format.Format,
		ColorSpace:  format.ColorSpace,
		PresentMode: mode,
		Extent:      extent,
		ImageCount:  len(images),
	})
	return h, nil
}

// newFrameSlot creates the synchronization objects of one frame slot.
// Both fences start signalled: there is no previous frame to wait for
// and nothing is being presented.
func (m *Manager) newFrameSlot(created *scope) (slot frameSlot, err error) {
	if slot.imageReady, err = m.cfg.Device.CreateSemaphore(); err != nil {
		return slot, errors.Wrap(err, "image ready semaphore")
	}
	created.add(slot.imageReady)
	if slot.renderDone, err = m.cfg.Device.CreateSemaphore(); err != nil {
		return slot, errors.Wrap(err, "render done semaphore")
	}
	created.add(slot.renderDone)
	if slot.renderDoneFence, err = m.cfg.Device.CreateFence(true); err != nil {
		return slot, errors.Wrap(err, "render done fence")
	}
	created.add(slot.renderDoneFence)
	if slot.presentDoneFence, err = m.cfg.Device.CreateFence(true); err != nil {
		return slot, errors.Wrap(err, "present done fence")
	}
	created.add(slot.presentDoneFence)
	return slot, nil
}
