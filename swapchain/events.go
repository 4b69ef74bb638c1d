// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package swapchain

import (
	"sync"

	"github.com/sirupsen/logrus"
	vk "github.com/vulkan-go/vulkan"
)

// Event is a lifecycle notification published on Manager.Events.
// The concrete types are Created, Deleted, Recreated, ImageAcquired,
// ImageAcquireFailed and CreationFailed.
type Event interface {
	// Fields returns the event payload as structured log fields.
	Fields() logrus.Fields

	event()
}

// Created is published when a new swapchain and its resources exist.
type Created struct {
	HolderID    uint64
	Format      vk.Format
	ColorSpace  vk.ColorSpace
	PresentMode vk.PresentMode
	Extent      vk.Extent2D
	ImageCount  int
}

// Deleted is published once a swapchain and its resources are gone.
type Deleted struct {
	HolderID uint64
}

// Recreated is published when NewHolderID became the current swapchain.
// OldHolderID is zero on the first creation.
type Recreated struct {
	OldHolderID uint64
	NewHolderID uint64
}

// ImageAcquired is published for every image handed out.
type ImageAcquired struct {
	HolderID   uint64
	FrameIndex int
	ImageIndex uint32
}

// ImageAcquireFailed is published for every acquire attempt that did not
// produce an image.
type ImageAcquireFailed struct {
	HolderID   uint64
	FrameIndex int
	Reason     Reason
	Error      string
}

// CreationFailed is published when building a swapchain failed and
// everything created so far was rolled back.
type CreationFailed struct {
	Error string
}

func (Created) event()            {}
func (Deleted) event()            {}
func (Recreated) event()          {}
func (ImageAcquired) event()      {}
func (ImageAcquireFailed) event() {}
func (CreationFailed) event()     {}

// Fields implements Event
func (e Created) Fields() logrus.Fields {
	return logrus.Fields{
		"event":       "created",
		"holder":      e.HolderID,
		"format":      e.Format,
		"colorSpace":  e.ColorSpace,
		"presentMode": e.PresentMode,
		"width":       e.Extent.Width,
		"height":      e.Extent.Height,
		"images":      e.ImageCount,
	}
}

// Fields implements Event
func (e Deleted) Fields() logrus.Fields {
	return logrus.Fields{"event": "deleted", "holder": e.HolderID}
}

// Fields implements Event
func (e Recreated) Fields() logrus.Fields {
	return logrus.Fields{"event": "recreated", "oldHolder": e.OldHolderID, "holder": e.NewHolderID}
}

// Fields implements Event
func (e ImageAcquired) Fields() logrus.Fields {
	return logrus.Fields{"event": "imageAcquired", "holder": e.HolderID, "frame": e.FrameIndex, "image": e.ImageIndex}
}

// Fields implements Event
func (e ImageAcquireFailed) Fields() logrus.Fields {
	f := logrus.Fields{"event": "imageAcquireFailed", "holder": e.HolderID, "frame": e.FrameIndex, "reason": e.Reason.String()}
	if e.Error != "" {
		f[logrus.ErrorKey] = e.Error
	}
	return f
}

// Fields implements Event
func (e CreationFailed) Fields() logrus.Fields {
	return logrus.Fields{"event": "creationFailed", logrus.ErrorKey: e.Error}
}

// eventStream fans events out to the log and a buffered channel.
// Publishing never blocks, events that do not fit are dropped.
type eventStream struct {
	mu     sync.Mutex
	log    logrus.FieldLogger
	c      chan Event
	closed bool
}

func newEventStream(log logrus.FieldLogger, buffer int) *eventStream {
	return &eventStream{
		log: log,
		c:   make(chan Event, buffer),
	}
}

func (s *eventStream) publish(e Event) {
	entry := s.log.WithFields(e.Fields())
	switch e.(type) {
	case ImageAcquired, ImageAcquireFailed:
		entry.Debug("swapchain event")
	case CreationFailed:
		entry.Error("swapchain event")
	default:
		entry.Info("swapchain event")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.c <- e:
	default:
		s.log.WithFields(e.Fields()).Warn("swapchain event dropped, consumer too slow")
	}
}

func (s *eventStream) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.c)
}
