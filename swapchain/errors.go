// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package swapchain

import (
	stderrors "errors"

	"github.com/pkg/errors"
)

// package errors
var (
	ErrClosed                   = errors.New("swapchain: manager closed")
	ErrImageConsumed            = errors.New("swapchain: image already presented")
	ErrOutOfDate                = errors.New("swapchain: out of date")
	ErrUnsupportedUsage         = errors.New("swapchain: image usage not supported by surface")
	ErrZeroExtent               = errors.New("swapchain: surface has a zero extent")
	ErrNoImages                 = errors.New("swapchain: swapchain reported no images")
	ErrAcquireAttemptsExhausted = errors.New("swapchain: acquire attempts exhausted")
	ErrMissingCollaborator      = errors.New("swapchain: incomplete configuration")
)

// scope collects created objects so they can be released in reverse
// order, either to roll back a failed construction or on close.
type scope struct {
	items []Destroyer
}

func (s *scope) add(d Destroyer) {
	s.items = append(s.items, d)
}

// release destroys every collected object, newest first, and reports
// every failure at once.
func (s *scope) release() error {
	var errs []error
	for i := len(s.items) - 1; i >= 0; i-- {
		if err := s.items[i].Destroy(); err != nil {
			errs = append(errs, err)
		}
	}
	s.items = nil
	return stderrors.Join(errs...)
}
