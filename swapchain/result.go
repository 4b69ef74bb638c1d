// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package swapchain

import "fmt"

// AcquireStatus is the closed set of outcomes of a native acquire.
type AcquireStatus int

// Acquire outcomes. Every switch over AcquireStatus must list all of them.
const (
	AcquireSuccess AcquireStatus = iota
	AcquireNotReady
	AcquireOutOfDate
	AcquireSuboptimal
	AcquireTimeout

	numAcquireStatuses
)

// Adding an outcome breaks this until every switch over AcquireStatus
// has been revisited and the count below updated.
func _() {
	var x [1]struct{}
	_ = x[numAcquireStatuses-5]
}

func (s AcquireStatus) String() string {
	switch s {
	case AcquireSuccess:
		return "success"
	case AcquireNotReady:
		return "not ready"
	case AcquireOutOfDate:
		return "out of date"
	case AcquireSuboptimal:
		return "suboptimal"
	case AcquireTimeout:
		return "timeout"
	}
	return fmt.Sprintf("AcquireStatus(%d)", int(s))
}

// AcquireResult is the result of NativeSwapchain.AcquireNextImage.
// ImageIndex is only meaningful for AcquireSuccess.
type AcquireResult struct {
	Status     AcquireStatus
	ImageIndex uint32
}

// PresentStatus is the non-error outcome of a present.
type PresentStatus int

// Present outcomes.
const (
	PresentSuccess PresentStatus = iota
	PresentSuboptimal

	numPresentStatuses
)

func _() {
	var x [1]struct{}
	_ = x[numPresentStatuses-2]
}

func (s PresentStatus) String() string {
	switch s {
	case PresentSuccess:
		return "success"
	case PresentSuboptimal:
		return "suboptimal"
	}
	return fmt.Sprintf("PresentStatus(%d)", int(s))
}

// Reason tells why a holder could not hand out an image.
type Reason int

// Failure reasons. All but ReasonError are handled inside Manager.Acquire.
const (
	ReasonFenceTimeout Reason = iota + 1
	ReasonNotReady
	ReasonTimeout
	ReasonNeedsRecreation
	ReasonError
)

func (r Reason) String() string {
	switch r {
	case ReasonFenceTimeout:
		return "render done fence timed out"
	case ReasonNotReady:
		return "not ready"
	case ReasonTimeout:
		return "timed out"
	case ReasonNeedsRecreation:
		return "needs recreation"
	case ReasonError:
		return "error"
	}
	return fmt.Sprintf("Reason(%d)", int(r))
}

// AcquireError is returned by a holder when an acquire attempt
// did not produce an image but can be retried.
type AcquireError struct {
	Reason Reason
	Status AcquireStatus
}

func (e *AcquireError) Error() string {
	if e.Reason == ReasonFenceTimeout {
		return "swapchain: acquire: " + e.Reason.String()
	}
	return fmt.Sprintf("swapchain: acquire: %s (%s)", e.Reason, e.Status)
}

// failureReason maps a native outcome onto the holder's failure reasons.
// ok is false for AcquireSuccess.
func failureReason(s AcquireStatus) (r Reason, ok bool) {
	switch s {
	case AcquireSuccess:
		return 0, false
	case AcquireNotReady:
		return ReasonNotReady, true
	case AcquireTimeout:
		return ReasonTimeout, true
	case AcquireOutOfDate, AcquireSuboptimal:
		return ReasonNeedsRecreation, true
	}
	panic(fmt.Sprintf("swapchain: unhandled acquire status %d", int(s)))
}
