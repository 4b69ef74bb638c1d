package swapchain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFailureReason(t *testing.T) {
	tests := []struct {
		status AcquireStatus
		reason Reason
		failed bool
	}{
		{AcquireSuccess, 0, false},
		{AcquireNotReady, ReasonNotReady, true},
		{AcquireTimeout, ReasonTimeout, true},
		{AcquireOutOfDate, ReasonNeedsRecreation, true},
		{AcquireSuboptimal, ReasonNeedsRecreation, true},
	}
	assert.Len(t, tests, int(numAcquireStatuses), "every status needs a case")

	for _, tt := range tests {
		t.Run(tt.status.String(), func(t *testing.T) {
			reason, failed := failureReason(tt.status)
			assert.Equal(t, tt.failed, failed)
			assert.Equal(t, tt.reason, reason)
		})
	}
}

func TestFailureReasonPanicsOnUnknownStatus(t *testing.T) {
	assert.Panics(t, func() { failureReason(numAcquireStatuses) })
}

func TestAcquireErrorMessage(t *testing.T) {
	err := &AcquireError{Reason: ReasonNeedsRecreation, Status: AcquireOutOfDate}
	assert.EqualError(t, err, "swapchain: acquire: needs recreation (out of date)")

	err = &AcquireError{Reason: ReasonFenceTimeout}
	assert.EqualError(t, err, "swapchain: acquire: render done fence timed out")
}

func TestStatusStrings(t *testing.T) {
	assert.Equal(t, "suboptimal", AcquireSuboptimal.String())
	assert.Equal(t, "AcquireStatus(9)", AcquireStatus(9).String())
	assert.Equal(t, "suboptimal", PresentSuboptimal.String())
	assert.Equal(t, "Reason(0)", Reason(0).String())
}
