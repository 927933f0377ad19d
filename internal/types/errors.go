package types

import (
	"errors"
	"fmt"
)

// Sentinel errors for the failure classes that are allowed to force a
// phase regression or surface to the caller. Signal-analysis failures
// are deliberately absent: an analyzer fault is absorbed inside the
// analysis tick and never propagates.
var (
	// ErrDeviceUnavailable: camera or microphone permission denied, or
	// no matching device for a selected id.
	ErrDeviceUnavailable = errors.New("capture device unavailable")

	// ErrRecorderInit: the platform refused to start recording on the
	// acquired stream.
	ErrRecorderInit = errors.New("recorder initialization failed")

	// ErrInvalidTransition: the requested phase transition is not
	// defined by the workflow.
	ErrInvalidTransition = errors.New("invalid phase transition")

	// ErrUploadFailed: the external save collaborator rejected or
	// aborted the handoff. The session and clip survive for retry.
	ErrUploadFailed = errors.New("upload failed")
)

// NotReadyError refuses the quality-check → recording transition and
// tells the caller where the gate currently stands.
type NotReadyError struct {
	Score     int
	Threshold int
}

func (e *NotReadyError) Error() string {
	return fmt.Sprintf("quality gate not ready: score %d, need %d+", e.Score, e.Threshold)
}
