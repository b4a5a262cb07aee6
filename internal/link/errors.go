package link

import "codeberg.org/mutker/ironmon/internal/errors"

const (
	// ErrDeviceUnavailable means the port could not be opened. Always
	// retryable.
	ErrDeviceUnavailable = errors.ErrorCode("link_device_unavailable")
	// ErrLinkBroken means an established connection dropped mid-stream.
	ErrLinkBroken = errors.ErrorCode("link_broken")
)
