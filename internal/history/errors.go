package history

import "codeberg.org/mutker/ironmon/internal/errors"

const (
	ErrInvalidCapacity = errors.ErrorCode("history_invalid_capacity")
)
