package decode

import "codeberg.org/mutker/ironmon/internal/errors"

const (
	ErrMalformedRecord = errors.ErrorCode("decode_malformed_record")
	ErrUnknownTag      = errors.ErrorCode("decode_unknown_tag")
)
