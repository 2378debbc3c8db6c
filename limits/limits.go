// Package limits provides centralized size limits for the wire codec.
// This ensures consistent validation across envelope decoding, encoding and
// configuration.
package limits

import (
	"errors"
	"fmt"
)

const (
	// MaxFrameData is the largest payload a 16-bit frame length can carry.
	MaxFrameData = 0xffff

	// SnacHeaderLen is the size of the command envelope header.
	SnacHeaderLen = 10

	// MaxSnacSize is the largest command (header plus body) a frame can carry.
	MaxSnacSize = MaxFrameData

	// MaxSnacBody is the largest command body.
	MaxSnacBody = MaxSnacSize - SnacHeaderLen

	// DefaultMaxChainRecords bounds the records read from one chain when
	// no explicit limit is configured. Zero would mean unbounded.
	DefaultMaxChainRecords = 4096
)

var (
	// ErrMessageEmpty indicates an empty message was provided
	ErrMessageEmpty = errors.New("empty message")

	// ErrMessageTooLarge indicates message exceeds maximum size
	ErrMessageTooLarge = errors.New("message too large")
)

// ValidateMessageSize validates a message against the specified maximum size.
// Returns an error with context including the actual and maximum sizes.
func ValidateMessageSize(message []byte, maxSize int) error {
	if len(message) == 0 {
		return ErrMessageEmpty
	}
	if len(message) > maxSize {
		return fmt.Errorf("%w: size %d exceeds limit %d", ErrMessageTooLarge, len(message), maxSize)
	}
	return nil
}

// ValidateSnac validates a whole encoded command against MaxSnacSize.
func ValidateSnac(message []byte) error {
	if len(message) == 0 {
		return ErrMessageEmpty
	}
	if len(message) > MaxSnacSize {
		return fmt.Errorf("%w: command size %d exceeds limit %d", ErrMessageTooLarge, len(message), MaxSnacSize)
	}
	return nil
}

// ValidateBodyLen checks a precomputed body length before an output
// buffer is allocated for it.
func ValidateBodyLen(n, maxSnac int) error {
	if maxSnac <= 0 || maxSnac > MaxSnacSize {
		maxSnac = MaxSnacSize
	}
	if n+SnacHeaderLen > maxSnac {
		return fmt.Errorf("%w: body size %d exceeds limit %d", ErrMessageTooLarge, n, maxSnac-SnacHeaderLen)
	}
	return nil
}
