// Package limits provides centralized size constants and validation functions
// for the wire codec.
//
// # Size Hierarchy
//
//   - MaxFrameData (65535 bytes): the most a 16-bit transport frame length
//     can describe. Commands never span frames.
//
//   - MaxSnacSize (65535 bytes): a whole command, header included.
//
//   - MaxSnacBody (65525 bytes): the body after the 10-byte header.
//
//   - DefaultMaxChainRecords (4096): how many records a single chain may
//     yield before parsing stops, bounding work on hostile input.
//
// # Validation Functions
//
//	if err := limits.ValidateSnac(raw); err != nil {
//	    // ErrMessageEmpty or ErrMessageTooLarge
//	}
//
// Encoders call ValidateBodyLen with the body length reported by the
// command before allocating the output buffer.
package limits
