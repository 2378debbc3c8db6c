// Package icbm implements the inter-client message family (0x0004):
// instant messages and typing notifications.
//
// Message text travels in a record whose value is itself a chain of
// fragments. Each fragment has the record layout, so the fragment id and
// version form the tag:
//
//	0x0501  required features
//	0x0101  text: [charset(2)][subset(2)][text...]
//
// Records the package does not interpret are kept, in order, and written
// back when the command is re-encoded.
package icbm
