// Package snac implements the command envelope and the dispatch registry
// that turns raw envelopes into typed commands.
//
// # Wire Format
//
// Every command starts with a 10-byte header:
//
//	[family(2)][subtype(2)][flags(2)][request_id(4)][body...]
//
// Family and subtype together form the dispatch Key. When the
// FlagHasVersionInfo bit is set the body is preceded by a length-prefixed
// block that Envelope exposes as VersionInfo.
//
// # Dispatch
//
// A Registry maps keys to factories. Dispatch never fails for a key with no
// factory: it returns an *Unrecognized command that re-encodes the original
// body verbatim, so unknown traffic can be logged or relayed.
//
//	reg := snac.NewRegistry("client")
//	if err := reg.Register(service.ClientFactory()); err != nil {
//	    return err
//	}
//	cmd, err := reg.DispatchBytes(raw)
//	switch c := cmd.(type) {
//	case *service.RateInfo:
//	    // ...
//	case *snac.Unrecognized:
//	    // ...
//	}
//
// Encode writes a command back out. The output buffer is sized from
// Command.BodyLen before anything is written.
package snac
