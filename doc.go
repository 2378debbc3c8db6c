// Package oscarcore is the wire-protocol core of an OSCAR-style instant
// messaging client: the byte substrate and control-plane algorithms every
// command type is built on.
//
// A transport delivers one complete command at a time. The core turns it
// into a typed value and turns typed values back into byte-exact output:
//
//	f := factory.NewCodecFactory()
//	codec, err := f.CreateCodec(factory.RoleClient)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	msg, err := codec.Decode(packet)
//	if err != nil {
//	    return err
//	}
//	switch cmd := msg.Command.(type) {
//	case *icbm.RecvIM:
//	    text, _ := cmd.Message()
//	    fmt.Println(cmd.Sender().ScreenName(), text.Text)
//	case *snac.Unrecognized:
//	    // Unknown commands are values, not errors.
//	}
//
// # Packages
//
//   - bytespan: zero-copy byte windows with explicit ToOwned copies
//   - tlv: tagged records and ordered record chains that keep unknown records
//   - snac: command header, dispatch registry and codec
//   - snac/service, snac/locate, snac/icbm: the modeled command families
//   - userinfo: the user information block with a compute-once encoding
//   - ratelimit: the moving-average rate class control loop
//   - capability: 16-byte capability ids and their 2-byte compact form
//   - charset: charset names used by string records
//   - config, factory: TOML and environment configuration, codec assembly
//   - limits, logging: shared size limits and structured logging helpers
//
// # Thread Safety
//
// Spans, frozen chains, decoded commands and registries after startup are
// safe to share. MutableChain is not; freeze it before sharing. Codec,
// ratelimit.Class and ratelimit.Monitor synchronize internally.
package oscarcore
