// Package factory assembles ready-to-use codecs and rate monitors from a
// configuration.
//
// A connection decodes with one of two registries. The client role
// registers the commands a server sends (rate announcements, incoming
// messages); the server role registers what a client sends. Both share the
// same dispatch code and differ only in their keys.
//
// # Configuration
//
// NewCodecFactory reads the OSCAR_* environment variables documented in
// the config package:
//   - OSCAR_MAX_SNAC_SIZE: largest accepted command in bytes
//   - OSCAR_MAX_CHAIN_RECORDS: records read from one chain, 0 for no limit
//   - OSCAR_DEFAULT_CHARSET: charset for records that do not name one
//   - OSCAR_LOG_LEVEL: logrus level name
//   - OSCAR_RATE_ERROR_MARGIN: milliseconds kept clear of the limited threshold
//
// # Usage
//
//	cfg, err := config.Load("oscar.toml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	f, err := factory.NewCodecFactoryWithConfig(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := f.ApplyGlobals(); err != nil {
//	    log.Fatal(err)
//	}
//	codec, _ := f.CreateCodec(factory.RoleClient)
//	monitor, _ := f.CreateMonitor()
//
//	msg, err := codec.Decode(packet)
//	if info, ok := msg.Command.(*service.RateInfo); ok {
//	    _ = info.Configure(monitor)
//	}
package factory
