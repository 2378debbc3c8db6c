// Package service implements the generic service family (0x0001): the
// connection handshake, rate class negotiation, version exchange and
// self information.
//
// The family is a closed set. Every command implements [Command], whose
// unexported marker keeps other packages from adding members, and
// [Decode] switches over every subtype the package declares. Register the
// family with a role registry:
//
//	reg := snac.NewRegistry("client")
//	if err := reg.Register(service.ClientFactory()); err != nil {
//	    return err
//	}
package service
