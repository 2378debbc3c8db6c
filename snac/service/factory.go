package service

import (
	"fmt"

	"github.com/opd-ai/oscarcore/snac"
	"github.com/opd-ai/oscarcore/userinfo"
)

// Decode builds the typed command for env. Values that outlive the
// envelope are copied out of its buffer.
func Decode(env *snac.Envelope) (Command, error) {
	if env.Family != Family {
		return nil, fmt.Errorf("%w: family 0x%04x", ErrUnknownSubtype, env.Family)
	}
	body := env.Body
	switch env.Subtype {
	case SubtypeError:
		code, err := body.Uint16At(0)
		if err != nil {
			return nil, fmt.Errorf("%w: missing error code", snac.ErrInsufficientData)
		}
		rest, _ := body.SliceFrom(2)
		extra, _ := env.ParseChain(rest)
		return &Error{Code: code, Extra: extra.Owned()}, nil
	case SubtypeClientReady:
		fams, err := parseFamilyVersions(body)
		if err != nil {
			return nil, err
		}
		return &ClientReady{Families: fams}, nil
	case SubtypeServerReady:
		fams, err := parseUint16s(body)
		if err != nil {
			return nil, err
		}
		return &ServerReady{Families: fams}, nil
	case SubtypeRateInfoRequest:
		return &RateInfoRequest{}, nil
	case SubtypeRateInfo:
		info, err := parseRateInfo(body)
		if err != nil {
			return nil, err
		}
		return info, nil
	case SubtypeRateAck:
		ids, err := parseUint16s(body)
		if err != nil {
			return nil, err
		}
		return &RateAck{ClassIDs: ids}, nil
	case SubtypeRateChange:
		change, err := parseRateChange(body)
		if err != nil {
			return nil, err
		}
		return change, nil
	case SubtypeSelfInfoRequest:
		return &SelfInfoRequest{}, nil
	case SubtypeSelfInfo:
		info, _, err := userinfo.Parse(body)
		if err != nil {
			return nil, err
		}
		return &SelfInfo{Info: info}, nil
	case SubtypeClientVersions:
		vs, err := parseVersions(body)
		if err != nil {
			return nil, err
		}
		return &ClientVersions{Versions: vs}, nil
	case SubtypeServerVersions:
		vs, err := parseVersions(body)
		if err != nil {
			return nil, err
		}
		return &ServerVersions{Versions: vs}, nil
	default:
		return nil, fmt.Errorf("%w: 0x%04x", ErrUnknownSubtype, env.Subtype)
	}
}

// Subtypes lists every subtype Decode understands.
func Subtypes() []uint16 {
	return []uint16{
		SubtypeError, SubtypeClientReady, SubtypeServerReady,
		SubtypeRateInfoRequest, SubtypeRateInfo, SubtypeRateAck, SubtypeRateChange,
		SubtypeSelfInfoRequest, SubtypeSelfInfo,
		SubtypeClientVersions, SubtypeServerVersions,
	}
}

// clientReceives lists what a server sends to a client.
var clientReceives = []uint16{
	SubtypeError, SubtypeServerReady, SubtypeRateInfo, SubtypeRateChange,
	SubtypeSelfInfo, SubtypeServerVersions,
}

// serverReceives lists what a client sends to a server.
var serverReceives = []uint16{
	SubtypeClientReady, SubtypeRateInfoRequest, SubtypeRateAck,
	SubtypeSelfInfoRequest, SubtypeClientVersions,
}

func decodeCommand(env *snac.Envelope) (snac.Command, error) {
	cmd, err := Decode(env)
	if err != nil {
		return nil, err
	}
	return cmd, nil
}

func factory(subtypes []uint16) snac.Factory {
	keys := make([]snac.Key, len(subtypes))
	for i, s := range subtypes {
		keys[i] = key(s)
	}
	return snac.NewFactory(decodeCommand, keys...)
}

// ClientFactory returns the factory for commands a client receives.
func ClientFactory() snac.Factory { return factory(clientReceives) }

// ServerFactory returns the factory for commands a server receives.
func ServerFactory() snac.Factory { return factory(serverReceives) }
