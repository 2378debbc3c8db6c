package locate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opd-ai/oscarcore/capability"
	"github.com/opd-ai/oscarcore/charset"
	"github.com/opd-ai/oscarcore/snac"
	"github.com/opd-ai/oscarcore/tlv"
)

func decode(t *testing.T, cmd snac.Command) Command {
	t.Helper()
	env, err := snac.ParseEnvelope(snac.Encode(cmd, 0, 9))
	require.NoError(t, err)
	out, err := Decode(env)
	require.NoError(t, err)
	return out
}

func TestSetInfoRoundTrip(t *testing.T) {
	extra := tlv.NewChain(tlv.NewUint32(0x0006, 0xdeadbeef))
	in, err := NewSetInfo(SetInfoOptions{
		Profile:      &Text{Body: "Hello, café"},
		Away:         &Text{Body: "out to lunch"},
		Capabilities: []capability.Capability{capability.SendFile, capability.Chat},
		Extra:        extra,
	})
	require.NoError(t, err)

	profile, ok := in.Profile()
	require.True(t, ok)
	assert.Equal(t, "iso-8859-1", profile.Charset.Name())

	out := decode(t, in).(*SetInfo)
	profile, ok = out.Profile()
	require.True(t, ok)
	assert.Equal(t, "Hello, café", profile.Body)
	assert.Equal(t, "iso-8859-1", profile.Charset.Name())

	away, ok := out.Away()
	require.True(t, ok)
	assert.Equal(t, "out to lunch", away.Body)
	assert.Equal(t, "us-ascii", away.Charset.Name())

	caps, ok := out.Capabilities()
	require.True(t, ok)
	assert.Equal(t, []capability.Capability{capability.SendFile, capability.Chat}, caps)

	assert.True(t, out.Extra().Equal(extra))
	assert.Equal(t, snac.Encode(in, 0, 1), snac.Encode(out, 0, 1))
}

func TestSetInfoUnicodeProfile(t *testing.T) {
	in, err := NewSetInfo(SetInfoOptions{Profile: &Text{Body: "こんにちは"}})
	require.NoError(t, err)

	out := decode(t, in).(*SetInfo)
	profile, ok := out.Profile()
	require.True(t, ok)
	assert.Equal(t, "こんにちは", profile.Body)
	assert.Equal(t, "unicode-2-0", profile.Charset.Name())

	_, ok = out.Away()
	assert.False(t, ok)
	_, ok = out.Capabilities()
	assert.False(t, ok)
	assert.Equal(t, 0, out.Extra().Len())
}

func TestSetInfoExplicitCharsetMustFit(t *testing.T) {
	_, err := NewSetInfo(SetInfoOptions{Away: &Text{Charset: charset.ASCII, Body: "naïve"}})
	assert.ErrorIs(t, err, charset.ErrUnrepresentable)
}

func TestSetInfoWithoutMIMEUsesDefault(t *testing.T) {
	raw := snac.Encode(&snac.Raw{
		K:    snac.Key{Family: Family, Subtype: SubtypeSetInfo},
		Body: tlv.NewChain(tlv.New(TagAwayMessage, []byte("brb"))).Bytes(),
	}, 0, 1)
	env, err := snac.ParseEnvelope(raw)
	require.NoError(t, err)
	cmd, err := Decode(env)
	require.NoError(t, err)

	away, ok := cmd.(*SetInfo).Away()
	require.True(t, ok)
	assert.Equal(t, "brb", away.Body)
	assert.Equal(t, charset.Default.Name(), away.Charset.Name())
}

func TestSetInfoRejectsRaggedCapabilities(t *testing.T) {
	raw := snac.Encode(&snac.Raw{
		K:    snac.Key{Family: Family, Subtype: SubtypeSetInfo},
		Body: tlv.NewChain(tlv.New(TagCapabilities, make([]byte, 17))).Bytes(),
	}, 0, 1)
	env, err := snac.ParseEnvelope(raw)
	require.NoError(t, err)
	_, err = Decode(env)
	assert.Error(t, err)
}

func TestErrorRoundTrip(t *testing.T) {
	in := &Error{Code: 0x0e}
	out := decode(t, in).(*Error)
	assert.Equal(t, uint16(0x0e), out.Code)
	assert.Equal(t, 0, out.Extra.Len())
}

func TestErrorWithoutCode(t *testing.T) {
	env, err := snac.ParseEnvelope(snac.Encode(&snac.Raw{K: snac.Key{Family: Family, Subtype: SubtypeError}, Body: []byte{1}}, 0, 1))
	require.NoError(t, err)
	_, err = Decode(env)
	assert.ErrorIs(t, err, snac.ErrInsufficientData)
}

func TestFactories(t *testing.T) {
	client := snac.NewRegistry("client")
	server := snac.NewRegistry("server")
	require.NoError(t, client.Register(ClientFactory()))
	require.NoError(t, server.Register(ServerFactory()))

	in, err := NewSetInfo(SetInfoOptions{Capabilities: []capability.Capability{}})
	require.NoError(t, err)
	raw := snac.Encode(in, 0, 1)

	cmd, err := server.DispatchBytes(raw)
	require.NoError(t, err)
	caps, ok := cmd.(*SetInfo).Capabilities()
	assert.True(t, ok)
	assert.Empty(t, caps)

	cmd, err = client.DispatchBytes(raw)
	require.NoError(t, err)
	assert.True(t, snac.IsUnrecognized(cmd))

	env, err := snac.ParseEnvelope(snac.Encode(&snac.Raw{K: snac.Key{Family: Family, Subtype: 0x42}}, 0, 1))
	require.NoError(t, err)
	_, err = Decode(env)
	assert.ErrorIs(t, err, ErrUnknownSubtype)
}
