package channel

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wagiedev/mediaroute-go/internal/errors"
)

func TestFrame_MessageWithBundleSurvivesWire(t *testing.T) {
	msg := &Message{
		What:      7,
		RequestID: 42,
		Arg:       -3,
		Payload:   Bundle{"routeId": "living-room", "volume": 5},
	}

	f, err := EncodeMessage(msg)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, f, DefaultLimits()))
	require.Equal(t, HeaderLen+len(f.Payload), buf.Len())

	read, err := ReadFrame(&buf, DefaultLimits())
	require.NoError(t, err)

	decoded, err := DecodeMessage(read)
	require.NoError(t, err)

	assert.Equal(t, 7, decoded.What)
	assert.Equal(t, 42, decoded.RequestID)
	assert.Equal(t, -3, decoded.Arg)

	b, ok := decoded.Payload.(Bundle)
	require.True(t, ok)

	routeID, _ := b.String("routeId")
	assert.Equal(t, "living-room", routeID)

	volume, ok := b.Int("volume")
	require.True(t, ok)
	assert.Equal(t, 5, volume)
	assert.IsType(t, json.Number(""), b["volume"])
}

func TestFrame_ControlRequestPayload(t *testing.T) {
	msg := &Message{
		What: 9,
		Payload: &ControlRequest{
			Action:     "media.PLAY",
			Categories: []string{"remote-playback"},
		},
	}

	f, err := EncodeMessage(msg)
	require.NoError(t, err)
	require.Equal(t, KindControlRequest, f.Header.Kind)

	decoded, err := DecodeMessage(f)
	require.NoError(t, err)

	req, ok := decoded.Payload.(*ControlRequest)
	require.True(t, ok)
	assert.Equal(t, "media.PLAY", req.Action)
	assert.True(t, req.HasCategory("remote-playback"))
}

func TestFrame_NoPayload(t *testing.T) {
	f, err := EncodeMessage(&Message{What: 2})
	require.NoError(t, err)
	assert.Equal(t, KindNone, f.Header.Kind)
	assert.Empty(t, f.Payload)

	decoded, err := DecodeMessage(f)
	require.NoError(t, err)
	assert.Nil(t, decoded.Payload)
}

func TestFrame_UnsupportedPayloadType(t *testing.T) {
	_, err := EncodeMessage(&Message{What: 1, Payload: "raw string"})
	require.ErrorIs(t, err, ErrUnsupportedPayload)
}

func TestFrame_BadMagic(t *testing.T) {
	h := EncodeHeader(Header{Magic: 0xdeadbeef, Version: frameVersion})

	_, err := ReadFrame(bytes.NewReader(h), DefaultLimits())
	require.ErrorIs(t, err, errors.ErrBadMagic)
}

func TestFrame_ShortHeader(t *testing.T) {
	_, err := ReadFrame(bytes.NewReader([]byte{0x4d, 0x52}), DefaultLimits())
	require.ErrorIs(t, err, ErrShortHeader)
}

func TestFrame_PayloadLimit(t *testing.T) {
	limits := Limits{MaxPayloadBytes: 4}

	err := WriteFrame(&bytes.Buffer{}, Frame{Payload: []byte("too long")}, limits)
	require.ErrorIs(t, err, errors.ErrPayloadTooLarge)

	h := EncodeHeader(Header{Magic: frameMagic, Version: frameVersion, PayloadLen: 1 << 20})

	_, err = ReadFrame(bytes.NewReader(h), limits)
	require.ErrorIs(t, err, errors.ErrPayloadTooLarge)
}

func TestFrame_MalformedBundleIsPayloadError(t *testing.T) {
	f := Frame{
		Header:  Header{Kind: KindBundle},
		Payload: []byte(`[1,2,3]`),
	}

	_, err := DecodeMessage(f)

	var payloadErr *errors.PayloadError

	require.ErrorAs(t, err, &payloadErr)
	assert.Equal(t, "bundle", payloadErr.Op)
}
