package channel

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"

	"github.com/wagiedev/mediaroute-go/internal/errors"
)

const (
	// HeaderLen is the size of the fixed frame header.
	HeaderLen = 28

	frameMagic   uint32 = 0x4d525054 // "MRPT"
	frameVersion uint16 = 1
)

// Payload kinds carried in the frame header.
const (
	KindNone           uint8 = 0
	KindBundle         uint8 = 1
	KindControlRequest uint8 = 2
)

var (
	ErrShortHeader        = stderrors.New("frame: short fixed header")
	ErrUnsupportedVersion = stderrors.New("frame: unsupported version")
	ErrUnsupportedPayload = stderrors.New("frame: unsupported payload type")
)

// Header is the fixed wire header.
type Header struct {
	Magic      uint32
	Version    uint16
	Kind       uint8
	What       int32
	RequestID  int32
	Arg        int32
	PayloadLen uint64
}

// Frame is one complete wire message.
type Frame struct {
	Header  Header
	Payload []byte
}

// Limits constrains frame decode/encode memory use.
type Limits struct {
	MaxPayloadBytes uint64
}

// DefaultLimits returns the limits used when none are configured.
func DefaultLimits() Limits {
	return Limits{
		MaxPayloadBytes: 1024 * 1024,
	}
}

// ReadFrame reads one frame from r.
func ReadFrame(r io.Reader, limits Limits) (Frame, error) {
	var fixed [HeaderLen]byte
	if _, err := io.ReadFull(r, fixed[:]); err != nil {
		if stderrors.Is(err, io.ErrUnexpectedEOF) {
			return Frame{}, ErrShortHeader
		}

		return Frame{}, err
	}

	h := DecodeHeader(fixed[:])
	if h.Magic != frameMagic {
		return Frame{}, errors.ErrBadMagic
	}

	if h.Version != frameVersion {
		return Frame{}, fmt.Errorf("%w: %d", ErrUnsupportedVersion, h.Version)
	}

	if h.PayloadLen > limits.MaxPayloadBytes {
		return Frame{}, errors.ErrPayloadTooLarge
	}

	payload := make([]byte, h.PayloadLen)
	if h.PayloadLen > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			return Frame{}, err
		}
	}

	return Frame{Header: h, Payload: payload}, nil
}

// WriteFrame writes f to w, filling in magic, version and payload length.
func WriteFrame(w io.Writer, f Frame, limits Limits) error {
	payloadLen := uint64(len(f.Payload))
	if payloadLen > limits.MaxPayloadBytes {
		return errors.ErrPayloadTooLarge
	}

	h := f.Header
	h.Magic = frameMagic
	h.Version = frameVersion
	h.PayloadLen = payloadLen

	buf := make([]byte, 0, HeaderLen+len(f.Payload))
	buf = append(buf, EncodeHeader(h)...)
	buf = append(buf, f.Payload...)

	_, err := w.Write(buf)

	return err
}

// EncodeHeader serialises h in big-endian order.
func EncodeHeader(h Header) []byte {
	buf := make([]byte, HeaderLen)
	binary.BigEndian.PutUint32(buf[0:4], h.Magic)
	binary.BigEndian.PutUint16(buf[4:6], h.Version)
	buf[6] = h.Kind
	binary.BigEndian.PutUint32(buf[8:12], uint32(h.What))
	binary.BigEndian.PutUint32(buf[12:16], uint32(h.RequestID))
	binary.BigEndian.PutUint32(buf[16:20], uint32(h.Arg))
	binary.BigEndian.PutUint64(buf[20:28], h.PayloadLen)

	return buf
}

// DecodeHeader parses a fixed header. b must hold HeaderLen bytes.
func DecodeHeader(b []byte) Header {
	return Header{
		Magic:      binary.BigEndian.Uint32(b[0:4]),
		Version:    binary.BigEndian.Uint16(b[4:6]),
		Kind:       b[6],
		What:       int32(binary.BigEndian.Uint32(b[8:12])),
		RequestID:  int32(binary.BigEndian.Uint32(b[12:16])),
		Arg:        int32(binary.BigEndian.Uint32(b[16:20])),
		PayloadLen: binary.BigEndian.Uint64(b[20:28]),
	}
}

// EncodeMessage converts msg to a frame. ReplyTo is not carried on the wire.
func EncodeMessage(msg *Message) (Frame, error) {
	f := Frame{
		Header: Header{
			What:      int32(msg.What),
			RequestID: int32(msg.RequestID),
			Arg:       int32(msg.Arg),
		},
	}

	switch p := msg.Payload.(type) {
	case nil:
		f.Header.Kind = KindNone
	case Bundle:
		f.Header.Kind = KindBundle
	case *ControlRequest:
		f.Header.Kind = KindControlRequest
	default:
		return Frame{}, fmt.Errorf("%w: %T", ErrUnsupportedPayload, p)
	}

	if f.Header.Kind != KindNone {
		data, err := json.Marshal(msg.Payload)
		if err != nil {
			return Frame{}, fmt.Errorf("marshal payload: %w", err)
		}

		f.Payload = data
	}

	return f, nil
}

// DecodeMessage converts a frame back to a message. Numbers inside payloads
// decode as json.Number.
func DecodeMessage(f Frame) (*Message, error) {
	msg := &Message{
		What:      int(f.Header.What),
		RequestID: int(f.Header.RequestID),
		Arg:       int(f.Header.Arg),
	}

	switch f.Header.Kind {
	case KindNone:
	case KindBundle:
		var b Bundle
		if err := decodeJSON(f.Payload, &b); err != nil {
			return nil, &errors.PayloadError{Op: "bundle", Err: err}
		}

		msg.Payload = b
	case KindControlRequest:
		var req ControlRequest
		if err := decodeJSON(f.Payload, &req); err != nil {
			return nil, &errors.PayloadError{Op: "control request", Err: err}
		}

		msg.Payload = &req
	default:
		return nil, &errors.PayloadError{
			Op:  "frame",
			Err: fmt.Errorf("%w: kind %d", ErrUnsupportedPayload, f.Header.Kind),
		}
	}

	return msg, nil
}

func decodeJSON(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	return dec.Decode(v)
}
