package transform

import (
	"bytes"
	"encoding/binary"
	"io"
	"time"

	"github.com/pkg/errors"
)

// ErrMalformedEnvelope happens when a payload cannot be decoded as an envelope.
var ErrMalformedEnvelope = errors.New("malformed envelope")

const (
	envelopeMagic   uint16 = 0x4D45
	envelopeVersion byte   = 1

	maxEnvelopeStringLen = 255
)

// Envelope is a radio message envelope decoded from its binary wire form:
// the payload as sent, the channel and gateway it travelled through and the
// sender-side timestamp.
type Envelope struct {
	// ChannelID names the radio channel the message was sent on.
	ChannelID string

	// GatewayID identifies the node that uplinked the message.
	GatewayID string

	// RxTime is the sender-side receive time.
	RxTime time.Time

	// Payload is the message body.
	Payload []byte
}

// DecodeEnvelope decodes the binary wire form of an Envelope.
//
// The frame is: magic (uint16), version (byte), channel id and gateway id as
// length-prefixed strings (uint8 length), rx time as seconds since epoch
// (uint32), payload as a length-prefixed byte string (uint16 length). All
// integers are big endian. Any mismatch yields ErrMalformedEnvelope.
func DecodeEnvelope(b []byte) (Envelope, error) {
	r := bytes.NewReader(b)

	var magic uint16
	if err := binary.Read(r, binary.BigEndian, &magic); err != nil {
		return Envelope{}, errors.Wrap(ErrMalformedEnvelope, "frame too short")
	}
	if magic != envelopeMagic {
		return Envelope{}, errors.Wrapf(ErrMalformedEnvelope, "bad magic 0x%04X", magic)
	}

	version, err := r.ReadByte()
	if err != nil {
		return Envelope{}, errors.Wrap(ErrMalformedEnvelope, "frame too short")
	}
	if version != envelopeVersion {
		return Envelope{}, errors.Wrapf(ErrMalformedEnvelope, "unsupported version %d", version)
	}

	channelID, err := readString8(r)
	if err != nil {
		return Envelope{}, errors.Wrap(ErrMalformedEnvelope, "channel id")
	}

	gatewayID, err := readString8(r)
	if err != nil {
		return Envelope{}, errors.Wrap(ErrMalformedEnvelope, "gateway id")
	}

	var rxTime uint32
	if err := binary.Read(r, binary.BigEndian, &rxTime); err != nil {
		return Envelope{}, errors.Wrap(ErrMalformedEnvelope, "rx time")
	}

	var payloadLen uint16
	if err := binary.Read(r, binary.BigEndian, &payloadLen); err != nil {
		return Envelope{}, errors.Wrap(ErrMalformedEnvelope, "payload length")
	}
	payload := make([]byte, payloadLen)
	if _, err := io.ReadFull(r, payload); err != nil {
		return Envelope{}, errors.Wrap(ErrMalformedEnvelope, "payload truncated")
	}

	if r.Len() != 0 {
		return Envelope{}, errors.Wrapf(ErrMalformedEnvelope, "%d trailing bytes", r.Len())
	}

	return Envelope{
		ChannelID: channelID,
		GatewayID: gatewayID,
		RxTime:    time.Unix(int64(rxTime), 0).UTC(),
		Payload:   payload,
	}, nil
}

// Encode encodes the envelope into its binary wire form.
func (e Envelope) Encode() ([]byte, error) {
	if len(e.ChannelID) > maxEnvelopeStringLen {
		return nil, errors.Errorf("channel id longer than %d bytes", maxEnvelopeStringLen)
	}
	if len(e.GatewayID) > maxEnvelopeStringLen {
		return nil, errors.Errorf("gateway id longer than %d bytes", maxEnvelopeStringLen)
	}

	buf := &bytes.Buffer{}

	_ = binary.Write(buf, binary.BigEndian, envelopeMagic)
	buf.WriteByte(envelopeVersion)

	buf.WriteByte(byte(len(e.ChannelID)))
	buf.WriteString(e.ChannelID)
	buf.WriteByte(byte(len(e.GatewayID)))
	buf.WriteString(e.GatewayID)

	_ = binary.Write(buf, binary.BigEndian, uint32(e.RxTime.Unix()))

	_ = binary.Write(buf, binary.BigEndian, uint16(len(e.Payload)))
	buf.Write(e.Payload)

	return buf.Bytes(), nil
}

func readString8(r *bytes.Reader) (string, error) {
	length, err := r.ReadByte()
	if err != nil {
		return "", err
	}

	s := make([]byte, length)
	if _, err := io.ReadFull(r, s); err != nil {
		return "", err
	}

	return string(s), nil
}
