package audio

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
)

// Blob is an encoded audio frame ready for transport.
type Blob struct {
	MIMEType   string
	SampleRate int
	Data       []byte
}

// NewBlob encodes samples as linear16 and tags them with the MIME type and
// sample rate of info.
func NewBlob(samples []float32, info EncodingInfo) Blob {
	return Blob{
		MIMEType:   info.MIMEType(),
		SampleRate: info.SampleRate,
		Data:       EncodeLinear16(samples),
	}
}

// EncodeLinear16 converts samples to 16-bit signed little-endian PCM.
//
// Samples outside [-1, 1] are clamped to the nearest bound before
// conversion, so an overdriven input saturates instead of wrapping around.
// Conversion truncates toward zero with positive samples scaled by 0x7FFF, so
// an encode/decode round trip is accurate to within 2/32768.
func EncodeLinear16(samples []float32) []byte {
	size := EncodingLinear16.ByteSize()
	out := make([]byte, len(samples)*size)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*size:], uint16(floatToInt16(s)))
	}
	return out
}

func floatToInt16(s float32) int16 {
	if s != s { // NaN
		return 0
	}
	if s > 1 {
		s = 1
	} else if s < -1 {
		s = -1
	}
	if s < 0 {
		return int16(s * 0x8000)
	}
	return int16(s * 0x7FFF)
}

// DecodeLinear16 converts 16-bit signed little-endian PCM into a playable
// buffer at sampleRate.
func DecodeLinear16(data []byte, sampleRate int) (Buffer, error) {
	if sampleRate <= 0 {
		return Buffer{}, &CodecError{Reason: fmt.Sprintf("invalid sample rate %d", sampleRate)}
	}
	if len(data) == 0 {
		return Buffer{}, &CodecError{Reason: "empty payload"}
	}
	size := EncodingLinear16.ByteSize()
	if len(data)%size != 0 {
		return Buffer{}, &CodecError{Reason: fmt.Sprintf("truncated payload: %d bytes is not a whole number of samples", len(data))}
	}

	samples := make([]float32, len(data)/size)
	for i := range samples {
		samples[i] = float32(int16(binary.LittleEndian.Uint16(data[i*size:]))) / 32768.0
	}
	return Buffer{Samples: samples, SampleRate: sampleRate}, nil
}

// DecodeBase64 decodes an inline payload as delivered by the remote
// session.
func DecodeBase64(payload string) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, &CodecError{Reason: "malformed base64 payload", Err: err}
	}
	return data, nil
}

func DecodeBase64Linear16(payload string, sampleRate int) (Buffer, error) {
	data, err := DecodeBase64(payload)
	if err != nil {
		return Buffer{}, err
	}
	return DecodeLinear16(data, sampleRate)
}
