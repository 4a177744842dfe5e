package audio

import "fmt"

// DeviceError reports that an audio device could not be acquired, either
// because access was denied or because no device is available.
type DeviceError struct {
	Device string
	Err    error
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("audio device %s unavailable: %v", e.Device, e.Err)
}

func (e *DeviceError) Unwrap() error { return e.Err }

// CodecError reports a malformed or truncated audio payload.
type CodecError struct {
	Reason string
	Err    error
}

func (e *CodecError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("audio codec: %s: %v", e.Reason, e.Err)
	}
	return "audio codec: " + e.Reason
}

func (e *CodecError) Unwrap() error { return e.Err }
