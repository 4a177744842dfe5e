package miniaudio

import (
	"context"
	"fmt"

	"github.com/gen2brain/malgo"
	"github.com/koscakluka/ema-live/core/audio"
)

var _ audio.Devices = (*Devices)(nil)

// Devices opens miniaudio capture and playback devices. Every opened device
// owns its own miniaudio context, so releasing one never affects the other.
type Devices struct{}

func NewDevices() *Devices {
	return &Devices{}
}

func (d *Devices) OpenInput(ctx context.Context, encodingInfo audio.EncodingInfo) (audio.Input, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	audioCtx, err := initContext()
	if err != nil {
		return nil, &audio.DeviceError{Device: "capture", Err: err}
	}

	client := &captureClient{}
	if err := client.Init(audioCtx, encodingInfo); err != nil {
		uninitContext(audioCtx)
		return nil, &audio.DeviceError{Device: "capture", Err: err}
	}

	return client, nil
}

func (d *Devices) OpenOutput(ctx context.Context, encodingInfo audio.EncodingInfo) (audio.Output, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	audioCtx, err := initContext()
	if err != nil {
		return nil, &audio.DeviceError{Device: "playback", Err: err}
	}

	client := &playbackClient{}
	if err := client.Init(audioCtx, encodingInfo); err != nil {
		uninitContext(audioCtx)
		return nil, &audio.DeviceError{Device: "playback", Err: err}
	}

	if err := client.Start(); err != nil {
		_ = client.Close()
		return nil, &audio.DeviceError{Device: "playback", Err: err}
	}

	return client, nil
}

func initContext() (*malgo.AllocatedContext, error) {
	audioCtx, err := malgo.InitContext(
		nil,
		malgo.ContextConfig{},
		func(message string) {
			logger.Debug("malgo", "message", message)
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize miniaudio context: %w", err)
	}
	return audioCtx, nil
}

func uninitContext(audioCtx *malgo.AllocatedContext) {
	if audioCtx == nil {
		return
	}
	_ = audioCtx.Uninit()
	audioCtx.Free()
}
