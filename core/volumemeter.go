package orchestration

import (
	"context"
	"time"
)

const DefaultVolumeRefreshRate = 60

// VolumeLevel is the normalized energy of both directions, each in [0, 1].
type VolumeLevel struct {
	Input  float64
	Output float64
}

type levelProbe interface {
	Level() float64
}

// volumeMeter samples the capture and playback probes on a fixed cadence.
type volumeMeter struct {
	input    levelProbe
	output   levelProbe
	interval time.Duration
	onLevel  func(VolumeLevel)
}

func newVolumeMeter(input, output levelProbe, refreshRate int, onLevel func(VolumeLevel)) *volumeMeter {
	if refreshRate <= 0 {
		refreshRate = DefaultVolumeRefreshRate
	}
	if onLevel == nil {
		onLevel = func(VolumeLevel) {}
	}
	return &volumeMeter{
		input:    input,
		output:   output,
		interval: time.Second / time.Duration(refreshRate),
		onLevel:  onLevel,
	}
}

func (m *volumeMeter) run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.onLevel(m.sample())
		}
	}
}

func (m *volumeMeter) sample() VolumeLevel {
	return VolumeLevel{Input: readLevel(m.input), Output: readLevel(m.output)}
}

func readLevel(probe levelProbe) float64 {
	if probe == nil {
		return 0
	}
	level := probe.Level()
	switch {
	case level != level, level < 0:
		return 0
	case level > 1:
		return 1
	}
	return level
}
