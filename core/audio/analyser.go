package audio

import (
	"math"
	"math/cmplx"
	"sync"

	"gonum.org/v1/gonum/dsp/fourier"
)

const (
	DefaultFFTSize               = 256
	DefaultSmoothingTimeConstant = 0.8
	DefaultMinDecibels           = -100
	DefaultMaxDecibels           = -30
)

// Analyser is a frequency-domain probe. It keeps the most recent FFTSize
// samples written to it and reports their spectrum the way a browser
// AnalyserNode does: Blackman-windowed, smoothed over time and mapped from
// [MinDecibels, MaxDecibels] onto bytes.
type Analyser struct {
	mu sync.Mutex

	fftSize     int
	smoothing   float64
	minDecibels float64
	maxDecibels float64

	fft      *fourier.FFT
	window   []float64
	ring     []float32
	ringPos  int
	frame    []float64
	coeffs   []complex128
	smoothed []float64
}

func NewAnalyser() *Analyser {
	return NewAnalyserWithSize(DefaultFFTSize)
}

// NewAnalyserWithSize creates an analyser over fftSize samples. fftSize must
// be a power of two.
func NewAnalyserWithSize(fftSize int) *Analyser {
	a := &Analyser{
		fftSize:     fftSize,
		smoothing:   DefaultSmoothingTimeConstant,
		minDecibels: DefaultMinDecibels,
		maxDecibels: DefaultMaxDecibels,
		fft:         fourier.NewFFT(fftSize),
		window:      make([]float64, fftSize),
		ring:        make([]float32, fftSize),
		frame:       make([]float64, fftSize),
		smoothed:    make([]float64, fftSize/2),
	}
	for i := range a.window {
		x := 2 * math.Pi * float64(i) / float64(fftSize)
		a.window[i] = 0.42 - 0.5*math.Cos(x) + 0.08*math.Cos(2*x)
	}
	return a
}

func (a *Analyser) FrequencyBinCount() int { return a.fftSize / 2 }

// Write appends samples to the analysed window.
func (a *Analyser) Write(samples []float32) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if len(samples) >= a.fftSize {
		copy(a.ring, samples[len(samples)-a.fftSize:])
		a.ringPos = 0
		return
	}
	for _, s := range samples {
		a.ring[a.ringPos] = s
		a.ringPos = (a.ringPos + 1) % a.fftSize
	}
}

// ByteFrequencyData fills dst with the current spectrum. dst should have
// FrequencyBinCount elements; extra elements are left untouched.
func (a *Analyser) ByteFrequencyData(dst []byte) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for i := range a.frame {
		a.frame[i] = float64(a.ring[(a.ringPos+i)%a.fftSize]) * a.window[i]
	}
	a.coeffs = a.fft.Coefficients(a.coeffs, a.frame)

	scale := 255 / (a.maxDecibels - a.minDecibels)
	for k := 0; k < len(a.smoothed) && k < len(dst); k++ {
		magnitude := cmplx.Abs(a.coeffs[k]) / float64(a.fftSize)
		a.smoothed[k] = a.smoothing*a.smoothed[k] + (1-a.smoothing)*magnitude

		if a.smoothed[k] <= 0 {
			dst[k] = 0
			continue
		}
		db := 20 * math.Log10(a.smoothed[k])
		v := math.Floor(scale * (db - a.minDecibels))
		dst[k] = byte(max(0, min(255, v)))
	}
}

// Level returns the mean spectral magnitude normalised to [0, 1].
func (a *Analyser) Level() float64 {
	data := make([]byte, a.FrequencyBinCount())
	a.ByteFrequencyData(data)

	sum := 0
	for _, v := range data {
		sum += int(v)
	}
	return float64(sum) / float64(len(data)) / 255
}

// Reset clears the window and the smoothing state.
func (a *Analyser) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	clear(a.ring)
	clear(a.smoothed)
	a.ringPos = 0
}
