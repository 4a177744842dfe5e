// Command ema-live holds a spoken conversation with a Gemini Live model
// from the terminal.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	orchestration "github.com/koscakluka/ema-live/core"
	"github.com/koscakluka/ema-live/core/audio"
	"github.com/koscakluka/ema-live/core/audio/miniaudio"
	"github.com/koscakluka/ema-live/core/audio/portaudio"
	"github.com/koscakluka/ema-live/core/conversations"
	"github.com/koscakluka/ema-live/core/realtime"
	"github.com/koscakluka/ema-live/core/realtime/gemini"
	"github.com/koscakluka/ema-live/core/realtime/genai"
	"github.com/koscakluka/ema-live/internal/config"
)

const defaultConfigPath = "ema-live.yaml"

var logger = otelslog.NewLogger("github.com/koscakluka/ema-live/cmd/ema-live")

func main() {
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	printSchema := flag.Bool("config-schema", false, "Print the configuration file JSON schema and exit")
	flag.Parse()

	if *printSchema {
		schema, err := config.Schema()
		if err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			os.Exit(1)
		}
		fmt.Println(string(schema))
		return
	}

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	shutdownLogging, err := setupLogging(cfg.Logging.File)
	if err != nil {
		return err
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		shutdownLogging(ctx)
	}()

	metricsServer := serveMetrics(cfg.Metrics.Address)
	if metricsServer != nil {
		defer metricsServer.Close()
	}

	var program *tea.Program
	orchestrator := orchestration.NewOrchestrator(
		orchestration.WithAudioDevices(newDevices(cfg.Audio)),
		orchestration.WithRealtimeClient(newRealtimeClient(cfg)),
		orchestration.WithConnectConfig(cfg.ConnectConfig()),
		orchestration.WithMetrics(orchestration.NewMetrics(prometheus.DefaultRegisterer)),
		orchestration.WithCaptureSampleRate(cfg.Audio.CaptureSampleRate),
		orchestration.WithPlaybackSampleRate(cfg.Audio.PlaybackSampleRate),
		orchestration.WithFrameSize(cfg.Audio.FrameSize),
		orchestration.WithVolumeRefreshRate(cfg.UI.VolumeRefreshRate),
		orchestration.WithConnectionStateCallback(func(state orchestration.ConnectionState) {
			program.Send(connectionStateMsg(state))
		}),
		orchestration.WithVolumeCallback(func(level orchestration.VolumeLevel) {
			program.Send(volumeMsg(level))
		}),
		orchestration.WithTranscriptCallback(func(messages []conversations.Message) {
			program.Send(transcriptMsg(messages))
		}),
		orchestration.WithErrorCallback(func(err error) {
			program.Send(errorMsg{err: err})
		}),
	)
	program = tea.NewProgram(newModel(orchestrator), tea.WithAltScreen())

	_, err = program.Run()
	if disconnectErr := orchestrator.Disconnect(); err == nil {
		err = disconnectErr
	}
	return err
}

func newDevices(cfg config.AudioConfig) audio.Devices {
	switch cfg.Backend {
	case config.BackendPortaudio:
		return portaudio.NewDevices(cfg.FrameSize)
	default:
		return miniaudio.NewDevices()
	}
}

func newRealtimeClient(cfg *config.Config) realtime.Client {
	switch cfg.Transport.Kind {
	case config.TransportGenAI:
		return genai.NewClient(genai.WithAPIKey(cfg.Session.APIKey))
	default:
		return gemini.NewClient(
			gemini.WithAPIKey(cfg.Session.APIKey),
			gemini.WithEndpoint(cfg.Transport.Endpoint),
		)
	}
}

func serveMetrics(address string) *http.Server {
	if address == "" {
		return nil
	}

	server := &http.Server{
		Addr:              address,
		Handler:           newMetricsHandler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server stopped", "error", err)
		}
	}()
	return server
}

// newMetricsHandler serves the default prometheus registry, traced per
// scrape.
func newMetricsHandler(opts ...otelhttp.Option) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", otelhttp.NewHandler(promhttp.Handler(), "metrics", opts...))
	return mux
}
