package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Eeems/waved/internal/display"
	"github.com/Eeems/waved/internal/server"
	"github.com/Eeems/waved/internal/waveform"
)

type FileConfig struct {
	Framebuffer       string `json:"framebuffer,omitempty"`
	TemperatureSensor string `json:"temperatureSensor,omitempty"`
	Listen            string `json:"listen,omitempty"`
	LogLevel          string `json:"logLevel,omitempty"`
	PowerOffTimeoutMS int    `json:"powerOffTimeoutMs,omitempty"`
	PerfReport        string `json:"perfReport,omitempty"`
}

func main() {
	cfgPath := flag.String("config", "", "path to config file")
	framebuffer := flag.String("framebuffer", "", "framebuffer device path (discovered if empty)")
	sensor := flag.String("temperature-sensor", "", "temperature sensor path (discovered if empty)")
	listen := flag.String("listen", "", "control socket listen address")
	logLevel := flag.String("log-level", "", "log level (default info)")
	perfReport := flag.String("perf-report", "", "write a pipeline timing report to this file on exit")
	flag.Parse()

	cfg, err := loadConfig(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	applyOverrides(&cfg, *framebuffer, *sensor, *listen, *logLevel, *perfReport)
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	setupLogger(cfg.LogLevel)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if cfg.Listen == "" {
		cfg.Listen = "127.0.0.1:8989"
	}
	if cfg.Framebuffer == "" {
		cfg.Framebuffer, err = display.DiscoverFramebuffer()
		if err != nil {
			log.Fatal().Err(err).Msg("failed to locate framebuffer")
		}
	}
	if cfg.TemperatureSensor == "" {
		cfg.TemperatureSensor, err = display.DiscoverTemperatureSensor()
		if err != nil {
			log.Fatal().Err(err).Msg("failed to locate temperature sensor")
		}
	}

	dev, err := display.OpenFramebuffer(cfg.Framebuffer)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open framebuffer")
	}
	defer func() {
		_ = dev.Close()
	}()

	temp, err := display.OpenSensor(cfg.TemperatureSensor)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open temperature sensor")
	}
	defer func() {
		_ = temp.Close()
	}()

	var perf *display.PerfRecorder
	if cfg.PerfReport != "" {
		perf = display.NewPerfRecorder()
	}

	disp := display.New(display.Config{
		Device:          dev,
		Temperature:     temp,
		Table:           waveform.BuiltinDU(),
		Logger:          log.Logger,
		PowerOffTimeout: time.Duration(cfg.PowerOffTimeoutMS) * time.Millisecond,
		Perf:            perf,
	})
	if err := disp.Start(); err != nil {
		log.Fatal().Err(err).Msg("failed to start display")
	}
	defer disp.Stop()

	mux := http.NewServeMux()
	mux.Handle("/ws", server.New(disp, log.Logger))
	httpServer := &http.Server{Addr: cfg.Listen, Handler: mux}

	go func() {
		log.Info().Str("addr", cfg.Listen).Msg("control socket listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("control socket failed")
			cancel()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = httpServer.Shutdown(shutdownCtx)

	disp.Stop()

	if perf != nil {
		if err := os.WriteFile(cfg.PerfReport, []byte(perf.Report()), 0o644); err != nil {
			log.Error().Err(err).Msg("failed to write perf report")
		}
	}
}

func loadConfig(path string) (FileConfig, error) {
	var cfg FileConfig
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, err
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyOverrides(cfg *FileConfig, framebuffer, sensor, listen, logLevel, perfReport string) {
	if framebuffer != "" {
		cfg.Framebuffer = framebuffer
	}
	if sensor != "" {
		cfg.TemperatureSensor = sensor
	}
	if listen != "" {
		cfg.Listen = listen
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if perfReport != "" {
		cfg.PerfReport = perfReport
	}
}

func setupLogger(level string) {
	zerolog.TimeFieldFormat = time.RFC3339
	if parsed, err := zerolog.ParseLevel(level); err == nil {
		zerolog.SetGlobalLevel(parsed)
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
}
