package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/influxdata/influxdb-client-go/api"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	flag "github.com/spf13/pflag"

	influxdb2 "github.com/influxdata/influxdb-client-go"
	"github.com/norasector/tetramon/pkg/tetra/crypto"
	"github.com/norasector/tetramon/pkg/tetra/sds"
	"github.com/norasector/tetramon/pkg/tetramon"
	"github.com/norasector/tetramon/pkg/tetramon/config"
	"github.com/norasector/tetramon/pkg/tetramon/device"
	"github.com/norasector/tetramon/pkg/tetramon/device/file"
	"github.com/norasector/tetramon/pkg/tetramon/device/udp"
	"github.com/norasector/tetramon/pkg/tetramon/output"
	"github.com/norasector/tetramon/pkg/tetramon/status"
	"github.com/norasector/tetramon/pkg/util"
	"golang.org/x/sync/errgroup"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr}).Level(zerolog.InfoLevel)
	configFile := flag.String("config", "tetramon.yaml", "YAML config file")
	debug := flag.Bool("debug", false, "log at debug level")

	flag.Parse()
	if *debug {
		log.Logger = log.Logger.Level(zerolog.DebugLevel)
	}

	opts, err := config.Load(*configFile)
	if err != nil {
		log.Fatal().Err(err).Str("config", *configFile).Msg("error loading config")
	}

	var dev device.Device
	switch opts.Device {
	case config.DeviceFile:
		log.Info().Str("device", "file").Str("path", opts.PlaybackLocation).Msg("initializing device...")
		dev = file.NewFileDevice(opts.PlaybackLocation, opts.SymbolReadSize, opts.ReadInterval)
	default:
		log.Info().Str("device", "udp").Str("listen", opts.UDPListen).Msg("initializing device...")
		dev = udp.NewUDPDevice(opts.UDPListen)
	}

	var influxWriteAPI api.WriteAPI = &util.MockWriteAPI{}
	if opts.InfluxDB.Host != "" {
		client := influxdb2.NewClient(opts.InfluxDB.Host, "")
		defer client.Close()
		influxWriteAPI = client.WriteAPI(opts.InfluxDB.Organization, opts.InfluxDB.Bucket)
	}

	engineOpts, err := opts.Decrypt.EngineOptions()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid decrypt config")
	}
	prefixes, err := opts.SDS.Prefixes()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid sds config")
	}
	engineOpts = append(engineOpts,
		crypto.WithScorer(crypto.NewScorer(prefixes)),
		crypto.WithLogger(log.Logger))
	engine, err := crypto.NewEngine(engineOpts...)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create decryption engine")
	}

	decoderOpts, err := opts.SDS.DecoderOptions()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid sds config")
	}

	var messageOutputs []tetramon.MessageOutput
	if len(opts.OutputDestinations) > 0 {
		messageOutputs = append(messageOutputs, output.NewMessageUDPOutput(opts.OutputDestinations, influxWriteAPI))
	}
	if opts.MQTT.Broker != "" {
		messageOutputs = append(messageOutputs, output.NewMQTTOutput(opts.MQTT))
	}

	var voiceOutputs []tetramon.VoiceOutput
	if opts.VoiceOutput != "" {
		f, err := os.Create(opts.VoiceOutput)
		if err != nil {
			log.Fatal().Err(err).Str("path", opts.VoiceOutput).Msg("failed to create voice output")
		}
		defer f.Close()
		voiceOutputs = append(voiceOutputs, output.NewVoiceFrameOutput(f))
	}

	monitorOpts := []tetramon.MonitorOption{
		tetramon.WithInfluxDB(influxWriteAPI),
		tetramon.WithLogger(log.Logger),
		tetramon.WithCryptoEngine(engine),
		tetramon.WithDecoder(sds.NewDecoder(decoderOpts...)),
	}
	if opts.StatusServer.Port != 0 {
		monitorOpts = append(monitorOpts, tetramon.WithStatusServer(status.NewServer(opts.StatusServer.Port)))
	}

	monitor, err := tetramon.NewMonitor(dev,
		tetramon.Options{
			Frequency:          opts.Frequency,
			SyncThreshold:      opts.SyncThreshold,
			SyncHorizon:        opts.SyncHorizon,
			FragmentTimeout:    opts.FragmentTimeout,
			MaxFragmentBuffers: opts.MaxFragmentBuffers,
			TrafficTimeslots:   opts.TrafficTimeslots,
			Downlink:           opts.Downlink,
			MessageOutputs:     messageOutputs,
			VoiceOutputs:       voiceOutputs,
		}, monitorOpts...)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create monitor")
	}

	eg, ctx := errgroup.WithContext(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	eg.Go(func() error {
		select {
		case <-sigChan:
		case <-ctx.Done():
		}

		return monitor.Stop()
	})

	eg.Go(func() error {
		err := monitor.Start(ctx)
		if err == nil {
			// capture ended; release the signal goroutine
			return context.Canceled
		}
		return err
	})

	if err := eg.Wait(); err != nil && err != context.Canceled {
		log.Fatal().Err(err).Msg("exited program")
	}

	stats := monitor.Stats()
	log.Info().
		Int64("bursts", stats.Bursts).
		Int64("messages", stats.Messages).
		Int64("decrypted", stats.Decrypted).
		Int64("voice_frames", stats.VoiceFrames).
		Msg("done")
}
