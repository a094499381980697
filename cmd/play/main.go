// Command play streams a WAV file through an exclusive-mode output session
// on the built-in loopback host, exercising the full acquisition,
// negotiation, render and teardown path without real hardware.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/spf13/viper"

	"github.com/presto8/hogmode"
)

func setDefaults() {
	viper.SetDefault("loglevel", "info")
	viper.SetDefault("logfile", "")
	viper.SetDefault("latency-frames", 64)
	viper.SetDefault("buffer-frames", 512)
	viper.SetDefault("safety-frames", 32)
	viper.SetDefault("ring-frames", 8192)
}

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "Optional config file (yaml/toml/json)")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options] <wav-file>\n\nOptions:\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(1)
	}

	setDefaults()
	if configPath != "" {
		viper.SetConfigFile(configPath)
		if err := viper.ReadInConfig(); err != nil {
			fmt.Fprintf(os.Stderr, "Error reading config: %v\n", err)
			os.Exit(1)
		}
	}

	logFile, err := configureLogger(viper.GetString("loglevel"), viper.GetString("logfile"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error configuring logger: %v\n", err)
		os.Exit(1)
	}
	if logFile != nil {
		defer logFile.Close()
	}

	wavPath := flag.Arg(0)
	wavFile, err := os.Open(wavPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening WAV file: %v\n", err)
		os.Exit(1)
	}
	defer wavFile.Close()

	decoder := wav.NewDecoder(wavFile)
	if !decoder.IsValidFile() {
		fmt.Fprintln(os.Stderr, "Invalid WAV file")
		os.Exit(1)
	}

	want, err := formatForWav(decoder)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error determining format: %v\n", err)
		os.Exit(1)
	}

	host := hogmode.NewLoopbackHost()
	dev := host.AddDevice(demoDevice(want))

	stride := want.FrameSize()
	ring := hogmode.NewFrameRing(stride, viper.GetUint32("ring-frames"))

	session, err := hogmode.Open(host, hogmode.Config{
		Device:   dev,
		Format:   want,
		Source:   ring,
		OnReload: func() { slog.Warn("device drifted, session reload requested") },
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening session: %v\n", err)
		os.Exit(1)
	}
	defer session.Close()

	fmt.Printf("Playing WAV file: %s\n", wavPath)
	fmt.Printf("Negotiated: %s (latency %v)\n", session.Format(), session.Latency())

	start := time.Now()
	framesPlayed, err := feed(decoder, session, ring, want)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error during playback: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Playback finished in %v (%d frames, %d underruns)\n",
		time.Since(start).Round(time.Millisecond), framesPlayed, ring.Underruns())
}

// feed pumps decoded audio into the ring, pacing writes so the ring stays
// bounded, and waits for the ring to drain at EOF.
func feed(decoder *wav.Decoder, session *hogmode.Session, ring *hogmode.FrameRing, format hogmode.PhysicalFormat) (uint64, error) {
	chunkFrames := viper.GetInt("buffer-frames")
	buf := &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: int(decoder.NumChans),
			SampleRate:  int(decoder.SampleRate),
		},
		Data: make([]int, chunkFrames*int(decoder.NumChans)),
	}

	maxBuffered := viper.GetUint32("ring-frames") / 2
	period := format.FramesToDuration(uint32(chunkFrames))

	var framesPlayed uint64
	for {
		n, err := decoder.PCMBuffer(buf)
		if err != nil && !errors.Is(err, io.EOF) {
			return framesPlayed, fmt.Errorf("reading PCM buffer: %w", err)
		}
		if n == 0 {
			break
		}

		data, err := packSamples(buf.Data[:n], int(decoder.BitDepth), format)
		if err != nil {
			return framesPlayed, err
		}

		for ring.BufferedFrames() > maxBuffered {
			time.Sleep(period)
		}
		ring.Write(data)
		framesPlayed += uint64(n) / uint64(format.Channels)
	}

	for ring.BufferedFrames() > 0 && session.State() == hogmode.SESSION_STATE_ACTIVE {
		time.Sleep(period)
	}
	// One more buffer so the tail actually leaves the device.
	time.Sleep(period)

	return framesPlayed, nil
}

// demoDevice scripts the loopback device the session plays to, publishing the
// requested format among the usual hardware candidates.
func demoDevice(want hogmode.PhysicalFormat) hogmode.DeviceSpec {
	current := hogmode.PhysicalFormat{
		SampleRate:    44100,
		Encoding:      hogmode.ENCODING_PCM,
		Flags:         hogmode.FORMAT_FLAG_PACKED,
		Channels:      2,
		BitsPerSample: 16,
	}

	candidates := []hogmode.PhysicalFormat{current}
	if !want.Equal(current) {
		candidates = append(candidates, want)
	}

	return hogmode.DeviceSpec{
		Name: "Loopback Output",
		Streams: []hogmode.StreamSpec{
			{
				Direction: hogmode.DIRECTION_OUTPUT,
				Formats:   candidates,
				Current:   current,
			},
		},
		LatencyFrames: viper.GetUint32("latency-frames"),
		BufferFrames:  viper.GetUint32("buffer-frames"),
		SafetyFrames:  viper.GetUint32("safety-frames"),
	}
}

// configureLogger points slog at stdout (text) or a file (json) at the
// configured level.
func configureLogger(level, file string) (*os.File, error) {
	var opts slog.HandlerOptions
	switch level {
	case "none":
		slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))

		return nil, nil
	case "error":
		opts.Level = slog.LevelError
	case "warn":
		opts.Level = slog.LevelWarn
	case "info":
		opts.Level = slog.LevelInfo
	case "debug":
		opts.Level = slog.LevelDebug
	default:
		return nil, fmt.Errorf("unexpected log level %q", level)
	}

	if file == "" {
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &opts)))

		return nil, nil
	}

	f, err := os.OpenFile(file, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(f, &opts)))

	return f, nil
}
