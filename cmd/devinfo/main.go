// Command devinfo lists the devices, sub-streams and candidate physical
// formats of a scripted loopback host topology.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/presto8/hogmode"
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s\n\n", os.Args[0])
		fmt.Fprintln(os.Stderr, "Displays the demo loopback host topology: devices, sub-streams and formats.")
	}
	flag.Parse()

	host := hogmode.NewLoopbackHost()
	seedDemoTopology(host)

	devices, err := host.Devices()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error listing devices: %v\n", err)
		os.Exit(1)
	}

	for _, dev := range devices {
		fmt.Printf("Device %d: %s (uid %s, alive %t)\n", dev.ID, dev.Name, dev.UID, dev.Alive)

		streams, err := host.Streams(dev.ID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error listing streams: %v\n", err)
			os.Exit(1)
		}

		for i, stream := range streams {
			dir, err := host.StreamDirection(stream)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error querying stream: %v\n", err)
				os.Exit(1)
			}

			name := "output"
			if dir == hogmode.DIRECTION_INPUT {
				name = "input"
			}
			fmt.Printf("  Stream %d (%s):\n", i, name)

			current, err := host.PhysicalFormat(stream)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error querying format: %v\n", err)
				os.Exit(1)
			}

			formats, err := host.AvailablePhysicalFormats(stream)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error listing formats: %v\n", err)
				os.Exit(1)
			}

			for _, f := range formats {
				marker := " "
				if f.Equal(current) {
					marker = "*"
				}
				fmt.Printf("    %s %s\n", marker, f)
			}
		}
	}
}

// seedDemoTopology scripts two devices: a plain PCM output and a receiver
// with an S/PDIF passthrough sub-stream.
func seedDemoTopology(host *hogmode.LoopbackHost) {
	pcm := func(rate float64, bits uint32) hogmode.PhysicalFormat {
		return hogmode.PhysicalFormat{
			SampleRate:    rate,
			Encoding:      hogmode.ENCODING_PCM,
			Flags:         hogmode.FORMAT_FLAG_PACKED,
			Channels:      2,
			BitsPerSample: bits,
		}
	}

	host.AddDevice(hogmode.DeviceSpec{
		Name: "Built-in Output",
		Streams: []hogmode.StreamSpec{
			{
				Direction: hogmode.DIRECTION_OUTPUT,
				Formats:   []hogmode.PhysicalFormat{pcm(44100, 16), pcm(48000, 16), pcm(48000, 24), pcm(96000, 24)},
				Current:   pcm(44100, 16),
			},
		},
		LatencyFrames: 64,
		BufferFrames:  512,
		SafetyFrames:  32,
	})

	ac3 := hogmode.PhysicalFormat{
		SampleRate:    48000,
		Encoding:      hogmode.ENCODING_AC3,
		Flags:         hogmode.FORMAT_FLAG_PACKED,
		Channels:      2,
		BitsPerSample: 16,
	}

	host.AddDevice(hogmode.DeviceSpec{
		Name: "HDMI Receiver",
		Streams: []hogmode.StreamSpec{
			{
				Direction: hogmode.DIRECTION_OUTPUT,
				Formats:   []hogmode.PhysicalFormat{pcm(48000, 16), pcm(48000, 24)},
				Current:   pcm(48000, 16),
			},
			{
				Direction: hogmode.DIRECTION_OUTPUT,
				Encodings: []hogmode.Encoding{hogmode.ENCODING_AC3, hogmode.ENCODING_EAC3},
				Formats:   []hogmode.PhysicalFormat{pcm(48000, 16), ac3},
				Current:   pcm(48000, 16),
			},
		},
		LatencyFrames: 128,
		BufferFrames:  1024,
		SafetyFrames:  64,
	})
}
