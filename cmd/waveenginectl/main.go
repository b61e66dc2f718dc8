// Command waveenginectl drives the audiocore mixing engine standalone,
// useful for manual backend testing without a full emulated machine
// attached: it synthesizes a DMA feed and exposes volume/mute/dump
// controls on the terminal.
package main

import (
	"flag"
	"fmt"
	"io"
	"math"
	"os"
	"os/signal"
	"time"

	"golang.org/x/term"

	"github.com/silverwake/waveengine/internal/audiocore"
	_ "github.com/silverwake/waveengine/internal/backend"
)

func main() {
	cfg := audiocore.DefaultConfig()

	var (
		backend          string
		dpl2Quality      string
		toneHz           float64
		dumpDTK          string
		dumpDSP          string
		targetLatencyMS  uint
		speedToleranceMS int
	)

	flagSet := flag.NewFlagSet(os.Args[0], flag.ContinueOnError)
	flagSet.StringVar(&backend, "backend", string(cfg.Backend), "audio backend: oto, headless")
	flagSet.Float64Var(&cfg.OSMixerRate, "os-mixer-rate", cfg.OSMixerRate, "host output sample rate in Hz")
	flagSet.UintVar(&targetLatencyMS, "target-latency-ms", uint(cfg.TargetLatencyMS), "requested output buffering in ms")
	flagSet.IntVar(&speedToleranceMS, "speed-tolerance-ms", int(cfg.SpeedToleranceMS), "allowed drift before catch-up kicks in (negative disables dynamic speed, 0 always engages it)")
	flagSet.BoolVar(&cfg.FrameLimiter, "frame-limiter", cfg.FrameLimiter, "throttle to a fixed emulation speed instead of following the DMA source's measured cadence")
	flagSet.Float64Var(&cfg.EmulationSpeed, "emulation-speed", cfg.EmulationSpeed, "fixed target speed used when -frame-limiter is set (1.0 = real-time)")
	flagSet.BoolVar(&cfg.Stretch, "stretch", cfg.Stretch, "time-stretch instead of resample when speed != 1.0x")
	flagSet.BoolVar(&cfg.Surround, "dpl2", cfg.Surround, "enable Dolby Pro Logic II-style surround decode")
	flagSet.StringVar(&dpl2Quality, "dpl2-quality", cfg.DPL2Quality.String(), "surround decode quality: lowest, low, high, highest")
	flagSet.Float64Var(&toneHz, "tone-hz", 440, "test tone frequency fed into the DMA source")
	flagSet.StringVar(&dumpDTK, "dump-dtk", "", "path to dump the DMA source as WAV")
	flagSet.StringVar(&dumpDSP, "dump-dsp", "", "path to dump the streaming source as WAV")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == flag.ErrHelp {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "waveenginectl: %v\n", err)
		os.Exit(1)
	}

	cfg.TargetLatencyMS = uint32(targetLatencyMS)
	cfg.SpeedToleranceMS = int32(speedToleranceMS)
	cfg.Backend = audiocore.BackendKind(backend)
	quality, err := audiocore.ParseDPL2Quality(dpl2Quality)
	if err != nil {
		fmt.Fprintf(os.Stderr, "waveenginectl: %v\n", err)
		os.Exit(1)
	}
	cfg.DPL2Quality = quality

	ctl, err := audiocore.NewController(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "waveenginectl: %v\n", err)
		os.Exit(1)
	}
	defer ctl.Shutdown()

	if dumpDTK != "" || dumpDSP != "" {
		if dumpDTK == "" {
			dumpDTK = "dtk.wav"
		}
		if dumpDSP == "" {
			dumpDSP = "dsp.wav"
		}
		if err := ctl.StartAudioDump(dumpDTK, dumpDSP); err != nil {
			fmt.Fprintf(os.Stderr, "waveenginectl: %v\n", err)
			os.Exit(1)
		}
		defer ctl.StopAudioDump()
	}

	if err := ctl.SetRunning(true); err != nil {
		fmt.Fprintf(os.Stderr, "waveenginectl: %v\n", err)
		os.Exit(1)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)

	go feedTestTone(ctl, toneHz)
	go runKeyControls(ctl)

	fmt.Println("waveenginectl: q to quit, +/- volume, m to mute")
	<-stop
}

// feedTestTone pushes a continuous sine wave into the DMA source at
// its native 32kHz rate, byte-swapped to the big-endian order
// SendAIBuffer takes, standing in for whatever real machine would
// otherwise be calling SendAIBuffer.
func feedTestTone(ctl *audiocore.Controller, toneHz float64) {
	const rate = 32000
	const blockFrames = 512
	buf := make([]int16, blockFrames*2)
	var phase float64
	ticker := time.NewTicker(time.Second * blockFrames / rate)
	defer ticker.Stop()
	for range ticker.C {
		for i := 0; i < blockFrames; i++ {
			v := int16(math.Sin(phase) * 0.2 * math.MaxInt16)
			be := int16(uint16(v)<<8 | uint16(v)>>8)
			buf[i*2] = be
			buf[i*2+1] = be
			phase += 2 * math.Pi * toneHz / rate
		}
		ctl.SendAIBuffer(buf)
	}
}

// runKeyControls puts the terminal into raw mode and maps keystrokes
// to volume controls, restoring the terminal on exit.
func runKeyControls(ctl *audiocore.Controller) {
	fd := int(os.Stdin.Fd())
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return
	}
	defer term.Restore(fd, oldState)

	buf := make([]byte, 1)
	for {
		n, err := os.Stdin.Read(buf)
		if err != nil {
			if err != io.EOF {
				return
			}
			continue
		}
		if n == 0 {
			continue
		}
		switch buf[0] {
		case '+':
			ctl.IncreaseVolume(5)
		case '-':
			ctl.DecreaseVolume(5)
		case 'm', 'M':
			ctl.ToggleMuteVolume()
		case 'q', 'Q', 3:
			term.Restore(fd, oldState)
			os.Exit(0)
		}
	}
}
