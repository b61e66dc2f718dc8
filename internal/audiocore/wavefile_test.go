package audiocore

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
)

func TestWaveFileWriterRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dump.wav")

	w := NewWaveFileWriter(path, false)
	if err := w.Start(48000); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	samples := []int16{1, 2, 3, 4} // two big-endian stereo frames
	if err := w.AddStereoSamplesBE(samples, 2, 48000, false); err != nil {
		t.Fatalf("AddStereoSamplesBE() error = %v", err)
	}
	if err := w.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if len(data) != 44+8 {
		t.Fatalf("dump file length = %d, want %d", len(data), 44+8)
	}
	if string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		t.Fatalf("missing RIFF/WAVE markers: %q", data[0:12])
	}
	sampleRate := binary.LittleEndian.Uint32(data[24:28])
	if sampleRate != 48000 {
		t.Fatalf("header sample rate = %d, want 48000", sampleRate)
	}
	dataSize := binary.LittleEndian.Uint32(data[40:44])
	if dataSize != 8 {
		t.Fatalf("header data size = %d, want 8 (finalized, not the placeholder)", dataSize)
	}
}

func TestWaveFileWriterRateChangeRollsOverFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dump.wav")

	w := NewWaveFileWriter(path, false)
	if err := w.Start(48000); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := w.AddStereoSamplesBE([]int16{1, 2}, 1, 48000, false); err != nil {
		t.Fatalf("AddStereoSamplesBE() error = %v", err)
	}
	if err := w.AddStereoSamplesBE([]int16{1, 2}, 1, 44100, false); err != nil {
		t.Fatalf("AddStereoSamplesBE() error on rate change = %v", err)
	}
	if err := w.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}

	rolled := filepath.Join(dir, "dump-1.wav")
	if _, err := os.Stat(rolled); err != nil {
		t.Fatalf("expected rollover file %s to exist: %v", rolled, err)
	}
}

func TestWaveFileWriterSkipSilence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dump.wav")

	w := NewWaveFileWriter(path, true)
	if err := w.Start(48000); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := w.AddStereoSamplesBE([]int16{0, 0, 0, 0}, 2, 48000, false); err != nil {
		t.Fatalf("AddStereoSamplesBE() error = %v", err)
	}
	if err := w.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	dataSize := binary.LittleEndian.Uint32(data[40:44])
	if dataSize != 0 {
		t.Fatalf("header data size = %d, want 0 with silence skipped", dataSize)
	}
}
