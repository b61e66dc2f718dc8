package audiocore

import (
	"encoding/binary"
	"fmt"
	"os"
)

// placeholderSize is written into the RIFF/data chunk sizes on Start
// and rewritten with the real totals on Stop. Using a large
// placeholder rather than zero means a dump that's never cleanly
// stopped (crash, power loss) still has a player-usable size field.
const placeholderSize = 100 * 1000 * 1000

// WaveFileWriter dumps a stream of big-endian stereo int16 samples to
// a 16-bit PCM WAV file, swapping to little-endian (and, on request,
// L/R order) on the way out. A rate change mid-dump closes the current file and opens a new
// one with an incrementing numeric suffix rather than mixing two
// sample rates into one WAV.
type WaveFileWriter struct {
	basePath string
	file     *os.File
	rate     uint32
	rollover int

	audioSize uint32

	skipSilence bool
}

// NewWaveFileWriter creates a writer that will dump to basePath (and,
// on rate rollover, to basePath with its extension replaced by -1.wav,
// -2.wav, ..., e.g. dump.wav then dump-1.wav).
func NewWaveFileWriter(basePath string, skipSilence bool) *WaveFileWriter {
	return &WaveFileWriter{basePath: basePath, skipSilence: skipSilence}
}

func (w *WaveFileWriter) pathFor(rollover int) string {
	if rollover == 0 {
		return w.basePath
	}
	return fmt.Sprintf("%s-%d.wav", trimExt(w.basePath), rollover)
}

func trimExt(p string) string {
	for i := len(p) - 1; i >= 0 && p[i] != '/'; i-- {
		if p[i] == '.' {
			return p[:i]
		}
	}
	return p
}

// Start opens the dump file and writes a header with placeholder
// sizes at sampleRateHz.
func (w *WaveFileWriter) Start(sampleRateHz uint32) error {
	w.rate = sampleRateHz
	w.audioSize = 0
	return w.open()
}

func (w *WaveFileWriter) open() error {
	f, err := os.Create(w.pathFor(w.rollover))
	if err != nil {
		return fmt.Errorf("audiocore: open wave dump: %w", err)
	}
	w.file = f
	return writeWaveHeader(f, w.rate, placeholderSize)
}

func writeWaveHeader(f *os.File, sampleRateHz, dataSize uint32) error {
	const (
		numChannelsWav = 2
		bitsPerSample  = 16
	)
	byteRate := sampleRateHz * numChannelsWav * bitsPerSample / 8
	blockAlign := uint16(numChannelsWav * bitsPerSample / 8)

	var hdr [44]byte
	copy(hdr[0:4], "RIFF")
	binary.LittleEndian.PutUint32(hdr[4:8], 36+dataSize)
	copy(hdr[8:12], "WAVE")
	copy(hdr[12:16], "fmt ")
	binary.LittleEndian.PutUint32(hdr[16:20], 16)
	binary.LittleEndian.PutUint16(hdr[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(hdr[22:24], numChannelsWav)
	binary.LittleEndian.PutUint32(hdr[24:28], sampleRateHz)
	binary.LittleEndian.PutUint32(hdr[28:32], byteRate)
	binary.LittleEndian.PutUint16(hdr[32:34], blockAlign)
	binary.LittleEndian.PutUint16(hdr[34:36], bitsPerSample)
	copy(hdr[36:40], "data")
	binary.LittleEndian.PutUint32(hdr[40:44], dataSize)

	if _, err := f.WriteAt(hdr[:], 0); err != nil {
		return fmt.Errorf("audiocore: write wave header: %w", err)
	}
	if _, err := f.Seek(0, 2); err != nil {
		return err
	}
	return nil
}

// AddStereoSamplesBE appends count big-endian stereo frames, swapping
// to little-endian and, if swapChannels is true, L/R order on the way
// out. If sampleRateHz differs from the currently open file's rate,
// the current file is closed and a new one opened with an
// incrementing suffix before the data is written.
func (w *WaveFileWriter) AddStereoSamplesBE(samples []int16, count int, sampleRateHz uint32, swapChannels bool) error {
	if sampleRateHz != w.rate && w.file != nil {
		if err := w.Stop(); err != nil {
			return err
		}
		w.rollover++
		w.rate = sampleRateHz
		w.audioSize = 0
		if err := w.open(); err != nil {
			return err
		}
	}
	if w.file == nil {
		w.rate = sampleRateHz
		if err := w.open(); err != nil {
			return err
		}
	}

	if w.skipSilence && isSilence(samples[:count*2]) {
		return nil
	}

	buf := make([]byte, count*4)
	for i := 0; i < count; i++ {
		l := beSwap16(samples[i*2+0])
		r := beSwap16(samples[i*2+1])
		if swapChannels {
			l, r = r, l
		}
		binary.LittleEndian.PutUint16(buf[i*4:], uint16(l))
		binary.LittleEndian.PutUint16(buf[i*4+2:], uint16(r))
	}
	if _, err := w.file.Write(buf); err != nil {
		return fmt.Errorf("audiocore: write wave samples: %w", err)
	}
	w.audioSize += uint32(len(buf))
	return nil
}

func isSilence(samples []int16) bool {
	for _, s := range samples {
		if s != 0 {
			return false
		}
	}
	return true
}

func beSwap16(v int16) int16 {
	u := uint16(v)
	return int16(u<<8 | u>>8)
}

// Stop finalizes the header with the real data size and closes the
// file. It is safe to call on a writer that was never started.
func (w *WaveFileWriter) Stop() error {
	if w.file == nil {
		return nil
	}
	if err := writeWaveHeader(w.file, w.rate, w.audioSize); err != nil {
		w.file.Close()
		w.file = nil
		return err
	}
	err := w.file.Close()
	w.file = nil
	return err
}
