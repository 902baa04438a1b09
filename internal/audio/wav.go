package audio

import (
	"fmt"
	"io"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// WriteWAV encodes mono 16-bit samples as a WAV stream.
func WriteWAV(w io.WriteSeeker, samples []int16, sampleRate int) error {
	buffer := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: sampleRate},
		SourceBitDepth: 16,
		Data:           make([]int, len(samples)),
	}
	for i, s := range samples {
		buffer.Data[i] = int(s)
	}

	enc := wav.NewEncoder(w, sampleRate, 16, 1, 1)
	if err := enc.Write(buffer); err != nil {
		return fmt.Errorf("write wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("close wav encoder: %w", err)
	}
	return nil
}

// WriteWAVFile writes samples to path as a mono 16-bit WAV file.
func WriteWAVFile(path string, samples []int16, sampleRate int) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create wav file: %w", err)
	}
	if err := WriteWAV(f, samples, sampleRate); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// ReadWAV decodes a 16-bit WAV stream. Multi-channel input is downmixed to mono
// by taking the first channel.
func ReadWAV(r io.ReadSeeker) ([]int16, int, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, 0, fmt.Errorf("not a valid wav file")
	}
	if dec.BitDepth != 16 {
		return nil, 0, fmt.Errorf("unsupported bit depth %d, want 16", dec.BitDepth)
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, 0, fmt.Errorf("decode wav: %w", err)
	}

	channels := int(dec.NumChans)
	if channels < 1 {
		channels = 1
	}
	samples := make([]int16, 0, len(buf.Data)/channels)
	for i := 0; i < len(buf.Data); i += channels {
		samples = append(samples, int16(buf.Data[i]))
	}
	return samples, int(dec.SampleRate), nil
}

// ReadWAVFile reads a 16-bit WAV file from disk.
func ReadWAVFile(path string) ([]int16, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("open wav file: %w", err)
	}
	defer f.Close()
	return ReadWAV(f)
}
