package audio

import (
	"errors"
	"fmt"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const bitsPerSample = 16

// WriteWAV encodes mono 16-bit PCM samples to path, replacing any existing file.
func WriteWAV(path string, samples []int16, sampleRate int) (err error) {
	if sampleRate <= 0 {
		return fmt.Errorf("sample rate must be > 0, got %d", sampleRate)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("open wav %q: %w", path, err)
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("close wav %q: %w", path, closeErr)
		}
	}()

	encoder := wav.NewEncoder(file, sampleRate, bitsPerSample, 1, 1)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:           make([]int, len(samples)),
		SourceBitDepth: bitsPerSample,
	}
	for i, sample := range samples {
		buf.Data[i] = int(sample)
	}

	if err := encoder.Write(buf); err != nil {
		_ = encoder.Close()
		return fmt.Errorf("encode wav %q: %w", path, err)
	}
	if err := encoder.Close(); err != nil {
		return fmt.Errorf("finalize wav %q: %w", path, err)
	}
	return nil
}

// ReadWAV decodes a mono or multi-channel 16-bit WAV file into its first channel.
func ReadWAV(path string) ([]int16, int, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("open wav %q: %w", path, err)
	}
	defer file.Close()

	decoder := wav.NewDecoder(file)
	if !decoder.IsValidFile() {
		return nil, 0, fmt.Errorf("decode wav %q: %w", path, errors.New("not a valid wav file"))
	}
	if decoder.BitDepth != bitsPerSample {
		return nil, 0, fmt.Errorf("decode wav %q: unsupported bit depth %d", path, decoder.BitDepth)
	}

	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, 0, fmt.Errorf("decode wav %q: %w", path, err)
	}

	channels := int(decoder.NumChans)
	if channels <= 0 {
		channels = 1
	}
	samples := make([]int16, 0, len(buf.Data)/channels)
	for i := 0; i < len(buf.Data); i += channels {
		samples = append(samples, int16(buf.Data[i]))
	}
	return samples, int(decoder.SampleRate), nil
}

// PCM16LEToSamples converts little-endian s16 bytes to samples; a trailing odd
// byte is ignored.
func PCM16LEToSamples(pcm []byte) []int16 {
	samples := make([]int16, len(pcm)/2)
	for i := range samples {
		samples[i] = int16(uint16(pcm[2*i]) | uint16(pcm[2*i+1])<<8)
	}
	return samples
}
