package audio

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/rs/zerolog/log"

	"github.com/obiente/whisperbridge/internal/apperr"
)

// SampleRate is the rate whisper.cpp expects.
const SampleRate = 16000

// wavFormatPCM is the WAVE_FORMAT_PCM tag; float and compressed WAVs are
// refused.
const wavFormatPCM = 1

// Extensions lists the file types Source can decode.
var Extensions = []string{".wav", ".pcm", ".raw"}

// Supported reports whether path has a decodable extension.
func Supported(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range Extensions {
		if ext == e {
			return true
		}
	}
	return false
}

// Source loads audio files as 16 kHz mono float32 samples. WAV files are
// downmixed and resampled; .pcm and .raw files are read as headerless
// little-endian PCM16 mono at PCMRate.
type Source struct {
	// PCMRate is the sample rate of headerless input; 0 means 16 kHz.
	PCMRate int
}

// Load reads and decodes the file at path.
func (s Source) Load(path string) ([]float32, error) {
	if !Supported(path) {
		ext := filepath.Ext(path)
		if ext == "" {
			ext = "no extension"
		}
		return nil, apperr.UnsupportedAudioFormat(fmt.Sprintf("%s (want one of %s)", ext, strings.Join(Extensions, ", ")))
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, apperr.AudioNotFound(path)
		}
		return nil, apperr.IO("read", path, err)
	}
	samples, err := s.Decode(filepath.Ext(path), data)
	if err != nil {
		return nil, err
	}
	log.Debug().Str("audio", path).Int("samples", len(samples)).Msg("audio: decoded")
	return samples, nil
}

// Decode converts an in-memory file with the given extension.
func (s Source) Decode(ext string, data []byte) ([]float32, error) {
	var (
		pcm []float32
		sr  int
		err error
	)
	switch strings.ToLower(ext) {
	case ".wav":
		pcm, sr, err = DecodeWAVToFloat32(data)
	case ".pcm", ".raw":
		pcm, sr, err = DecodePCM16LEToFloat32(data, s.PCMRate)
	default:
		return nil, apperr.UnsupportedAudioFormat(ext)
	}
	if err != nil {
		return nil, err
	}
	if sr != SampleRate {
		pcm = ResampleLinear(pcm, sr, SampleRate)
	}
	return pcm, nil
}

// DecodeWAVToFloat32 decodes a PCM WAV blob into mono float32 samples in
// [-1, 1] and returns them with the file's sample rate.
func DecodeWAVToFloat32(b []byte) ([]float32, int, error) {
	dec := wav.NewDecoder(bytes.NewReader(b))
	if !dec.IsValidFile() {
		return nil, 0, apperr.UnsupportedAudioFormat("not a valid wav file")
	}
	if dec.WavAudioFormat != wavFormatPCM {
		return nil, 0, apperr.UnsupportedAudioFormat(fmt.Sprintf("wav encoding %d (only integer PCM is supported)", dec.WavAudioFormat))
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, 0, apperr.UnsupportedAudioFormat("wav data: " + err.Error())
	}
	if buf == nil {
		return nil, 0, apperr.UnsupportedAudioFormat("empty wav buffer")
	}

	sr := int(dec.SampleRate)
	if sr == 0 && buf.Format != nil {
		sr = buf.Format.SampleRate
	}
	if sr == 0 {
		sr = SampleRate
	}
	return downmix(buf, int(dec.NumChans)), sr, nil
}

// downmix normalises interleaved integer samples and averages channels.
func downmix(buf *goaudio.IntBuffer, channels int) []float32 {
	if channels <= 0 && buf.Format != nil {
		channels = buf.Format.NumChannels
	}
	if channels <= 0 {
		channels = 1
	}
	bitDepth := buf.SourceBitDepth
	if bitDepth <= 0 {
		bitDepth = 16
	}
	scale := float32(int(1) << (bitDepth - 1))

	frames := len(buf.Data) / channels
	out := make([]float32, frames)
	for i := 0; i < frames; i++ {
		var sum float32
		for c := 0; c < channels; c++ {
			v := buf.Data[i*channels+c]
			if bitDepth == 8 {
				// 8-bit WAV is unsigned.
				v -= 128
			}
			sum += float32(v) / scale
		}
		out[i] = sum / float32(channels)
	}
	return out
}

// DecodePCM16LEToFloat32 converts little-endian PCM16 bytes into float32 samples and returns the given sample rate.
func DecodePCM16LEToFloat32(b []byte, sampleRate int) ([]float32, int, error) {
	if sampleRate <= 0 {
		sampleRate = SampleRate
	}
	if len(b)%2 != 0 {
		return nil, 0, apperr.UnsupportedAudioFormat("pcm16 length must be even")
	}
	out := make([]float32, len(b)/2)
	for i := range out {
		v := int16(uint16(b[2*i]) | uint16(b[2*i+1])<<8)
		out[i] = float32(v) / 32768.0
	}
	return out, sampleRate, nil
}

// ResampleLinear resamples PCM32F from inRate to outRate using linear interpolation.
func ResampleLinear(samples []float32, inRate, outRate int) []float32 {
	if inRate <= 0 || outRate <= 0 || inRate == outRate || len(samples) == 0 {
		return append([]float32(nil), samples...)
	}
	ratio := float64(outRate) / float64(inRate)
	outLen := int(float64(len(samples)) * ratio)
	if outLen < 1 {
		outLen = 1
	}
	out := make([]float32, outLen)
	for i := range out {
		srcPos := float64(i) / ratio
		i0 := int(srcPos)
		if i0 >= len(samples)-1 {
			out[i] = samples[len(samples)-1]
			continue
		}
		frac := float32(srcPos - float64(i0))
		s0 := samples[i0]
		s1 := samples[i0+1]
		out[i] = s0 + (s1-s0)*frac
	}
	return out
}
