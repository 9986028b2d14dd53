package transcode

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/RyanBlaney/sonido-motor/algorithms/common"
	"github.com/RyanBlaney/sonido-motor/conditioning"
	"github.com/RyanBlaney/sonido-motor/logging"
)

// WAVE format tags. Extensible files carry the real format in the first two
// bytes of their sub-format GUID.
const (
	wavFormatPCM        = 1
	wavFormatExtensible = 0xFFFE
)

// AudioData represents decoded audio data
type AudioData struct {
	PCM        []float64     `json:"-"` // Mono samples in [-1, 1]
	SampleRate int           `json:"sample_rate"`
	Channels   int           `json:"channels"` // Channels in the source file
	BitDepth   int           `json:"bit_depth"`
	Duration   time.Duration `json:"duration"`
	Path       string        `json:"path"`
}

// Buffer returns the decoded audio as an analysis buffer named after the
// file's stem
func (a *AudioData) Buffer() conditioning.AudioBuffer {
	return conditioning.AudioBuffer{
		Samples:    a.PCM,
		SampleRate: a.SampleRate,
		Source:     Stem(a.Path),
	}
}

// Stem returns the file name without directory and extension
func Stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Decoder reads WAV recordings
type Decoder struct {
	logger logging.Logger
}

// NewDecoder creates a new WAV decoder
func NewDecoder(logger logging.Logger) *Decoder {
	return &Decoder{logger: logging.OrNoOp(logger)}
}

// DecodeFile validates and decodes a WAV file. Integer PCM is scaled to
// [-1, 1] by its bit depth and multi-channel audio is averaged to mono.
func (d *Decoder) DecodeFile(path string) (*AudioData, error) {
	if err := ValidateFile(path); err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, common.NewError(common.KindFileValidation, "decode", path, err)
	}
	defer f.Close()

	tag, sub, err := readFormatTags(f)
	if err != nil {
		return nil, common.NewError(common.KindFileValidation, "decode", path+": no format chunk", err)
	}
	if tag != wavFormatPCM && (tag != wavFormatExtensible || sub != wavFormatPCM) {
		return nil, common.Errorf(common.KindFileValidation, "decode",
			"%s: unsupported WAV format tag %d (sub-format %d)", path, tag, sub)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, common.NewError(common.KindFileValidation, "decode", path, err)
	}

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, common.Errorf(common.KindFileValidation, "decode", "%s is not a valid WAV file", path)
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, common.NewError(common.KindFileValidation, "decode", path, err)
	}
	if buf.Format == nil || buf.Format.NumChannels < 1 || buf.Format.SampleRate <= 0 {
		return nil, common.Errorf(common.KindFileValidation, "decode", "%s: missing format", path)
	}

	bitDepth := buf.SourceBitDepth
	if bitDepth == 0 {
		bitDepth = int(dec.BitDepth)
	}

	data := &AudioData{
		PCM:        toMono(buf.Data, buf.Format.NumChannels, bitDepth),
		SampleRate: buf.Format.SampleRate,
		Channels:   buf.Format.NumChannels,
		BitDepth:   bitDepth,
		Path:       path,
	}
	data.Duration = time.Duration(float64(len(data.PCM)) / float64(data.SampleRate) * float64(time.Second))

	d.logger.Debug("Decoded WAV file", logging.Fields{
		"path":        path,
		"sample_rate": data.SampleRate,
		"channels":    data.Channels,
		"bit_depth":   data.BitDepth,
		"samples":     len(data.PCM),
	})

	return data, nil
}

// readFormatTags walks the RIFF chunks up to "fmt " and returns its format
// tag and, for extensible files, the sub-format tag.
func readFormatTags(r io.Reader) (tag, sub uint16, err error) {
	var header [12]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return 0, 0, err
	}

	for {
		var chunk [8]byte
		if _, err := io.ReadFull(r, chunk[:]); err != nil {
			return 0, 0, err
		}
		size := int64(binary.LittleEndian.Uint32(chunk[4:]))

		if string(chunk[:4]) != "fmt " {
			// chunks are word aligned
			if _, err := io.CopyN(io.Discard, r, size+size&1); err != nil {
				return 0, 0, err
			}
			continue
		}
		if size < 16 {
			return 0, 0, fmt.Errorf("format chunk of %d bytes", size)
		}

		body := make([]byte, size)
		if _, err := io.ReadFull(r, body); err != nil {
			return 0, 0, err
		}
		tag = binary.LittleEndian.Uint16(body[0:2])
		if tag == wavFormatExtensible && size >= 26 {
			sub = binary.LittleEndian.Uint16(body[24:26])
		}
		return tag, sub, nil
	}
}

// toMono scales interleaved integer samples to [-1, 1] and averages channels
func toMono(data []int, channels, bitDepth int) []float64 {
	scale := 1.0
	if bitDepth > 0 {
		scale = math.Pow(2, float64(bitDepth-1))
	}

	frames := len(data) / channels
	out := make([]float64, frames)
	for i := range frames {
		sum := 0.0
		for c := range channels {
			sum += float64(data[i*channels+c])
		}
		out[i] = sum / float64(channels) / scale
	}
	return out
}

// WriteWAV writes mono samples in [-1, 1] as 16-bit PCM
func WriteWAV(path string, samples []float64, sampleRate int) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}

	enc := wav.NewEncoder(f, sampleRate, 16, 1, wavFormatPCM)

	data := make([]int, len(samples))
	for i, v := range samples {
		data[i] = int(math.Round(common.Clamp(v, -1, 1) * 32767))
	}

	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}

	if err := enc.Write(buf); err != nil {
		f.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	if err := enc.Close(); err != nil {
		f.Close()
		return fmt.Errorf("finalize %s: %w", path, err)
	}
	return f.Close()
}
