// Package decode turns audio files into mono PCM.
package decode

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/wav"
	"github.com/mager/chromamind/chromamind"
	"github.com/pkg/errors"
)

// ErrUnsupported is returned for a file extension no decoder handles.
var ErrUnsupported = errors.New("unsupported audio format")

const bufferFrames = 4096

// File decodes an mp3 or wav file, chosen by extension.
func File(path string) (chromamind.PCM, error) {
	f, err := os.Open(path)
	if err != nil {
		return chromamind.PCM{}, errors.Wrap(err, "open audio")
	}
	pcm, err := Reader(f, filepath.Ext(path))
	if err != nil {
		return pcm, errors.Wrapf(err, "decode %s", path)
	}
	return pcm, nil
}

// Reader decodes rc as the given format ("wav", ".mp3", ...). rc is closed.
func Reader(rc io.ReadCloser, format string) (chromamind.PCM, error) {
	var (
		stream beep.StreamSeekCloser
		f      beep.Format
		err    error
	)
	switch strings.TrimPrefix(strings.ToLower(format), ".") {
	case "mp3":
		stream, f, err = mp3.Decode(rc)
	case "wav":
		stream, f, err = wav.Decode(rc)
	default:
		rc.Close()
		return chromamind.PCM{}, errors.Wrapf(ErrUnsupported, "%q", format)
	}
	if err != nil {
		rc.Close()
		return chromamind.PCM{}, err
	}
	defer stream.Close()

	return Mono(stream, int(f.SampleRate))
}

// Mono drains a stereo streamer, averaging both channels.
func Mono(s beep.Streamer, sampleRate int) (chromamind.PCM, error) {
	pcm := chromamind.PCM{SampleRate: sampleRate}
	if l, ok := s.(beep.StreamSeeker); ok && l.Len() > 0 {
		pcm.Samples = make([]float64, 0, l.Len())
	}

	buf := make([][2]float64, bufferFrames)
	for {
		n, ok := s.Stream(buf)
		for _, frame := range buf[:n] {
			pcm.Samples = append(pcm.Samples, (frame[0]+frame[1])/2)
		}
		if !ok {
			break
		}
	}
	if err := s.Err(); err != nil {
		return chromamind.PCM{}, errors.Wrap(err, "read samples")
	}
	return pcm, nil
}
