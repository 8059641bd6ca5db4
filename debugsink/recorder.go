package debugsink

import (
	"bufio"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/klauspost/compress/zstd"
)

var ErrRecorderClosed = errors.New("debugsink: recorder closed")

// Recorder writes frames as zstd-compressed JSON lines.
type Recorder struct {
	mu     sync.Mutex
	file   *os.File
	enc    *zstd.Encoder
	w      *bufio.Writer
	frames int
}

// NewRecorder compresses into dst. Closing the recorder does not close dst.
func NewRecorder(dst io.Writer) (*Recorder, error) {
	enc, err := zstd.NewWriter(dst, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		return nil, err
	}
	return &Recorder{enc: enc, w: bufio.NewWriterSize(enc, 128*1024)}, nil
}

// CreateRecorder records into a new file at path, creating parent directories.
func CreateRecorder(path string) (*Recorder, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, err
	}
	r, err := NewRecorder(f)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	r.file = f
	return r, nil
}

func (r *Recorder) Record(f *Frame) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.enc == nil {
		return ErrRecorderClosed
	}

	b, err := json.Marshal(f)
	if err != nil {
		return err
	}
	if _, err := r.w.Write(b); err != nil {
		return err
	}
	if err := r.w.WriteByte('\n'); err != nil {
		return err
	}
	r.frames++
	return nil
}

// Frames is the number of frames recorded so far.
func (r *Recorder) Frames() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frames
}

// Close flushes and finishes the zstd stream.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.enc == nil {
		return nil
	}

	err := r.w.Flush()
	if cerr := r.enc.Close(); err == nil {
		err = cerr
	}
	if r.file != nil {
		if cerr := r.file.Close(); err == nil {
			err = cerr
		}
		r.file = nil
	}
	r.enc = nil
	r.w = nil
	return err
}

// ReadFrames decodes every frame of a recording.
func ReadFrames(src io.Reader) ([]Frame, error) {
	dec, err := zstd.NewReader(src)
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	var frames []Frame
	jd := json.NewDecoder(dec)
	for {
		var f Frame
		if err := jd.Decode(&f); err != nil {
			if errors.Is(err, io.EOF) {
				return frames, nil
			}
			return frames, err
		}
		frames = append(frames, f)
	}
}
