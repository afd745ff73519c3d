// Package replay records per-tick jump decisions to a zstd-compressed JSONL log
// and plays them back as scripted policies.
//
// A log is one header line followed by one frame per tick listing the agents
// that jumped. Together with the seed in the header this reproduces an episode
// exactly, independent of how the original decisions were made.
package replay

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sync"

	"github.com/klauspost/compress/zstd"

	"github.com/pthm-cable/flap/game"
	"github.com/pthm-cable/flap/systems"
)

// FormatVersion identifies the log layout.
const FormatVersion = 1

// ErrUnsupportedVersion is returned for logs written in another layout.
var ErrUnsupportedVersion = errors.New("unsupported replay version")

// Header is the first line of a log.
type Header struct {
	Version    int     `json:"version"`
	Seed       uint64  `json:"seed"`
	Generation int     `json:"generation"`
	Agents     int     `json:"agents"`
	Threshold  float64 `json:"threshold"`
	Masks      bool    `json:"masks,omitempty"` // Sprite masks, not boxes, decided collisions
}

// Frame lists the agents that jumped on one tick.
type Frame struct {
	Tick  int   `json:"tick"`
	Jumps []int `json:"jumps,omitempty"`
}

// Recorder wraps agent policies and writes their decisions. It is a
// game.RenderSink: each rendered snapshot closes the frame for that tick.
type Recorder struct {
	header Header

	mu      sync.Mutex
	enc     *zstd.Encoder
	w       *bufio.Writer
	closer  io.Closer
	pending []int
	err     error
}

// NewRecorder writes h to w and returns a recorder appending frames after it.
func NewRecorder(w io.Writer, h Header) (*Recorder, error) {
	h.Version = FormatVersion
	enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		return nil, fmt.Errorf("creating zstd encoder: %w", err)
	}
	r := &Recorder{
		header: h,
		enc:    enc,
		w:      bufio.NewWriterSize(enc, 64*1024),
	}
	if err := r.writeLine(h); err != nil {
		_ = enc.Close()
		return nil, err
	}
	return r, nil
}

// Create opens path and records into it. Close also closes the file.
func Create(path string, h Header) (*Recorder, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating replay file: %w", err)
	}
	r, err := NewRecorder(f, h)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	r.closer = f
	return r, nil
}

// Header returns the header written at the start of the log.
func (r *Recorder) Header() Header { return r.header }

// Wrap returns a policy that forwards to p and records agent id's jumps.
func (r *Recorder) Wrap(id int, p game.Policy) game.Policy {
	return game.PolicyFunc(func(obs systems.Observation) float64 {
		d := p.Decide(obs)
		if !math.IsNaN(d) && !math.IsInf(d, 0) && d > r.header.Threshold {
			r.mu.Lock()
			r.pending = append(r.pending, id)
			r.mu.Unlock()
		}
		return d
	})
}

// Render writes the frame for s.Tick.
func (r *Recorder) Render(s game.Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.err != nil {
		return
	}
	f := Frame{Tick: s.Tick, Jumps: append([]int(nil), r.pending...)}
	r.pending = r.pending[:0]
	r.err = r.writeLine(f)
}

func (r *Recorder) writeLine(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := r.w.Write(b); err != nil {
		return err
	}
	return r.w.WriteByte('\n')
}

// Close flushes the log and reports the first write error.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	err := r.err
	if ferr := r.w.Flush(); err == nil {
		err = ferr
	}
	if cerr := r.enc.Close(); err == nil {
		err = cerr
	}
	if r.closer != nil {
		if cerr := r.closer.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// Script is a loaded decision log.
type Script struct {
	Header Header
	Ticks  int // Last recorded tick

	jumps []map[int]struct{} // by agent ID: ticks on which it jumped
}

// Load reads a log written by Recorder.
func Load(r io.Reader) (*Script, error) {
	dec, err := zstd.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("creating zstd decoder: %w", err)
	}
	defer dec.Close()

	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 64*1024), 8*1024*1024)

	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return nil, fmt.Errorf("reading replay header: %w", err)
		}
		return nil, errors.New("replay log is empty")
	}
	var h Header
	if err := json.Unmarshal(sc.Bytes(), &h); err != nil {
		return nil, fmt.Errorf("parsing replay header: %w", err)
	}
	if h.Version != FormatVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, h.Version)
	}

	s := &Script{Header: h, jumps: make([]map[int]struct{}, h.Agents)}
	for i := range s.jumps {
		s.jumps[i] = make(map[int]struct{})
	}

	for sc.Scan() {
		var f Frame
		if err := json.Unmarshal(sc.Bytes(), &f); err != nil {
			return nil, fmt.Errorf("parsing replay frame after tick %d: %w", s.Ticks, err)
		}
		for _, id := range f.Jumps {
			if id < 0 || id >= h.Agents {
				return nil, fmt.Errorf("replay frame %d references agent %d of %d", f.Tick, id, h.Agents)
			}
			s.jumps[id][f.Tick] = struct{}{}
		}
		s.Ticks = max(s.Ticks, f.Tick)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading replay frames: %w", err)
	}
	return s, nil
}

// LoadFile reads a log from path.
func LoadFile(path string) (*Script, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening replay file: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Policy returns a policy replaying agent id. The n-th call answers for tick n,
// which holds because the episode consults each live agent once per tick.
// Unknown agents and ticks past the end of the log never jump.
func (s *Script) Policy(id int) game.Policy {
	var jumps map[int]struct{}
	if id >= 0 && id < len(s.jumps) {
		jumps = s.jumps[id]
	}
	jump := math.Max(1, s.Header.Threshold+1)
	stay := math.Min(0, s.Header.Threshold-1)
	tick := 0
	return game.PolicyFunc(func(systems.Observation) float64 {
		tick++
		if _, ok := jumps[tick]; ok {
			return jump
		}
		return stay
	})
}

// JumpCount returns how many jumps were recorded for agent id.
func (s *Script) JumpCount(id int) int {
	if id < 0 || id >= len(s.jumps) {
		return 0
	}
	return len(s.jumps[id])
}
