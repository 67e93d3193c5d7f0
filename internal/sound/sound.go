//go:build !ci

// Package sound plays short notification cues for chat events.
package sound

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/speaker"
	"github.com/gopxl/beep/v2/wav"
)

// Cue names looked up as <dir>/<name>.mp3 or <dir>/<name>.wav.
const (
	CuePrivate = "private"
	CueJoin    = "join"
)

const (
	outputRate = beep.SampleRate(44100)
	latency    = 100 * time.Millisecond
)

type decodeFunc func(io.ReadCloser) (beep.StreamSeekCloser, beep.Format, error)

var decoders = map[string]decodeFunc{
	".mp3": mp3.Decode,
	".wav": func(r io.ReadCloser) (beep.StreamSeekCloser, beep.Format, error) { return wav.Decode(r) },
}

// Player holds decoded cues in memory and plays them on the speaker.
type Player struct {
	dir string

	mu     sync.RWMutex
	cues   map[string]*beep.Buffer
	active bool
}

// NewPlayer reads cues from dir on Load. An empty dir keeps it silent.
func NewPlayer(dir string) *Player {
	return &Player{dir: dir}
}

// Load decodes the cue directory and opens the speaker. A missing or empty
// directory leaves the player silent without error.
func (p *Player) Load() error {
	if p.dir == "" {
		return nil
	}
	cues, err := decodeDir(p.dir)
	if err != nil {
		return err
	}
	if len(cues) == 0 {
		return nil
	}
	if err := speaker.Init(outputRate, outputRate.N(latency)); err != nil {
		return fmt.Errorf("open speaker: %w", err)
	}

	p.mu.Lock()
	p.cues = cues
	p.active = true
	p.mu.Unlock()
	return nil
}

// decodeDir buffers every supported file in dir under its base name.
// Files that fail to decode are skipped.
func decodeDir(dir string) (map[string]*beep.Buffer, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read cue dir: %w", err)
	}

	cues := make(map[string]*beep.Buffer, len(entries))
	for _, e := range entries {
		ext := strings.ToLower(filepath.Ext(e.Name()))
		decode, ok := decoders[ext]
		if e.IsDir() || !ok {
			continue
		}
		buf, err := decodeFile(filepath.Join(dir, e.Name()), decode)
		if err != nil {
			continue
		}
		cues[strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))] = buf
	}
	return cues, nil
}

func decodeFile(path string, decode decodeFunc) (*beep.Buffer, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, err
	}
	stream, format, err := decode(f)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	defer func() { _ = stream.Close() }()

	var src beep.Streamer = stream
	if format.SampleRate != outputRate {
		src = beep.Resample(4, format.SampleRate, outputRate, stream)
	}
	buf := beep.NewBuffer(beep.Format{SampleRate: outputRate, NumChannels: 2, Precision: 4})
	buf.Append(src)
	return buf, nil
}

// Play starts the named cue. Unknown cues are silent.
func (p *Player) Play(name string) {
	p.mu.RLock()
	buf := p.cues[name]
	active := p.active
	p.mu.RUnlock()
	if active && buf != nil {
		speaker.Play(buf.Streamer(0, buf.Len()))
	}
}

// Active reports whether cues will be heard.
func (p *Player) Active() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.active
}

// Close silences the player.
func (p *Player) Close() {
	p.mu.Lock()
	p.active = false
	p.mu.Unlock()
}
