// Package session owns one recording session: the chunk sequence
// accumulated from the platform recorder, the elapsed-seconds counter
// and the assembled clip.
package session

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/visiona/studio-capture/internal/capture"
	"github.com/visiona/studio-capture/internal/types"
)

// Clip is one assembled recording, spooled to disk.
type Clip struct {
	ID              string
	Path            string
	SizeBytes       int64
	DurationSeconds int
	Format          string
	RecordedAt      time.Time
}

// Revoke removes the spooled clip file. Idempotent: revoking a clip
// whose file is already gone is a no-op.
func (c *Clip) Revoke() {
	if c == nil || c.Path == "" {
		return
	}
	_ = os.Remove(c.Path)
	c.Path = ""
}

// Recorder wraps the platform's chunked recording facility for one
// session. Chunks are appended strictly in arrival order and owned
// exclusively by the recorder until Assemble transfers them into the
// clip, at which point the chunk sequence is released.
type Recorder struct {
	stream capture.Stream
	format string

	mu      sync.Mutex
	chunks  [][]byte
	elapsed int
	started time.Time
	running bool

	consumeWG sync.WaitGroup
}

// NewRecorder creates a recorder bound to a live stream.
func NewRecorder(stream capture.Stream, format string) *Recorder {
	return &Recorder{stream: stream, format: format}
}

// Start begins chunked recording. Fails with ErrRecorderInit when the
// stream is missing or dead, so the caller can fall back one phase
// instead of entering recording.
func (r *Recorder) Start() error {
	if r.stream == nil || !r.stream.Active() {
		return fmt.Errorf("no live stream: %w", types.ErrRecorderInit)
	}

	chunkCh, err := r.stream.StartRecording()
	if err != nil {
		return fmt.Errorf("start recording: %w", types.ErrRecorderInit)
	}

	r.mu.Lock()
	r.chunks = nil
	r.elapsed = 0
	r.started = time.Now()
	r.running = true
	r.mu.Unlock()

	r.consumeWG.Add(1)
	go r.consume(chunkCh)

	return nil
}

// consume appends chunks in arrival order until the stream closes the
// channel on stop. Chunks are never reordered or dropped.
func (r *Recorder) consume(chunkCh <-chan []byte) {
	defer r.consumeWG.Done()

	for chunk := range chunkCh {
		if len(chunk) == 0 {
			continue
		}
		r.mu.Lock()
		r.chunks = append(r.chunks, chunk)
		r.mu.Unlock()
	}
}

// Tick advances the elapsed-seconds counter by one and reports the new
// value. Called once per second by the owning state machine while the
// phase is recording.
func (r *Recorder) Tick() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.running {
		return r.elapsed
	}
	r.elapsed++
	return r.elapsed
}

// Elapsed returns the seconds recorded so far.
func (r *Recorder) Elapsed() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.elapsed
}

// ChunkCount returns the number of chunks received so far.
func (r *Recorder) ChunkCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.chunks)
}

// Stop halts chunk production and waits until every chunk already in
// flight has been appended. Idempotent.
func (r *Recorder) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	r.mu.Unlock()

	if r.stream != nil {
		_ = r.stream.StopRecording()
	}
	r.consumeWG.Wait()
}

// Assemble concatenates the accumulated chunks, in arrival order, into
// a single clip file under spoolDir. Ownership of the chunk sequence
// transfers to the clip; the sequence is cleared. Must be called after
// Stop.
func (r *Recorder) Assemble(spoolDir string) (*Clip, error) {
	r.mu.Lock()
	chunks := r.chunks
	r.chunks = nil
	elapsed := r.elapsed
	started := r.started
	r.mu.Unlock()

	id := uuid.New().String()
	path := filepath.Join(spoolDir, fmt.Sprintf("%s.%s", id, r.format))

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create clip spool file: %w", err)
	}

	var size int64
	for _, chunk := range chunks {
		n, err := f.Write(chunk)
		if err != nil {
			f.Close()
			_ = os.Remove(path)
			return nil, fmt.Errorf("write clip: %w", err)
		}
		size += int64(n)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return nil, fmt.Errorf("close clip: %w", err)
	}

	return &Clip{
		ID:              id,
		Path:            path,
		SizeBytes:       size,
		DurationSeconds: elapsed,
		Format:          r.format,
		RecordedAt:      started,
	}, nil
}
