// Package telemetry accumulates per-tick device and quality samples
// for one session. The journal rides along with the clip upload as the
// device-telemetry attachment.
package telemetry

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/visiona/studio-capture/internal/types"
)

// Sample is one telemetry record: the composite verdict of one
// analysis tick plus the device state behind it.
type Sample struct {
	Timestamp           time.Time   `msgpack:"ts"`
	Phase               types.Phase `msgpack:"phase"`
	OverallScore        int         `msgpack:"overall_score"`
	Ready               bool        `msgpack:"ready"`
	MicrophoneConnected bool        `msgpack:"microphone_connected"`
	FaceScore           int         `msgpack:"face_score"`
	LightingScore       int         `msgpack:"lighting_score"`
	AudioScore          int         `msgpack:"audio_score"`
	PositioningScore    int         `msgpack:"positioning_score"`
}

// Journal is an append-only buffer of samples encoded as msgpack
// records with 4-byte big-endian length prefixes.
type Journal struct {
	mu  sync.Mutex
	buf bytes.Buffer
	n   int
}

// NewJournal creates an empty journal.
func NewJournal() *Journal {
	return &Journal{}
}

// Append encodes one sample onto the journal.
func (j *Journal) Append(s Sample) error {
	data, err := msgpack.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal telemetry sample: %w", err)
	}

	var prefix [4]byte
	binary.BigEndian.PutUint32(prefix[:], uint32(len(data)))

	j.mu.Lock()
	defer j.mu.Unlock()
	j.buf.Write(prefix[:])
	j.buf.Write(data)
	j.n++
	return nil
}

// Len returns the number of appended samples.
func (j *Journal) Len() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.n
}

// Bytes returns a copy of the encoded journal.
func (j *Journal) Bytes() []byte {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]byte, j.buf.Len())
	copy(out, j.buf.Bytes())
	return out
}

// Reset discards all samples.
func (j *Journal) Reset() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.buf.Reset()
	j.n = 0
}

// Decode parses an encoded journal back into samples. Used by tests
// and by collaborator-side tooling.
func Decode(data []byte) ([]Sample, error) {
	var out []Sample
	r := bytes.NewReader(data)

	for {
		var prefix [4]byte
		if _, err := io.ReadFull(r, prefix[:]); err != nil {
			if err == io.EOF {
				return out, nil
			}
			return nil, fmt.Errorf("read length prefix: %w", err)
		}
		n := binary.BigEndian.Uint32(prefix[:])
		record := make([]byte, n)
		if _, err := io.ReadFull(r, record); err != nil {
			return nil, fmt.Errorf("read record of %d bytes: %w", n, err)
		}
		var s Sample
		if err := msgpack.Unmarshal(record, &s); err != nil {
			return nil, fmt.Errorf("unmarshal record: %w", err)
		}
		out = append(out, s)
	}
}
