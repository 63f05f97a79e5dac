package alert

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Sink appends alert records to a file, one JSON object per line. The
// file is never rewritten.
type Sink struct {
	f   *os.File
	enc *json.Encoder
}

// OpenSink opens (or creates) the sink file for appending.
func OpenSink(path string) (*Sink, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening alert sink: %w", err)
	}
	return &Sink{f: f, enc: json.NewEncoder(f)}, nil
}

// Append writes one timestamped record. The caller decides what to do
// with a write error; the monitoring loop logs it and moves on.
func (s *Sink) Append(ts time.Time, a Alert) error {
	if err := s.enc.Encode(NewRecord(ts, a)); err != nil {
		return fmt.Errorf("writing alert record: %w", err)
	}
	return nil
}

// Close releases the underlying file.
func (s *Sink) Close() error {
	return s.f.Close()
}
