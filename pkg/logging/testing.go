package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

// Recorder is a trace-level JSON logger whose lines can be inspected by
// tests.
type Recorder struct {
	Logger *zerolog.Logger
	buf    bytes.Buffer
}

// NewRecorder returns a Recorder and lowers the global level to trace until
// the test ends.
func NewRecorder(t testing.TB) *Recorder {
	t.Helper()

	previous := zerolog.GlobalLevel()
	zerolog.SetGlobalLevel(zerolog.TraceLevel)
	t.Cleanup(func() { zerolog.SetGlobalLevel(previous) })

	r := &Recorder{}
	logger := zerolog.New(&r.buf).Level(zerolog.TraceLevel)
	r.Logger = &logger
	return r
}

// String returns everything logged so far.
func (r *Recorder) String() string {
	return r.buf.String()
}

// Entries decodes each logged line. Lines that are not JSON are skipped.
func (r *Recorder) Entries() []map[string]any {
	var entries []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(r.buf.String()), "\n") {
		var entry map[string]any
		if json.Unmarshal([]byte(line), &entry) == nil {
			entries = append(entries, entry)
		}
	}
	return entries
}
