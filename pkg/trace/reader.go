package trace

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
)

// Reader replays trace.jsonl for inspection or streaming to an external
// dashboard. Grounded on the teacher's session_log.go "list"/"read" actions
// that read back what the single writer appended.
type Reader struct {
	path string
}

// NewReader opens a read-only handle on a trace file. The file need not
// exist yet; ReadAll returns an empty slice in that case.
func NewReader(path string) *Reader {
	return &Reader{path: path}
}

// ReadAll parses every line currently in the trace file into Events, in
// file order (which is event_id order, since the writer never reorders).
func (r *Reader) ReadAll() ([]Event, error) {
	f, err := os.Open(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("trace: open for read: %w", err)
	}
	defer f.Close()

	var events []Event
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		var ev Event
		if err := json.Unmarshal(scanner.Bytes(), &ev); err != nil {
			return nil, fmt.Errorf("trace: parse line: %w", err)
		}
		events = append(events, ev)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("trace: scan: %w", err)
	}
	return events, nil
}

// Tail returns events with EventID >= sinceID, for incremental polling by a
// live-monitoring consumer.
func (r *Reader) Tail(sinceID int) ([]Event, error) {
	all, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	var out []Event
	for _, ev := range all {
		if ev.EventID >= sinceID {
			out = append(out, ev)
		}
	}
	return out, nil
}
