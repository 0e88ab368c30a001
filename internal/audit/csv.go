package audit

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Header is the CSV header for the audit log.
const Header = "at,tenant,actor,action,entity_type,entity_id,details"

const (
	numFields     = 7
	colAt         = 0
	colTenant     = 1
	colActor      = 2
	colAction     = 3
	colEntityType = 4
	colEntityID   = 5
	colDetails    = 6
)

// MarshalEvent converts an Event to a CSV row.
func MarshalEvent(e Event) []string {
	row := make([]string, numFields)
	row[colAt] = e.At.UTC().Format(time.RFC3339Nano)
	row[colTenant] = e.Tenant
	row[colActor] = e.Actor
	row[colAction] = e.Action
	row[colEntityType] = e.EntityType
	row[colEntityID] = e.EntityID
	row[colDetails] = e.Details
	return row
}

// UnmarshalEvent converts a CSV row to an Event.
func UnmarshalEvent(record []string) (Event, error) {
	if len(record) != numFields {
		return Event{}, fmt.Errorf("expected %d fields, got %d", numFields, len(record))
	}

	at, err := time.Parse(time.RFC3339Nano, record[colAt])
	if err != nil {
		return Event{}, fmt.Errorf("parsing timestamp %q: %w", record[colAt], err)
	}

	return Event{
		At:         at,
		Tenant:     record[colTenant],
		Actor:      record[colActor],
		Action:     record[colAction],
		EntityType: record[colEntityType],
		EntityID:   record[colEntityID],
		Details:    record[colDetails],
	}, nil
}

// CSVSink appends events to a CSV file, creating it and its header on
// first use.
type CSVSink struct {
	mu   sync.Mutex
	path string
}

// NewCSVSink returns a sink writing to path.
func NewCSVSink(path string) *CSVSink {
	return &CSVSink{path: path}
}

func (s *CSVSink) Record(_ context.Context, e Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Append(s.path, []Event{e})
}

// Append writes events to the CSV file at path, creating the file and
// header if needed.
func Append(path string, events []Event) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating audit log dir: %w", err)
	}

	needsHeader := false
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		needsHeader = true
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening audit log: %w", err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	if needsHeader {
		if err := cw.Write(strings.Split(Header, ",")); err != nil {
			return fmt.Errorf("writing header: %w", err)
		}
	}
	for i, e := range events {
		if err := cw.Write(MarshalEvent(e)); err != nil {
			return fmt.Errorf("writing event %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// Read returns all events from the CSV file at path.
// Returns an empty slice if the file does not exist.
func Read(path string) ([]Event, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening audit log: %w", err)
	}
	defer f.Close()

	return readEvents(f)
}

func readEvents(r io.Reader) ([]Event, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading audit log CSV: %w", err)
	}

	if len(records) <= 1 {
		return nil, nil
	}

	var events []Event
	for i, rec := range records[1:] {
		e, err := UnmarshalEvent(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		events = append(events, e)
	}
	return events, nil
}
