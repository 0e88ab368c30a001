package audit

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

var testTime = time.Date(2025, 1, 15, 10, 30, 0, 0, time.UTC)

func testEvent() Event {
	return Event{
		At:         testTime,
		Tenant:     "umoja",
		Actor:      "treasurer",
		Action:     ActionEntryPost,
		EntityType: "journal_entry",
		EntityID:   "2025-01-001",
		Details:    "debit 1-1000 100000.00, credit 4-1000 100000.00",
	}
}

func TestAppend_NewFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "audit-log.csv")
	require.NoError(t, Append(path, []Event{testEvent()}))

	events, err := Read(path)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "treasurer", events[0].Actor)
}

func TestCSVSink_Appends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit-log.csv")
	sink := NewCSVSink(path)
	ctx := context.Background()

	require.NoError(t, sink.Record(ctx, testEvent()))
	e2 := testEvent()
	e2.Action = ActionEntryReverse
	require.NoError(t, sink.Record(ctx, e2))

	events, err := Read(path)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, ActionEntryPost, events[0].Action)
	assert.Equal(t, ActionEntryReverse, events[1].Action)
}

func TestCSVSink_ConcurrentWriters(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit-log.csv")
	sink := NewCSVSink(path)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, sink.Record(context.Background(), testEvent()))
		}()
	}
	wg.Wait()

	events, err := Read(path)
	require.NoError(t, err)
	assert.Len(t, events, 10)
}

func TestRead_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit-log.csv")
	original := testEvent()
	require.NoError(t, Append(path, []Event{original}))

	events, err := Read(path)
	require.NoError(t, err)
	require.Len(t, events, 1)

	got := events[0]
	assert.True(t, original.At.Equal(got.At))
	assert.Equal(t, original, Event{
		At: original.At, Tenant: got.Tenant, Actor: got.Actor, Action: got.Action,
		EntityType: got.EntityType, EntityID: got.EntityID, Details: got.Details,
	})
}

func TestRead_NotFound(t *testing.T) {
	events, err := Read(filepath.Join(t.TempDir(), "missing.csv"))
	require.NoError(t, err)
	assert.Nil(t, events)
}

func TestRead_EmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit-log.csv")
	require.NoError(t, os.WriteFile(path, []byte(Header+"\n"), 0o644))

	events, err := Read(path)
	require.NoError(t, err)
	assert.Nil(t, events)
}

func TestLogSink(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	sink := LogSink{Logger: zap.New(core)}

	require.NoError(t, sink.Record(context.Background(), testEvent()))
	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "treasurer", fields["actor"])
	assert.Equal(t, ActionEntryPost, fields["action"])
}

type failingSink struct{}

func (failingSink) Record(context.Context, Event) error { return errors.New("disk full") }

func TestMulti(t *testing.T) {
	mem := &Memory{}
	sink := Multi(mem, failingSink{}, Discard)

	err := sink.Record(context.Background(), testEvent())
	assert.ErrorContains(t, err, "disk full")
	assert.Equal(t, []string{ActionEntryPost}, mem.Actions(), "other sinks still receive the event")
}
