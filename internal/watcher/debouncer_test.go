package watcher

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testInterval = 50 * time.Millisecond

func collect() (chan []Event, func([]Event)) {
	ch := make(chan []Event, 8)
	return ch, func(batch []Event) { ch <- batch }
}

func receiveBatch(t *testing.T, ch chan []Event) []Event {
	t.Helper()
	select {
	case batch := <-ch:
		return batch
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for debouncer batch")
		return nil
	}
}

func TestDebouncer_SingleEvent(t *testing.T) {
	ch, flush := collect()
	d := NewDebouncer(testInterval, flush)
	defer d.Stop()

	d.Add("MEMORY.md", OpWrite)

	batch := receiveBatch(t, ch)
	require.Len(t, batch, 1)
	assert.Equal(t, "MEMORY.md", batch[0].Path)
	assert.Equal(t, OpWrite, batch[0].Op)
}

func TestDebouncer_CollapsesSamePath(t *testing.T) {
	ch, flush := collect()
	d := NewDebouncer(testInterval, flush)
	defer d.Stop()

	d.Add("memory/a.md", OpCreate)
	d.Add("memory/a.md", OpWrite)
	d.Add("memory/b.md", OpWrite)
	d.Add("memory/a.md", OpRemove)

	batch := receiveBatch(t, ch)
	require.Len(t, batch, 2)
	assert.Equal(t, Event{Path: "memory/a.md", Op: OpRemove}, batch[0])
	assert.Equal(t, Event{Path: "memory/b.md", Op: OpWrite}, batch[1])
}

func TestDebouncer_SeparateWindows(t *testing.T) {
	ch, flush := collect()
	d := NewDebouncer(testInterval, flush)
	defer d.Stop()

	d.Add("a.md", OpWrite)
	first := receiveBatch(t, ch)
	d.Add("b.md", OpWrite)
	second := receiveBatch(t, ch)

	assert.Equal(t, "a.md", first[0].Path)
	assert.Equal(t, "b.md", second[0].Path)
}

func TestDebouncer_StopDiscardsPending(t *testing.T) {
	ch, flush := collect()
	d := NewDebouncer(testInterval, flush)

	d.Add("a.md", OpWrite)
	d.Stop()
	d.Add("b.md", OpWrite)

	select {
	case batch := <-ch:
		t.Fatalf("unexpected batch after stop: %v", batch)
	case <-time.After(4 * testInterval):
	}
}

func TestDebouncer_DefaultInterval(t *testing.T) {
	d := NewDebouncer(0, func([]Event) {})
	assert.Equal(t, DefaultInterval, d.interval)
}

func TestEventOp_String(t *testing.T) {
	assert.Equal(t, "create", OpCreate.String())
	assert.Equal(t, "write", OpWrite.String())
	assert.Equal(t, "remove", OpRemove.String())
	assert.Equal(t, "rename", OpRename.String())
	assert.Equal(t, "unknown", EventOp(42).String())
}
