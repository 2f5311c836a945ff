package events

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventType_Valid(t *testing.T) {
	for _, valid := range []EventType{TypeLifecycle, TypeDispatch, TypeReceipt, TypeProcessed, TypeFailed} {
		assert.True(t, valid.Valid(), "expected %s to be valid", valid)
	}

	assert.False(t, EventType("telepathy").Valid())
	assert.False(t, EventType("").Valid())
	// The set is closed against case drift too
	assert.False(t, EventType("Dispatch").Valid())
}

func TestEventType_Terminal(t *testing.T) {
	assert.True(t, TypeProcessed.Terminal())
	assert.True(t, TypeFailed.Terminal())

	assert.False(t, TypeLifecycle.Terminal())
	assert.False(t, TypeDispatch.Terminal())
	assert.False(t, TypeReceipt.Terminal())
}

func TestMetadata_HasLatency(t *testing.T) {
	var nilMeta *Metadata
	assert.False(t, nilMeta.HasLatency(), "nil metadata must be safe to query")

	assert.False(t, (&Metadata{}).HasLatency())
	assert.False(t, (&Metadata{ErrorCount: 3}).HasLatency())
	assert.True(t, (&Metadata{Latency: time.Millisecond}).HasLatency())
}

func TestNewEvent(t *testing.T) {
	ev := NewEvent(TypeDispatch, "wr-1", ActorCLI)

	require.NotEmpty(t, ev.ID)
	assert.Equal(t, "wr-1", ev.CorrelationID)
	assert.Equal(t, TypeDispatch, ev.Type)
	assert.Equal(t, ActorCLI, ev.Source)
	assert.False(t, ev.Timestamp.IsZero())

	// IDs must be unique per event
	other := NewEvent(TypeDispatch, "wr-1", ActorCLI)
	assert.NotEqual(t, ev.ID, other.ID)
}

func TestNewCorrelationID(t *testing.T) {
	id := NewCorrelationID()
	require.True(t, strings.HasPrefix(id, "wr-"))
	assert.NotEqual(t, id, NewCorrelationID())
}
