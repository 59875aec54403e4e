package events

import (
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBaseEvent_Creation(t *testing.T) {
	event := NewBaseEvent("test.event", "payload")

	assert.Equal(t, "test.event", event.GetName())
	assert.Equal(t, "payload", event.GetPayload())
	assert.Empty(t, event.GetMetadata())
	assert.False(t, event.GetTimestamp().IsZero())
	assert.Equal(t, "test.event", event.String())
}

func TestBaseEvent_Metadata(t *testing.T) {
	event := NewBaseEvent("test.event", nil)
	event.SetMetadata("key", "value")

	metadata := event.GetMetadata()
	assert.Equal(t, "value", metadata["key"])

	metadata["key"] = "mutated"
	assert.Equal(t, "value", event.GetMetadata()["key"], "metadata is returned as a copy")
}

func TestBaseEvent_StopPropagation(t *testing.T) {
	var event StoppableEvent = NewBaseEvent("test.event", nil)

	assert.False(t, event.IsPropagationStopped())
	event.StopPropagation()
	assert.True(t, event.IsPropagationStopped())
}

func TestRequestEvent(t *testing.T) {
	r := httptest.NewRequest("GET", "/users/1", nil)
	event := NewRequestEvent(EventRequestReceived, r)

	assert.Equal(t, "request.received", event.GetName())
	assert.Same(t, r, event.Request)
	assert.Same(t, r, event.GetPayload())
}

func TestEventConcurrency(t *testing.T) {
	event := NewBaseEvent("test.event", nil)
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			event.SetMetadata("k", i)
		}(i)
		go func() {
			defer wg.Done()
			_ = event.GetMetadata()
		}()
	}
	wg.Wait()

	_, ok := event.GetMetadata()["k"]
	assert.True(t, ok)
}
