package webevents

import (
	"testing"

	"github.com/matryer/is"
)

func TestPublish(t *testing.T) {
	is := is.New(t)

	we := New()
	defer we.Shutdown()

	is.NoErr(we.Publish(AlertEvent, map[string]any{"device_id": 1, "kind": "above_max"}))
}

func TestPublishUnencodableData(t *testing.T) {
	is := is.New(t)

	we := New()
	defer we.Shutdown()

	err := we.Publish(AlertEvent, make(chan int))
	is.True(err != nil)
}
