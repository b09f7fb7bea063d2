package webevents

import (
	"encoding/json"
	"net/http"

	gosse "github.com/alexandrevicenzi/go-sse"
)

const (
	AlertEvent   string = "alert"
	AlertChannel string = "alerts"
)

// retry hint sent to browsers, in milliseconds
const retryInterval int = 3000

// WebEvents pushes server sent events to every browser connected to Server.
type WebEvents interface {
	Server() http.Handler
	Shutdown()
	Publish(event string, data any) error
}

type webEvents struct {
	s *gosse.Server
}

func New() WebEvents {
	return &webEvents{
		s: gosse.NewServer(&gosse.Options{
			RetryInterval: retryInterval,
			Headers: map[string]string{
				"Cache-Control": "no-cache",
			},
			ChannelNameFunc: func(*http.Request) string {
				return AlertChannel
			},
		}),
	}
}

func (we *webEvents) Server() http.Handler {
	return we.s
}

func (we *webEvents) Shutdown() {
	we.s.Shutdown()
}

// Publish sends data, encoded as json, to every browser on the alert channel.
func (we *webEvents) Publish(event string, data any) error {
	b, err := json.Marshal(data)
	if err != nil {
		return err
	}

	we.s.SendMessage(AlertChannel, gosse.NewMessage("", string(b), event))

	return nil
}
