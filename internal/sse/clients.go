// Package sse fans server-sent events out to browser tabs subscribed to a topic.
package sse

import (
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/debemdeboas/pages-admin/internal/config"
)

// Topics the console publishes on.
const (
	TopicPages    = "pages"
	TopicSession  = "session"
	topicUpload   = "upload:"
	topicSections = "sections:"
)

func UploadTopic(draftID string) string  { return topicUpload + draftID }
func SectionsTopic(pageID string) string { return topicSections + pageID }

// Event is one SSE frame. An empty Name sends a plain "message" event.
type Event struct {
	Name string
	Data string
}

type Client struct {
	Msg   chan Event
	Topic string
}

type SSEClients struct {
	clients map[*Client]bool
	mu      sync.RWMutex
}

func NewSSEClients() *SSEClients {
	return &SSEClients{
		clients: make(map[*Client]bool),
	}
}

func (s *SSEClients) Add(client *Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[client] = true
}

func (s *SSEClients) Delete(client *Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clients[client]; !ok {
		return
	}
	delete(s.clients, client)
	close(client.Msg)
}

func (s *SSEClients) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// Broadcast sends ev to every client on topic. Slow clients miss the event.
func (s *SSEClients) Broadcast(topic string, ev Event) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for client := range s.clients {
		if client.Topic == topic {
			select {
			case client.Msg <- ev:
			default:
			}
		}
	}
}

func writeEvent(w http.ResponseWriter, ev Event) {
	if ev.Name != "" {
		fmt.Fprintf(w, "event: %s\n", ev.Name)
	}
	for _, line := range strings.Split(ev.Data, "\n") {
		fmt.Fprintf(w, "data: %s\n", line)
	}
	fmt.Fprint(w, "\n")
}

// Handler streams the events of the topic named by the "topic" query parameter.
func (s *SSEClients) Handler(w http.ResponseWriter, r *http.Request) {
	log := zerolog.Ctx(r.Context())

	topic := r.URL.Query().Get("topic")
	if topic == "" {
		http.Error(w, "Topic parameter required", http.StatusBadRequest)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set(config.HCType, "text/event-stream")
	w.Header().Set(config.HCacheControl, "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Del("X-Content-Type-Options")

	client := &Client{
		Msg:   make(chan Event, 8),
		Topic: topic,
	}
	s.Add(client)
	log.Debug().Str("topic", topic).Msg("SSE client connected")

	defer func() {
		s.Delete(client)
		log.Debug().Str("topic", topic).Msg("SSE client disconnected")
	}()

	writeEvent(w, Event{Name: "connected", Data: "SSE connection established"})
	flusher.Flush()

	for {
		select {
		case ev, ok := <-client.Msg:
			if !ok {
				return
			}
			writeEvent(w, ev)
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}
