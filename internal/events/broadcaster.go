// Package events provides an SSE event broadcaster for real-time
// file activity updates.
package events

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/peardrive/peardrive/internal/metrics"
)

const (
	EventUploadComplete = "upload_complete"
	EventFileTrashed    = "file_trashed"
	EventFileRestored   = "file_restored"
	EventFileDeleted    = "file_deleted"
	EventFileRenamed    = "file_renamed"
	EventFolderCreated  = "folder_created"
	EventFolderTrashed  = "folder_trashed"
	EventFolderRestored = "folder_restored"
	EventFolderDeleted  = "folder_deleted"
	EventNotification   = "notification"
)

// Event represents a file activity event. UserID scopes delivery: SSE
// connections only receive events for their own user.
type Event struct {
	Type      string `json:"type"`
	UserID    int    `json:"-"`
	FileID    string `json:"file_id,omitempty"`
	FolderID  string `json:"folder_id,omitempty"`
	Name      string `json:"name,omitempty"`
	Size      int64  `json:"size,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// Broadcaster manages SSE subscribers and publishes events.
type Broadcaster struct {
	mu          sync.RWMutex
	subscribers map[chan Event]int // channel -> user ID
}

// NewBroadcaster creates a new event broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		subscribers: make(map[chan Event]int),
	}
}

// Subscribe adds a subscriber for the given user and returns its event
// channel. The caller must call Unsubscribe when done.
func (b *Broadcaster) Subscribe(userID int) chan Event {
	ch := make(chan Event, 64)
	b.mu.Lock()
	b.subscribers[ch] = userID
	b.mu.Unlock()
	metrics.SetSSEConnectionsActive(int64(b.Count()))
	return ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *Broadcaster) Unsubscribe(ch chan Event) {
	b.mu.Lock()
	delete(b.subscribers, ch)
	close(ch)
	b.mu.Unlock()
	metrics.SetSSEConnectionsActive(int64(b.Count()))
}

// Publish sends an event to the owning user's subscribers. Non-blocking:
// drops events for slow consumers.
func (b *Broadcaster) Publish(event Event) {
	if event.Timestamp == 0 {
		event.Timestamp = time.Now().Unix()
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch, userID := range b.subscribers {
		if event.UserID != 0 && userID != event.UserID {
			continue
		}
		select {
		case ch <- event:
		default:
			// Drop event for slow consumer
		}
	}
	metrics.RecordSSEEvent(event.Type)
}

// Count returns the current number of subscribers.
func (b *Broadcaster) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// MarshalEvent serializes an event to JSON.
func MarshalEvent(e Event) ([]byte, error) {
	return json.Marshal(e)
}
