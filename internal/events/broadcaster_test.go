package events

import (
	"testing"
	"time"
)

func TestBroadcasterSubscribeUnsubscribe(t *testing.T) {
	b := NewBroadcaster()

	ch1 := b.Subscribe(1)
	ch2 := b.Subscribe(2)

	if b.Count() != 2 {
		t.Fatalf("expected 2 subscribers, got %d", b.Count())
	}

	b.Unsubscribe(ch1)
	if b.Count() != 1 {
		t.Fatalf("expected 1 subscriber after unsubscribe, got %d", b.Count())
	}

	b.Unsubscribe(ch2)
	if b.Count() != 0 {
		t.Fatalf("expected 0 subscribers, got %d", b.Count())
	}
}

func TestBroadcasterPublish(t *testing.T) {
	b := NewBroadcaster()
	ch := b.Subscribe(7)
	defer b.Unsubscribe(ch)

	event := Event{
		Type:   EventUploadComplete,
		UserID: 7,
		FileID: "file-1",
		Size:   100,
	}
	b.Publish(event)

	select {
	case received := <-ch:
		if received.Type != EventUploadComplete {
			t.Errorf("expected type %s, got %s", EventUploadComplete, received.Type)
		}
		if received.FileID != "file-1" {
			t.Errorf("expected file_id file-1, got %s", received.FileID)
		}
		if received.Timestamp == 0 {
			t.Error("expected non-zero timestamp")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestBroadcasterScopesByUser(t *testing.T) {
	b := NewBroadcaster()
	mine := b.Subscribe(1)
	theirs := b.Subscribe(2)
	defer b.Unsubscribe(mine)
	defer b.Unsubscribe(theirs)

	b.Publish(Event{Type: EventFileTrashed, UserID: 1, FileID: "f"})

	select {
	case <-mine:
	case <-time.After(time.Second):
		t.Fatal("owning subscriber did not receive event")
	}

	select {
	case e := <-theirs:
		t.Fatalf("other user received event: %+v", e)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBroadcasterDropsForSlowConsumer(t *testing.T) {
	b := NewBroadcaster()
	ch := b.Subscribe(1)
	defer b.Unsubscribe(ch)

	// Fill the channel buffer (64)
	for i := 0; i < 100; i++ {
		b.Publish(Event{Type: EventUploadComplete, UserID: 1, FileID: "overflow"})
	}

	// Should not block or panic
	count := 0
	for {
		select {
		case <-ch:
			count++
		default:
			goto done
		}
	}
done:
	if count != 64 {
		t.Errorf("expected 64 buffered events, got %d", count)
	}
}

func TestMarshalEvent(t *testing.T) {
	e := Event{
		Type:      EventFileDeleted,
		FileID:    "gone",
		Timestamp: 1234567890,
	}
	data, err := MarshalEvent(e)
	if err != nil {
		t.Fatal(err)
	}
	if len(data) == 0 {
		t.Error("expected non-empty JSON")
	}
}
