package services

import (
	"encoding/json"
	"testing"
)

func receive(t *testing.T, c *Client) Envelope {
	t.Helper()
	select {
	case data, ok := <-c.Send():
		if !ok {
			t.Fatal("client queue closed")
		}
		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			t.Fatalf("bad frame %s: %v", data, err)
		}
		return env
	default:
		t.Fatal("no frame queued")
	}
	return Envelope{}
}

func assertEmpty(t *testing.T, c *Client) {
	t.Helper()
	select {
	case data := <-c.Send():
		t.Fatalf("unexpected frame %s", data)
	default:
	}
}

func TestTourHubRoomIsolation(t *testing.T) {
	hub := NewTourHub()
	a, b := NewClient("a"), NewClient("b")

	hub.Join(a, "t1")
	hub.Join(b, "t2")

	hub.Emit("t1", EventSantaLocation, map[string]any{"tour_id": "t1"})

	env := receive(t, a)
	if env.Event != EventSantaLocation {
		t.Errorf("event = %s, want %s", env.Event, EventSantaLocation)
	}
	assertEmpty(t, b)
}

func TestTourHubPreservesEmitOrder(t *testing.T) {
	hub := NewTourHub()
	c := NewClient("c")
	hub.Join(c, "t1")

	events := []string{EventTourStarted, EventVisitUpdated, EventFamiliesReordered}
	for _, e := range events {
		hub.Emit("t1", e, nil)
	}
	for _, want := range events {
		if got := receive(t, c).Event; got != want {
			t.Fatalf("event = %s, want %s", got, want)
		}
	}
}

func TestTourHubLeaveAndRemove(t *testing.T) {
	hub := NewTourHub()
	c := NewClient("c")

	hub.Join(c, "t1")
	hub.Join(c, "t2")
	if hub.RoomSize("t1") != 1 || hub.RoomSize("t2") != 1 {
		t.Fatal("client should be in both rooms")
	}

	hub.Leave(c, "t1")
	hub.Emit("t1", EventVisitUpdated, nil)
	assertEmpty(t, c)
	if hub.RoomSize("t1") != 0 {
		t.Error("empty room should be dropped")
	}

	hub.Remove(c)
	if hub.RoomSize("t2") != 0 {
		t.Error("removed client still in room")
	}
	if _, ok := <-c.Send(); ok {
		t.Error("queue should be closed after Remove")
	}

	// a removed client can neither rejoin nor receive
	hub.Join(c, "t2")
	hub.SendTo(c, EventError, "late")
	hub.Remove(c)
	if hub.RoomSize("t2") != 0 {
		t.Error("removed client rejoined a room")
	}
}

func TestTourHubDropsWhenQueueFull(t *testing.T) {
	hub := NewTourHub()
	slow, fast := NewClient("slow"), NewClient("fast")
	hub.Join(slow, "t1")
	hub.Join(fast, "t1")

	for i := 0; i < clientBuffer+5; i++ {
		hub.Emit("t1", EventSantaLocation, i)
		if i < clientBuffer {
			receive(t, fast)
		}
	}
	if got := len(slow.send); got != clientBuffer {
		t.Errorf("slow queue = %d frames, want %d", got, clientBuffer)
	}
}

func TestTourHubSendTo(t *testing.T) {
	hub := NewTourHub()
	c := NewClient("c")

	hub.SendTo(c, EventError, map[string]string{"message": "unknown message type"})

	env := receive(t, c)
	if env.Event != EventError {
		t.Errorf("event = %s, want error", env.Event)
	}
	data, _ := env.Data.(map[string]any)
	if data["message"] != "unknown message type" {
		t.Errorf("data = %+v", env.Data)
	}
}
