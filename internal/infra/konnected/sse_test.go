package konnected

import (
	"bufio"
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"
	"time"
)

func TestSSEReader_Frames(t *testing.T) {
	body := strings.Join([]string{
		": keepalive",
		"retry: 1500",
		"",
		"event: state",
		`data: {"id":"garage_door_cover","state":"OPEN"}`,
		"id: 7",
		"",
		"event: log",
		"data: first line",
		"data: second line",
		"",
		"data: untyped",
		"",
		"event: state",
		"data: partial",
	}, "\r\n")

	r := newSSEReader(strings.NewReader(body), "")

	want := []sseFrame{
		{Type: sseEventState, Data: `{"id":"garage_door_cover","state":"OPEN"}`, ID: "7"},
		{Type: sseEventLog, Data: "first line\nsecond line", ID: "7"},
		{Type: "message", Data: "untyped", ID: "7"},
	}
	for i, w := range want {
		got, err := r.Next()
		if err != nil {
			t.Fatalf("frame %d: unexpected error: %v", i, err)
		}
		if got != w {
			t.Errorf("frame %d: got %+v, want %+v", i, got, w)
		}
	}

	if _, err := r.Next(); !errors.Is(err, io.EOF) {
		t.Errorf("trailing partial frame: got %v, want io.EOF", err)
	}
	if r.retry != 1500*time.Millisecond {
		t.Errorf("retry: got %v, want 1.5s", r.retry)
	}
}

func TestSSEReader_CompleteLastFrame(t *testing.T) {
	r := newSSEReader(iotest.OneByteReader(strings.NewReader("event: ping\ndata: a\n\nevent: ping\ndata: b\n\n")), "")

	for _, want := range []string{"a", "b"} {
		frame, err := r.Next()
		if err != nil {
			t.Fatalf("frame %q: unexpected error: %v", want, err)
		}
		if frame.Data != want {
			t.Errorf("data: got %q, want %q", frame.Data, want)
		}
	}
	if _, err := r.Next(); !errors.Is(err, io.EOF) {
		t.Errorf("end of stream: got %v, want io.EOF", err)
	}
}

func TestSSEReader_IDOnlyBlock(t *testing.T) {
	r := newSSEReader(strings.NewReader("id: 41\n\nid: 42\n\n"), "40")

	if _, err := r.Next(); !errors.Is(err, io.EOF) {
		t.Fatalf("got %v, want io.EOF", err)
	}
	if r.lastID != "42" {
		t.Errorf("last id: got %q, want %q", r.lastID, "42")
	}
}

func TestSSEReader_KeepsResumedID(t *testing.T) {
	r := newSSEReader(strings.NewReader("event: ping\ndata: x\n\n"), "9")

	frame, err := r.Next()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if frame.ID != "9" {
		t.Errorf("id: got %q, want %q", frame.ID, "9")
	}
}

func TestSSEReader_IgnoresInvalidRetry(t *testing.T) {
	r := newSSEReader(strings.NewReader("retry: soon\n\nevent: ping\ndata: x\n\n"), "")

	frame, err := r.Next()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if frame.Type != sseEventPing {
		t.Errorf("type: got %q, want %q", frame.Type, sseEventPing)
	}
	if r.retry != 0 {
		t.Errorf("retry: got %v, want 0", r.retry)
	}
}

func TestSSEReader_OversizedBlock(t *testing.T) {
	body := "event: state\ndata: " + strings.Repeat("x", maxEventSize) + "\n\n"
	r := newSSEReader(strings.NewReader(body), "")

	if _, err := r.Next(); !errors.Is(err, bufio.ErrTooLong) {
		t.Errorf("got %v, want bufio.ErrTooLong", err)
	}
}
