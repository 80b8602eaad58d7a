package konnected

import (
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/r3labs/sse/v2"
)

// Event types sent by the ESPHome web server on /events.
const (
	sseEventState = "state"
	sseEventPing  = "ping"
	sseEventLog   = "log"
)

// maxEventSize bounds one event block, field lines included.
const maxEventSize = 64 << 10

var lineEndings = strings.NewReplacer("\r\n", "\n", "\r", "\n")

type sseFrame struct {
	Type string
	Data string
	ID   string
}

// sseReader turns a text/event-stream body into frames. Block framing is
// done by the sse package; only the fields the device sends are handled:
// event, data, id and retry.
type sseReader struct {
	body    *tailReader
	events  *sse.EventStreamReader
	pending []byte
	held    bool

	// lastID is the last event id seen, sent back as Last-Event-ID.
	lastID string
	// retry is the reconnection delay last advertised by the server.
	retry time.Duration
}

func newSSEReader(r io.Reader, lastID string) *sseReader {
	body := &tailReader{r: r}
	return &sseReader{
		body:   body,
		events: sse.NewEventStreamReader(body, maxEventSize),
		lastID: lastID,
	}
}

// Next returns the next frame carrying data. Blocks without data still
// update lastID and retry. A partial block at end of stream is discarded
// and io.EOF returned; a block larger than maxEventSize fails with
// bufio.ErrTooLong.
func (s *sseReader) Next() (sseFrame, error) {
	for {
		block, err := s.nextBlock()
		if err != nil {
			return sseFrame{}, err
		}
		if frame, ok := s.parse(block); ok {
			return frame, nil
		}
	}
}

// nextBlock returns the next block. The framer also yields the unterminated
// tail of the body as a block, so once the body has ended without a blank
// line each block is held until the framer proves it was not the last.
func (s *sseReader) nextBlock() ([]byte, error) {
	var block []byte
	if s.held {
		block, s.pending, s.held = s.pending, nil, false
	} else {
		b, err := s.events.ReadEvent()
		if err != nil {
			return nil, err
		}
		block = append([]byte(nil), b...)
	}

	if !s.body.truncated() {
		return block, nil
	}

	next, err := s.events.ReadEvent()
	if err != nil {
		return nil, err
	}
	s.pending = append([]byte(nil), next...)
	s.held = true
	return block, nil
}

func (s *sseReader) parse(block []byte) (sseFrame, bool) {
	var (
		frame   sseFrame
		data    strings.Builder
		hasData bool
	)

	for _, line := range strings.Split(lineEndings.Replace(string(block)), "\n") {
		if line == "" || strings.HasPrefix(line, ":") {
			continue
		}

		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")

		switch field {
		case "event":
			frame.Type = value
		case "data":
			if hasData {
				data.WriteByte('\n')
			}
			data.WriteString(value)
			hasData = true
		case "id":
			if !strings.ContainsRune(value, 0) {
				s.lastID = value
			}
		case "retry":
			if ms, err := strconv.Atoi(value); err == nil && ms >= 0 {
				s.retry = time.Duration(ms) * time.Millisecond
			}
		}
	}

	if !hasData {
		return sseFrame{}, false
	}
	frame.Data = data.String()
	frame.ID = s.lastID
	if frame.Type == "" {
		frame.Type = "message"
	}
	return frame, true
}

// tailReader remembers the last bytes of the body and whether it has
// ended, so a block cut off by the end of the stream can be told apart
// from a complete one.
type tailReader struct {
	r     io.Reader
	tail  [3]byte
	total int
	ended bool
}

func (t *tailReader) Read(p []byte) (int, error) {
	n, err := t.r.Read(p)
	for _, b := range p[max(0, n-len(t.tail)):n] {
		t.tail[0], t.tail[1], t.tail[2] = t.tail[1], t.tail[2], b
	}
	t.total += n
	if err != nil {
		t.ended = true
	}
	return n, err
}

// truncated reports whether the body ended without a blank line.
func (t *tailReader) truncated() bool {
	if !t.ended || t.total == 0 {
		return false
	}
	end := string(t.tail[len(t.tail)-min(t.total, len(t.tail)):])
	return !strings.HasSuffix(end, "\n\n") && !strings.HasSuffix(end, "\r\r") && end != "\n\r\n"
}
