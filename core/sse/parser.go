package sse

import (
	"bufio"
	"strconv"
	"strings"

	fastclienterrors "github.com/searchktools/fastclient/errors"
)

// accumulator collects field lines between blank-line dispatches (§4.7
// "Line parser").
type accumulator struct {
	eventType string
	dataLines []string
	id        string
	retry     int
	sawField  bool
}

func (a *accumulator) reset() {
	*a = accumulator{}
}

// hasContent reports whether anything was accumulated since the last
// reset (§4.7: "events with an empty data accumulator and no
// event/id/retry are suppressed").
func (a *accumulator) hasContent() bool {
	return a.sawField
}

func (a *accumulator) toEvent() Event {
	return Event{
		Event: a.eventType,
		Data:  strings.Join(a.dataLines, "\n"),
		ID:    a.id,
		Retry: a.retry,
	}
}

// Parser reads an SSE stream line-by-line and returns each non-suppressed
// dispatch from Next (§4.7).
type Parser struct {
	br       *bufio.Reader
	url      string
	acc      accumulator
	lastID   string
}

// NewParser wraps br as an SSE line parser. lastID seeds the
// Last-Event-ID carried across reconnects.
func NewParser(br *bufio.Reader, url, lastID string) *Parser {
	return &Parser{br: br, url: url, lastID: lastID}
}

// LastEventID returns the most recently seen event id, surviving across
// Next calls (§4.7: "last_event_id ... across reconnects").
func (p *Parser) LastEventID() string {
	return p.lastID
}

// Next reads and returns the next dispatched event, skipping suppressed
// (empty) dispatches automatically. It returns io.EOF-wrapped errors
// from the underlying reader unchanged so callers can distinguish
// stream-end from parse failure.
func (p *Parser) Next() (*Event, error) {
	for {
		line, err := p.br.ReadString('\n')
		if len(line) == 0 && err != nil {
			return nil, err
		}

		trimmed := trimLineEnding(line)

		if trimmed == "" {
			if p.acc.hasContent() {
				ev := p.acc.toEvent()
				if ev.ID != "" {
					p.lastID = ev.ID
				}
				p.acc.reset()
				return &ev, nil
			}
			p.acc.reset()
			if err != nil {
				return nil, err
			}
			continue
		}

		if perr := p.applyField(trimmed); perr != nil {
			return nil, perr
		}

		if err != nil {
			// Stream ended without a trailing blank line; flush whatever
			// was accumulated before surfacing the error.
			if p.acc.hasContent() {
				ev := p.acc.toEvent()
				if ev.ID != "" {
					p.lastID = ev.ID
				}
				p.acc.reset()
				return &ev, nil
			}
			return nil, err
		}
	}
}

func (p *Parser) applyField(line string) error {
	field := line
	value := ""
	if idx := strings.IndexByte(line, ':'); idx >= 0 {
		field = line[:idx]
		value = strings.TrimPrefix(line[idx+1:], " ")
	}

	switch field {
	case "data":
		p.acc.dataLines = append(p.acc.dataLines, value)
		p.acc.sawField = true
	case "event":
		p.acc.eventType = value
		p.acc.sawField = true
	case "id":
		p.acc.id = value
		p.acc.sawField = true
	case "retry":
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return fastclienterrors.SSEParsingError("GET", p.url, err)
		}
		p.acc.retry = n
		p.acc.sawField = true
	default:
		// unrecognized fields are ignored (§4.7)
	}
	return nil
}

// trimLineEnding strips a trailing \r\n, \n, or \r. Next splits lines on
// \n only, so \r\n and \n streams are handled; a stream that ends its
// lines with a bare \r is not split into lines.
func trimLineEnding(line string) string {
	line = strings.TrimSuffix(line, "\n")
	line = strings.TrimSuffix(line, "\r")
	return line
}
