package mcp

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
)

// ErrParse marks frames that are not valid JSON. Callers can answer these
// with a ParseError response instead of dropping the frame silently.
var ErrParse = errors.New("parse error")

// Transport frames MCP messages as line-delimited JSON over a reader/writer
// pair (stdio in production). Writes are serialized so responses never
// interleave.
type Transport struct {
	reader *bufio.Reader
	writer io.Writer
	mu     sync.Mutex
}

// NewTransport wraps r and w in a line-delimited JSON transport.
func NewTransport(r io.Reader, w io.Writer) *Transport {
	return &Transport{
		reader: bufio.NewReader(r),
		writer: w,
	}
}

// ReadMessage reads the next request, skipping blank lines. io.EOF means the
// peer closed the session.
func (t *Transport) ReadMessage() (*Request, error) {
	for {
		line, err := t.reader.ReadBytes('\n')
		if err != nil {
			return nil, err
		}
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		var req Request
		if err := json.Unmarshal(line, &req); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrParse, err)
		}
		return &req, nil
	}
}

// WriteResponse writes a response frame.
func (t *Transport) WriteResponse(resp *Response) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	return t.writeLine(data)
}

// WriteNotification writes a server-initiated notification frame.
func (t *Transport) WriteNotification(method string, params any) error {
	notif := Notification{JSONRPC: "2.0", Method: method}
	if params != nil {
		data, err := json.Marshal(params)
		if err != nil {
			return err
		}
		notif.Params = data
	}
	data, err := json.Marshal(notif)
	if err != nil {
		return err
	}
	return t.writeLine(data)
}

func (t *Transport) writeLine(data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, err := fmt.Fprintf(t.writer, "%s\n", data)
	return err
}
