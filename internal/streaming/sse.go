// Package streaming re-frames upstream server-sent-event streams between
// wire formats: OpenAI chat-completions chunks, OpenAI Responses API
// events, and Anthropic Messages streaming events.
package streaming

import (
	"bufio"
	"net/http"
	"strings"
)

// WriteSSEHeaders sets the response headers an SSE response needs before
// any bytes are written.
func WriteSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
}

// Reader incrementally drains complete SSE blocks (each terminated by a
// blank line) out of an upstream byte stream.
type Reader struct {
	br *bufio.Reader
}

func NewReader(r *bufio.Reader) *Reader {
	return &Reader{br: r}
}

// NextBlock returns the next complete SSE block's data payload (the
// concatenation of all "data: " lines within it, newline-joined), or
// io.EOF once the stream ends. Blocks with no data lines return "".
func (r *Reader) NextBlock() (string, error) {
	var lines []string
	for {
		line, err := r.br.ReadString('\n')
		trimmed := strings.TrimRight(line, "\r\n")
		if trimmed == "" && len(lines) > 0 {
			return extractData(lines), nil
		}
		if trimmed != "" {
			lines = append(lines, trimmed)
		}
		if err != nil {
			if len(lines) > 0 {
				return extractData(lines), nil
			}
			return "", err
		}
	}
}

func extractData(lines []string) string {
	var data []string
	for _, l := range lines {
		if strings.HasPrefix(l, "data: ") {
			data = append(data, l[len("data: "):])
		} else if strings.HasPrefix(l, "data:") {
			data = append(data, l[len("data:"):])
		}
	}
	return strings.Join(data, "\n")
}

// IsTerminal reports whether a drained data payload is the stream's own
// sentinel ("" or "[DONE]") rather than a real event — callers should
// continue draining, not stop, when this is true.
func IsTerminal(data string) bool {
	trimmed := strings.TrimSpace(data)
	return trimmed == "" || trimmed == "[DONE]"
}

// WriteEvent writes one named SSE event with a JSON data payload.
func WriteEvent(w *bufio.Writer, eventType string, data []byte) error {
	if eventType != "" {
		if _, err := w.WriteString("event: " + eventType + "\n"); err != nil {
			return err
		}
	}
	if _, err := w.WriteString("data: "); err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return err
	}
	if _, err := w.WriteString("\n\n"); err != nil {
		return err
	}
	return w.Flush()
}

// WriteDone writes the OpenAI-style terminal sentinel.
func WriteDone(w *bufio.Writer) error {
	if _, err := w.WriteString("data: [DONE]\n\n"); err != nil {
		return err
	}
	return w.Flush()
}
