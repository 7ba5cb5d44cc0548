package hooks

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/copilot-gateway/copilot-api/internal/util"
)

// observationChannelCapacity bounds the in-process broadcast channel so a
// slow or stalled JSONL writer can never make hook execution block on
// publishing an observation.
const observationChannelCapacity = 128

// Observation is one hook invocation, logged independent of whether it
// vetoed the calling operation.
type Observation struct {
	Timestamp time.Time       `json:"timestamp"`
	Event     Event           `json:"event"`
	SessionID string          `json:"session_id,omitempty"`
	ToolName  string          `json:"tool_name,omitempty"`
	Input     json.RawMessage `json:"input,omitempty"`
	Output    json.RawMessage `json:"output,omitempty"`
}

// Observer publishes observation events onto a bounded channel and drains
// them onto a single-writer append-only JSONL log file, the gateway's
// tail-able audit trail.
type Observer struct {
	ch   chan Observation
	file *os.File
}

// NewObserver opens (creating if needed) the user's
// ".claude/observations.jsonl" for append.
func NewObserver() (*Observer, error) {
	dir := claudeDir()
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(filepath.Join(dir, "observations.jsonl"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, err
	}
	return &Observer{ch: make(chan Observation, observationChannelCapacity), file: f}, nil
}

// Publish is the Executor.Observe callback: it never blocks the hook call
// site — a full channel drops the observation rather than stalling the
// request pipeline.
func (o *Observer) Publish(event Event, in Input, entry Entry, result Result) {
	obs := Observation{
		Timestamp: time.Now(),
		Event:     event,
		SessionID: in.SessionID,
		ToolName:  in.ToolName,
		Input:     util.RedactSensitiveJSON(in.ToolInput),
		Output:    util.RedactSensitiveJSON(in.ToolOutput),
	}
	select {
	case o.ch <- obs:
	default:
		log.Warn("hooks: observation channel full, dropping event")
	}
}

// Run drains the broadcast channel onto the JSONL file until ctx is
// cancelled. It is the single writer for the observation log, so no
// external synchronization is required on the file handle.
func (o *Observer) Run(ctx context.Context) {
	w := bufio.NewWriter(o.file)
	defer func() {
		w.Flush()
		o.file.Close()
	}()
	flushTick := time.NewTicker(2 * time.Second)
	defer flushTick.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case obs := <-o.ch:
			b, err := json.Marshal(obs)
			if err != nil {
				continue
			}
			w.Write(b)
			w.WriteByte('\n')
		case <-flushTick.C:
			w.Flush()
		}
	}
}
