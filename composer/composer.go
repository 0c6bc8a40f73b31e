// Package composer turns a schema and a description into SQL suggestions.
//
// A Composer builds the fixed OceanBase prompt, posts it to a generate
// endpoint and appends the streamed answer to its response buffer. Every
// state change is published as a Snapshot through Options.OnUpdate, so a
// front end can re-render after each chunk without touching the
// Composer's internals.
package composer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/DachengChen/obsql/applog"
)

// Phase is where a submission currently is.
type Phase int

const (
	Idle Phase = iota
	Submitting
	Streaming
)

func (p Phase) String() string {
	switch p {
	case Submitting:
		return "submitting"
	case Streaming:
		return "streaming"
	default:
		return "idle"
	}
}

// Busy reports whether a submission is in flight.
func (p Phase) Busy() bool {
	return p != Idle
}

// Snapshot is an immutable copy of the composer state.
type Snapshot struct {
	Phase  Phase
	Busy   bool
	Buffer string
	Err    error
	// Generation identifies the submission that produced Buffer.
	Generation uint64
	// Version increases with every state change; a larger Version is newer.
	Version uint64
}

// GenerateRequest is the JSON body posted to the generate endpoint.
type GenerateRequest struct {
	Prompt string `json:"prompt"`
}

// Doer sends HTTP requests. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

type Options struct {
	// Endpoint is the generate URL. Defaults to DefaultEndpoint.
	Endpoint string
	// Client defaults to an *http.Client without a timeout, since streams
	// may legitimately run for minutes.
	Client Doer
	// Mode selects the prompt variant. Defaults to the enumerated mode.
	Mode Mode
	// OnUpdate is called after every state change, once per chunk while
	// streaming. It runs on the goroutine that changed the state, outside
	// the composer's lock; use Snapshot.Version to order deliveries.
	OnUpdate func(Snapshot)
	// KeepBusyOnError leaves the busy flag set after a failed submission
	// until Reset or the next Compose.
	KeepBusyOnError bool
	Logger          *slog.Logger
}

const DefaultEndpoint = "http://127.0.0.1:3000/api/generate"

const readChunkSize = 4096

// Composer owns the response buffer and the submission lifecycle.
type Composer struct {
	endpoint  string
	client    Doer
	mode      Mode
	onUpdate  func(Snapshot)
	keepBusy  bool
	logger    *slog.Logger
	readChunk int

	mu      sync.Mutex
	phase   Phase
	busy    bool
	buf     strings.Builder
	err     error
	gen     uint64
	version uint64
	cancel  context.CancelFunc
}

func New(opts Options) *Composer {
	c := &Composer{
		endpoint:  opts.Endpoint,
		client:    opts.Client,
		mode:      opts.Mode,
		onUpdate:  opts.OnUpdate,
		keepBusy:  opts.KeepBusyOnError,
		logger:    opts.Logger,
		readChunk: readChunkSize,
	}
	if c.endpoint == "" {
		c.endpoint = DefaultEndpoint
	}
	if c.client == nil {
		c.client = &http.Client{}
	}
	if c.mode.Prompt == nil || c.mode.Split == nil {
		c.mode = ModeFor("")
	}
	if c.logger == nil {
		c.logger = applog.Logger()
	}
	return c
}

// Mode returns the snippet mode the composer builds prompts for.
func (c *Composer) Mode() Mode {
	return c.mode
}

// Endpoint returns the generate URL.
func (c *Composer) Endpoint() string {
	return c.endpoint
}

// Snapshot returns the current state.
func (c *Composer) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Composer) snapshotLocked() Snapshot {
	return Snapshot{
		Phase:      c.phase,
		Busy:       c.busy,
		Buffer:     c.buf.String(),
		Err:        c.err,
		Generation: c.gen,
		Version:    c.version,
	}
}

// Snippets partitions the current buffer with the composer's mode.
func (c *Composer) Snippets() []string {
	return c.mode.Split(c.Snapshot().Buffer)
}

// Compose submits the form and streams the answer into the buffer. It
// blocks until the stream ends, fails, or is superseded by a newer call.
// Starting a new Compose cancels the one in flight.
func (c *Composer) Compose(ctx context.Context, form FormState) error {
	prompt := c.mode.Prompt(form)
	ctx, gen := c.begin(ctx)
	defer c.release(gen)

	started := time.Now()
	c.logger.Debug("compose_start",
		slog.Uint64("generation", gen),
		slog.String("endpoint", c.endpoint),
		slog.Int("prompt_bytes", len(prompt)),
	)

	payload, err := json.Marshal(GenerateRequest{Prompt: prompt})
	if err != nil {
		return c.fail(gen, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return c.fail(gen, fmt.Errorf("composer: build request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return c.fail(gen, fmt.Errorf("composer: %w", err))
	}
	if resp.Body != nil {
		defer resp.Body.Close()
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		reqErr := &RequestError{StatusCode: resp.StatusCode, Status: resp.Status}
		if resp.Body != nil {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			reqErr.Body = string(body)
		}
		return c.fail(gen, reqErr)
	}
	if resp.Body == nil {
		return c.fail(gen, ErrEmptyBody)
	}

	if !c.transition(gen, Streaming) {
		return ErrSuperseded
	}

	var dec utf8Decoder
	chunk := make([]byte, c.readChunk)
	total := 0
	for {
		n, rerr := resp.Body.Read(chunk)
		if n > 0 {
			total += n
			if !c.appendChunk(gen, dec.Decode(chunk[:n])) {
				return ErrSuperseded
			}
		}
		if errors.Is(rerr, io.EOF) {
			break
		}
		if rerr != nil {
			return c.fail(gen, fmt.Errorf("composer: read stream: %w", rerr))
		}
	}
	if tail := dec.Flush(); tail != "" {
		if !c.appendChunk(gen, tail) {
			return ErrSuperseded
		}
	}

	if !c.finish(gen) {
		return ErrSuperseded
	}
	c.logger.Info("compose_done",
		slog.Uint64("generation", gen),
		slog.Int("response_bytes", total),
		slog.Duration("elapsed", time.Since(started)),
	)
	return nil
}

// Cancel aborts the submission in flight, if any.
func (c *Composer) Cancel() {
	c.mu.Lock()
	cancel := c.cancel
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Reset empties the buffer and clears any recorded error. It cancels a
// submission in flight.
func (c *Composer) Reset() {
	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.gen++
	c.phase = Idle
	c.busy = false
	c.err = nil
	c.buf.Reset()
	c.version++
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.publish(snap)
}

func (c *Composer) begin(parent context.Context) (context.Context, uint64) {
	ctx, cancel := context.WithCancel(parent)

	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
	}
	c.gen++
	gen := c.gen
	c.cancel = cancel
	c.phase = Submitting
	c.busy = true
	c.err = nil
	c.buf.Reset()
	c.version++
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.publish(snap)
	return ctx, gen
}

func (c *Composer) release(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen == gen && c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}

// update applies fn under the lock if gen is still current and publishes
// the resulting snapshot.
func (c *Composer) update(gen uint64, fn func()) bool {
	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		return false
	}
	fn()
	c.version++
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.publish(snap)
	return true
}

func (c *Composer) transition(gen uint64, phase Phase) bool {
	return c.update(gen, func() { c.phase = phase })
}

func (c *Composer) appendChunk(gen uint64, text string) bool {
	return c.update(gen, func() { c.buf.WriteString(text) })
}

func (c *Composer) finish(gen uint64) bool {
	return c.update(gen, func() {
		c.phase = Idle
		c.busy = false
	})
}

func (c *Composer) fail(gen uint64, err error) error {
	ok := c.update(gen, func() {
		c.phase = Idle
		c.busy = c.keepBusy
		c.err = err
	})
	if !ok {
		return ErrSuperseded
	}
	c.logger.Error("compose_failed", slog.Uint64("generation", gen), slog.Any("error", err))
	return err
}

func (c *Composer) publish(s Snapshot) {
	if c.onUpdate != nil {
		c.onUpdate(s)
	}
}
