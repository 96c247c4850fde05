package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"time"
)

// Request is one call from the front end.
type Request struct {
	ID   string         `json:"id"`
	Op   string         `json:"op"`
	Args map[string]any `json:"args"`
}

// Response answers the Request with the same ID. Error is set when the operation
// failed; Result holds its value otherwise.
type Response struct {
	ID     string     `json:"id"`
	Result any        `json:"result,omitempty"`
	Error  *ErrorBody `json:"error,omitempty"`
}

// Dispatcher routes requests to handlers by operation name.
type Dispatcher struct {
	handlers map[string]Handler
	logger   *slog.Logger
}

// NewDispatcher registers every handler of groups. Registering the same name
// twice panics.
func NewDispatcher(logger *slog.Logger, groups ...[]Handler) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	d := &Dispatcher{
		handlers: map[string]Handler{},
		logger:   logger.With("component", "bridge.Dispatcher"),
	}
	for _, group := range groups {
		for _, h := range group {
			if _, dup := d.handlers[h.Name()]; dup {
				panic(fmt.Sprintf("duplicate handler %q", h.Name()))
			}
			d.handlers[h.Name()] = h
		}
	}
	return d
}

// Ops returns the registered operation names, sorted.
func (d *Dispatcher) Ops() []string {
	ops := make([]string, 0, len(d.handlers))
	for name := range d.handlers {
		ops = append(ops, name)
	}
	sort.Strings(ops)
	return ops
}

// Dispatch runs a single request. Failures are reported in the response.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) Response {
	h, ok := d.handlers[req.Op]
	if !ok {
		return d.fail(req, fmt.Errorf("%w: %q", ErrUnknownOp, req.Op))
	}
	start := time.Now()
	result, err := h.Execute(ctx, req.Args)
	if err != nil {
		return d.fail(req, err)
	}
	d.logger.Debug("operation completed", "op", req.Op, "id", req.ID, "duration", time.Since(start))
	return Response{ID: req.ID, Result: result}
}

func (d *Dispatcher) fail(req Request, err error) Response {
	body := classify(err)
	d.logger.Warn("operation failed", "op", req.Op, "id", req.ID, "kind", body.Kind, "error", err)
	return Response{ID: req.ID, Error: body}
}

// Serve reads JSON requests from r and writes one JSON response per request to w,
// in order, until r is exhausted or ctx is done. A malformed request is answered
// with an invalid_argument error and ends the stream.
func (d *Dispatcher) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	dec := json.NewDecoder(r)
	enc := json.NewEncoder(w)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		var req Request
		if err := dec.Decode(&req); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			_ = enc.Encode(Response{Error: &ErrorBody{Kind: KindInvalidArgument, Message: err.Error()}})
			return fmt.Errorf("decode request: %w", err)
		}
		if err := enc.Encode(d.Dispatch(ctx, req)); err != nil {
			return fmt.Errorf("encode response: %w", err)
		}
	}
}
