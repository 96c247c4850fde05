// Package bridge exposes the sandboxed file and git services as named operations
// that take loosely typed argument maps, as received from the editor front end.
package bridge

import (
	"context"
	"encoding/base64"
	"reflect"

	"github.com/mitchellh/mapstructure"
)

// Validator is an interface for request types that support validation
type Validator interface {
	Validate() error
}

// Executor runs one operation with a typed request.
type Executor[Req, Resp any] func(context.Context, Req) (Resp, error)

// Handler is a named operation. Handlers are stateless and safe for concurrent use.
type Handler interface {
	Name() string
	Execute(ctx context.Context, args map[string]any) (any, error)
}

// BaseHandler decodes the argument map into Req, validates it and runs the
// executor.
type BaseHandler[Req, Resp any] struct {
	name     string
	executor Executor[Req, Resp]
}

// NewHandler creates a handler for the operation name.
func NewHandler[Req, Resp any](name string, executor Executor[Req, Resp]) *BaseHandler[Req, Resp] {
	if executor == nil {
		panic("executor is required")
	}
	return &BaseHandler[Req, Resp]{name: name, executor: executor}
}

// Name implements Handler
func (b *BaseHandler[Req, Resp]) Name() string {
	return b.name
}

// Execute implements Handler
func (b *BaseHandler[Req, Resp]) Execute(ctx context.Context, args map[string]any) (any, error) {
	var req Req
	if err := decodeArgs(args, &req); err != nil {
		return nil, &ArgumentError{Op: b.name, Cause: err}
	}
	if v, ok := any(req).(Validator); ok {
		if err := v.Validate(); err != nil {
			return nil, &ArgumentError{Op: b.name, Cause: err}
		}
	}
	return b.executor(ctx, req)
}

var bytesType = reflect.TypeOf([]byte(nil))

// base64Bytes decodes string arguments destined for []byte fields.
var base64Bytes mapstructure.DecodeHookFuncType = func(from, to reflect.Type, data any) (any, error) {
	if from.Kind() != reflect.String || to != bytesType {
		return data, nil
	}
	return base64.StdEncoding.DecodeString(data.(string))
}

func decodeArgs(args map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:  base64Bytes,
		ErrorUnused: true,
		Result:      out,
	})
	if err != nil {
		return err
	}
	return dec.Decode(args)
}
