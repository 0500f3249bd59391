package xstream

import (
	"context"
	"errors"
)

// ProduceFunc computes the value a producer appends.
type ProduceFunc[In, T any] func(ctx context.Context, in In) (T, error)

// ProducerOption configures retention of a producer.
type ProducerOption func(*Retention)

// WithMaxLen bounds the stream to n entries on every append.
func WithMaxLen(n int64) ProducerOption {
	return func(r *Retention) { r.MaxLen = n }
}

// WithApproximate toggles approximate trimming on append.
func WithApproximate(approx bool) ProducerOption {
	return func(r *Retention) { r.Approximate = approx }
}

func WithRetention(ret Retention) ProducerOption {
	return func(r *Retention) { *r = ret }
}

// WithUnbounded disables trimming on append.
func WithUnbounded() ProducerOption {
	return func(r *Retention) { r.MaxLen = 0 }
}

// Producer appends whatever its function returns to one stream.
type Producer[In, T any] struct {
	client    *Client
	stream    string
	codec     EventCodec[T]
	fn        ProduceFunc[In, T]
	retention Retention
}

// NewProducer binds fn, which returns raw fields, to stream.
func NewProducer[In any](client *Client, stream string, fn ProduceFunc[In, Fields], opts ...ProducerOption) (*Producer[In, Fields], error) {
	return NewCodecProducer[In, Fields](client, stream, FieldsCodec{}, fn, opts...)
}

// NewCodecProducer binds fn to stream, encoding its result with codec.
func NewCodecProducer[In, T any](client *Client, stream string, codec EventCodec[T], fn ProduceFunc[In, T], opts ...ProducerOption) (*Producer[In, T], error) {
	if client == nil {
		return nil, errors.New("xstream: producer needs a client")
	}
	if stream == "" {
		return nil, ErrInvalidStream
	}
	if fn == nil {
		return nil, ErrInvalidHandler
	}
	if codec == nil {
		return nil, errors.New("xstream: producer needs a codec")
	}
	r := client.retention
	for _, o := range opts {
		if o != nil {
			o(&r)
		}
	}
	if r.MaxLen < 0 {
		r.MaxLen = 0
	}
	return &Producer[In, T]{client: client, stream: stream, codec: codec, fn: fn, retention: r}, nil
}

func (p *Producer[In, T]) Stream() string { return p.stream }

func (p *Producer[In, T]) Retention() Retention { return p.retention }

// Produce calls the bound function, appends its result and returns it as is.
// Errors from the function or the engine are returned unchanged.
func (p *Producer[In, T]) Produce(ctx context.Context, in In) (T, error) {
	var zero T
	if p.client.closed.Load() {
		return zero, ErrClientClosed
	}
	v, err := p.fn(ctx, in)
	if err != nil {
		return zero, err
	}
	fields, err := p.codec.Encode(v)
	if err != nil {
		return zero, err
	}
	if _, err := p.client.Append(ctx, p.stream, fields, p.retention); err != nil {
		return zero, err
	}
	return v, nil
}

// Runner adapts the producer to a Worker, producing with in each iteration.
func (p *Producer[In, T]) Runner(in In) Runner {
	return RunnerFunc(func(ctx context.Context) error {
		_, err := p.Produce(ctx, in)
		return err
	})
}
