package xstream

import (
	"fmt"

	json "github.com/goccy/go-json"
	"github.com/mitchellh/mapstructure"
)

// JSONCodec is the default byte codec.
type JSONCodec struct{}

func (JSONCodec) Marshal(v any) ([]byte, error)   { return json.Marshal(v) }
func (JSONCodec) Unmarshal(b []byte, v any) error { return json.Unmarshal(b, v) }
func (JSONCodec) Name() string                    { return "json" }

// FieldsCodec passes field maps through untouched.
type FieldsCodec struct{}

func (FieldsCodec) Encode(f Fields) (Fields, error) { return f, nil }
func (FieldsCodec) Decode(f Fields) (Fields, error) { return f, nil }

// Envelope field names written by PayloadCodec.
const (
	FieldPayload = "payload"
	FieldCodec   = "codec"
)

// PayloadCodec stores T as one encoded payload field plus the codec name.
type PayloadCodec[T any] struct {
	Codec Codec
}

// NewPayloadCodec looks up a registered byte codec by name.
func NewPayloadCodec[T any](name string) (PayloadCodec[T], error) {
	c, err := NewCodec(name)
	if err != nil {
		return PayloadCodec[T]{}, err
	}
	return PayloadCodec[T]{Codec: c}, nil
}

func (p PayloadCodec[T]) codec() Codec {
	if p.Codec == nil {
		return JSONCodec{}
	}
	return p.Codec
}

func (p PayloadCodec[T]) Encode(v T) (Fields, error) {
	c := p.codec()
	data, err := c.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("xstream: encode %s payload: %w", c.Name(), err)
	}
	return Fields{FieldPayload: data, FieldCodec: c.Name()}, nil
}

func (p PayloadCodec[T]) Decode(f Fields) (T, error) {
	var v T
	c := p.codec()
	if name, ok := f.Lookup(FieldCodec); ok && name != c.Name() {
		return v, fmt.Errorf("%w: payload written with codec %q, decoding with %q", ErrInvalidField, name, c.Name())
	}
	data := f.Bytes(FieldPayload)
	if data == nil {
		return v, fmt.Errorf("%w: %s", ErrFieldNotFound, FieldPayload)
	}
	if err := c.Unmarshal(data, &v); err != nil {
		return v, fmt.Errorf("xstream: decode %s payload: %w", c.Name(), err)
	}
	return v, nil
}

// StructTag is the struct tag StructCodec reads field names from.
const StructTag = "stream"

// StructCodec flattens a struct of scalar fields into one field per member,
// named by the `stream` tag.
type StructCodec[T any] struct{}

func (StructCodec[T]) Encode(v T) (Fields, error) {
	out := map[string]any{}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName: StructTag,
		Result:  &out,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(v); err != nil {
		return nil, fmt.Errorf("xstream: encode struct: %w", err)
	}
	f := Fields(out)
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return f, nil
}

func (StructCodec[T]) Decode(f Fields) (T, error) {
	var v T
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          StructTag,
		WeaklyTypedInput: true,
		Result:           &v,
	})
	if err != nil {
		return v, err
	}
	if err := dec.Decode(map[string]any(f)); err != nil {
		return v, fmt.Errorf("xstream: decode struct: %w", err)
	}
	return v, nil
}

// DecodeEntry decodes a delivered entry with c.
func DecodeEntry[T any](c EventCodec[T], r Received) (T, error) {
	return c.Decode(r.Fields)
}

var _ EventCodec[Fields] = FieldsCodec{}
