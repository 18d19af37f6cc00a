package services

import (
	"bytes"
	"encoding/json"
	"strings"
)

type rawKind uint8

const (
	rawAbsent rawKind = iota
	rawNull
	rawEncoded
	rawStructured
)

// RawField is an optional input that arrives either as structured JSON, as a JSON document
// encoded in a string (multipart forms), or as the clear sentinel (null or "").
type RawField[T any] struct {
	kind    rawKind
	value   T
	encoded string
}

// Structured returns a field holding value.
func Structured[T any](value T) RawField[T] {
	return RawField[T]{kind: rawStructured, value: value}
}

// Encoded returns a field holding a JSON document that is decoded on use.
func Encoded[T any](raw string) RawField[T] {
	if strings.TrimSpace(raw) == "" {
		return Null[T]()
	}
	return RawField[T]{kind: rawEncoded, encoded: raw}
}

// Null returns the clear sentinel.
func Null[T any]() RawField[T] {
	return RawField[T]{kind: rawNull}
}

// IsSet reports whether the field was supplied at all.
func (f RawField[T]) IsSet() bool { return f.kind != rawAbsent }

// IsNull reports whether the field was supplied as null or an empty string.
func (f RawField[T]) IsNull() bool { return f.kind == rawNull }

// Decode returns the value. ok is false when the field is absent or null.
func (f RawField[T]) Decode() (value T, ok bool, err error) {
	switch f.kind {
	case rawStructured:
		return f.value, true, nil
	case rawEncoded:
		if err := json.Unmarshal([]byte(f.encoded), &value); err != nil {
			return value, false, err
		}
		return value, true, nil
	default:
		return value, false, nil
	}
}

// UnmarshalJSON accepts the structured value, a string carrying its JSON encoding, or null.
func (f *RawField[T]) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = Null[T]()
		return nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = Encoded[T](s)
		return nil
	}

	var value T
	if err := json.Unmarshal(data, &value); err != nil {
		// Keep the raw document so Decode reports the failure as a field error.
		*f = RawField[T]{kind: rawEncoded, encoded: string(data)}
		return nil
	}
	*f = Structured(value)
	return nil
}

// UnmarshalText handles form values.
func (f *RawField[T]) UnmarshalText(text []byte) error {
	*f = Encoded[T](string(text))
	return nil
}

// stringValue returns a string field's value. Encoded text that is not a JSON string is taken
// as it is, the way plain form values arrive.
func stringValue(f RawField[string]) (string, bool) {
	switch f.kind {
	case rawStructured:
		return f.value, true
	case rawEncoded:
		var s string
		if err := json.Unmarshal([]byte(f.encoded), &s); err == nil {
			return s, true
		}
		return f.encoded, true
	default:
		return "", false
	}
}
