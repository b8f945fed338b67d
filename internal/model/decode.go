package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

type validator interface {
	Validate() error
}

// DecodeStrict decodes a single JSON value, rejecting unknown fields, trailing
// data and, for records that define Validate, missing required fields.
func DecodeStrict[T any](data []byte) (T, error) {
	var out T
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&out); err != nil {
		return out, fmt.Errorf("decode %T: %w", out, err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return out, fmt.Errorf("decode %T: trailing data", out)
	}
	if v, ok := any(out).(validator); ok {
		if err := v.Validate(); err != nil {
			return out, fmt.Errorf("validate %T: %w", out, err)
		}
	}
	return out, nil
}
