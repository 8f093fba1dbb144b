package models

import "encoding/json"

// Optional distinguishes a field that was omitted from one that was sent.
// For nullable fields use Optional[*T]: Set with a nil V means "clear".
type Optional[T any] struct {
	Set bool
	V   T
}

// Some returns a set Optional holding v.
func Some[T any](v T) Optional[T] {
	return Optional[T]{Set: true, V: v}
}

// UnmarshalJSON is only invoked for keys present in the payload, null included.
func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	o.Set = true
	return json.Unmarshal(data, &o.V)
}

// MarshalJSON writes the held value; unset optionals render as null.
func (o Optional[T]) MarshalJSON() ([]byte, error) {
	if !o.Set {
		return []byte("null"), nil
	}
	return json.Marshal(o.V)
}
