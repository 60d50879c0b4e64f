package opt

import (
	"bytes"
	"encoding/json"
	"reflect"
)

var jsonNull = []byte("null")

// Value holds a T that may be absent. The zero Value is absent, which keeps
// "unset" distinguishable from a legitimate zero or empty T.
type Value[T any] struct {
	v   T
	set bool
}

func Some[T any](v T) Value[T] {
	return Value[T]{v: v, set: true}
}

func None[T any]() Value[T] {
	return Value[T]{}
}

func (o Value[T]) IsSet() bool {
	return o.set
}

func (o Value[T]) Get() (T, bool) {
	return o.v, o.set
}

func (o Value[T]) OrElse(def T) T {
	if !o.set {
		return def
	}
	return o.v
}

// Any returns the held value, or an untyped nil when absent so that map
// consumers see a plain null rather than a typed zero. A held nil slice,
// map or pointer also comes back as untyped nil, matching its JSON null;
// a held empty slice stays empty.
func (o Value[T]) Any() any {
	if !o.set {
		return nil
	}
	v := any(o.v)
	if v == nil {
		return nil
	}
	switch rv := reflect.ValueOf(v); rv.Kind() {
	case reflect.Slice, reflect.Map, reflect.Pointer, reflect.Interface, reflect.Chan, reflect.Func:
		if rv.IsNil() {
			return nil
		}
	}
	return v
}

func (o Value[T]) MarshalJSON() ([]byte, error) {
	if !o.set {
		return jsonNull, nil
	}
	return json.Marshal(o.v)
}

func (o *Value[T]) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), jsonNull) {
		*o = Value[T]{}
		return nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*o = Some(v)
	return nil
}
