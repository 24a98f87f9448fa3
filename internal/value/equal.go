package value

import (
	"bytes"
	"errors"
	"reflect"
	"slices"
)

// Equal は2つの値を構造的に比較する。Record はキー順も比較対象。
func Equal(a, b Value) bool {
	if IsNothing(a) || IsNothing(b) {
		return IsNothing(a) && IsNothing(b)
	}
	if a.Kind() != b.Kind() {
		return false
	}
	switch x := a.(type) {
	case Binary:
		return bytes.Equal(x, b.(Binary))
	case Date:
		return x.Time().Equal(b.(Date).Time())
	case CellPath:
		return slices.Equal(x, b.(CellPath))
	case List:
		y := b.(List)
		if len(x) != len(y) {
			return false
		}
		for i := range x {
			if !Equal(x[i], y[i]) {
				return false
			}
		}
		return true
	case *Record:
		y := b.(*Record)
		if !slices.Equal(x.Keys(), y.Keys()) {
			return false
		}
		for k, v := range x.All() {
			w, _ := y.Get(k)
			if !Equal(v, w) {
				return false
			}
		}
		return true
	case Closure:
		y := b.(Closure)
		return x.Body == y.Body && slices.Equal(x.Params, y.Params)
	case Error:
		y := b.(Error)
		return errors.Is(x.Err, y.Err) || x.Error() == y.Error()
	case Custom:
		y := b.(Custom)
		return x.Type == y.Type && reflect.DeepEqual(x.Data, y.Data)
	default:
		return a == b
	}
}
