package bridge

import (
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/0x6d61/mcp-repl/internal/value"
)

// ToJSON はシェル値を encoding/json でエンコード可能な Go 値に変換する。
// Record は *Object（キー順保持）、List は []any、Float は json.Number になる。
// Closure / Custom / Nothing は nil、Range / Date / Duration は文字列になる。
func ToJSON(v value.Value) (any, error) {
	switch x := v.(type) {
	case nil, value.Nothing, value.Closure, value.Custom:
		return nil, nil
	case value.Bool:
		return bool(x), nil
	case value.Int:
		return int64(x), nil
	case value.Filesize:
		return int64(x), nil
	case value.Float:
		return floatNumber(float64(x))
	case value.String:
		return string(x), nil
	case value.Glob:
		return string(x), nil
	case value.Date:
		return x.Time().Format(time.RFC3339Nano), nil
	case value.Duration:
		return x.String(), nil
	case value.Range:
		return x.String(), nil
	case value.Binary:
		out := make([]any, len(x))
		for i, b := range x {
			out[i] = int64(b)
		}
		return out, nil
	case value.CellPath:
		out := make([]any, len(x))
		for i, m := range x {
			if m.IsIndex {
				out[i] = int64(m.Index)
			} else {
				out[i] = m.Name
			}
		}
		return out, nil
	case value.List:
		out := make([]any, 0, len(x))
		for _, item := range x {
			j, err := ToJSON(item)
			if err != nil {
				return nil, err
			}
			out = append(out, j)
		}
		return out, nil
	case *value.Record:
		obj := NewObject()
		for k, item := range x.All() {
			j, err := ToJSON(item)
			if err != nil {
				return nil, err
			}
			obj.Set(k, j)
		}
		return obj, nil
	case value.Error:
		return nil, x.Err
	default:
		return nil, fmt.Errorf("unsupported value kind %s", v.Kind())
	}
}

// floatNumber は整数値の float でも小数点を残し、往復で Int に化けないようにする
func floatNumber(f float64) (any, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, ErrNonFiniteFloat
	}
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return json.Number(s), nil
}

// Marshal はシェル値を JSON テキストにする
func Marshal(v value.Value) ([]byte, error) {
	j, err := ToJSON(v)
	if err != nil {
		return nil, err
	}
	return json.Marshal(j)
}

// MarshalIndent は Marshal のインデント付き版
func MarshalIndent(v value.Value, indent string) ([]byte, error) {
	j, err := ToJSON(v)
	if err != nil {
		return nil, err
	}
	return json.MarshalIndent(j, "", indent)
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
