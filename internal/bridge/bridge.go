// Package bridge はシェル値と JSON 値を相互変換する。
// JSON → シェル値は全域関数、シェル値 → JSON は部分関数（非有限の浮動小数点数と
// Error 値は変換できない）。どちらも副作用を持たない。
package bridge

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/tidwall/gjson"
	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/0x6d61/mcp-repl/internal/value"
)

var (
	// ErrNonFiniteFloat は NaN / ±Inf を JSON にしようとしたときのエラー
	ErrNonFiniteFloat = errors.New("float not representable in JSON")
	// ErrNumberNotRepresentable は int64 にも float64 にも収まらない数値リテラル
	ErrNumberNotRepresentable = errors.New("numeric value not representable")
	// ErrInvalidJSON は構文的に正しくない JSON
	ErrInvalidJSON = errors.New("invalid JSON")
)

// Object は順序付き JSON オブジェクト。encoding/json でキー順どおりに出力される。
type Object = orderedmap.OrderedMap[string, any]

// NewObject は空の Object を返す
func NewObject() *Object {
	return orderedmap.New[string, any]()
}

// FromJSON は JSON テキストをシェル値に変換する。オブジェクトのキー順は保持される。
func FromJSON(data []byte) (value.Value, error) {
	if !gjson.ValidBytes(data) {
		return nil, ErrInvalidJSON
	}
	return fromResult(gjson.ParseBytes(data))
}

func fromResult(r gjson.Result) (value.Value, error) {
	switch r.Type {
	case gjson.Null:
		return value.Nothing{}, nil
	case gjson.True:
		return value.Bool(true), nil
	case gjson.False:
		return value.Bool(false), nil
	case gjson.Number:
		return fromNumber(r.Raw)
	case gjson.String:
		return value.String(r.Str), nil
	case gjson.JSON:
		if r.IsArray() {
			list := value.List{}
			var err error
			r.ForEach(func(_, item gjson.Result) bool {
				var v value.Value
				v, err = fromResult(item)
				if err != nil {
					return false
				}
				list = append(list, v)
				return true
			})
			if err != nil {
				return nil, err
			}
			return list, nil
		}
		rec := value.NewRecord()
		var err error
		r.ForEach(func(key, item gjson.Result) bool {
			var v value.Value
			v, err = fromResult(item)
			if err != nil {
				return false
			}
			rec.Set(key.Str, v)
			return true
		})
		if err != nil {
			return nil, err
		}
		return rec, nil
	}
	return value.Nothing{}, nil
}

// fromNumber は数値リテラルを Int → Float の順に解釈する
func fromNumber(raw string) (value.Value, error) {
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return value.Int(n), nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsInf(f, 0) {
		return nil, fmt.Errorf("%w: %s", ErrNumberNotRepresentable, raw)
	}
	return value.Float(f), nil
}

// FromAny は encoding/json や YAML でデコード済みの Go 値をシェル値に変換する。
// map はキー順が定まらないため、順序が必要な場合は FromJSON を使うこと。
func FromAny(v any) value.Value {
	switch x := v.(type) {
	case nil:
		return value.Nothing{}
	case value.Value:
		return x
	case bool:
		return value.Bool(x)
	case int:
		return value.Int(x)
	case int64:
		return value.Int(x)
	case uint64:
		if x > math.MaxInt64 {
			return value.Float(float64(x))
		}
		return value.Int(int64(x))
	case float64:
		return value.Float(x)
	case json.Number:
		if v, err := fromNumber(x.String()); err == nil {
			return v
		}
		return value.String(x.String())
	case string:
		return value.String(x)
	case []byte:
		return value.Binary(x)
	case []any:
		list := make(value.List, 0, len(x))
		for _, item := range x {
			list = append(list, FromAny(item))
		}
		return list
	case *Object:
		rec := value.NewRecord()
		for pair := x.Oldest(); pair != nil; pair = pair.Next() {
			rec.Set(pair.Key, FromAny(pair.Value))
		}
		return rec
	case map[string]any:
		rec := value.NewRecord()
		for _, k := range sortedKeys(x) {
			rec.Set(k, FromAny(x[k]))
		}
		return rec
	default:
		return value.String(fmt.Sprint(x))
	}
}
