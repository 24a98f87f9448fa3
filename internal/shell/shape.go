package shell

import (
	"time"

	"github.com/0x6d61/mcp-repl/internal/value"
)

// ShapeKind は引数の期待される型の種類
type ShapeKind int

const (
	ShapeAny ShapeKind = iota
	ShapeString
	ShapeInt
	ShapeNumber
	ShapeBool
	ShapeNothing
	ShapeDate
	ShapeDuration
	ShapeFilesize
	ShapeBinary
	ShapeGlob
	ShapeRecord
	ShapeTable
	ShapeList
	ShapeCellPath
	ShapeClosure
)

// Shape は引数の型。List の場合のみ Elem を持つ。
type Shape struct {
	Kind ShapeKind
	Elem *Shape
}

// Of は要素を持たない Shape を返す
func Of(k ShapeKind) Shape { return Shape{Kind: k} }

// ListOf は要素型 elem のリストを返す。Record のリストは Table になる。
func ListOf(elem Shape) Shape {
	if elem.Kind == ShapeRecord {
		return Shape{Kind: ShapeTable}
	}
	return Shape{Kind: ShapeList, Elem: &elem}
}

var shapeNames = map[ShapeKind]string{
	ShapeAny:      "any",
	ShapeString:   "string",
	ShapeInt:      "int",
	ShapeNumber:   "number",
	ShapeBool:     "bool",
	ShapeNothing:  "nothing",
	ShapeDate:     "datetime",
	ShapeDuration: "duration",
	ShapeFilesize: "filesize",
	ShapeBinary:   "binary",
	ShapeGlob:     "glob",
	ShapeRecord:   "record",
	ShapeTable:    "table",
	ShapeCellPath: "cell-path",
	ShapeClosure:  "closure",
}

func (s Shape) String() string {
	if s.Kind == ShapeList {
		if s.Elem == nil {
			return "list<any>"
		}
		return "list<" + s.Elem.String() + ">"
	}
	if name, ok := shapeNames[s.Kind]; ok {
		return name
	}
	return "any"
}

var dateLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02", "15:04:05"}

// Accept は v がこの Shape に適合するか判定し、必要なら変換した値を返す。
// 文字列から日付・セルパス・glob への変換のみ行い、数値と文字列の暗黙変換はしない。
func (s Shape) Accept(v value.Value) (value.Value, bool) {
	if v == nil {
		v = value.Nothing{}
	}
	switch s.Kind {
	case ShapeAny:
		return v, true
	case ShapeString:
		switch x := v.(type) {
		case value.String:
			return x, true
		case value.Glob:
			return value.String(x), true
		}
	case ShapeInt:
		if x, ok := v.(value.Int); ok {
			return x, true
		}
	case ShapeNumber:
		switch v.(type) {
		case value.Int, value.Float:
			return v, true
		}
	case ShapeBool:
		if x, ok := v.(value.Bool); ok {
			return x, true
		}
	case ShapeNothing:
		if value.IsNothing(v) {
			return value.Nothing{}, true
		}
	case ShapeDate:
		switch x := v.(type) {
		case value.Date:
			return x, true
		case value.String:
			for _, layout := range dateLayouts {
				if t, err := time.Parse(layout, string(x)); err == nil {
					return value.Date(t), true
				}
			}
		}
	case ShapeDuration:
		if x, ok := v.(value.Duration); ok {
			return x, true
		}
	case ShapeFilesize:
		switch x := v.(type) {
		case value.Filesize:
			return x, true
		case value.Int:
			return value.Filesize(x), true
		}
	case ShapeBinary:
		if x, ok := v.(value.Binary); ok {
			return x, true
		}
	case ShapeGlob:
		switch x := v.(type) {
		case value.Glob:
			return x, true
		case value.String:
			return value.Glob(x), true
		}
	case ShapeRecord:
		if x, ok := v.(*value.Record); ok {
			return x, true
		}
	case ShapeTable:
		list, ok := v.(value.List)
		if !ok {
			return nil, false
		}
		for _, item := range list {
			if _, ok := item.(*value.Record); !ok {
				return nil, false
			}
		}
		return list, true
	case ShapeList:
		list, ok := v.(value.List)
		if !ok {
			return nil, false
		}
		if s.Elem == nil {
			return list, true
		}
		out := make(value.List, len(list))
		for i, item := range list {
			got, ok := s.Elem.Accept(item)
			if !ok {
				return nil, false
			}
			out[i] = got
		}
		return out, true
	case ShapeCellPath:
		switch x := v.(type) {
		case value.CellPath:
			return x, true
		case value.String:
			if p, err := value.ParseCellPath(string(x)); err == nil {
				return p, true
			}
		case value.Int:
			return value.CellPath{{Index: int(x), IsIndex: true}}, true
		}
	case ShapeClosure:
		if x, ok := v.(value.Closure); ok {
			return x, true
		}
	}
	return nil, false
}
