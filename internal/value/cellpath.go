package value

import (
	"fmt"
	"strconv"
	"strings"
)

// PathMember はセルパスの1要素。IsIndex のときは Index、それ以外は Name を使う。
type PathMember struct {
	Name    string
	Index   int
	IsIndex bool
	// Optional が true の要素は欠落時にエラーではなく Nothing を返す（"a?"）
	Optional bool
}

// CellPath は Record / List の中を辿るパス（例: "items.0.name"）
type CellPath []PathMember

// ParseCellPath は "a.0.b" 形式の文字列をパースする。
// 数字だけの要素はインデックス、"$." の接頭辞は無視する。
func ParseCellPath(s string) (CellPath, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "$"), ".")
	if s == "" {
		return CellPath{}, nil
	}
	parts := strings.Split(s, ".")
	path := make(CellPath, 0, len(parts))
	for _, p := range parts {
		optional := strings.HasSuffix(p, "?")
		p = strings.TrimSuffix(p, "?")
		if p == "" {
			return nil, fmt.Errorf("empty member in cell path %q", s)
		}
		if n, err := strconv.Atoi(p); err == nil && n >= 0 {
			path = append(path, PathMember{Index: n, IsIndex: true, Optional: optional})
			continue
		}
		path = append(path, PathMember{Name: strings.Trim(p, `"'`), Optional: optional})
	}
	return path, nil
}

func (p CellPath) String() string {
	parts := make([]string, len(p))
	for i, m := range p {
		if m.IsIndex {
			parts[i] = strconv.Itoa(m.Index)
		} else {
			parts[i] = m.Name
		}
		if m.Optional {
			parts[i] += "?"
		}
	}
	return strings.Join(parts, ".")
}

// Follow は v からパスを辿った先の値を返す。
// テーブルに対して名前要素を使うと、各行の列をリストとして返す。
func (p CellPath) Follow(v Value) (Value, error) {
	cur := v
	for i, m := range p {
		next, err := followMember(cur, m)
		if err != nil {
			if m.Optional {
				return Nothing{}, nil
			}
			return nil, fmt.Errorf("cell path %q: %w", p[:i+1].String(), err)
		}
		cur = next
	}
	return cur, nil
}

func followMember(v Value, m PathMember) (Value, error) {
	switch x := v.(type) {
	case List:
		if m.IsIndex {
			if m.Index >= len(x) {
				return nil, fmt.Errorf("index %d out of range (length %d)", m.Index, len(x))
			}
			return x[m.Index], nil
		}
		col := make(List, 0, len(x))
		for _, item := range x {
			got, err := followMember(item, m)
			if err != nil {
				return nil, err
			}
			col = append(col, got)
		}
		return col, nil
	case *Record:
		if m.IsIndex {
			return nil, fmt.Errorf("cannot index a record with %d", m.Index)
		}
		got, ok := x.Get(m.Name)
		if !ok {
			return nil, fmt.Errorf("column %q not found", m.Name)
		}
		return got, nil
	default:
		return nil, fmt.Errorf("cannot follow %q into %s", m.label(), v.Kind())
	}
}

func (m PathMember) label() string {
	if m.IsIndex {
		return strconv.Itoa(m.Index)
	}
	return m.Name
}
