package value

import (
	"iter"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Record は挿入順を保持する名前付きフィールドの集合
type Record struct {
	fields *orderedmap.OrderedMap[string, Value]
}

// NewRecord は空の Record を返す
func NewRecord() *Record {
	return &Record{fields: orderedmap.New[string, Value]()}
}

func (r *Record) lazy() *orderedmap.OrderedMap[string, Value] {
	if r.fields == nil {
		r.fields = orderedmap.New[string, Value]()
	}
	return r.fields
}

// Set はフィールドを設定する。既存キーの場合は位置を保ったまま値を置き換える。
func (r *Record) Set(key string, v Value) *Record {
	if v == nil {
		v = Nothing{}
	}
	r.lazy().Set(key, v)
	return r
}

// Get はフィールドを返す
func (r *Record) Get(key string) (Value, bool) {
	if r == nil || r.fields == nil {
		return nil, false
	}
	return r.fields.Get(key)
}

// Delete はフィールドを取り除く
func (r *Record) Delete(key string) {
	if r == nil || r.fields == nil {
		return
	}
	r.fields.Delete(key)
}

// Len はフィールド数を返す
func (r *Record) Len() int {
	if r == nil || r.fields == nil {
		return 0
	}
	return r.fields.Len()
}

// Keys はフィールド名を挿入順で返す
func (r *Record) Keys() []string {
	if r == nil || r.fields == nil {
		return nil
	}
	keys := make([]string, 0, r.fields.Len())
	for pair := r.fields.Oldest(); pair != nil; pair = pair.Next() {
		keys = append(keys, pair.Key)
	}
	return keys
}

// All はフィールドを挿入順に列挙する
func (r *Record) All() iter.Seq2[string, Value] {
	return func(yield func(string, Value) bool) {
		if r == nil || r.fields == nil {
			return
		}
		for pair := r.fields.Oldest(); pair != nil; pair = pair.Next() {
			if !yield(pair.Key, pair.Value) {
				return
			}
		}
	}
}

// Clone は浅いコピーを返す
func (r *Record) Clone() *Record {
	out := NewRecord()
	for k, v := range r.All() {
		out.Set(k, v)
	}
	return out
}
