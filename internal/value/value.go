// Package value はシェルのパイプラインを流れる構造化値を定義する。
// JSON より表現力が高く、日付・期間・ファイルサイズ・バイナリなどの型を持つ。
package value

import (
	"fmt"
	"strconv"
	"time"
)

// Kind は値のバリアント種別
type Kind int

const (
	KindNothing Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindGlob
	KindBinary
	KindDate
	KindDuration
	KindFilesize
	KindCellPath
	KindList
	KindRecord
	KindClosure
	KindRange
	KindCustom
	KindError
)

var kindNames = [...]string{
	KindNothing:  "nothing",
	KindBool:     "bool",
	KindInt:      "int",
	KindFloat:    "float",
	KindString:   "string",
	KindGlob:     "glob",
	KindBinary:   "binary",
	KindDate:     "date",
	KindDuration: "duration",
	KindFilesize: "filesize",
	KindCellPath: "cell-path",
	KindList:     "list",
	KindRecord:   "record",
	KindClosure:  "closure",
	KindRange:    "range",
	KindCustom:   "custom",
	KindError:    "error",
}

func (k Kind) String() string {
	if k >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Value はシェル値。具体型は下記のいずれか。
type Value interface {
	Kind() Kind
}

type (
	// Nothing は値の不在（JSON の null に相当）
	Nothing struct{}
	Bool    bool
	Int     int64
	Float   float64
	String  string
	// Glob はワイルドカードを含む未展開のパターン文字列
	Glob   string
	Binary []byte
	Date   time.Time
	// Duration はナノ秒精度の期間
	Duration time.Duration
	// Filesize はバイト数
	Filesize int64
	List     []Value
)

// Closure はパース済みだが評価されないコードブロック。
// このシェルではクロージャを実行しないため、ソースのみを保持する。
type Closure struct {
	Params []string
	Body   string
}

// Range は整数範囲。Step が 0 のときは To の向きに ±1 とみなす。
type Range struct {
	From      int64
	Step      int64
	To        int64
	Inclusive bool
}

// Custom はホスト固有の不透明な値。Type で解釈を区別する（例: "markdown"）。
type Custom struct {
	Type string
	Data any
}

// Error はパイプライン中を値として流れるエラー
type Error struct {
	Err error
}

func (Nothing) Kind() Kind  { return KindNothing }
func (Bool) Kind() Kind     { return KindBool }
func (Int) Kind() Kind      { return KindInt }
func (Float) Kind() Kind    { return KindFloat }
func (String) Kind() Kind   { return KindString }
func (Glob) Kind() Kind     { return KindGlob }
func (Binary) Kind() Kind   { return KindBinary }
func (Date) Kind() Kind     { return KindDate }
func (Duration) Kind() Kind { return KindDuration }
func (Filesize) Kind() Kind { return KindFilesize }
func (CellPath) Kind() Kind { return KindCellPath }
func (List) Kind() Kind     { return KindList }
func (*Record) Kind() Kind  { return KindRecord }
func (Closure) Kind() Kind  { return KindClosure }
func (Range) Kind() Kind    { return KindRange }
func (Custom) Kind() Kind   { return KindCustom }
func (Error) Kind() Kind    { return KindError }

// Markdown は Markdown テキストを表す Custom 値を返す。UI 側で整形表示される。
func Markdown(text string) Custom {
	return Custom{Type: "markdown", Data: text}
}

// Time は Date を time.Time として返す
func (d Date) Time() time.Time { return time.Time(d) }

// String は RFC 3339（ナノ秒付き）表記を返す
func (d Date) String() string {
	return time.Time(d).Format(time.RFC3339Nano)
}

func (d Duration) String() string { return time.Duration(d).String() }

// String は "1..5"、"1..3..9"、"1..<5" 形式の表記を返す。
// 既定のステップ（±1）は省略する。
func (r Range) String() string {
	op := ".."
	if !r.Inclusive {
		op = "..<"
	}
	if r.Step == 0 || r.Step == r.defaultStep() {
		return strconv.FormatInt(r.From, 10) + op + strconv.FormatInt(r.To, 10)
	}
	return strconv.FormatInt(r.From, 10) + ".." + strconv.FormatInt(r.From+r.Step, 10) +
		op + strconv.FormatInt(r.To, 10)
}

func (r Range) defaultStep() int64 {
	if r.To < r.From {
		return -1
	}
	return 1
}

// Values は範囲を展開する。limit を超える要素は切り捨てる。
func (r Range) Values(limit int) List {
	step := r.Step
	if step == 0 {
		step = r.defaultStep()
	}
	var out List
	for i := r.From; len(out) < limit; i += step {
		if step > 0 && (i > r.To || (!r.Inclusive && i == r.To)) {
			break
		}
		if step < 0 && (i < r.To || (!r.Inclusive && i == r.To)) {
			break
		}
		out = append(out, Int(i))
	}
	return out
}

func (e Error) Error() string {
	if e.Err == nil {
		return "unknown error"
	}
	return e.Err.Error()
}

func (e Error) Unwrap() error { return e.Err }

// IsNothing は v が nil または Nothing かどうかを返す
func IsNothing(v Value) bool {
	if v == nil {
		return true
	}
	_, ok := v.(Nothing)
	return ok
}

// TableColumns は v が全要素 Record のリスト（テーブル）なら列名の和集合を出現順で返す
func TableColumns(v Value) ([]string, bool) {
	list, ok := v.(List)
	if !ok || len(list) == 0 {
		return nil, false
	}
	seen := make(map[string]bool)
	var cols []string
	for _, item := range list {
		rec, ok := item.(*Record)
		if !ok {
			return nil, false
		}
		for _, k := range rec.Keys() {
			if !seen[k] {
				seen[k] = true
				cols = append(cols, k)
			}
		}
	}
	return cols, true
}
