package value

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"github.com/mattn/go-runewidth"
)

// minCellWidth はセルを切り詰めるときの最小幅
const minCellWidth = 8

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#87FF5F")).Padding(0, 1)
	indexStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#555577")).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#333355"))
)

// Format は値を width 桁に収まるよう表示用に整形する。width <= 0 は無制限。
// List と Record はテーブルとして描画し、それ以外は1行の文字列にする。
func Format(v Value, width int) string {
	switch x := v.(type) {
	case nil, Nothing:
		return ""
	case List:
		if len(x) == 0 {
			return "[empty list]"
		}
		if cols, ok := TableColumns(x); ok {
			return formatTable(x, cols, width)
		}
		return formatList(x, width)
	case *Record:
		if x.Len() == 0 {
			return "{record 0 fields}"
		}
		return formatRecord(x, width)
	case Custom:
		if s, ok := x.Data.(string); ok {
			return s
		}
		return Summary(x)
	case Error:
		return "Error: " + x.Error()
	default:
		return Summary(v)
	}
}

// Summary は値の1行表現を返す。入れ子の List / Record は要約する。
func Summary(v Value) string {
	switch x := v.(type) {
	case nil, Nothing:
		return ""
	case Bool:
		return strconv.FormatBool(bool(x))
	case Int:
		return strconv.FormatInt(int64(x), 10)
	case Float:
		return formatFloat(float64(x))
	case String:
		return string(x)
	case Glob:
		return string(x)
	case Binary:
		return formatBinary(x)
	case Date:
		return x.Time().Format("Mon, 02 Jan 2006 15:04:05 -0700") + " (" + humanize.Time(x.Time()) + ")"
	case Duration:
		return x.String()
	case Filesize:
		if x < 0 {
			return "-" + humanize.IBytes(uint64(-x))
		}
		return humanize.IBytes(uint64(x))
	case CellPath:
		return "$." + x.String()
	case List:
		if _, ok := TableColumns(x); ok {
			return fmt.Sprintf("[table %d rows]", len(x))
		}
		return fmt.Sprintf("[list %d items]", len(x))
	case *Record:
		return fmt.Sprintf("{record %d fields}", x.Len())
	case Closure:
		if len(x.Params) == 0 {
			return "{" + x.Body + "}"
		}
		return "{|" + strings.Join(x.Params, ", ") + "| " + x.Body + "}"
	case Range:
		return x.String()
	case Custom:
		return fmt.Sprintf("<%s>", x.Type)
	case Error:
		return "Error: " + x.Error()
	default:
		return fmt.Sprint(v)
	}
}

func formatFloat(f float64) string {
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.ContainsAny(s, ".eEnN") {
		s += ".0"
	}
	return s
}

func formatBinary(b Binary) string {
	const preview = 16
	head := b
	if len(head) > preview {
		head = head[:preview]
	}
	s := fmt.Sprintf("Binary (%s) 0x%s", humanize.IBytes(uint64(len(b))), hex.EncodeToString(head))
	if len(b) > preview {
		s += "…"
	}
	return s
}

func formatTable(rows List, cols []string, width int) string {
	cellW := cellWidth(width, len(cols)+1)
	headers := append([]string{"#"}, cols...)
	data := make([][]string, 0, len(rows))
	for i, item := range rows {
		rec := item.(*Record)
		row := make([]string, 0, len(headers))
		row = append(row, strconv.Itoa(i))
		for _, c := range cols {
			cell := ""
			if v, ok := rec.Get(c); ok {
				cell = Summary(v)
			}
			row = append(row, clip(cell, cellW))
		}
		data = append(data, row)
	}
	return newTable().Headers(headers...).Rows(data...).String()
}

func formatList(items List, width int) string {
	cellW := cellWidth(width, 2)
	data := make([][]string, 0, len(items))
	for i, item := range items {
		data = append(data, []string{strconv.Itoa(i), clip(Summary(item), cellW)})
	}
	return newTable().Rows(data...).String()
}

func formatRecord(rec *Record, width int) string {
	cellW := cellWidth(width, 2)
	data := make([][]string, 0, rec.Len())
	for k, v := range rec.All() {
		data = append(data, []string{k, clip(Summary(v), cellW)})
	}
	return newTable().Rows(data...).String()
}

func newTable() *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case col == 0:
				return indexStyle
			default:
				return cellStyle
			}
		})
}

// cellWidth は列数から1セルあたりの最大表示幅を求める
func cellWidth(width, columns int) int {
	if width <= 0 || columns == 0 {
		return 0
	}
	// 罫線と左右パディングで1列あたり3桁
	w := (width - 1) / columns
	w -= 3
	if w < minCellWidth {
		w = minCellWidth
	}
	return w
}

// clip は改行を潰し、表示幅が w を超える文字列を切り詰める
func clip(s string, w int) string {
	s = strings.ReplaceAll(s, "\r\n", " ")
	s = strings.ReplaceAll(s, "\n", " ")
	if w <= 0 || runewidth.StringWidth(s) <= w {
		return s
	}
	return runewidth.Truncate(s, w, "…")
}
