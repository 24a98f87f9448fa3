package shell

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/0x6d61/mcp-repl/internal/bridge"
	"github.com/0x6d61/mcp-repl/internal/value"
)

var (
	rangeRe    = regexp.MustCompile(`^(-?\d+)(?:\.\.(-?\d+))?\.\.(<)?(-?\d+)$`)
	durationRe = regexp.MustCompile(`^(-?\d+(?:\.\d+)?)(ns|us|µs|ms|sec|min|hr|day|wk)$`)
	filesizeRe = regexp.MustCompile(`(?i)^\d+(?:\.\d+)?(b|kb|mb|gb|tb|pb|kib|mib|gib|tib|pib)$`)
	numberRe   = regexp.MustCompile(`^[-+]?(\d|\.\d)`)
)

var durationUnits = map[string]time.Duration{
	"ns":  time.Nanosecond,
	"us":  time.Microsecond,
	"µs":  time.Microsecond,
	"ms":  time.Millisecond,
	"sec": time.Second,
	"min": time.Minute,
	"hr":  time.Hour,
	"day": 24 * time.Hour,
	"wk":  7 * 24 * time.Hour,
}

// parseLiteral はトークンをシェル値にする
func parseLiteral(t token) (value.Value, error) {
	switch t.kind {
	case tokString:
		return value.String(t.text), nil
	case tokBlock:
		return parseBlock(t)
	}
	return parseWord(t.text, t.span)
}

func parseBlock(t token) (value.Value, error) {
	inner := strings.TrimSpace(t.text[1 : len(t.text)-1])
	if t.text[0] == '{' && strings.HasPrefix(inner, "|") {
		return parseClosure(inner), nil
	}
	v, err := bridge.FromYAML([]byte(t.text))
	if err != nil {
		return nil, &Error{Msg: "Invalid literal", Span: t.span, Err: err}
	}
	return v, nil
}

// parseClosure は "|a, b| body" をパラメータと本体に分ける
func parseClosure(inner string) value.Closure {
	rest := inner[1:]
	end := strings.IndexByte(rest, '|')
	if end < 0 {
		return value.Closure{Body: strings.TrimSpace(inner)}
	}
	var params []string
	for _, p := range strings.Split(rest[:end], ",") {
		if p = strings.TrimSpace(p); p != "" {
			params = append(params, p)
		}
	}
	return value.Closure{Params: params, Body: strings.TrimSpace(rest[end+1:])}
}

func parseWord(s string, span Span) (value.Value, error) {
	switch s {
	case "true":
		return value.Bool(true), nil
	case "false":
		return value.Bool(false), nil
	case "null":
		return value.Nothing{}, nil
	}

	if numberRe.MatchString(s) {
		if n, err := strconv.ParseInt(s, intBase(s), 64); err == nil {
			return value.Int(n), nil
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return value.Float(f), nil
		}
		if m := rangeRe.FindStringSubmatch(s); m != nil {
			return parseRange(m), nil
		}
		if m := durationRe.FindStringSubmatch(s); m != nil {
			n, _ := strconv.ParseFloat(m[1], 64)
			return value.Duration(time.Duration(n * float64(durationUnits[m[2]]))), nil
		}
		if filesizeRe.MatchString(s) {
			n, err := humanize.ParseBytes(s)
			if err != nil {
				return nil, &Error{Msg: "Invalid filesize", Span: span, Err: err}
			}
			return value.Filesize(n), nil
		}
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return value.Date(t), nil
			}
		}
	}

	if strings.HasPrefix(s, "$.") {
		p, err := value.ParseCellPath(s)
		if err != nil {
			return nil, &Error{Msg: "Invalid cell path", Span: span, Err: err}
		}
		return p, nil
	}
	if strings.ContainsAny(s, "*?") {
		return value.Glob(s), nil
	}
	return value.String(unquoteWord(s)), nil
}

// intBase は 0x / 0o / 0b 接頭辞があるときだけ基数の自動判定を使う。
// "010" を 8 進数として読まないため。
func intBase(s string) int {
	u := strings.ToLower(strings.TrimLeft(s, "+-"))
	if strings.HasPrefix(u, "0x") || strings.HasPrefix(u, "0o") || strings.HasPrefix(u, "0b") {
		return 0
	}
	return 10
}

func parseRange(m []string) value.Range {
	from, _ := strconv.ParseInt(m[1], 10, 64)
	to, _ := strconv.ParseInt(m[4], 10, 64)
	r := value.Range{From: from, To: to, Inclusive: m[3] == ""}
	if m[2] != "" {
		next, _ := strconv.ParseInt(m[2], 10, 64)
		r.Step = next - from
	}
	return r
}
