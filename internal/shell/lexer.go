package shell

import (
	"strconv"
	"strings"
)

type tokenKind int

const (
	tokWord   tokenKind = iota // 裸の単語（フラグを含む）
	tokString                  // 引用符付き文字列
	tokBlock                   // [...] または {...}
	tokPipe                    // |
)

type token struct {
	kind tokenKind
	// text は tokString では引用符を外した内容、それ以外は元の文字列
	text string
	span Span
}

// lex は入力をトークン列に分割する。# 以降は行末までコメント。
func lex(src string) ([]token, error) {
	var toks []token
	i := 0
	for i < len(src) {
		c := src[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == '#':
			for i < len(src) && src[i] != '\n' {
				i++
			}
		case c == '|':
			toks = append(toks, token{kind: tokPipe, text: "|", span: Span{i, i + 1}})
			i++
		case c == '"' || c == '\'' || c == '`':
			end, err := scanQuoted(src, i)
			if err != nil {
				return nil, err
			}
			text, err := unquote(src[i:end])
			if err != nil {
				return nil, Errorf(Span{i, end}, "Invalid string", "%v", err)
			}
			toks = append(toks, token{kind: tokString, text: text, span: Span{i, end}})
			i = end
		case c == '[' || c == '{':
			end, err := scanBlock(src, i)
			if err != nil {
				return nil, err
			}
			toks = append(toks, token{kind: tokBlock, text: src[i:end], span: Span{i, end}})
			i = end
		case c == ']' || c == '}':
			return nil, Errorf(Span{i, i + 1}, "Unbalanced delimiter", "unexpected `%c`", c)
		default:
			start := i
			for i < len(src) && !isWordBreak(src[i]) {
				if q := src[i]; q == '"' || q == '\'' || q == '`' {
					end, err := scanQuoted(src, i)
					if err != nil {
						return nil, err
					}
					i = end
					continue
				}
				i++
			}
			toks = append(toks, token{kind: tokWord, text: src[start:i], span: Span{start, i}})
		}
	}
	return toks, nil
}

func isWordBreak(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '|'
}

// scanQuoted は src[start] の引用符に対応する閉じ引用符の直後の位置を返す
func scanQuoted(src string, start int) (int, error) {
	q := src[start]
	for i := start + 1; i < len(src); i++ {
		switch src[i] {
		case '\\':
			if q == '"' {
				i++
			}
		case q:
			return i + 1, nil
		}
	}
	return 0, Errorf(Span{start, len(src)}, "Unclosed string", "missing closing %c", q)
}

// scanBlock は括弧の対応を取り、閉じ括弧の直後の位置を返す。文字列内の括弧は無視する。
func scanBlock(src string, start int) (int, error) {
	var stack []byte
	for i := start; i < len(src); i++ {
		switch c := src[i]; c {
		case '"', '\'', '`':
			end, err := scanQuoted(src, i)
			if err != nil {
				return 0, err
			}
			i = end - 1
		case '[':
			stack = append(stack, ']')
		case '{':
			stack = append(stack, '}')
		case ']', '}':
			if len(stack) == 0 || stack[len(stack)-1] != c {
				return 0, Errorf(Span{i, i + 1}, "Unbalanced delimiter", "unexpected `%c`", c)
			}
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				return i + 1, nil
			}
		}
	}
	return 0, Errorf(Span{start, len(src)}, "Unbalanced delimiter", "missing closing `%c`", stack[len(stack)-1])
}

// unquote は引用符を外す。二重引用符のみエスケープを解釈する。
func unquote(raw string) (string, error) {
	switch raw[0] {
	case '"':
		return strconv.Unquote(raw)
	default:
		return raw[1 : len(raw)-1], nil
	}
}

// unquoteWord は "--name=\"a b\"" の値部分のような、単語中の引用を外す
func unquoteWord(s string) string {
	if len(s) >= 2 && strings.ContainsRune(`"'`+"`", rune(s[0])) && s[len(s)-1] == s[0] {
		if out, err := unquote(s); err == nil {
			return out
		}
	}
	return s
}

// splitPipeline はパイプでトークン列を段に分ける
func splitPipeline(toks []token) ([][]token, error) {
	var stages [][]token
	var cur []token
	for _, t := range toks {
		if t.kind == tokPipe {
			if len(cur) == 0 {
				return nil, Errorf(t.span, "Empty pipeline stage", "expected a command before `|`")
			}
			stages = append(stages, cur)
			cur = nil
			continue
		}
		cur = append(cur, t)
	}
	if len(cur) == 0 && len(stages) > 0 {
		last := stages[len(stages)-1]
		end := last[len(last)-1].span.End
		return nil, Errorf(Span{end, end + 1}, "Empty pipeline stage", "expected a command after `|`")
	}
	if len(cur) > 0 {
		stages = append(stages, cur)
	}
	return stages, nil
}
