package shell

import (
	"fmt"
	"strings"
)

// Param は位置引数の定義
type Param struct {
	Name     string
	Shape    Shape
	Required bool
	Desc     string
}

// Flag は名前付き引数の定義。Switch は値を取らないフラグ。
type Flag struct {
	Name     string
	Short    rune
	Shape    Shape
	Switch   bool
	Required bool
	Desc     string
}

// Signature はコマンドの名前・説明・引数仕様。
// 必須引数の検査はコマンド側の責務で、エンジンは個数と型のみ検査する。
type Signature struct {
	Name        string
	Description string
	Positionals []Param
	Rest        *Param
	Flags       []Flag
	// Subcommands は help 表示用。"tool" のような名前空間コマンドで使う。
	Subcommands []string
}

// LookupFlag は名前でフラグを探す。
// 見つからなければ同名の位置引数を値付きフラグとして返す（--path x のような指定を許す）。
func (s *Signature) LookupFlag(name string) (Flag, bool) {
	for _, f := range s.Flags {
		if f.Name == name {
			return f, true
		}
	}
	for _, p := range s.Positionals {
		if p.Name == name {
			return Flag{Name: p.Name, Shape: p.Shape, Desc: p.Desc}, true
		}
	}
	return Flag{}, false
}

// LookupShort は短縮名でフラグを探す
func (s *Signature) LookupShort(r rune) (Flag, bool) {
	for _, f := range s.Flags {
		if f.Short != 0 && f.Short == r {
			return f, true
		}
	}
	return Flag{}, false
}

func (s *Signature) flagNames() []string {
	names := make([]string, 0, len(s.Flags)+len(s.Positionals))
	for _, f := range s.Flags {
		names = append(names, f.Name)
	}
	for _, p := range s.Positionals {
		names = append(names, p.Name)
	}
	return names
}

// Usage は "tool fs.read <path> {flags}" 形式の1行を返す
func (s *Signature) Usage() string {
	var sb strings.Builder
	sb.WriteString(s.Name)
	if len(s.Flags) > 0 {
		sb.WriteString(" {flags}")
	}
	for _, p := range s.Positionals {
		if p.Required {
			fmt.Fprintf(&sb, " <%s>", p.Name)
		} else {
			fmt.Fprintf(&sb, " (%s)", p.Name)
		}
	}
	if s.Rest != nil {
		fmt.Fprintf(&sb, " ...%s", s.Rest.Name)
	}
	return sb.String()
}

// Help はシグネチャからヘルプテキストを生成する
func Help(s *Signature) string {
	var sb strings.Builder
	if s.Description != "" {
		sb.WriteString(s.Description)
		sb.WriteString("\n\n")
	}
	sb.WriteString("Usage:\n  > ")
	sb.WriteString(s.Usage())
	sb.WriteString("\n")

	if len(s.Subcommands) > 0 {
		sb.WriteString("\nSubcommands:\n")
		for _, name := range s.Subcommands {
			fmt.Fprintf(&sb, "  %s\n", name)
		}
	}

	sb.WriteString("\nFlags:\n  -h, --help: Display the help message for this command\n")
	for _, f := range s.Flags {
		sb.WriteString("  ")
		if f.Short != 0 {
			fmt.Fprintf(&sb, "-%c, ", f.Short)
		}
		sb.WriteString("--" + f.Name)
		if !f.Switch {
			fmt.Fprintf(&sb, " <%s>", f.Shape)
		}
		if f.Required {
			sb.WriteString(" (required)")
		}
		if f.Desc != "" {
			sb.WriteString(": " + f.Desc)
		}
		sb.WriteString("\n")
	}

	if len(s.Positionals) > 0 || s.Rest != nil {
		sb.WriteString("\nParameters:\n")
		for _, p := range s.Positionals {
			fmt.Fprintf(&sb, "  %s <%s>: %s", p.Name, p.Shape, p.Desc)
			if !p.Required {
				sb.WriteString(" (optional)")
			}
			sb.WriteString("\n")
		}
		if s.Rest != nil {
			fmt.Fprintf(&sb, "  ...%s <%s>: %s\n", s.Rest.Name, s.Rest.Shape, s.Rest.Desc)
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}
