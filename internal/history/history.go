// Package history は REPL の入力履歴を1行1エントリのテキストファイルに永続化する。
package history

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// MaxEntries は保持する履歴の上限。超えた分は古いものから捨てる。
const MaxEntries = 100_000

// FileName は履歴ファイル名
const FileName = "history.txt"

// Dir は ~/.mcp-repl を返す。履歴とログファイルを置く。
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("history: home dir: %w", err)
	}
	return filepath.Join(home, ".mcp-repl"), nil
}

// DefaultPath は ~/.mcp-repl/history.txt を返す
func DefaultPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, FileName), nil
}

// Store は履歴ファイルの読み書きを管理する。
type Store struct {
	path    string
	max     int
	entries []string
	// onDisk はファイル上の行数。上限を一定以上超えたら書き直す。
	onDisk int
}

// Open は path の履歴を読み込む。ファイルが存在しない場合は空の Store を返し、
// 最初の Add でディレクトリとファイルを作成する。
func Open(path string) (*Store, error) {
	return OpenWithLimit(path, MaxEntries)
}

// OpenWithLimit は上限を指定して Open する
func OpenWithLimit(path string, limit int) (*Store, error) {
	s := &Store{path: path, max: limit}

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return s, nil
		}
		return nil, fmt.Errorf("history: open: %w", err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Text()
		s.onDisk++
		if strings.TrimSpace(line) == "" {
			continue
		}
		s.entries = append(s.entries, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("history: read: %w", err)
	}

	if len(s.entries) > s.max {
		s.entries = s.entries[len(s.entries)-s.max:]
		if err := s.rewrite(); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Entries は古い順の履歴を返す
func (s *Store) Entries() []string {
	out := make([]string, len(s.entries))
	copy(out, s.entries)
	return out
}

// Len は履歴の件数
func (s *Store) Len() int { return len(s.entries) }

// Add は1行を履歴に追加する。空行と直前と同じ行は記録しない。
func (s *Store) Add(line string) error {
	line = strings.TrimRight(strings.ReplaceAll(line, "\n", " "), " \t\r")
	if strings.TrimSpace(line) == "" {
		return nil
	}
	if n := len(s.entries); n > 0 && s.entries[n-1] == line {
		return nil
	}

	s.entries = append(s.entries, line)
	if len(s.entries) > s.max {
		s.entries = s.entries[len(s.entries)-s.max:]
	}

	// ファイルは上限の 1/10 まで超過を許し、超えたら書き直す
	if s.onDisk+1 > s.max+s.max/10 {
		return s.rewrite()
	}
	return s.append(line)
}

func (s *Store) append(line string) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o750); err != nil {
		return fmt.Errorf("history: mkdir: %w", err)
	}
	f, err := os.OpenFile(s.path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o600)
	if err != nil {
		return fmt.Errorf("history: open file: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(line + "\n"); err != nil {
		return fmt.Errorf("history: write entry: %w", err)
	}
	s.onDisk++
	return nil
}

// rewrite は現在の履歴でファイルを置き換える
func (s *Store) rewrite() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o750); err != nil {
		return fmt.Errorf("history: mkdir: %w", err)
	}
	tmp := s.path + ".tmp"
	var sb strings.Builder
	for _, e := range s.entries {
		sb.WriteString(e)
		sb.WriteByte('\n')
	}
	if err := os.WriteFile(tmp, []byte(sb.String()), 0o600); err != nil {
		return fmt.Errorf("history: write: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("history: rename: %w", err)
	}
	s.onDisk = len(s.entries)
	return nil
}
