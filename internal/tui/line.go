package tui

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/0x6d61/mcp-repl/internal/logging"
	"github.com/0x6d61/mcp-repl/internal/shell"
	"github.com/0x6d61/mcp-repl/internal/value"
)

// RunLines は in から1行ずつ読んで評価し、結果を out に書く。
// 端末でない標準入力（パイプやスクリプト）向けの非対話モード。
// EOF か exit で nil を返す。評価エラーは出力して次の行へ進む。
func RunLines(ctx context.Context, eval Evaluator, in io.Reader, out io.Writer, width int) error {
	log := logging.For("tui")
	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		source := strings.TrimSpace(sc.Text())
		if source == "" || strings.HasPrefix(source, "#") {
			continue
		}

		v, err := eval.Evaluate(ctx, source)
		switch {
		case errors.Is(err, shell.ErrExit):
			return nil
		case errors.Is(err, context.Canceled):
			return err
		case err != nil:
			log.Debug("evaluation failed", "source", source, "error", err)
			fmt.Fprintln(out, shell.Render(err, source))
			continue
		}

		if s := value.Format(v, width); s != "" {
			fmt.Fprintln(out, strings.TrimRight(s, "\n"))
		}
	}
	return sc.Err()
}
