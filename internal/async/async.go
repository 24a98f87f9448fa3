// Package async は同期的なコマンド実行から非同期処理を待ち合わせる
package async

import (
	"context"
	"fmt"
	"runtime/debug"
)

// PanicError は fn 内で発生した panic を表す
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic in async task: %v", e.Value)
}

// BlockOn は fn を新しいゴルーチンで実行し、完了するまで待って結果を返す。
// 呼び出し元のキャンセルは fn に伝えない。待ち時間の上限は fn 側のタイムアウトで決まる。
func BlockOn[T any](ctx context.Context, fn func(context.Context) (T, error)) (T, error) {
	type outcome struct {
		val T
		err error
	}
	done := make(chan outcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				var zero T
				done <- outcome{zero, &PanicError{Value: r, Stack: debug.Stack()}}
			}
		}()
		v, err := fn(context.WithoutCancel(ctx))
		done <- outcome{v, err}
	}()

	o := <-done
	return o.val, o.err
}
