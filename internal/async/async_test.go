package async

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlockOn_ReturnsValue(t *testing.T) {
	got, err := BlockOn(context.Background(), func(context.Context) (string, error) {
		time.Sleep(10 * time.Millisecond)
		return "hello", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "hello", got)
}

func TestBlockOn_ReturnsError(t *testing.T) {
	boom := errors.New("boom")
	_, err := BlockOn(context.Background(), func(context.Context) (int, error) {
		return 0, boom
	})
	assert.ErrorIs(t, err, boom)
}

func TestBlockOn_RecoversPanic(t *testing.T) {
	_, err := BlockOn(context.Background(), func(context.Context) (int, error) {
		panic("kaboom")
	})
	var pe *PanicError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "kaboom", pe.Value)
	assert.Contains(t, err.Error(), "kaboom")
	assert.NotEmpty(t, pe.Stack)
}

func TestBlockOn_DoesNotPropagateCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.WithValue(context.Background(), ctxKey{}, "v"))
	cancel()

	got, err := BlockOn(ctx, func(inner context.Context) (string, error) {
		if inner.Err() != nil {
			return "", inner.Err()
		}
		// 値は引き継がれる
		return inner.Value(ctxKey{}).(string), nil
	})
	require.NoError(t, err)
	assert.Equal(t, "v", got)
}

type ctxKey struct{}
