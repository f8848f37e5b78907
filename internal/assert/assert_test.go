package assert

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNotNil(t *testing.T) {
	var ptr *int
	var fn func()
	var m map[string]int

	require.Panics(t, func() { NotNil(nil) })
	require.Panics(t, func() { NotNil(ptr) })
	require.Panics(t, func() { NotNil(fn) })
	require.Panics(t, func() { NotNil(m) })

	value := 1
	require.NotPanics(t, func() { NotNil(&value) })
	require.NotPanics(t, func() { NotNil(func() {}) })
	require.NotPanics(t, func() { NotNil(0) })
	require.NotPanics(t, func() { NotNil("") })
}

func TestNotEmptyStr(t *testing.T) {
	require.Panics(t, func() { NotEmptyStr("") })
	require.NotPanics(t, func() { NotEmptyStr("x") })
}
