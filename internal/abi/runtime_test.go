package abi

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hivellm/cranelift-bridge/internal/ir"
)

func TestLookup_KnownRuntimeFunctions(t *testing.T) {
	f, ok := Lookup("str_concat_n")
	require.True(t, ok)
	assert.Equal(t, []ir.Type{ir.I64, ir.I64}, f.Params)
	assert.Equal(t, ir.I64, f.Result)

	f, ok = Lookup("mem_free")
	require.True(t, ok)
	assert.Equal(t, ir.TypeInvalid, f.Result)

	_, ok = Lookup("not_a_runtime_function")
	assert.False(t, ok)
}

func TestIsRuntime_ExemptsFixedNames(t *testing.T) {
	assert.True(t, IsRuntime("println"))
	assert.True(t, IsRuntime("tml_get_panic_message"))
	assert.False(t, IsRuntime("user_function"))
}

func TestRuntime_NoDuplicateNames(t *testing.T) {
	seen := make(map[string]bool)
	for _, f := range Runtime {
		require.False(t, seen[f.Name], "duplicate runtime function %s", f.Name)
		seen[f.Name] = true
	}
}
