package itest

import (
	"errors"
	"testing"

	"github.com/pqinterop/tls-interop-harness/framework/itest/internal"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStacktrace(t *testing.T) {
	_ = Run(TestConfiguration{}, func(it *T) {
		it.Run("without filtering", func(it *T) {
			stack := getStacktrace(true, nil)
			require.Greater(t, len(stack), 1)
			assert.Equal(t, currentPackageName(), stack[0].Package)
			assert.Contains(t, stack[0].Function, "TestStacktrace.")
			assert.Equal(t, "(*T).run", stack[1].Function)
		})

		it.Run("own frames are removed", func(it *T) {
			internal.Call(func() {
				stack := getStacktrace(false, nil)
				require.Len(t, stack, 1)
				assert.Equal(t, currentPackageName()+"/internal", stack[0].Package)
				assert.Equal(t, "Call", stack[0].Function)
			})
		})

		it.Run("helpers are removed", func(it *T) {
			helperFunc1(func() {
				helperFunc2(func() {
					stack := getStacktrace(true, []string{currentPackageName() + ".helperFunc2"})
					var names []string
					for _, s := range stack {
						names = append(names, s.Function)
					}
					assert.Contains(t, names, "helperFunc1")
					assert.NotContains(t, names, "helperFunc2")
				})
			})
		})
	})
}

func helperFunc1(action func()) {
	action()
}

func helperFunc2(action func()) {
	action()
}

func TestTransformErrorStripsTestifyTrace(t *testing.T) {
	raw := errors.New("\n\tError Trace:\tconn_pair_test.go:42\n\tError:      \tNot equal: 1 != 2")
	err := transformError(raw, nil)
	assert.Equal(t, "Not equal: 1 != 2", err.Error())

	stack := []StacktraceInfo{{FileName: "x.go", Package: rootPackageName() + "/interop", Function: "f", Line: 3}}
	err = transformError(errors.New("plain"), stack)
	var es ErrorWithStacktrace
	require.ErrorAs(t, err, &es)
	assert.Equal(t, "plain", es.Message)
	assert.Equal(t, "interop.f (x.go:3)", es.Stacktrace[0].String())
}

func TestSplitFunctionName(t *testing.T) {
	p, f := splitFunctionName("github.com/pqinterop/tls-interop-harness/interop.(*Runner).Run")
	assert.Equal(t, "github.com/pqinterop/tls-interop-harness/interop", p)
	assert.Equal(t, "(*Runner).Run", f)
}
