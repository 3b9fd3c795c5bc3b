package audit

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHookFuncReceivesEvent(t *testing.T) {
	var gotKind Kind
	var gotTarget string
	hook := HookFunc(func(kind Kind, target string, detail map[string]interface{}) {
		gotKind = kind
		gotTarget = target
	})

	Emit(hook, KindAnomalyAlert, "doc-1", map[string]interface{}{"ratio": 0.5})
	assert.Equal(t, KindAnomalyAlert, gotKind)
	assert.Equal(t, "doc-1", gotTarget)
}

func TestEmitNilHookIsNoop(t *testing.T) {
	assert.NotPanics(t, func() {
		Emit(nil, KindBatchEncode, "x", nil)
	})
}

func TestEmitRecoversFromPanickingHook(t *testing.T) {
	hook := HookFunc(func(kind Kind, target string, detail map[string]interface{}) {
		panic("boom")
	})
	assert.NotPanics(t, func() {
		Emit(hook, KindExpansionViolation, "y", nil)
	})
}

func TestNoopHookDiscardsSilently(t *testing.T) {
	assert.NotPanics(t, func() {
		Emit(Noop, KindBatchEncode, "z", nil)
	})
}
