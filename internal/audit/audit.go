// Package audit defines the single best-effort event hook the engine
// exposes to its surrounding system (spec §6): anomaly alerts, batch
// encode completions, and delta expansion-limit violations all flow
// through one callback shape so the surrounding system's audit log,
// metrics pipeline, or alerting can subscribe without the engine
// knowing anything about them.
package audit

// Kind identifies the category of an audit event.
type Kind string

const (
	KindAnomalyAlert       Kind = "anomaly_alert"
	KindBatchEncode        Kind = "batch_encode"
	KindExpansionViolation Kind = "expansion_violation"
)

// Hook receives audit events. Implementations MUST NOT block the
// caller for long and MUST NOT panic; a failing hook never propagates
// into the engine's own errors.
type Hook interface {
	OnEvent(kind Kind, target string, detail map[string]interface{})
}

// HookFunc adapts a plain function to the Hook interface.
type HookFunc func(kind Kind, target string, detail map[string]interface{})

func (f HookFunc) OnEvent(kind Kind, target string, detail map[string]interface{}) {
	f(kind, target, detail)
}

// noop silently discards every event; used when no hook is configured.
type noop struct{}

func (noop) OnEvent(Kind, string, map[string]interface{}) {}

// Noop is the default, side-effect-free Hook.
var Noop Hook = noop{}

// Emit invokes hook.OnEvent, recovering from and discarding any panic so
// a misbehaving subscriber can never break the caller (spec §6:
// "callback failures MUST NOT propagate into caller errors").
func Emit(hook Hook, kind Kind, target string, detail map[string]interface{}) {
	if hook == nil {
		return
	}
	defer func() { _ = recover() }()
	hook.OnEvent(kind, target, detail)
}
