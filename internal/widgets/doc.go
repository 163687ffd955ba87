// Package widgets holds render primitives and small input state machines.
//
// Allowed here:
// - stateless drawing helpers (panel chrome, dialog overlay compositor)
// - self-contained inputs that own only their own value (CodeInput)
//
// Not allowed here:
// - coordinator calls, app state transitions, or tab policy
package widgets
