// Package manager owns the loaded network and the auxiliary module and
// coordinates loading, readiness, and evaluation. It is structured into small
// files by concern:
//
//   - manager.go: core Manager type, constructor, Ready, Close.
//   - config.go: ManagerConfig and package defaults; NewWithConfig applies defaults.
//   - types.go: State and the per-handle network record.
//   - errors.go: RunError and the not-ready / too-busy / aux errors with Is* helpers.
//   - load.go: LoadNetwork, LoadAux, and Start (concurrent loads + readiness barrier).
//   - queue_admission.go: per-handle bounded queue and single in-flight slot.
//   - evaluate.go: Evaluate / EvaluateAll with strict and lenient failure modes.
//   - reload.go: replace-on-reload with drain of the previous handle.
//   - aux.go: aux module passthrough (self-test, think, raw calls).
//   - status_report.go: Status/Snapshot reporting helpers.
//   - events.go, eventpub_memory.go: lifecycle event publishing.
//   - metrics.go: Prometheus collectors.
//
// Load failures never propagate out of Start: they are logged, published as
// events, and recorded as the last error. Callers gate on Ready().
package manager
