// Package sim provides the deterministic discrete-event scheduler.
//
// # Reading Guide
//
// Start with these files to understand the simulation kernel:
//   - model.go: Activity, Operation, ManufacturingOrder, Batch and the move reservation
//   - event.go: the closed set of event kinds and their same-tick priority
//   - simulator.go: one simulation pass, from seeding to the drained queue
//   - handlers.go, placement.go: what each event does to the schedule
//
// Commands enter through apply.go. Every command that changes the model
// re-simulates the unfinished schedule from the scenario clock; move.go wraps
// that in the undo and re-apply loop.
//
// # Architecture
//
// Pure-data sub-packages carry no scheduling logic:
//   - sim/eventqueue/: generic min-heap used as the event queue
//   - sim/material/: lots, eligibility and allocation plans
//   - sim/move/: move results, problems, failures and undo state
//   - sim/checksum/: fingerprints and their comparison
//   - sim/command/: commands and the gap-free sequencer
//
// Around the kernel:
//   - sim/notify/: best-effort notifications (log, Redis)
//   - sim/lease/: single-driver scenario lease
//   - sim/replay/: record a command stream and verify a replay against it
//   - sim/cmdlog/: SQLite store for recordings
//   - sim/export/: XLSX export of a schedule snapshot
//
// # Determinism
//
// Nothing in the kernel iterates a map, reads the wall clock or draws random
// numbers. Events order by time, then kind priority, then a per-pass sequence
// number. Quantities are exact decimals.
package sim
