// Package store provides the SQLite-backed action journal for Vellum
// documents.
//
// The journal is append-only:
//   - Documents: one row per engine instance (source, variant)
//   - Actions: every processed action with its canonical args and the
//     essential hash taken after it ran
//   - Snapshots: essential values at a given seq, for fast restore
//
// # Ordering
//
// All ordering uses seq INTEGER (the engine's logical clock), never
// timestamps. Every query ends in ORDER BY seq ASC, id COLLATE BINARY ASC
// so replays read rows in the same order.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Args and essentials are stored as RFC 8785 canonical JSON produced by
// internal/ir, so equal values are stored as equal text.
package store
