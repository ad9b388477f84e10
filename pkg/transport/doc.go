// Package transport provides the byte-stream layer between the host and a
// bootloader target.
//
// The layer handles:
//   - An unbounded byte queue fed by a background reader goroutine
//   - Pattern waits with per-call timeouts over the queued bytes
//   - Flushed and paced writes towards the target
//   - Transcript recording of every read, write and wait outcome
//
// # Data Flow
//
//	┌────────────┐  Read   ┌──────────┐  Pop   ┌──────────┐
//	│   target   │ ──────▶ │  Queue   │ ─────▶ │ WaitFor  │
//	│  (stdout)  │ reader  │ (bytes)  │ 1 byte │ (suffix) │
//	└────────────┘         └──────────┘        └──────────┘
//	      ▲
//	      │ Write/Flush
//	┌────────────┐
//	│   Sender   │
//	└────────────┘
//
// A wait consumes exactly the bytes up to and including the first
// occurrence of its pattern. Anything the target printed after the marker
// stays queued for the next wait.
package transport
