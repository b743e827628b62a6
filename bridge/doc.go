// Package bridge switches execution between the managed stack and the
// native stack for a single call, preserving the task's stack-limit guard
// across the crossing.
//
// Crossings are nested synchronous calls, not scheduler suspensions; the
// bridge never yields to another task. Guard save/restore around every
// crossing is strictly paired. The two stacks use incompatible unwind
// metadata, so unwinding across the boundary in either direction is fatal.
package bridge
