// Package task provides the execution context the boundary layer operates
// on: the task's heap handles, its segmented managed stack, and the
// published stack-limit guard.
//
// Tasks are created by the scheduler and driven by one goroutine at a time;
// nothing in this package locks. The segment chain is strictly LIFO and the
// guard save/restore around growth, shrink and bridge crossings must pair
// exactly; an unmatched crossing is a correctness bug, not a race.
package task
