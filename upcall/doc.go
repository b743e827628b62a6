// Package upcall is the entry surface compiled code calls into. Every
// function takes the task explicitly as its first argument and, with two
// exceptions, crosses to the native stack through the bridge before doing
// any real work. ValidateBox stays on the caller's stack because it is on
// the hot path of pointer writes; ResetStackLimit stays because a switch
// would clobber the stack limit it exists to restore.
//
// Results and failures travel as explicit return values. An error returned
// from an upcall never unwinds the caller's stack.
package upcall
