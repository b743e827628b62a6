// Package shape interprets the structural metadata carried by type
// descriptors: kind tags and nested descriptors describing a value's
// layout. The interpreter performs equality and ordering comparison and
// human-readable printing over raw value bodies without requiring per-type
// compiled glue.
//
// Descriptors that do carry glue routines (Cmp, Print) short-circuit the
// walk; KindParam nodes resolve through the sub-descriptor slice passed by
// generated code for generic types.
package shape
