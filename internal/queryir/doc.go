// Package queryir provides an abstract query representation for recorded
// sweep frames.
//
// QueryIR is the boundary between the commands that inspect a recording
// (trace, replay tooling) and the storage backend. Callers describe which
// frames they want; the backend compiler decides how to fetch them:
//
//	[CLI flags] → [Query IR] → [SQL backend]
//
// SEALED INTERFACES:
//
// Predicate is a sealed interface using the marker method pattern. Only
// types in this package implement it, so backends can switch exhaustively:
//
//	switch p := pred.(type) {
//	case Equals:
//	case Compare:
//	case And:
//	}
//
// FIELDS:
//
// Predicates reference frame fields by name. Only the fields listed in
// Fields are queryable; each has a fixed kind that Validate enforces:
//
//	seq        integer, frame sequence number
//	outcome    outcome string (continue, rollover, overflow)
//	rollovers  integer
//	pen        number, pen position in window coordinates
//	dropped    integer, samples with non-finite timestamps
//
// Values must be finite. Frames always come back in seq order.
package queryir
