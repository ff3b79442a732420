// Package types defines the shared vocabulary of autorunkit: typed errors with
// stable categories, the transaction and entry enumerations, typed registry
// values and the uniform action result.
//
// Design goals:
//   - Typed errors (not-found/invalid-state/restore-failed/...) that callers
//     branch on with errors.Is rather than by message.
//   - Enumerations that marshal as stable strings, so manifests written by one
//     version stay readable by the next.
//   - Values that carry their registry type, so a captured value restores to
//     exactly the same kind.
//
// This package has no dependencies beyond the standard library.
package types
