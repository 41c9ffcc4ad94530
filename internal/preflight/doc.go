// Package preflight provides readiness checks for the filesystem paths,
// shared memory and listen address the dev daemon depends on.
//
// These checks run in two contexts:
//   - The dev daemon runtime calls RunAll before starting and logs every
//     failed check with a hint, then starts anyway so the real error surfaces.
//   - The CLI "unitapp status" command shows the results when no daemon is
//     running.
//
// Checks for disabled features are skipped.
package preflight
