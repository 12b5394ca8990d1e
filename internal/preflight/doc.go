// Package preflight provides readiness checks for the external binaries,
// filesystem paths, and upload providers that PermaVid depends on.
//
// These checks run in two contexts:
//   - The daemon runs RunAll at startup and logs the results so a
//     misconfigured environment surfaces before the first queue item fails.
//   - The CLI "permavid status" command uses individual check functions
//     (CheckFilemoonFromSettings, CheckDirectoryAccess) to display health.
//
// Checks that depend on unset optional values are skipped.
package preflight
