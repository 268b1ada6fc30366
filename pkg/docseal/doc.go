// Package docseal provides the library API for docseal projects.
//
// It is the integration point for callers that do not go through the CLI,
// such as documentation build scripts and CI jobs. Every method maps to one
// operation of the internal dispatcher.
//
// # Concurrency Safety
//
//   - Validate, Status, Diff and the audit readers take no lock and may run
//     alongside anything. They observe either the previous or the next
//     complete lock record, never a partial one.
//
//   - Lock, Heal, Snapshot, Restore, Sign and Prune take the project's
//     exclusive advisory lock. Concurrent callers (in this or another
//     process) wait up to lock_timeout and then fail with E_LOCK_CONFLICT.
//
//   - Every mutating call first verifies the audit chain and refuses to run
//     when it is broken (E_INTEGRITY_BREAK).
//
// # Recommended Usage Pattern (CI)
//
//	client, err := docseal.OpenOrInit(dir)
//	discrepancies, err := client.Validate(ctx, false)
//	if len(discrepancies) > 0 {
//	    report, _ := client.Heal(ctx)
//	    // report.Unresolved needs a human decision and client.Lock(ctx, true)
//	}
//	client.Snapshot(ctx, docseal.SnapshotOptions{Note: "ci: " + commit, Tags: []string{"ci"}})
package docseal
