// Package schedule provides cron-driven periodic submission of
// workflow definitions.
//
// Entries are held in memory and evaluated on a tick loop. This engine
// runs single-process, so there is no leader election and no
// distributed locking; an entry fires at most once per due instant
// within one scheduler.
//
// # Entry
//
// An [Entry] represents a recurring workflow submission:
//   - Expr: standard cron expression (e.g., "0 9 * * 1-5") or a
//     descriptor like "@every 30s"
//   - Definition: the workflow definition submitted on each fire
//   - Payload: static JSON payload passed to every triggered run
//   - Enabled: whether the entry fires
//   - LastRun / NextRun: managed by the scheduler
//
// # Registering a Schedule
//
//	sched := schedule.NewScheduler(submit, emitter, logger)
//	sched.Add("daily-report", "0 9 * * *", reportDef, payload)
//	sched.Start(ctx)
//
// The [Scheduler] evaluates due entries on every tick, submits the
// workflow through the configured callback, and updates LastRun and
// NextRun. Submission errors are logged and the entry is retried on
// the next tick.
package schedule
