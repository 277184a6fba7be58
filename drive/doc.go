// Package drive implements the continuation control loop for one agent
// session.
//
// The driver owns the push side of an externally supplied message
// exchange, consumes its typed event stream, and decides at each turn
// boundary whether the agent genuinely finished or merely stalled. Two
// stacked policies make that call: a cheap structural heuristic (a
// successful turn that ended after at most one model turn is treated as a
// premature stop) and an optional LLM-backed semantic assessment driven by
// an active checkpoint.
//
// # Architecture
//
//   - Event: tagged-variant model of the transport's event stream. One
//     variant per recognized kind, plus an explicit "other" variant that
//     carries the raw payload through untouched.
//   - Policy: the per-turn decision engine with bounded retry budgets and
//     a bounded FIFO window of recent assistant text.
//   - Driver: the cooperative session loop wiring the exchange, the
//     caller's callbacks, session discovery, and the policy together.
//
// # Quick Start
//
//	driver := drive.NewDriver(drive.Options{
//	    Exchange:   exchange,
//	    Callbacks:  callbacks,
//	    Checkpoint: checkpoint.NewStore(workDir).Active(),
//	    Assessor:   assess.NewAssessor(assess.NewHTTPCaller(), creds, logger),
//	})
//	if err := driver.Run(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// A cancelled context ends the loop silently; only genuine transport
// failures surface as errors.
package drive
