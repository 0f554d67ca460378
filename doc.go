// Package engine provides the bot trigger and dispatch engine for the
// Langboard collaborative board.
//
// The engine is a library, not a service. Import it into your application
// to classify domain events into typed trigger conditions, resolve the bots
// scoped to each condition in the board hierarchy, execute bot work on a
// background worker pool, run periodic bots from cron with time-zone
// normalisation, and fan events out to webhook subscribers with
// per-subscription accounting.
//
// Key features:
//   - Closed trigger taxonomy with JSON Schema payload validation
//   - Scope resolution over project, column, and card subjects
//   - Async dispatch queue with in-process and Redis backends
//   - Per-bot execution over internal handlers, HTTP endpoints, or an
//     embedded flow runtime, with a 60 second invocation budget
//   - Cron schedules normalised to UTC and reconciled into crontab
//   - Webhook fan-out with HMAC signing and usage accounting
//   - Broadcast queue feeding live-update consumers via cache or spool
//
// Quick start:
//
//	eng, err := engine.New(
//	    engine.WithStore(memoryStore),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	eng.Start(ctx)
//
//	eng.Emit(ctx, trigger.CardMoved, trigger.CardMovedPayload{
//	    Project:    "p1",
//	    Card:       "c1",
//	    FromColumn: "todo",
//	    ToColumn:   "done",
//	}, scope.Location{ProjectID: projectID, CardID: cardID})
package engine
