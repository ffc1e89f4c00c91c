// Package quota implements a quota and subscription state engine
// mediating between a third-party in-app-purchase/webhook provider and a
// per-user metered-usage budget.
//
// quota is designed as a library, not a service. Import it directly into
// your Go application. It provides:
//
//   - A plan catalog resolving provider product identifiers to quota
//     allowances and billing cycles
//   - Subscription materialization from plan-sync requests and inbound
//     billing events, idempotent webhook processing included
//   - Time-bounded wallets enforcing "at most one active wallet per user"
//   - A two-phase reserve/commit/rollback protocol for metered consumption,
//     idempotent on a client-supplied request id
//   - An optional Redis-backed read-through snapshot cache
//   - A plugin hook system for metrics, audit trails, and other
//     lifecycle observers
//
// # Quick Start
//
// Create a Core instance with your preferred store:
//
//	import (
//	    "github.com/mkucukkoc/aiorealbackend"
//	    "github.com/mkucukkoc/aiorealbackend/store/firestoredb"
//	)
//
//	fs, err := firestoredb.New(ctx, firestoredb.Credentials{ProjectID: "my-project"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	core := quota.New(fs)
//
// # Core Concepts
//
// Users anchor identity in the quota domain:
//
//	u, err := core.EnsureUser(ctx, userID, &email)
//
// Subscriptions are materialized from an observed entitlement or a billing
// event:
//
//	snap, err := core.EnsureQuota(ctx, userID, false, "aiorreal-monthly_ios")
//
// Snapshots describe a user's current plan and remaining quota:
//
//	snap, err := core.GetSnapshot(ctx, userID)
//
// Reserve, commit, and roll back metered usage against a client-supplied
// idempotency key:
//
//	result, err := core.Reserve(ctx, userID, requestID, "chat_completion", 1)
//	if result.Allowed {
//	    // do the work, then:
//	    core.Commit(ctx, userID, requestID)
//	} else {
//	    core.Rollback(ctx, userID, requestID)
//	}
//
// Inbound provider webhooks drive subscription and wallet state:
//
//	result, err := core.ProcessBillingEvent(ctx, webhook.BillingEventPayload{...})
package quota
