// Package router federates one parsed query across independent domain
// adapters. It derives a per-domain routing plan from the query tree,
// dispatches one task per domain under a shared deadline, and gathers
// the settled results into a single partial-failure-tolerant envelope.
package router
