// Package observability is the composition root of the pipeline: it
// wires the tracer, metrics collector and structured log store from one
// configuration, re-emits their events on a single bus, and exposes the
// producer and query API surface.
//
//	mgr, err := observability.NewManager(observability.DefaultConfig("checkout"))
//	if err != nil { ... }
//	if err := mgr.Start(ctx); err != nil { ... }
//	defer mgr.Shutdown(context.Background())
//
//	err = mgr.Trace(ctx, "checkout", func(ctx context.Context) error {
//		mgr.Counter("orders_total").Inc(nil)
//		mgr.LogInfo(ctx, "order placed", nil)
//		return process(ctx)
//	})
package observability
