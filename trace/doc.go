// Package trace implements an in-process distributed-tracing tracker:
// span creation with sampling and per-span limits, causal trace assembly
// with root-driven completion detection, search, stats, and bounded
// retention under concurrent writers.
//
// Basic usage:
//
//	tracer := trace.NewTracer(cfg, res, log)
//	sb := tracer.StartSpan("checkout", trace.WithKind(trace.KindServer))
//	defer sb.End()
//	sb.SetAttribute("cart.items", 3)
//
// Or wrap a unit of work:
//
//	err := tracer.Trace(ctx, "charge-card", func(ctx context.Context) error {
//		return charge(ctx, card)
//	})
package trace
