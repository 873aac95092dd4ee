// Package sim provides the discrete-event simulation engine for queue-flex:
// a sharded, replicated in-memory key-value store serving point read/write
// RPCs under skewed (Zipfian) request popularity.
//
// # Reading Guide
//
// Start with these files to understand the simulation kernel:
//   - event.go: Event interface, the heap-ordered event queue and the
//     one-shot callback Event (funcEvent)
//   - engine.go: Engine (clock + event loop, After as the timeout primitive)
//   - run.go: the RunPoint entry point
//   - request.go: Request lifecycle and derived timing fields
//
// # Architecture
//
// Per-run components, in dependency order:
//   - zipf.go / servtime.go: key-popularity and service-time generators
//   - index.go: the bucketed index (version counters + waiter lists)
//   - workload.go: the open-loop Poisson load generator
//   - dispatch.go / dispatch_jbsq.go: dispatch policies (EREW, CREW, CRCW,
//     JBSQ-bounded CREW, dynamic-CREW)
//   - loadbalancer.go: the plain, bucket-serialising, and dynamic-EW
//     balancer variants
//   - worker.go / worker_multiversion.go: MICA-style worker cores and the
//     RLU-style multiversion variant
//   - metrics.go: HDR-histogram latency stores and the metrics dictionary
//
// Dispatch policies are a closed set (spec: tagged variant, not interface
// inheritance with open extension) but are expressed here as a small
// interface since Go has no sum types; NewDispatchPolicy is the single
// switch that constructs one from a name.
package sim
