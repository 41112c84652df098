/*
Package metrics registers Prometheus instrumentation for the queue and
planner core: per-queue gauges (pending/running/blocked/reserved),
lifetime counters (rejected/canceled/allocated), sched-loop duration
histograms, and per-resource-type planner gauges. Metrics are exposed
via Handler() for mounting under /metrics, and a Collector periodically
samples a queue.Set into the gauges.

This package also exposes a small health-check registry (RegisterComponent,
GetHealth, GetReadiness) used by the /health, /ready, and /live HTTP
endpoints.
*/
package metrics
