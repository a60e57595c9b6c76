// Package buildindex coordinates a pool of indexing workers over one batch of
// work units.
//
// Task owns the shared work queue, the status channel and one result channel
// per worker slot. Enter moves the batch into the queue and starts the
// workers, Update polls them at a fixed cadence and drains finished bundles
// into the result sink, and Exit joins the workers, drains what is left and
// reports units that crashed a worker as fatal error records.
//
// Draining honours backpressure: while the sink holds more than
// Tuning.BackpressureThreshold unmerged bundles nothing is popped, so a slow
// merge lets the workers' result channels fill instead of memory.
package buildindex
