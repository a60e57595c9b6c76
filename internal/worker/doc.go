// Package worker runs indexing workers against an ipc namespace.
//
// A worker claims units from the shared queue until it is empty, indexes each
// through an Executor and pushes one result bundle per unit into the result
// channel of its slot. It runs either as a goroutine of the coordinator
// (InProcessWorker) or as a separate executable supervised by the
// coordinator (OutOfProcessWorker). Pool owns every started worker and
// tracks how many are still alive.
package worker
