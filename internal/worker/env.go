package worker

import (
	"strconv"
	"time"
)

// Environment variables carrying the backlog throttle to worker processes
const (
	EnvBacklogLimit = "GOCONTEXT_WORKER_BACKLOG"
	EnvPollInterval = "GOCONTEXT_WORKER_POLL"
)

// ThrottleEnv returns the environment entries passing backlog and poll to a
// worker process
func ThrottleEnv(backlog int, poll time.Duration) []string {
	return []string{
		EnvBacklogLimit + "=" + strconv.Itoa(backlog),
		EnvPollInterval + "=" + poll.String(),
	}
}

// ThrottleFromEnv reads the values written by ThrottleEnv. Missing or
// invalid entries yield zero, which Loop replaces with its defaults.
func ThrottleFromEnv(getenv func(string) string) (backlog int, poll time.Duration) {
	if v := getenv(EnvBacklogLimit); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			backlog = n
		}
	}
	if v := getenv(EnvPollInterval); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			poll = d
		}
	}
	return backlog, poll
}
