package task

// Package task implements the orchestration engine: the job queue and its
// state machine, the bounded-concurrency download scheduler, the cooperative
// pause/cancel protocol, and the retry policy. It drives each job through the
// connector capability contract and publishes progress, log, and state-change
// events on the bus it is constructed with.
