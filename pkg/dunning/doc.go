// Package dunning decides when to remind customers about an outstanding
// payment and runs the periodic sweep that applies those decisions.
//
// Policy is pure. Elapsed time is counted in whole days since the first
// failed charge, boundaries inclusive. Checkpoints default to days 3, 7 and
// 14, suspension to day 14 and automatic cancellation to day 30.
//
// Sweeper.Run lists every subscription with an outstanding payment and, for
// each, persists the next checkpoint marker before sending its reminder,
// suspends when the grace period is over and cancels at the processor when
// CancelAfter is reached. Overlapping runs across instances are prevented by
// a Redis lock.
package dunning
