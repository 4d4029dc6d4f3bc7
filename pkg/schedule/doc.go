// Package schedule runs in-process periodic jobs, such as the daily dunning
// sweep, on interval or time-of-day schedules.
package schedule
