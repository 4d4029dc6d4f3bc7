// Package redis connects to Redis with go-redis/v9 and provides a small
// distributed lock used to keep periodic jobs from overlapping across
// instances.
package redis
