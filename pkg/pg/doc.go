// Package pg wires PostgreSQL through a pgx/v5 connection pool.
//
// Connect opens the pool with retries, Migrate applies goose migrations from
// an fs.FS (normally an embed.FS compiled into the binary), WithTx wraps a
// unit of work in a transaction and the Is*Error helpers classify driver
// errors by SQLSTATE.
package pg
