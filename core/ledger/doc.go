// Package ledger keeps a durable record of every building settlement. Stores
// write JSONL files, optionally rotated, or a SQLite table, and can be queried
// by time range, building or consumer.
package ledger
