// Package transcript archives live chat messages to PostgreSQL.
//
// Messages observed by the session manager are queued in a bounded ring
// buffer and written in batches by a Writer. Inserts are idempotent per
// (room_id, msg_key); rows that already exist count as conflicts.
//
// The archive is best effort. When the buffer is full the oldest queued
// message is dropped, and a failed batch is logged and discarded.
package transcript
