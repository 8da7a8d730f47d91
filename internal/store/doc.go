// Package store persists workflows in SQLite (modernc.org/sqlite, WAL mode).
//
// Workflow fields live in the workflows table. Chat history lives in
// chat_messages and is append-only: Save inserts entries beyond the stored
// count and never rewrites earlier ones. Edit changes and SEO results are
// serialized to JSON here and decoded leniently on load, so a malformed
// column reads back as absent instead of failing the whole row.
//
// Busy errors are retried with exponential backoff. PRAGMA user_version
// guards against opening a database written by an incompatible build.
package store
