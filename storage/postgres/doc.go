// Package postgres implements storage.TableStore on PostgreSQL with the
// pgvector extension.
//
// Selections are rendered to SQL and evaluated by the server. Stage
// materializes the selection into a temporary table on a dedicated
// connection, so the working set does not change while the caller embeds
// and inserts it.
package postgres
