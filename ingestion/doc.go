// Package ingestion moves rows between JSON lines and a table store.
//
// A Loader reads one JSON object per line, infers a schema from the leading
// rows when the table does not exist yet, and inserts rows in batches.
// Export writes every row of a table back out as JSON lines.
package ingestion
