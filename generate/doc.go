// Package generate materializes embeddings for every row of a source table
// into a destination table.
//
// Generator.Run first makes sure the destination exists, creating it from a
// small embedded probe of the source when it does not. It then repeats a
// bounded batch cycle until nothing new can be written or the time budget is
// spent:
//
//  1. stage up to batch_size source rows whose key is absent from the destination
//  2. embed the staged rows, one result per row
//  3. drop results whose status is retryable
//  4. insert the rest, skipping keys that already exist
//
// Rows with a retryable failure never reach the destination, so they are
// picked up again by a later iteration or a later run. Rows with a terminal
// failure are stored with their status and never retried. Runs can be
// repeated at any time; a run over a fully materialized source inserts
// nothing.
package generate
