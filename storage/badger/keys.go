package badger

import (
	"encoding/binary"
	"strings"
)

// Key prefixes for different data types
const (
	tablePrefix  = "tbl"
	rowPrefix    = "row"
	rowSeqPrefix = "rowseq"
)

// makeTableKey generates the catalog key holding a table's schema.
// Format: prefix:name
func makeTableKey(name string) []byte {
	return []byte(tablePrefix + ":" + name)
}

// tableNameFromKey extracts the table name from a catalog key.
func tableNameFromKey(key []byte) string {
	return strings.TrimPrefix(string(key), tablePrefix+":")
}

// makeRowPrefix generates the prefix shared by every row of a table.
// Table names never contain ':' so prefixes of different tables don't overlap.
// Format: prefix:name:
func makeRowPrefix(table string) []byte {
	return []byte(rowPrefix + ":" + table + ":")
}

// makeRowKey generates the key of a row from its encoded key tuple.
// Format: prefix:name:tuple
func makeRowKey(table string, tuple []byte) []byte {
	prefix := makeRowPrefix(table)
	buf := make([]byte, len(prefix)+len(tuple))
	offset := copy(buf, prefix)
	copy(buf[offset:], tuple)
	return buf
}

// makeSeqRowKey generates the key of a row in a table without key columns.
// Format: prefix:name:seq
func makeSeqRowKey(table string, seq uint64) []byte {
	prefix := makeRowPrefix(table)
	buf := make([]byte, len(prefix)+8)
	offset := copy(buf, prefix)
	// Write in BigEndian order so rows scan in insertion order
	binary.BigEndian.PutUint64(buf[offset:], seq)
	return buf
}

// makeRowSeqName names the sequence assigning row IDs for a table.
func makeRowSeqName(table string) string {
	return rowSeqPrefix + ":" + table
}
