// Package query describes reads against a source table as data rather than SQL text.
//
// A Query names the source table, the projected columns, the content column
// (always exposed as "content") and a filter Predicate. Filters are parsed from
// a small SQL-like grammar by ParsePredicate:
//
//	lang = 'en' AND (score >= 0.5 OR reviewed IS NOT NULL)
//	id NOT IN (1, 2, 3)
//	title LIKE 'go%'
//
// Embedded stores evaluate predicates with Eval using SQL three-valued logic;
// SQL stores render them with bind parameters, so filter values never reach
// statement text.
package query
