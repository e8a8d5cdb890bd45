// Package facts holds the named fact stores owned by the model actor.
//
// A store is an insertion-ordered list of (subject, predicate, object) facts.
// Subjects and predicates are compact IRIs ("devices:core-1", "gnos:ttl");
// objects are typed [Value]s. Insertion order is significant: it is the order
// in which query results are produced, which keeps result sets stable across
// re-evaluation.
//
// The alert helpers ([OpenAlert], [CloseAlert]) encode device alerts as blank
// subjects so they can be queried like any other fact.
package facts
