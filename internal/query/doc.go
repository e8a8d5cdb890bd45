// Package query compiles and evaluates queries against fact stores.
//
// The language is the basic-graph-pattern subset of SPARQL the dashboard
// needs: PREFIX declarations, SELECT with a variable list or '*', triple
// patterns, OPTIONAL groups and FILTER clauses. FILTER bodies are compiled with
// expr-lang (https://expr-lang.org) and evaluated over the bindings of each
// row.
//
// Compiled queries are immutable and shared through a [Cache], which the model
// actor uses for every one-shot query, registration and change re-evaluation.
package query
