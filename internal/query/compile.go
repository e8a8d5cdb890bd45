package query

import (
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/jpalmerr/gnos/internal/facts"
)

// rdfType is the predicate abbreviated by the keyword "a".
const rdfType = "rdf:type"

// Query is a compiled query. It is immutable and safe to evaluate from any
// goroutine against a store that is not being mutated concurrently.
type Query struct {
	text    string
	vars    []string // projection, in SELECT order
	where   []element
	filters []filter
}

// Text returns the source the query was compiled from.
func (q *Query) Text() string { return q.text }

// Vars returns the projected variable names without the leading '?'.
func (q *Query) Vars() []string { return slices.Clone(q.vars) }

type element struct {
	triple   *pattern
	optional []pattern
}

type term struct {
	variable string // set for ?vars
	value    facts.Value
}

func (t term) isVar() bool { return t.variable != "" }

type pattern struct {
	s, p, o term
}

type filter struct {
	source  string
	program *vm.Program
}

// Compile parses query source into a [Query].
//
// The accepted language is a small SPARQL subset:
//
//	PREFIX gnos: <http://www.gnos.org/2012/schema#>
//	SELECT ?name ?ttl WHERE {
//	    ?device gnos:name ?name .
//	    OPTIONAL { ?device snmp:ttl ?ttl }
//	    FILTER(name != "lab")
//	}
//
// FILTER bodies are expr-lang expressions over the row's bindings. A "?x"
// reference in a FILTER is rewritten to "x"; unbound names evaluate to nil.
//
// Every error returned by Compile begins with "expected".
func Compile(text string) (*Query, error) {
	p := &parser{lex: &lexer{src: text}, prefixes: map[string]string{}}
	q, err := p.parse()
	if err != nil {
		return nil, err
	}
	q.text = text
	return q, nil
}

type parser struct {
	lex      *lexer
	prefixes map[string]string // prefix name -> namespace IRI
	seen     []string          // variables in order of first appearance
}

func (p *parser) expect(s string) error {
	t, err := p.lex.next()
	if err != nil {
		return err
	}
	if !t.is(s) {
		return fmt.Errorf("expected %q but found %s", s, t)
	}
	return nil
}

func (p *parser) parse() (*Query, error) {
	for {
		t, err := p.lex.peek()
		if err != nil {
			return nil, err
		}
		if !t.is("PREFIX") {
			break
		}
		p.lex.next()
		if err := p.parsePrefix(); err != nil {
			return nil, err
		}
	}

	if err := p.expect("SELECT"); err != nil {
		return nil, err
	}

	q := &Query{}
	star := false
	for {
		t, err := p.lex.peek()
		if err != nil {
			return nil, err
		}
		if t.kind == tokVar {
			p.lex.next()
			if !slices.Contains(q.vars, t.text) {
				q.vars = append(q.vars, t.text)
			}
			continue
		}
		if t.is("*") && !star && len(q.vars) == 0 {
			p.lex.next()
			star = true
			continue
		}
		break
	}
	if !star && len(q.vars) == 0 {
		t, _ := p.lex.peek()
		return nil, fmt.Errorf("expected a variable or '*' after SELECT but found %s", t)
	}

	if t, err := p.lex.peek(); err != nil {
		return nil, err
	} else if t.is("WHERE") {
		p.lex.next()
	}
	if err := p.expect("{"); err != nil {
		return nil, err
	}
	if err := p.parseGroup(q); err != nil {
		return nil, err
	}

	t, err := p.lex.next()
	if err != nil {
		return nil, err
	}
	if t.kind != tokEOF {
		return nil, fmt.Errorf("expected end of query but found %s", t)
	}

	if star {
		q.vars = slices.Clone(p.seen)
	}
	for _, v := range q.vars {
		if !slices.Contains(p.seen, v) {
			return nil, fmt.Errorf("expected ?%s to appear in the WHERE clause", v)
		}
	}
	return q, nil
}

func (p *parser) parsePrefix() error {
	t, err := p.lex.next()
	if err != nil {
		return err
	}
	if t.kind != tokWord || !strings.HasSuffix(t.text, ":") {
		return fmt.Errorf("expected a prefix name such as \"gnos:\" but found %s", t)
	}
	iri, err := p.lex.next()
	if err != nil {
		return err
	}
	if iri.kind != tokIRI {
		return fmt.Errorf("expected an IRI after PREFIX %s but found %s", t.text, iri)
	}
	p.prefixes[strings.TrimSuffix(t.text, ":")] = iri.text
	return nil
}

// parseGroup parses the body of { ... } including the closing brace.
func (p *parser) parseGroup(q *Query) error {
	for {
		t, err := p.lex.peek()
		if err != nil {
			return err
		}
		switch {
		case t.is("}"):
			p.lex.next()
			return nil
		case t.is("."):
			p.lex.next()
		case t.is("OPTIONAL"):
			p.lex.next()
			if err := p.expect("{"); err != nil {
				return err
			}
			patterns, err := p.parsePatterns()
			if err != nil {
				return err
			}
			if len(patterns) == 0 {
				return fmt.Errorf("expected at least one triple pattern inside OPTIONAL")
			}
			q.where = append(q.where, element{optional: patterns})
		case t.is("FILTER"):
			p.lex.next()
			f, err := p.parseFilter()
			if err != nil {
				return err
			}
			q.filters = append(q.filters, f)
		case t.kind == tokEOF:
			return fmt.Errorf("expected '}' but found %s", t)
		default:
			pat, err := p.parsePattern()
			if err != nil {
				return err
			}
			q.where = append(q.where, element{triple: &pat})
		}
	}
}

// parsePatterns parses triple patterns up to and including '}'.
func (p *parser) parsePatterns() ([]pattern, error) {
	var out []pattern
	for {
		t, err := p.lex.peek()
		if err != nil {
			return nil, err
		}
		switch {
		case t.is("}"):
			p.lex.next()
			return out, nil
		case t.is("."):
			p.lex.next()
		case t.kind == tokEOF:
			return nil, fmt.Errorf("expected '}' but found %s", t)
		default:
			pat, err := p.parsePattern()
			if err != nil {
				return nil, err
			}
			out = append(out, pat)
		}
	}
}

func (p *parser) parsePattern() (pattern, error) {
	s, err := p.parseTerm("subject", false)
	if err != nil {
		return pattern{}, err
	}
	pr, err := p.parseTerm("predicate", false)
	if err != nil {
		return pattern{}, err
	}
	o, err := p.parseTerm("object", true)
	if err != nil {
		return pattern{}, err
	}
	return pattern{s: s, p: pr, o: o}, nil
}

func (p *parser) parseTerm(position string, literals bool) (term, error) {
	t, err := p.lex.next()
	if err != nil {
		return term{}, err
	}

	switch t.kind {
	case tokVar:
		if !slices.Contains(p.seen, t.text) {
			p.seen = append(p.seen, t.text)
		}
		return term{variable: t.text}, nil
	case tokIRI:
		return term{value: facts.IRI(p.contract(t.text))}, nil
	case tokString:
		if literals {
			return term{value: facts.String(t.text)}, nil
		}
	case tokWord:
		if position == "predicate" && t.text == "a" {
			return term{value: facts.IRI(rdfType)}, nil
		}
		if literals {
			if v, ok := literal(t.text); ok {
				return term{value: v}, nil
			}
		}
		if strings.Contains(t.text, ":") && !strings.HasSuffix(t.text, ":") {
			return term{value: facts.IRI(t.text)}, nil
		}
	}

	if literals {
		return term{}, fmt.Errorf("expected a variable, IRI or literal in %s position but found %s", position, t)
	}
	return term{}, fmt.Errorf("expected a variable or IRI in %s position but found %s", position, t)
}

// contract rewrites a full IRI into prefix:local form when a declared prefix
// matches, which is how facts are stored.
func (p *parser) contract(iri string) string {
	best, found := "", false
	for name, ns := range p.prefixes {
		if strings.HasPrefix(iri, ns) && (!found || len(ns) > len(p.prefixes[best])) {
			best, found = name, true
		}
	}
	if !found {
		return iri
	}
	return best + ":" + strings.TrimPrefix(iri, p.prefixes[best])
}

func literal(word string) (facts.Value, bool) {
	switch strings.ToLower(word) {
	case "true":
		return facts.Bool(true), true
	case "false":
		return facts.Bool(false), true
	}
	if i, err := strconv.ParseInt(word, 10, 64); err == nil {
		return facts.Int(i), true
	}
	if f, err := strconv.ParseFloat(word, 64); err == nil {
		return facts.Float(f), true
	}
	return facts.Value{}, false
}

// filterVar matches ?name references inside FILTER bodies.
var filterVar = regexp.MustCompile(`\?([A-Za-z_][A-Za-z0-9_]*)`)

func (p *parser) parseFilter() (filter, error) {
	body, err := p.lex.rawParens()
	if err != nil {
		return filter{}, err
	}
	source := filterVar.ReplaceAllString(body, "$1")
	if strings.TrimSpace(source) == "" {
		return filter{}, fmt.Errorf("expected an expression inside FILTER()")
	}

	program, err := expr.Compile(source)
	if err != nil {
		return filter{}, fmt.Errorf("expected a valid FILTER expression: %w", err)
	}
	return filter{source: source, program: program}, nil
}
