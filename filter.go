package sudocache

import (
	"fmt"
	"strings"
)

// Filter is a predicate over cached rules. String renders the filter
// in the record store's search grammar ((attr=value) equality clauses
// combined with (&...) and (|...) groups); Match evaluates it
// natively against a rule. A '*' inside a value is a literal
// character, not a wildcard operator.
type Filter interface {
	String() string
	Match(rule *Rule) bool
}

// EqFilter matches rules where the attribute carries the exact value.
type EqFilter struct {
	Attr  string
	Value string
}

func (f *EqFilter) String() string {
	return "(" + f.Attr + "=" + f.Value + ")"
}

func (f *EqFilter) Match(rule *Rule) bool {
	for _, v := range rule.Get(f.Attr) {
		if v == f.Value {
			return true
		}
	}
	return false
}

// AndFilter matches rules satisfying every subfilter.
type AndFilter struct {
	Subs []Filter
}

func (f *AndFilter) String() string {
	var b strings.Builder
	b.WriteString("(&")
	for _, sub := range f.Subs {
		b.WriteString(sub.String())
	}
	b.WriteString(")")
	return b.String()
}

func (f *AndFilter) Match(rule *Rule) bool {
	for _, sub := range f.Subs {
		if !sub.Match(rule) {
			return false
		}
	}
	return true
}

// OrFilter matches rules satisfying at least one subfilter.
type OrFilter struct {
	Subs []Filter
}

func (f *OrFilter) String() string {
	var b strings.Builder
	b.WriteString("(|")
	for _, sub := range f.Subs {
		b.WriteString(sub.String())
	}
	b.WriteString(")")
	return b.String()
}

func (f *OrFilter) Match(rule *Rule) bool {
	for _, sub := range f.Subs {
		if sub.Match(rule) {
			return true
		}
	}
	return false
}

// ParseFilter parses the search grammar back into a filter tree.
// Record stores receive predicates as strings and use this to
// evaluate them.
func ParseFilter(s string) (Filter, error) {
	p := &filterParser{input: s}
	f, err := p.parseFilter()
	if err != nil {
		return nil, err
	}
	if p.pos != len(p.input) {
		return nil, fmt.Errorf("parse filter: trailing data at offset %d in %q", p.pos, p.input)
	}
	return f, nil
}

type filterParser struct {
	input string
	pos   int
}

func (p *filterParser) parseFilter() (Filter, error) {
	if err := p.expect('('); err != nil {
		return nil, err
	}
	switch {
	case p.peek() == '&':
		p.pos++
		subs, err := p.parseGroup()
		if err != nil {
			return nil, err
		}
		return &AndFilter{Subs: subs}, nil
	case p.peek() == '|':
		p.pos++
		subs, err := p.parseGroup()
		if err != nil {
			return nil, err
		}
		return &OrFilter{Subs: subs}, nil
	default:
		return p.parseEquality()
	}
}

// parseGroup parses subfilters up to the group's closing parenthesis.
func (p *filterParser) parseGroup() ([]Filter, error) {
	var subs []Filter
	for p.peek() == '(' {
		sub, err := p.parseFilter()
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	if err := p.expect(')'); err != nil {
		return nil, err
	}
	return subs, nil
}

func (p *filterParser) parseEquality() (Filter, error) {
	eq := strings.IndexByte(p.input[p.pos:], '=')
	if eq < 0 {
		return nil, fmt.Errorf("parse filter: missing '=' in %q", p.input)
	}
	attr := p.input[p.pos : p.pos+eq]
	if attr == "" || strings.ContainsAny(attr, "()") {
		return nil, fmt.Errorf("parse filter: bad attribute name in %q", p.input)
	}
	p.pos += eq + 1

	end := strings.IndexByte(p.input[p.pos:], ')')
	if end < 0 {
		return nil, fmt.Errorf("parse filter: unterminated clause in %q", p.input)
	}
	value := p.input[p.pos : p.pos+end]
	p.pos += end + 1
	return &EqFilter{Attr: attr, Value: value}, nil
}

func (p *filterParser) peek() byte {
	if p.pos >= len(p.input) {
		return 0
	}
	return p.input[p.pos]
}

func (p *filterParser) expect(c byte) error {
	if p.peek() != c {
		return fmt.Errorf("parse filter: expected %q at offset %d in %q", string(c), p.pos, p.input)
	}
	p.pos++
	return nil
}
