package query

import (
	"fmt"
	"strings"

	"github.com/TheBitDrifter/fragstore/internal/errs"
	"github.com/TheBitDrifter/fragstore/internal/registry"
)

// Compile parses a Query DSL expression of the form
// "C1 and C2 and not C3 and Modified[C4] and not Modified[C5]" into a
// Signature, resolving each bare name to a Component ID via reg (spec §4.7
// "Query DSL"). The DSL is pure syntactic sugar over Builder; every
// construct it expresses is also reachable programmatically.
func Compile(reg *registry.Registry, expr string) (Signature, error) {
	b := NewBuilder()

	clauses := splitAnd(expr)
	for _, clause := range clauses {
		clause = strings.TrimSpace(clause)
		if clause == "" {
			continue
		}
		negate := false
		if rest, ok := trimKeyword(clause, "not"); ok {
			negate = true
			clause = strings.TrimSpace(rest)
		}

		if inner, ok := trimModified(clause); ok {
			id, err := resolve(reg, inner)
			if err != nil {
				return Signature{}, err
			}
			if negate {
				b.NotModified(id)
			} else {
				b.Modified(id)
			}
			continue
		}

		id, err := resolve(reg, clause)
		if err != nil {
			return Signature{}, err
		}
		if negate {
			b.Without(id)
		} else {
			b.With(id)
		}
	}

	return b.Build(), nil
}

func splitAnd(expr string) []string {
	lower := strings.ToLower(expr)
	var parts []string
	start := 0
	for {
		idx := strings.Index(lower[start:], " and ")
		if idx < 0 {
			parts = append(parts, expr[start:])
			break
		}
		parts = append(parts, expr[start:start+idx])
		start = start + idx + len(" and ")
	}
	return parts
}

func trimKeyword(clause, kw string) (string, bool) {
	fields := strings.Fields(clause)
	if len(fields) == 0 || !strings.EqualFold(fields[0], kw) {
		return clause, false
	}
	return strings.Join(fields[1:], " "), true
}

func trimModified(clause string) (string, bool) {
	lower := strings.ToLower(clause)
	if !strings.HasPrefix(lower, "modified[") || !strings.HasSuffix(clause, "]") {
		return "", false
	}
	return strings.TrimSpace(clause[len("Modified[") : len(clause)-1]), true
}

func resolve(reg *registry.Registry, name string) (registry.ID, error) {
	name = strings.TrimSpace(name)
	id, ok := reg.Lookup(name)
	if !ok {
		return 0, fmt.Errorf("query dsl: %w", errs.UnknownComponentNameError{Name: name})
	}
	return id, nil
}
