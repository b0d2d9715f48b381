package query

import "github.com/TheBitDrifter/fragstore/internal/registry"

// Builder assembles a Signature programmatically (spec §4.7: "programmatic
// builders exist for every construct" the DSL can express).
type Builder struct {
	sig Signature
}

// NewBuilder starts an empty Builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// With requires every given component to be present (ANDed into Include).
func (b *Builder) With(ids ...registry.ID) *Builder {
	for _, id := range ids {
		b.sig.Include.SetBit(uint32(id))
	}
	return b
}

// Without requires every given component to be absent (ORed into Exclude).
func (b *Builder) Without(ids ...registry.ID) *Builder {
	for _, id := range ids {
		b.sig.Exclude.SetBit(uint32(id))
	}
	return b
}

// Modified restricts to slots changed (in the given components) since the
// last change-mask clear.
func (b *Builder) Modified(ids ...registry.ID) *Builder {
	b.sig.Modified = append(b.sig.Modified, ids...)
	return b
}

// NotModified restricts to slots unchanged (in the given components) since
// the last change-mask clear.
func (b *Builder) NotModified(ids ...registry.ID) *Builder {
	b.sig.NotModified = append(b.sig.NotModified, ids...)
	return b
}

// Filter attaches a user Query Filter.
func (b *Builder) Filter(f Filter) *Builder {
	b.sig.Filters = append(b.sig.Filters, f)
	return b
}

// Build returns the assembled Signature.
func (b *Builder) Build() Signature {
	return b.sig
}
