package importer

import (
	"strings"

	"finwise/internal/core"
)

// CategoryLookup maps a case-insensitive category name to its record.
type CategoryLookup map[string]core.Category

// Find resolves name ignoring case and surrounding spaces.
func (l CategoryLookup) Find(name string) (core.Category, bool) {
	c, ok := l[core.NameKey(name)]
	return c, ok
}

func (l CategoryLookup) add(c core.Category) {
	key := core.NameKey(c.Name)
	if _, ok := l[key]; !ok {
		l[key] = c
	}
}

// Reconciliation is the result of matching row categories against the
// user's existing ones. It is owned by a single import run.
type Reconciliation struct {
	Lookup CategoryLookup
	// Staged lists the categories that must be created before Build runs,
	// in order of first appearance.
	Staged []core.NewCategory
}

// Reconcile stages one new category per unknown name. When the same new name
// appears with different kinds the first row wins; Build reports the later
// rows as KindMismatch. Names the store would refuse are not staged, so Build
// reports those rows as CategoryResolutionFailed.
func Reconcile(rows []RawImportRow, existing []core.Category) *Reconciliation {
	r := &Reconciliation{Lookup: make(CategoryLookup, len(existing))}
	for _, c := range existing {
		r.Lookup.add(c)
	}

	staged := make(map[string]struct{})
	for _, row := range rows {
		kind, _, rowErr := checkFields(row)
		if rowErr != nil {
			continue
		}
		key := core.NameKey(row.Category)
		if _, ok := r.Lookup[key]; ok {
			continue
		}
		if _, ok := staged[key]; ok {
			continue
		}
		nc := core.NewCategory{Name: strings.TrimSpace(row.Category), Kind: kind}
		if nc.Validate() != nil {
			continue
		}
		staged[key] = struct{}{}
		r.Staged = append(r.Staged, nc)
	}
	return r
}

// Merge adds persisted categories to the lookup. Existing entries are kept.
func (r *Reconciliation) Merge(created []core.Category) {
	for _, c := range created {
		r.Lookup.add(c)
	}
}

// StagedNames returns the names of the staged categories.
func (r *Reconciliation) StagedNames() []string {
	names := make([]string, 0, len(r.Staged))
	for _, c := range r.Staged {
		names = append(names, c.Name)
	}
	return names
}
