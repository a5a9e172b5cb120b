// Package taxonomy holds the closed job level, function and industry
// enumerations that every resolution is checked against.
package taxonomy

import (
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/lead-refinery/internal/model"
)

// Kind names one of the three taxonomies.
type Kind string

const (
	KindJobLevel Kind = "job_level"
	KindFunction Kind = "function"
	KindIndustry Kind = "industry"
)

// ErrNotFound is returned by Lookup when an id is not in the registry.
var ErrNotFound = eris.New("taxonomy: entry not found")

// Entry is a single taxonomy row of any kind. Exactly one pointer is set.
type Entry struct {
	Kind     Kind
	JobLevel *model.JobLevel
	Function *model.FunctionTaxon
	Industry *model.Industry
}

// ID returns the id of whichever row the entry holds.
func (e Entry) ID() string {
	switch {
	case e.JobLevel != nil:
		return e.JobLevel.ID
	case e.Function != nil:
		return e.Function.ID
	case e.Industry != nil:
		return e.Industry.ID
	}
	return ""
}

// Registry is an immutable, in-memory view of the taxonomies. It is built
// once at startup and shared by reference; there is no mutation API.
type Registry struct {
	version    string
	levels     []model.JobLevel
	functions  []model.FunctionTaxon
	industries []model.Industry

	levelIdx    map[string]int
	rankIdx     map[int]int
	functionIdx map[string]int
	industryIdx map[string]int
	lowest      int
}

// New validates the given rows and builds a Registry. Job level ranks must
// cover 1..n with exactly one level per rank.
func New(version string, levels []model.JobLevel, functions []model.FunctionTaxon, industries []model.Industry) (*Registry, error) {
	if len(levels) == 0 {
		return nil, eris.New("taxonomy: no job levels")
	}

	r := &Registry{
		version:     version,
		levels:      append([]model.JobLevel(nil), levels...),
		functions:   append([]model.FunctionTaxon(nil), functions...),
		industries:  append([]model.Industry(nil), industries...),
		levelIdx:    make(map[string]int, len(levels)),
		rankIdx:     make(map[int]int, len(levels)),
		functionIdx: make(map[string]int, len(functions)),
		industryIdx: make(map[string]int, len(industries)),
	}

	for i, l := range r.levels {
		key := normalizeID(l.ID)
		if key == "" {
			return nil, eris.Errorf("taxonomy: job level %d has empty id", i)
		}
		if _, dup := r.levelIdx[key]; dup {
			return nil, eris.Errorf("taxonomy: duplicate job level id %s", l.ID)
		}
		if l.Rank < 1 || l.Rank > len(r.levels) {
			return nil, eris.Errorf("taxonomy: job level %s rank %d out of range 1..%d", l.ID, l.Rank, len(r.levels))
		}
		if _, dup := r.rankIdx[l.Rank]; dup {
			return nil, eris.Errorf("taxonomy: rank %d assigned to more than one job level", l.Rank)
		}
		r.levelIdx[key] = i
		r.rankIdx[l.Rank] = i
		if l.Rank > r.levels[r.lowest].Rank {
			r.lowest = i
		}
	}

	for i, f := range r.functions {
		key := normalizeID(f.ID)
		if key == "" {
			return nil, eris.Errorf("taxonomy: function row %d has empty id", i)
		}
		if _, dup := r.functionIdx[key]; dup {
			return nil, eris.Errorf("taxonomy: duplicate function id %s", f.ID)
		}
		if f.F0 == "" || f.F1 == "" {
			return nil, eris.Errorf("taxonomy: function %s missing f0 or f1", f.ID)
		}
		r.functionIdx[key] = i
	}

	for i, ind := range r.industries {
		key := normalizeID(ind.ID)
		if key == "" {
			return nil, eris.Errorf("taxonomy: industry row %d has empty id", i)
		}
		if _, dup := r.industryIdx[key]; dup {
			return nil, eris.Errorf("taxonomy: duplicate industry id %s", ind.ID)
		}
		if ind.VerticalCode == "" || ind.Name == "" {
			return nil, eris.Errorf("taxonomy: industry %s missing vertical code or name", ind.ID)
		}
		r.industryIdx[key] = i
	}

	return r, nil
}

func normalizeID(id string) string {
	return strings.ToUpper(strings.TrimSpace(id))
}

// Version returns the taxonomy version string.
func (r *Registry) Version() string { return r.version }

// Lookup returns the entry of the given kind with the given id, or
// ErrNotFound.
func (r *Registry) Lookup(kind Kind, id string) (Entry, error) {
	switch kind {
	case KindJobLevel:
		if l, ok := r.JobLevel(id); ok {
			return Entry{Kind: kind, JobLevel: &l}, nil
		}
	case KindFunction:
		if f, ok := r.Function(id); ok {
			return Entry{Kind: kind, Function: &f}, nil
		}
	case KindIndustry:
		if ind, ok := r.Industry(id); ok {
			return Entry{Kind: kind, Industry: &ind}, nil
		}
	default:
		return Entry{}, eris.Errorf("taxonomy: unknown kind %q", kind)
	}
	return Entry{}, eris.Wrapf(ErrNotFound, "%s %q", kind, id)
}

// JobLevel returns the job level with the given id.
func (r *Registry) JobLevel(id string) (model.JobLevel, bool) {
	i, ok := r.levelIdx[normalizeID(id)]
	if !ok {
		return model.JobLevel{}, false
	}
	return r.levels[i], true
}

// LevelByRank returns the job level holding the given rank.
func (r *Registry) LevelByRank(rank int) (model.JobLevel, bool) {
	i, ok := r.rankIdx[rank]
	if !ok {
		return model.JobLevel{}, false
	}
	return r.levels[i], true
}

// LowestLevel returns the least senior band, used as the default when a
// level cannot be trusted.
func (r *Registry) LowestLevel() model.JobLevel {
	return r.levels[r.lowest]
}

// Function returns the function row with the given id.
func (r *Registry) Function(id string) (model.FunctionTaxon, bool) {
	i, ok := r.functionIdx[normalizeID(id)]
	if !ok {
		return model.FunctionTaxon{}, false
	}
	return r.functions[i], true
}

// FunctionsByF0 returns the rows whose master function equals f0,
// case-insensitively, in registry order.
func (r *Registry) FunctionsByF0(f0 string) []model.FunctionTaxon {
	var out []model.FunctionTaxon
	for _, f := range r.functions {
		if strings.EqualFold(f.F0, strings.TrimSpace(f0)) {
			out = append(out, f)
		}
	}
	return out
}

// HasFunctionRow reports whether (f0, f1, f2) is exactly one of the rows.
func (r *Registry) HasFunctionRow(f0, f1, f2 string) bool {
	for _, f := range r.functions {
		if f.F0 == f0 && f.F1 == f1 && f.F2 == f2 {
			return true
		}
	}
	return false
}

// Industry returns the industry row with the given id.
func (r *Registry) Industry(id string) (model.Industry, bool) {
	i, ok := r.industryIdx[normalizeID(id)]
	if !ok {
		return model.Industry{}, false
	}
	return r.industries[i], true
}

// JobLevels returns a copy of the job levels ordered as loaded.
func (r *Registry) JobLevels() []model.JobLevel {
	return append([]model.JobLevel(nil), r.levels...)
}

// Functions returns a copy of the function rows.
func (r *Registry) Functions() []model.FunctionTaxon {
	return append([]model.FunctionTaxon(nil), r.functions...)
}

// Industries returns a copy of the industry rows.
func (r *Registry) Industries() []model.Industry {
	return append([]model.Industry(nil), r.industries...)
}
