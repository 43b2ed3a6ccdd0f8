package builder

import (
	"github.com/crmoraes/nga/internal/export"
	"github.com/crmoraes/nga/internal/models"
	"github.com/crmoraes/nga/internal/naming"
	"github.com/crmoraes/nga/internal/scanner"
)

// Declarations holds every variable the input declares. Explicit declarations
// are always emitted; action schema candidates only when referenced.
type Declarations struct {
	col        *scanner.Collector
	explicit   *models.OrderedMap[*models.Variable]
	candidates *models.OrderedMap[*models.Variable]
}

func newDeclarations(col *scanner.Collector) *Declarations {
	return &Declarations{
		col:        col,
		explicit:   models.NewOrderedMap[*models.Variable](),
		candidates: models.NewOrderedMap[*models.Variable](),
	}
}

// declareInput records an action input as a mutable candidate. The first
// declaration of a name wins.
func (d *Declarations) declareInput(name string, typ models.DataType, title, description string) {
	if name == "" || d.candidates.Has(name) {
		return
	}
	desc := naming.FirstNonEmpty(description, title, "Variable for "+name)
	d.candidates.Add(name, models.NewVariable(name, models.VariableMutable, typ, "", title, desc))
}

// declareOutput records an action output as a linked candidate bound to the
// action output. Object-like outputs become mutable.
func (d *Declarations) declareOutput(name string, typ models.DataType, title, description, source, owner string) {
	if name == "" || d.candidates.Has(name) {
		return
	}
	desc := naming.FirstNonEmpty(description, title, "Output from "+owner)
	d.candidates.Add(name, models.NewVariable(name, models.VariableLinked, typ, source, title, desc))
}

func (st *build) simplifiedVariables(vars []export.SimpleVariable) {
	for _, v := range vars {
		name := naming.VariableName(naming.FirstNonEmpty(v.Name, v.ID))
		if !naming.IsIdentifier(name) || st.decls.explicit.Has(name) {
			continue
		}
		typ := st.types.Normalize(naming.FirstNonEmpty(v.Type, string(models.TypeString)))
		category := models.VariableMutable
		if v.Source != "" {
			category = models.VariableLinked
		}
		desc := naming.FirstNonEmpty(v.Description, "Variable "+name)
		st.decls.explicit.Add(name, models.NewVariable(name, category, typ, v.Source, v.Label, desc))
	}
}

// Resolve returns the variables to emit for the given references: explicit
// declarations first, then each referenced name in order. Referenced names
// without a declaration become mutable strings. Names that are not valid
// identifiers are returned as unresolved. References inside the description
// of an emitted variable are resolved the same way.
func (d *Declarations) Resolve(refs []string) (*models.OrderedMap[*models.Variable], []string) {
	out := models.NewOrderedMap[*models.Variable]()
	queue := append([]string(nil), refs...)
	for _, v := range d.explicit.Values() {
		fv, more := d.finish(v)
		out.Add(v.Name, fv)
		queue = append(queue, more...)
	}

	var unresolved []string
	skipped := make(map[string]bool)
	for i := 0; i < len(queue); i++ {
		name := queue[i]
		if out.Has(name) || skipped[name] {
			continue
		}
		if !naming.IsIdentifier(name) {
			skipped[name] = true
			unresolved = append(unresolved, name)
			continue
		}
		if v, ok := d.candidates.Get(name); ok {
			fv, more := d.finish(v)
			out.Add(name, fv)
			queue = append(queue, more...)
			continue
		}
		out.Add(name, models.NewVariable(name, models.VariableMutable, models.TypeString, "", "", "Variable "+name))
	}
	return out, unresolved
}

// finish returns a copy of v with its description rewritten, and the names
// that description references.
func (d *Declarations) finish(v *models.Variable) (*models.Variable, []string) {
	c := *v
	c.Description = d.col.Rewrite(v.Description)
	return &c, scanner.References(c.Description)
}
