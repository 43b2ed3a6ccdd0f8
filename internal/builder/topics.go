package builder

import (
	"fmt"
	"strings"

	"github.com/crmoraes/nga/internal/export"
	"github.com/crmoraes/nga/internal/models"
	"github.com/crmoraes/nga/internal/naming"
	"github.com/crmoraes/nga/internal/scanner"
	"github.com/crmoraes/nga/internal/typemap"
)

const defaultActionKind = "action"

// keySet detects two source names that sanitize to the same identifier.
type keySet struct {
	kind  CollisionKind
	first map[string]string
}

func newKeySet(kind CollisionKind) *keySet {
	return &keySet{kind: kind, first: make(map[string]string)}
}

func (k *keySet) claim(name, raw, path string) error {
	if prev, ok := k.first[name]; ok {
		return &CollisionError{Kind: k.kind, Name: name, First: prev, Second: raw, Path: path}
	}
	k.first[name] = raw
	return nil
}

// addRef adds ref to t. A reference of the same kind already holding the name
// wins; one of another kind is a collision.
func addRef(t *models.Topic, ref *models.ReasoningRef, raw, path string) error {
	if existing, ok := t.Reasoning.Get(ref.Name); ok {
		if existing.Kind != ref.Kind {
			return &CollisionError{Kind: CollisionAction, Name: ref.Name, First: existing.Name, Second: raw, Path: path}
		}
		return nil
	}
	t.Reasoning.Add(ref.Name, ref)
	return nil
}

func (st *build) vendorTopics(v *export.VendorExport) ([]*models.Topic, error) {
	var topics []*models.Topic
	keys := newKeySet(CollisionTopic)
	for i, p := range v.Plugins {
		if !p.IsTopic() {
			continue
		}
		path := fmt.Sprintf("plugins[%d]", i)
		raw := naming.FirstNonEmpty(p.LocalDevName, p.Name)
		key := naming.TopicKey(raw)
		if err := keys.claim(key, raw, path); err != nil {
			return nil, err
		}

		topic := models.NewTopic(key)
		topic.Label = naming.FirstNonEmpty(p.Label, naming.TitleCase(key))
		topic.Description = st.topicDescription(p.Description, p.Scope, naming.FirstNonEmpty(p.Label, p.Name, key))
		topic.Instructions = st.instructions(append([]string{p.Scope}, p.Instructions...)...)
		topic.CanEscalate = p.CanEscalate

		names := newKeySet(CollisionAction)
		for j, fn := range p.Functions {
			fpath := fmt.Sprintf("%s.functions[%d]", path, j)
			action := st.vendorAction(fn)
			if err := names.claim(action.Name, naming.FirstNonEmpty(fn.LocalDevName, fn.Name), fpath); err != nil {
				return nil, err
			}
			topic.Actions.Add(action.Name, action)
			topic.Reasoning.Add(action.Name, models.ActionRef(action))
		}
		topics = append(topics, topic)
	}
	return topics, nil
}

func (st *build) vendorAction(fn export.Function) *models.Action {
	name := naming.ActionName(naming.FirstNonEmpty(fn.LocalDevName, fn.Name))
	a := models.NewAction(name)
	a.Label = strings.TrimSpace(fn.Label)
	a.Description = st.col.Text(naming.CleanDescription(naming.FirstNonEmpty(fn.Description, fn.Label, name)))
	a.RequireConfirmation = fn.RequireUserConfirmation
	a.ShowProgress = fn.IncludeInProgressIndicator
	if strings.TrimSpace(fn.ProgressIndicatorMessage) != "" {
		a.ProgressMessage = st.col.Text(fn.ProgressIndicatorMessage)
	}
	if scanner.IsReadableSource(fn.Source) {
		a.Source = fn.Source
	}
	a.Target = naming.FirstNonEmpty(fn.InvocationTargetType, defaultActionKind) + "://" +
		naming.FirstNonEmpty(fn.InvocationTargetName, fn.InvocationTargetID, fn.Name, name)

	owner := naming.FirstNonEmpty(fn.LocalDevName, fn.Name, name)
	ownerLabel := naming.FirstNonEmpty(fn.Label, fn.Name, name)

	if fn.Input != nil {
		for _, prop := range fn.Input.Properties {
			typ := st.types.Resolve(descriptor(prop))
			st.decls.declareInput(naming.VariableName(prop.Key), typ, prop.Title, prop.Description)

			if prop.IsUserInput != nil && !*prop.IsUserInput {
				continue
			}
			pname := naming.StripParamPrefix(prop.Key)
			required := fn.Input.IsRequired(prop.Key) || fn.Input.IsRequired(pname)
			a.Inputs.Add(pname, &models.ParamDef{
				Name:            pname,
				Type:            typ,
				ConstValue:      firstValue(prop.Const, prop.Default),
				Label:           naming.FirstNonEmpty(prop.Title, pname),
				Description:     st.col.Text(naming.FirstNonEmpty(prop.Description, prop.Title)),
				IsRequired:      required,
				IsUserInput:     boolOr(prop.IsUserInput, required),
				ComplexTypeName: st.types.ComplexTypeName(typ, hint(prop)),
			})
		}
	}
	if fn.Output != nil {
		for _, prop := range fn.Output.Properties {
			typ := st.types.Resolve(descriptor(prop))
			st.decls.declareOutput(naming.VariableName(prop.Key), typ, prop.Title, prop.Description,
				models.ActionOutputSourcePrefix+owner+"."+prop.Key, ownerLabel)

			pname := naming.StripParamPrefix(prop.Key)
			a.Outputs.Add(pname, &models.ParamDef{
				Name:            pname,
				Type:            typ,
				Label:           naming.FirstNonEmpty(prop.Title, pname),
				Description:     st.col.Text(naming.FirstNonEmpty(prop.Description, prop.Title)),
				IsDisplayable:   boolOr(prop.IsDisplayable, false),
				IsUsedByPlanner: boolOr(prop.IsUsedByPlanner, true),
				ComplexTypeName: st.types.ComplexTypeName(typ, hint(prop)),
			})
		}
	}
	return a
}

func hint(p export.Property) string {
	return naming.FirstNonEmpty(p.LightningType, p.ComplexDataTypeName)
}

func descriptor(p export.Property) typemap.Descriptor {
	d := typemap.Descriptor{Type: p.Type, Hint: hint(p)}
	if p.Items != nil {
		items := descriptor(*p.Items)
		d.Items = &items
	}
	return d
}

func (st *build) simplifiedTopics(s *export.SimplifiedExport) ([]*models.Topic, error) {
	var topics []*models.Topic
	keys := newKeySet(CollisionTopic)
	for i, t := range s.Topics {
		path := fmt.Sprintf("topics[%d]", i)
		raw := naming.FirstNonEmpty(t.Name, t.ID)
		key := naming.TopicKey(raw)
		if err := keys.claim(key, raw, path); err != nil {
			return nil, err
		}

		topic := models.NewTopic(key)
		topic.Label = naming.FirstNonEmpty(t.Label, naming.TitleCase(key))
		topic.Description = st.topicDescription(t.Description, t.Scope, naming.FirstNonEmpty(t.Label, raw, key))
		body := t.Instructions
		if len(body) == 0 && t.Reasoning != "" {
			body = []string{t.Reasoning}
		}
		topic.Instructions = st.instructions(append([]string{t.Scope}, body...)...)
		topic.CanEscalate = t.CanEscalate

		names := newKeySet(CollisionAction)
		for j, sa := range t.Actions {
			apath := fmt.Sprintf("%s.actions[%d]", path, j)
			araw := naming.FirstNonEmpty(sa.Name, sa.ID)
			kind := strings.ToLower(strings.TrimSpace(sa.Type))
			switch {
			case kind == "escalate":
				topic.CanEscalate = true
			case kind == "transition" || sa.Target != "":
				ref := models.TransitionRef(naming.TopicKey(naming.FirstNonEmpty(sa.Target, sa.Name, sa.ID)))
				if desc := naming.CleanDescription(sa.Description); desc != "" {
					ref.Description = st.col.Text(desc)
				}
				if err := addRef(topic, ref, araw, apath); err != nil {
					return nil, err
				}
			default:
				action := st.simpleAction(sa)
				if err := names.claim(action.Name, araw, apath); err != nil {
					return nil, err
				}
				topic.Actions.Add(action.Name, action)
				if err := addRef(topic, models.ActionRef(action), araw, apath); err != nil {
					return nil, err
				}
			}
		}
		topics = append(topics, topic)
	}
	return topics, nil
}

func (st *build) simpleAction(sa export.SimpleAction) *models.Action {
	name := naming.ActionName(naming.FirstNonEmpty(sa.Name, sa.ID))
	a := models.NewAction(name)
	a.Label = strings.TrimSpace(sa.Label)
	a.Description = st.col.Text(naming.CleanDescription(naming.FirstNonEmpty(sa.Description, sa.Label, name)))
	a.RequireConfirmation = sa.RequireUserConfirmation
	a.ShowProgress = sa.IncludeInProgressIndicator
	if strings.TrimSpace(sa.ProgressIndicatorMessage) != "" {
		a.ProgressMessage = st.col.Text(sa.ProgressIndicatorMessage)
	}
	if scanner.IsReadableSource(sa.Source) {
		a.Source = sa.Source
	}
	target := naming.FirstNonEmpty(sa.InvocationTarget, sa.TargetName)
	if strings.Contains(target, "://") {
		a.Target = target
	} else {
		a.Target = naming.FirstNonEmpty(sa.Type, defaultActionKind) + "://" + naming.FirstNonEmpty(target, name)
	}

	for _, p := range sa.Inputs {
		typ := st.types.Normalize(naming.FirstNonEmpty(p.Type, string(models.TypeString)))
		st.decls.declareInput(naming.VariableName(p.Key), typ, p.Label, p.Description)

		if p.IsUserInput != nil && !*p.IsUserInput {
			continue
		}
		a.Inputs.Add(p.Key, &models.ParamDef{
			Name:            p.Key,
			Type:            typ,
			ConstValue:      p.Default,
			Label:           naming.FirstNonEmpty(p.Label, p.Key),
			Description:     st.col.Text(p.Description),
			IsRequired:      p.Required,
			IsUserInput:     boolOr(p.IsUserInput, p.Required),
			ComplexTypeName: st.types.ComplexTypeName(typ, p.ComplexType),
		})
	}
	for _, p := range sa.Outputs {
		typ := st.types.Normalize(naming.FirstNonEmpty(p.Type, string(models.TypeString)))
		st.decls.declareOutput(naming.VariableName(p.Key), typ, p.Label, p.Description,
			models.ActionOutputSourcePrefix+name+"."+p.Key, naming.FirstNonEmpty(sa.Label, name))

		a.Outputs.Add(p.Key, &models.ParamDef{
			Name:            p.Key,
			Type:            typ,
			Label:           naming.FirstNonEmpty(p.Label, p.Key),
			Description:     st.col.Text(p.Description),
			IsDisplayable:   boolOr(p.IsDisplayable, false),
			IsUsedByPlanner: boolOr(p.IsUsedByPlanner, true),
			ComplexTypeName: st.types.ComplexTypeName(typ, p.ComplexType),
		})
	}
	return a
}
