package export

import (
	"fmt"
	"strconv"

	"gopkg.in/yaml.v3"
)

// decoder walks a node tree. The first structural problem is kept and every
// later read becomes a no-op returning zero values.
type decoder struct {
	err error
}

func (d *decoder) fail(path, format string, args ...any) {
	if d.err == nil {
		d.err = &StructuralError{Path: path, Message: fmt.Sprintf(format, args...)}
	}
}

// object is a mapping node together with its path from the document root.
type object struct {
	d    *decoder
	node *yaml.Node
	path string
}

func resolve(n *yaml.Node) *yaml.Node {
	for n != nil && n.Kind == yaml.AliasNode {
		n = n.Alias
	}
	return n
}

func isNull(n *yaml.Node) bool {
	return n == nil || (n.Kind == yaml.ScalarNode && n.Tag == "!!null")
}

func kindName(n *yaml.Node) string {
	switch n.Kind {
	case yaml.MappingNode:
		return "an object"
	case yaml.SequenceNode:
		return "an array"
	case yaml.ScalarNode:
		return "a scalar"
	}
	return "an unknown node"
}

func childPath(parent, name string) string {
	if parent == "" {
		return name
	}
	return parent + "." + name
}

func indexPath(parent string, i int) string {
	return parent + "[" + strconv.Itoa(i) + "]"
}

// lookup returns the first non-null value among names, and the path of the
// key it was found under.
func (o object) lookup(names ...string) (*yaml.Node, string) {
	if o.d.err != nil || o.node == nil {
		return nil, ""
	}
	for _, name := range names {
		for i := 0; i+1 < len(o.node.Content); i += 2 {
			if o.node.Content[i].Value != name {
				continue
			}
			v := resolve(o.node.Content[i+1])
			if isNull(v) {
				break
			}
			return v, childPath(o.path, name)
		}
	}
	return nil, ""
}

func (o object) has(names ...string) bool {
	n, _ := o.lookup(names...)
	return n != nil
}

// str reads a scalar of any kind as text.
func (o object) str(names ...string) string {
	n, path := o.lookup(names...)
	if n == nil {
		return ""
	}
	if n.Kind != yaml.ScalarNode {
		o.d.fail(path, "expected a string, got %s", kindName(n))
		return ""
	}
	return n.Value
}

func (o object) boolean(names ...string) *bool {
	n, path := o.lookup(names...)
	if n == nil {
		return nil
	}
	if n.Kind != yaml.ScalarNode || n.Tag != "!!bool" {
		o.d.fail(path, "expected a boolean, got %s", kindName(n))
		return nil
	}
	var b bool
	if err := n.Decode(&b); err != nil {
		o.d.fail(path, "expected a boolean: %v", err)
		return nil
	}
	return &b
}

// value decodes any node into plain Go values.
func (o object) value(names ...string) any {
	n, path := o.lookup(names...)
	if n == nil {
		return nil
	}
	var v any
	if err := n.Decode(&v); err != nil {
		o.d.fail(path, "unreadable value: %v", err)
		return nil
	}
	return v
}

func (o object) sequence(names ...string) (*yaml.Node, string) {
	n, path := o.lookup(names...)
	if n == nil {
		return nil, ""
	}
	if n.Kind != yaml.SequenceNode {
		o.d.fail(path, "expected an array, got %s", kindName(n))
		return nil, ""
	}
	return n, path
}

func (o object) strs(names ...string) []string {
	n, path := o.sequence(names...)
	if n == nil {
		return nil
	}
	var out []string
	for i, item := range n.Content {
		item = resolve(item)
		if isNull(item) {
			continue
		}
		if item.Kind != yaml.ScalarNode {
			o.d.fail(indexPath(path, i), "expected a string, got %s", kindName(item))
			return nil
		}
		out = append(out, item.Value)
	}
	return out
}

// strOrStrs reads either a single string or an array of strings.
func (o object) strOrStrs(names ...string) []string {
	n, _ := o.lookup(names...)
	if n == nil {
		return nil
	}
	if n.Kind == yaml.ScalarNode {
		return []string{n.Value}
	}
	return o.strs(names...)
}

func (o object) obj(names ...string) (object, bool) {
	n, path := o.lookup(names...)
	if n == nil {
		return object{}, false
	}
	if n.Kind != yaml.MappingNode {
		o.d.fail(path, "expected an object, got %s", kindName(n))
		return object{}, false
	}
	return object{d: o.d, node: n, path: path}, true
}

func (o object) objs(names ...string) []object {
	n, path := o.sequence(names...)
	if n == nil {
		return nil
	}
	var out []object
	for i, item := range n.Content {
		item = resolve(item)
		p := indexPath(path, i)
		if item.Kind != yaml.MappingNode {
			o.d.fail(p, "expected an object, got %s", kindName(item))
			return nil
		}
		out = append(out, object{d: o.d, node: item, path: p})
	}
	return out
}

type entry struct {
	key string
	obj object
}

// entries reads an object whose values are objects, in document order.
func (o object) entries(names ...string) []entry {
	m, ok := o.obj(names...)
	if !ok {
		return nil
	}
	var out []entry
	for i := 0; i+1 < len(m.node.Content); i += 2 {
		key := m.node.Content[i].Value
		v := resolve(m.node.Content[i+1])
		p := childPath(m.path, key)
		if isNull(v) {
			out = append(out, entry{key: key, obj: object{d: o.d, path: p}})
			continue
		}
		if v.Kind != yaml.MappingNode {
			o.d.fail(p, "expected an object, got %s", kindName(v))
			return nil
		}
		out = append(out, entry{key: key, obj: object{d: o.d, node: v, path: p}})
	}
	return out
}
