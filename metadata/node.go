package metadata

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/arloliu/czi/errs"
)

// Attribute is a name/value pair of an element.
type Attribute struct {
	Name  string
	Value string
}

// Node is an element of a metadata tree. Attributes and children keep their
// insertion order.
type Node struct {
	name     string
	value    string
	attrs    []Attribute
	children []*Node
}

func newNode(name string) *Node {
	return &Node{name: name}
}

// Name returns the element name.
func (n *Node) Name() string { return n.name }

// Value returns the text content of the element.
func (n *Node) Value() string { return n.value }

// Children returns the child elements in document order.
func (n *Node) Children() []*Node { return n.children }

// Attributes returns the attributes in document order.
func (n *Node) Attributes() []Attribute { return n.attrs }

// SetValue sets the text content.
func (n *Node) SetValue(v string) { n.value = v }

// SetValueInt sets the text content to the decimal form of v.
func (n *Node) SetValueInt(v int64) { n.value = strconv.FormatInt(v, 10) }

// SetValueFloat sets the text content to the shortest form of v.
func (n *Node) SetValueFloat(v float64) { n.value = strconv.FormatFloat(v, 'g', -1, 64) }

// SetValueBool sets the text content to "true" or "false".
func (n *Node) SetValueBool(v bool) { n.value = strconv.FormatBool(v) }

// ValueInt parses the text content as an integer.
func (n *Node) ValueInt() (int64, error) {
	return strconv.ParseInt(strings.TrimSpace(n.value), 10, 64)
}

// ValueFloat parses the text content as a float.
func (n *Node) ValueFloat() (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(n.value), 64)
}

// Attribute returns the value of the named attribute.
func (n *Node) Attribute(name string) (string, bool) {
	for _, a := range n.attrs {
		if a.Name == name {
			return a.Value, true
		}
	}

	return "", false
}

// SetAttribute adds the attribute or overwrites its value.
func (n *Node) SetAttribute(name, value string) {
	for i := range n.attrs {
		if n.attrs[i].Name == name {
			n.attrs[i].Value = value
			return
		}
	}
	n.attrs = append(n.attrs, Attribute{Name: name, Value: value})
}

// RemoveChildren deletes all child elements.
func (n *Node) RemoveChildren() { n.children = nil }

// AppendChildNode adds a new child element with the given name, even if a
// child with that name exists.
func (n *Node) AppendChildNode(name string) *Node {
	c := newNode(name)
	n.children = append(n.children, c)

	return c
}

// GetChildNode follows path from n and returns the addressed node.
//
// A path is a list of element names separated by '/'. An element may carry
// attribute conditions, e.g. "Channels/Channel[Id=Channel:0,Name=DAPI]";
// a child matches when it has every listed attribute with the listed value.
//
// Returns:
//   - *Node: The node, nil if the path does not exist
//   - error: ErrMetadataPath if the path is malformed
func (n *Node) GetChildNode(path string) (*Node, error) {
	steps, err := parsePath(path)
	if err != nil {
		return nil, err
	}

	cur := n
	for _, s := range steps {
		cur = cur.findChild(s)
		if cur == nil {
			return nil, nil
		}
	}

	return cur, nil
}

// GetOrCreateChildNode follows path from n, creating the missing elements.
// Attribute conditions of a created element become its attributes.
//
// Returns:
//   - *Node: The addressed node
//   - error: ErrMetadataPath if the path is malformed
func (n *Node) GetOrCreateChildNode(path string) (*Node, error) {
	steps, err := parsePath(path)
	if err != nil {
		return nil, err
	}

	cur := n
	for _, s := range steps {
		next := cur.findChild(s)
		if next == nil {
			next = cur.AppendChildNode(s.name)
			next.attrs = append(next.attrs, s.attrs...)
		}
		cur = next
	}

	return cur, nil
}

// EnumChildren calls fn for every child until fn returns false.
func (n *Node) EnumChildren(fn func(c *Node) bool) {
	for _, c := range n.children {
		if !fn(c) {
			return
		}
	}
}

func (n *Node) findChild(s pathStep) *Node {
	for _, c := range n.children {
		if c.name != s.name {
			continue
		}
		if matchesAttrs(c, s.attrs) {
			return c
		}
	}

	return nil
}

func matchesAttrs(n *Node, want []Attribute) bool {
	for _, a := range want {
		v, ok := n.Attribute(a.Name)
		if !ok || v != a.Value {
			return false
		}
	}

	return true
}

type pathStep struct {
	name  string
	attrs []Attribute
}

func parsePath(path string) ([]pathStep, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: empty path", errs.ErrMetadataPath)
	}

	var steps []pathStep
	start, depth := 0, 0
	for i := 0; i <= len(path); i++ {
		if i < len(path) {
			switch path[i] {
			case '[':
				depth++
				continue
			case ']':
				depth--
				continue
			case '/':
				if depth > 0 {
					continue
				}
			default:
				continue
			}
		}

		step, err := parseStep(path[start:i])
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %w", errs.ErrMetadataPath, path, err)
		}
		steps = append(steps, step)
		start = i + 1
	}

	return steps, nil
}

func parseStep(s string) (pathStep, error) {
	open := strings.IndexByte(s, '[')
	if open < 0 {
		if s == "" || strings.ContainsAny(s, "]=,") {
			return pathStep{}, fmt.Errorf("invalid element %q", s)
		}

		return pathStep{name: s}, nil
	}

	name := s[:open]
	if name == "" {
		return pathStep{}, fmt.Errorf("element name missing in %q", s)
	}
	if !strings.HasSuffix(s, "]") || strings.Count(s, "[") != 1 || strings.Count(s, "]") != 1 {
		return pathStep{}, fmt.Errorf("unbalanced brackets in %q", s)
	}

	step := pathStep{name: name}
	for _, kv := range strings.Split(s[open+1:len(s)-1], ",") {
		k, v, ok := strings.Cut(kv, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return pathStep{}, fmt.Errorf("invalid attribute condition %q", kv)
		}
		step.attrs = append(step.attrs, Attribute{Name: k, Value: v})
	}

	return step, nil
}
