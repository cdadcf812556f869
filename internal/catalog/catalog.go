// Package catalog holds the static menu tree the scripted conversation path
// walks. The tree is loaded once at startup and never mutated afterwards.
package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/bizowl/support-assistant/internal/core/errx"
)

// Node is one state of the scripted conversation: a message to show and the
// child options a visitor can pick next. A node with no options is terminal.
type Node struct {
	Message string

	options map[string]*Node
	keys    []string
}

// UnmarshalJSON decodes {"message": string, "options": {key: node}} while
// preserving the document order of option keys, which encoding/json's map
// decoding would lose.
func (n *Node) UnmarshalJSON(b []byte) error {
	dec := json.NewDecoder(bytes.NewReader(b))

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("menu node: expected object, got %v", tok)
	}

	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, _ := keyTok.(string)

		switch key {
		case "message":
			if err := dec.Decode(&n.Message); err != nil {
				return fmt.Errorf("menu node message: %w", err)
			}
		case "options":
			if err := n.decodeOptions(dec); err != nil {
				return err
			}
		default:
			var skip json.RawMessage
			if err := dec.Decode(&skip); err != nil {
				return err
			}
		}
	}

	_, err = dec.Token() // closing brace
	return err
}

func (n *Node) decodeOptions(dec *json.Decoder) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("menu node options: expected object, got %v", tok)
	}

	n.options = make(map[string]*Node)
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, _ := keyTok.(string)

		child := &Node{}
		if err := dec.Decode(child); err != nil {
			return fmt.Errorf("menu node option %q: %w", key, err)
		}
		n.options[key] = child
		n.keys = append(n.keys, key)
	}

	_, err = dec.Token() // closing brace
	return err
}

// Options returns the child option keys in document order.
func (n *Node) Options() []string {
	out := make([]string, len(n.keys))
	copy(out, n.keys)
	return out
}

// Child returns the child node for key, if any.
func (n *Node) Child(key string) (*Node, bool) {
	c, ok := n.options[key]
	return c, ok
}

// Terminal reports whether the node has no child options.
func (n *Node) Terminal() bool {
	return len(n.keys) == 0
}

// Tree is the menu catalog rooted at the greeting node.
type Tree struct {
	root *Node
}

// Parse loads a tree from a document shaped {"menu": {"greeting": <node>}}.
func Parse(data []byte) (*Tree, error) {
	var doc struct {
		Menu map[string]*Node `json:"menu"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, errx.DataLoad(err, "menu document malformed")
	}
	root, ok := doc.Menu["greeting"]
	if !ok {
		return nil, errx.DataLoad(fmt.Errorf("menu document has no greeting root"), "menu document malformed")
	}
	return &Tree{root: root}, nil
}

// Root returns the greeting node.
func (t *Tree) Root() *Node {
	return t.root
}

// Resolution is the outcome of resolving a navigation path.
type Resolution struct {
	// Node is the deepest node the path reached.
	Node *Node
	// Path is the prefix of the requested path that actually resolved.
	Path []string
	// Truncated is set when a step referenced a key absent from the tree.
	Truncated bool
}

// Resolve walks path from the root. A step whose key is absent from the
// current node stops the walk early: the deepest node still resolvable is
// returned rather than an error. Stale or malformed client paths therefore
// degrade to a shorter, valid path instead of failing the turn. An empty
// path resolves to the root.
func (t *Tree) Resolve(path []string) Resolution {
	cur := t.root
	walked := make([]string, 0, len(path))
	for _, key := range path {
		next, ok := cur.Child(key)
		if !ok {
			return Resolution{Node: cur, Path: walked, Truncated: true}
		}
		cur = next
		walked = append(walked, key)
	}
	return Resolution{Node: cur, Path: walked}
}
