package main

import (
	_ "embed"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed content/en.toml
var canonicalContentTOML []byte

// ContentNode is one value in a content tree. The concrete types are Leaf,
// List and Branch.
type ContentNode interface {
	contentNode()
}

// Leaf is a terminal display string.
type Leaf string

// List is an ordered sequence of display strings.
type List []string

// Branch maps keys to nested nodes. A whole content tree is a Branch.
type Branch map[string]ContentNode

func (Leaf) contentNode()   {}
func (List) contentNode()   {}
func (Branch) contentNode() {}

// LoadCanonicalContent parses the embedded source-language content tree.
func LoadCanonicalContent() (Branch, error) {
	return ParseContent(canonicalContentTOML)
}

// ParseContent decodes a TOML document into a content tree. Only strings,
// arrays of strings and tables are accepted.
func ParseContent(data []byte) (Branch, error) {
	var raw map[string]any
	if err := toml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidContent, err)
	}
	return branchFromMap(raw, "")
}

func branchFromMap(raw map[string]any, prefix string) (Branch, error) {
	out := make(Branch, len(raw))
	for key, value := range raw {
		path := joinPath(prefix, key)
		if strings.Contains(key, ".") {
			return nil, fmt.Errorf("%w: key %q contains a dot", ErrInvalidContent, path)
		}
		switch v := value.(type) {
		case string:
			out[key] = Leaf(v)
		case []any:
			list := make(List, 0, len(v))
			for i, item := range v {
				s, ok := item.(string)
				if !ok {
					return nil, fmt.Errorf("%w: %s.%d is %T, want string", ErrInvalidContent, path, i, item)
				}
				list = append(list, s)
			}
			out[key] = list
		case map[string]any:
			child, err := branchFromMap(v, path)
			if err != nil {
				return nil, err
			}
			out[key] = child
		default:
			return nil, fmt.Errorf("%w: %s is %T", ErrInvalidContent, path, value)
		}
	}
	return out, nil
}

// Lookup walks a dot-separated path. Numeric segments index into lists.
func (b Branch) Lookup(path string) (ContentNode, bool) {
	if path == "" {
		return nil, false
	}
	var node ContentNode = b
	for _, segment := range strings.Split(path, ".") {
		switch n := node.(type) {
		case Branch:
			next, ok := n[segment]
			if !ok {
				return nil, false
			}
			node = next
		case List:
			i, err := strconv.Atoi(segment)
			if err != nil || i < 0 || i >= len(n) {
				return nil, false
			}
			node = Leaf(n[i])
		default:
			return nil, false
		}
	}
	return node, true
}

// Resolve returns the leaf string at path, or path itself when the path is
// missing, does not end at a leaf, or the leaf is empty.
func (b Branch) Resolve(path string) string {
	node, ok := b.Lookup(path)
	if !ok {
		return path
	}
	if leaf, ok := node.(Leaf); ok && leaf != "" {
		return string(leaf)
	}
	return path
}

// Strings returns the list at path. A leaf yields a one-element slice.
func (b Branch) Strings(path string) []string {
	node, ok := b.Lookup(path)
	if !ok {
		return nil
	}
	switch n := node.(type) {
	case List:
		return append([]string(nil), n...)
	case Leaf:
		return []string{string(n)}
	}
	return nil
}

// Paths lists the dotted path of every leaf and list element, sorted.
func (b Branch) Paths() []string {
	var paths []string
	b.walk("", func(path, _ string) {
		paths = append(paths, path)
	})
	sort.Strings(paths)
	return paths
}

// Texts returns every leaf text in walk order: sorted keys, list order.
func (b Branch) Texts() []string {
	var texts []string
	b.walk("", func(_, text string) {
		texts = append(texts, text)
	})
	return texts
}

// walk visits leaves and list elements in deterministic order.
func (b Branch) walk(prefix string, visit func(path, text string)) {
	for _, key := range b.sortedKeys() {
		path := joinPath(prefix, key)
		switch n := b[key].(type) {
		case Leaf:
			visit(path, string(n))
		case List:
			for i, item := range n {
				visit(path+"."+strconv.Itoa(i), item)
			}
		case Branch:
			n.walk(path, visit)
		}
	}
}

// rebuild returns a tree shaped like b whose texts are taken, in walk
// order, from next.
func (b Branch) rebuild(next func() string) Branch {
	out := make(Branch, len(b))
	for _, key := range b.sortedKeys() {
		switch n := b[key].(type) {
		case Leaf:
			out[key] = Leaf(next())
		case List:
			list := make(List, len(n))
			for i := range n {
				list[i] = next()
			}
			out[key] = list
		case Branch:
			out[key] = n.rebuild(next)
		}
	}
	return out
}

func (b Branch) sortedKeys() []string {
	keys := make([]string, 0, len(b))
	for k := range b {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func joinPath(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}
