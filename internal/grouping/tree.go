// Package grouping builds nested groupings of flat record lists and computes
// per-group totals. Every function is pure: inputs are never mutated and the
// same input always yields the same output.
package grouping

// KeyFunc derives a grouping key from a record.
type KeyFunc[T any] func(T) string

// Node is one level of a grouping. Interior nodes hold ordered children;
// leaves hold records.
type Node[T any] struct {
	Key      string
	Children []*Node[T]
	Records  []T

	index map[string]int
}

// GroupBy nests records under one level per key function, in order. Children
// appear in first-encounter order. With no key functions the root is a leaf.
func GroupBy[T any](records []T, keys ...KeyFunc[T]) *Node[T] {
	root := &Node[T]{}
	for _, rec := range records {
		node := root
		for _, key := range keys {
			node = node.child(key(rec))
		}
		node.Records = append(node.Records, rec)
	}
	return root
}

func (n *Node[T]) child(key string) *Node[T] {
	if n.index == nil {
		n.index = make(map[string]int)
	}
	if i, ok := n.index[key]; ok {
		return n.Children[i]
	}
	c := &Node[T]{Key: key}
	n.index[key] = len(n.Children)
	n.Children = append(n.Children, c)
	return c
}

// Child returns the child with key, or nil.
func (n *Node[T]) Child(key string) *Node[T] {
	if n == nil {
		return nil
	}
	i, ok := n.index[key]
	if !ok {
		return nil
	}
	return n.Children[i]
}

// Lookup follows path from n, returning nil when any step is missing.
func (n *Node[T]) Lookup(path ...string) *Node[T] {
	node := n
	for _, key := range path {
		node = node.Child(key)
		if node == nil {
			return nil
		}
	}
	return node
}

// Keys lists the child keys in order.
func (n *Node[T]) Keys() []string {
	if n == nil {
		return nil
	}
	keys := make([]string, len(n.Children))
	for i, c := range n.Children {
		keys[i] = c.Key
	}
	return keys
}

// IsLeaf reports whether n holds records rather than children.
func (n *Node[T]) IsLeaf() bool {
	return n != nil && len(n.Children) == 0
}

// Count returns the number of records below n.
func (n *Node[T]) Count() int {
	if n == nil {
		return 0
	}
	total := len(n.Records)
	for _, c := range n.Children {
		total += c.Count()
	}
	return total
}

// Flatten returns the records below n in tree order.
func (n *Node[T]) Flatten() []T {
	out := make([]T, 0, n.Count())
	n.Walk(func(_ []string, leaf *Node[T]) {
		out = append(out, leaf.Records...)
	})
	return out
}

// Walk calls fn for every leaf with the key path leading to it.
func (n *Node[T]) Walk(fn func(path []string, leaf *Node[T])) {
	if n == nil {
		return
	}
	n.walk(nil, fn)
}

func (n *Node[T]) walk(path []string, fn func([]string, *Node[T])) {
	if len(n.Children) == 0 {
		fn(append([]string(nil), path...), n)
		return
	}
	for _, c := range n.Children {
		c.walk(append(path, c.Key), fn)
	}
}

// SortChildren reorders the immediate children of n by cmp.
func (n *Node[T]) SortChildren(cmp func(a, b string) int) {
	if n == nil || len(n.Children) < 2 {
		return
	}
	sortNodes(n.Children, cmp)
	for i, c := range n.Children {
		n.index[c.Key] = i
	}
}
