// Package formtree models a form definition as a tree of field references
// and decodes both the flat page format and the nested layout format into it.
package formtree

import (
	"errors"
)

// Kind tags a tree node
type Kind string

const (
	KindField Kind = "field"
	KindGroup Kind = "group"
)

// Node is either a field reference or a group of child nodes
type Node struct {
	Kind       Kind    `json:"type"`
	Name       string  `json:"name,omitempty"`
	FieldKeyID uint    `json:"akID,omitempty"`
	Required   bool    `json:"required,omitempty"`
	NotifyFrom bool    `json:"sendNotificationFrom,omitempty"`
	Subject    bool    `json:"messageSubject,omitempty"`
	Children   []*Node `json:"children,omitempty"`
}

// IsField reports whether the node references a field key
func (n *Node) IsField() bool {
	return n.Kind == KindField
}

// Tree is the decoded definition of a form type. Each page is a group node.
type Tree struct {
	Pages []*Node `json:"pages"`
}

// FieldRef is a field reference in document order
type FieldRef struct {
	FieldKeyID uint
	Required   bool
	NotifyFrom bool
	Subject    bool
	Depth      int
	Page       int
}

// SkipChildren can be returned by a WalkFunc to skip the children of a group
var SkipChildren = errors.New("skip children")

// WalkFunc is called for every node in depth-first pre-order
type WalkFunc func(n *Node, depth int) error

// Walk visits every node of every page depth-first. Pages are at depth 0.
func (t *Tree) Walk(fn WalkFunc) error {
	for _, page := range t.Pages {
		if err := walk(page, 0, fn); err != nil {
			return err
		}
	}
	return nil
}

func walk(n *Node, depth int, fn WalkFunc) error {
	if n == nil {
		return nil
	}
	if err := fn(n, depth); err != nil {
		if errors.Is(err, SkipChildren) {
			return nil
		}
		return err
	}
	for _, child := range n.Children {
		if err := walk(child, depth+1, fn); err != nil {
			return err
		}
	}
	return nil
}

// Fields returns every field reference in document order, repeats included
func (t *Tree) Fields() []FieldRef {
	var refs []FieldRef
	for i, page := range t.Pages {
		_ = walk(page, 0, func(n *Node, depth int) error {
			if n.IsField() {
				refs = append(refs, FieldRef{
					FieldKeyID: n.FieldKeyID,
					Required:   n.Required,
					NotifyFrom: n.NotifyFrom,
					Subject:    n.Subject,
					Depth:      depth,
					Page:       i,
				})
			}
			return nil
		})
	}
	return refs
}

// UniqueFields merges repeated references to the same key, keeping the
// position of the first one. Flags of later references are OR-ed in.
func (t *Tree) UniqueFields() []FieldRef {
	var out []FieldRef
	index := make(map[uint]int)
	for _, ref := range t.Fields() {
		if i, ok := index[ref.FieldKeyID]; ok {
			out[i].Required = out[i].Required || ref.Required
			out[i].NotifyFrom = out[i].NotifyFrom || ref.NotifyFrom
			out[i].Subject = out[i].Subject || ref.Subject
			continue
		}
		index[ref.FieldKeyID] = len(out)
		out = append(out, ref)
	}
	return out
}

// FieldKeyIDs returns the distinct referenced key IDs in schema order
func (t *Tree) FieldKeyIDs() []uint {
	refs := t.UniqueFields()
	ids := make([]uint, 0, len(refs))
	for _, ref := range refs {
		ids = append(ids, ref.FieldKeyID)
	}
	return ids
}

// MaxDepth returns the depth of the deepest node
func (t *Tree) MaxDepth() int {
	deepest := 0
	_ = t.Walk(func(_ *Node, depth int) error {
		if depth > deepest {
			deepest = depth
		}
		return nil
	})
	return deepest
}
