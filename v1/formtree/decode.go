package formtree

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/gov-dx-sandbox/attribute-forms/v1/models"
)

// Keys whose array value is spliced into the enclosing group instead of
// becoming a group of its own.
var structuralKeys = map[string]struct{}{
	"attributes": {},
	"fields":     {},
	"children":   {},
	"rows":       {},
	"columns":    {},
	"groups":     {},
}

const pagesKey = "formPages"

// Parse decodes a stored definition. Simple mode pages may only hold fields;
// layout mode accepts any nesting of arrays and objects.
func Parse(mode models.LayoutMode, data []byte) (*Tree, error) {
	if !mode.IsValid() {
		return nil, fmt.Errorf("%w: unknown layout mode %q", models.ErrInvalidDefinition, mode)
	}
	tree, err := decode(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrInvalidDefinition, err)
	}
	if mode == models.LayoutModeSimple {
		for i, page := range tree.Pages {
			for _, child := range page.Children {
				if !child.IsField() {
					return nil, fmt.Errorf("%w: page %d of a simple form may only contain fields", models.ErrInvalidDefinition, i+1)
				}
			}
		}
	}
	return tree, nil
}

// MustParse is Parse for definitions known to be valid
func MustParse(mode models.LayoutMode, data string) *Tree {
	tree, err := Parse(mode, []byte(data))
	if err != nil {
		panic(err)
	}
	return tree
}

func decode(data []byte) (*Tree, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return &Tree{}, nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if tok == nil {
		return &Tree{}, nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, errors.New("definition must be a JSON object")
	}

	tree := &Tree{}
	found := false
	for dec.More() {
		key, err := readKey(dec)
		if err != nil {
			return nil, err
		}
		if key != pagesKey {
			if err := skipValue(dec); err != nil {
				return nil, err
			}
			continue
		}
		found = true
		pages, err := decodePages(dec)
		if err != nil {
			return nil, err
		}
		tree.Pages = pages
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("missing %q", pagesKey)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.New("unexpected data after definition")
	}
	return tree, nil
}

func decodePages(dec *json.Decoder) ([]*Node, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if tok == nil {
		return nil, nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '[' {
		return nil, fmt.Errorf("%q must be an array", pagesKey)
	}

	var pages []*Node
	for dec.More() {
		node, _, err := decodeValue(dec)
		if err != nil {
			return nil, err
		}
		if node == nil {
			continue
		}
		if node.IsField() {
			node = &Node{Kind: KindGroup, Children: []*Node{node}}
		}
		pages = append(pages, node)
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return pages, nil
}

// decodeValue returns a node for arrays and objects, or the scalar otherwise
func decodeValue(dec *json.Decoder) (*Node, any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, nil, err
	}
	d, ok := tok.(json.Delim)
	if !ok {
		return nil, tok, nil
	}
	switch d {
	case '[':
		node, err := decodeArray(dec)
		return node, nil, err
	case '{':
		node, err := decodeObject(dec)
		return node, nil, err
	}
	return nil, nil, fmt.Errorf("unexpected delimiter %q", d)
}

func decodeArray(dec *json.Decoder) (*Node, error) {
	group := &Node{Kind: KindGroup}
	for dec.More() {
		child, _, err := decodeValue(dec)
		if err != nil {
			return nil, err
		}
		if child != nil {
			group.Children = append(group.Children, child)
		}
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return group, nil
}

func decodeObject(dec *json.Decoder) (*Node, error) {
	scalars := make(map[string]any)
	var children []*Node

	for dec.More() {
		key, err := readKey(dec)
		if err != nil {
			return nil, err
		}
		child, scalar, err := decodeValue(dec)
		if err != nil {
			return nil, err
		}
		if child == nil {
			scalars[key] = scalar
			continue
		}
		if _, structural := structuralKeys[key]; structural && child.Kind == KindGroup && child.Name == "" {
			children = append(children, child.Children...)
			continue
		}
		if child.Kind == KindGroup && child.Name == "" {
			child.Name = key
		}
		children = append(children, child)
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}

	if raw, ok := scalars["akID"]; ok {
		id, ok := toUint(raw)
		if !ok || id == 0 {
			return nil, fmt.Errorf("invalid akID %v", raw)
		}
		return &Node{
			Kind:       KindField,
			FieldKeyID: id,
			Required:   toBool(scalars["required"]),
			NotifyFrom: toBool(scalars["sendNotificationFrom"]),
			Subject:    toBool(scalars["messageSubject"]),
		}, nil
	}

	group := &Node{Kind: KindGroup, Children: children}
	if name, ok := scalars["name"].(string); ok {
		group.Name = name
	}
	return group, nil
}

func readKey(dec *json.Decoder) (string, error) {
	tok, err := dec.Token()
	if err != nil {
		return "", err
	}
	key, ok := tok.(string)
	if !ok {
		return "", fmt.Errorf("expected object key, got %v", tok)
	}
	return key, nil
}

func skipValue(dec *json.Decoder) error {
	var discard json.RawMessage
	return dec.Decode(&discard)
}

func toUint(v any) (uint, bool) {
	switch val := v.(type) {
	case json.Number:
		n, err := strconv.ParseUint(val.String(), 10, 64)
		return uint(n), err == nil
	case string:
		n, err := strconv.ParseUint(strings.TrimSpace(val), 10, 64)
		return uint(n), err == nil
	}
	return 0, false
}

func toBool(v any) bool {
	switch val := v.(type) {
	case bool:
		return val
	case json.Number:
		return val.String() != "0"
	case string:
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "1", "true", "yes", "on":
			return true
		}
	}
	return false
}
