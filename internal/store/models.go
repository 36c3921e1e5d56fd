package store

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Kind is the closed set of item variants.
type Kind string

const (
	KindSimple    Kind = "simple"
	KindVariables Kind = "variables"
	KindWorkflow  Kind = "workflow"
	KindPrompt    Kind = "prompt"
)

func ParseKind(value string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(value))) {
	case KindSimple, "":
		return KindSimple, nil
	case KindVariables:
		return KindVariables, nil
	case KindWorkflow:
		return KindWorkflow, nil
	case KindPrompt:
		return KindPrompt, nil
	default:
		return "", fmt.Errorf("unknown item kind %q", value)
	}
}

// Wire values of the item "type" field.
const (
	wireTypeCommand  = "command"
	wireTypeWorkflow = "workflow"
	wireTypePrompt   = "prompt"
)

type Variable struct {
	Name        string `json:"name"`
	Placeholder string `json:"placeholder"`
}

type Category struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Icon  string `json:"icon"`
	Order *int   `json:"order,omitempty"`
}

func (c *Category) OrderValue() (int, bool) {
	if c.Order == nil {
		return 0, false
	}
	return *c.Order, true
}

func (c *Category) SetOrder(order int) {
	c.Order = &order
}

// Item is a stored command, workflow or prompt. Body is unused for workflows.
type Item struct {
	ID         string
	Label      string
	Kind       Kind
	Body       string
	Variables  []Variable
	Steps      []string
	IsFavorite bool
	Order      *int
}

func (it *Item) OrderValue() (int, bool) {
	if it.Order == nil {
		return 0, false
	}
	return *it.Order, true
}

func (it *Item) SetOrder(order int) {
	it.Order = &order
}

// Clone returns a deep copy that shares no slices or pointers with it.
func (it Item) Clone() Item {
	out := it
	if it.Variables != nil {
		out.Variables = append([]Variable(nil), it.Variables...)
	}
	if it.Steps != nil {
		out.Steps = append([]string(nil), it.Steps...)
	}
	if it.Order != nil {
		order := *it.Order
		out.Order = &order
	}
	return out
}

type itemWire struct {
	ID         string            `json:"id"`
	Label      string            `json:"label"`
	Command    string            `json:"command"`
	Type       string            `json:"type"`
	IsFavorite bool              `json:"isFavorite"`
	Variables  []json.RawMessage `json:"variables,omitempty"`
	Steps      []string          `json:"steps,omitempty"`
	Order      *int              `json:"order,omitempty"`
}

// MarshalJSON writes the original launchpad wire shape: a "type" of
// command/workflow/prompt, with Variables inferred from a non-empty list.
func (it Item) MarshalJSON() ([]byte, error) {
	out := struct {
		ID         string   `json:"id"`
		Label      string   `json:"label"`
		Command    string   `json:"command"`
		Type       string   `json:"type"`
		IsFavorite bool     `json:"isFavorite"`
		Variables  any      `json:"variables,omitempty"`
		Steps      []string `json:"steps,omitempty"`
		Order      *int     `json:"order,omitempty"`
	}{
		ID:         it.ID,
		Label:      it.Label,
		Command:    it.Body,
		IsFavorite: it.IsFavorite,
		Order:      it.Order,
	}

	switch it.Kind {
	case KindWorkflow:
		out.Type = wireTypeWorkflow
		out.Steps = it.Steps
	case KindPrompt:
		out.Type = wireTypePrompt
		if len(it.Variables) > 0 {
			names := make([]string, 0, len(it.Variables))
			for _, v := range it.Variables {
				names = append(names, "{"+v.Name+"}")
			}
			out.Variables = names
		}
	case KindVariables:
		out.Type = wireTypeCommand
		if len(it.Variables) > 0 {
			out.Variables = it.Variables
		}
	default:
		out.Type = wireTypeCommand
	}
	return json.Marshal(out)
}

func (it *Item) UnmarshalJSON(data []byte) error {
	var wire itemWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}

	variables := make([]Variable, 0, len(wire.Variables))
	for _, raw := range wire.Variables {
		v, err := decodeVariable(raw)
		if err != nil {
			return fmt.Errorf("item %s: %w", wire.ID, err)
		}
		variables = append(variables, v)
	}

	*it = Item{
		ID:         wire.ID,
		Label:      wire.Label,
		Body:       wire.Command,
		IsFavorite: wire.IsFavorite,
		Order:      wire.Order,
	}

	switch strings.ToLower(strings.TrimSpace(wire.Type)) {
	case wireTypeWorkflow:
		it.Kind = KindWorkflow
		it.Steps = wire.Steps
	case wireTypePrompt:
		it.Kind = KindPrompt
		if len(variables) > 0 {
			it.Variables = variables
		}
	case wireTypeCommand, "":
		if len(variables) > 0 {
			it.Kind = KindVariables
			it.Variables = variables
		} else {
			it.Kind = KindSimple
		}
	default:
		return fmt.Errorf("item %s: unknown type %q", wire.ID, wire.Type)
	}
	return nil
}

// decodeVariable accepts both {"name","placeholder"} objects and the prompt
// editor's "{name}" strings.
func decodeVariable(raw json.RawMessage) (Variable, error) {
	var name string
	if err := json.Unmarshal(raw, &name); err == nil {
		return Variable{Name: StripBraces(name)}, nil
	}
	var v Variable
	if err := json.Unmarshal(raw, &v); err != nil {
		return Variable{}, fmt.Errorf("decode variable: %w", err)
	}
	return v, nil
}

// StripBraces removes every brace so a name can be wrapped as {name}.
func StripBraces(name string) string {
	return strings.TrimSpace(strings.NewReplacer("{", "", "}", "").Replace(name))
}

// AppDocument is the unit of persistence.
type AppDocument struct {
	Categories []Category        `json:"categories"`
	Commands   map[string][]Item `json:"commands"`
}

func NewDocument() AppDocument {
	return AppDocument{
		Categories: []Category{},
		Commands:   map[string][]Item{},
	}
}

func (d *AppDocument) UnmarshalJSON(data []byte) error {
	type plain AppDocument
	var decoded plain
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}
	*d = AppDocument(decoded)
	if d.Categories == nil {
		d.Categories = []Category{}
	}
	if d.Commands == nil {
		d.Commands = map[string][]Item{}
	}
	return nil
}

// Clone deep-copies the document.
func (d AppDocument) Clone() AppDocument {
	out := AppDocument{
		Categories: make([]Category, len(d.Categories)),
		Commands:   make(map[string][]Item, len(d.Commands)),
	}
	for i, c := range d.Categories {
		out.Categories[i] = c
		if c.Order != nil {
			out.Categories[i].SetOrder(*c.Order)
		}
	}
	for id, items := range d.Commands {
		copied := make([]Item, len(items))
		for i, item := range items {
			copied[i] = item.Clone()
		}
		out.Commands[id] = copied
	}
	return out
}

func (d AppDocument) CategoryIndex(id string) int {
	for i, c := range d.Categories {
		if c.ID == id {
			return i
		}
	}
	return -1
}

func ItemIndex(items []Item, id string) int {
	for i, item := range items {
		if item.ID == id {
			return i
		}
	}
	return -1
}
