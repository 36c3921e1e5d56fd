package store

import (
	"fmt"
	"strings"
)

// ValidationError reports a caller-supplied entity that cannot be persisted.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

func (c Category) Validate() error {
	if strings.TrimSpace(c.ID) == "" {
		return invalid("id", "category id is required")
	}
	if strings.TrimSpace(c.Name) == "" {
		return invalid("name", "category name is required")
	}
	return nil
}

// Normalize trims the item and keeps only the fields its kind owns: blank
// steps and variables are dropped and variable names lose their braces.
func (it *Item) Normalize() {
	it.Label = strings.TrimSpace(it.Label)

	var variables []Variable
	for _, v := range it.Variables {
		name := StripBraces(v.Name)
		if name == "" {
			continue
		}
		variables = append(variables, Variable{Name: name, Placeholder: v.Placeholder})
	}
	var steps []string
	for _, step := range it.Steps {
		if strings.TrimSpace(step) == "" {
			continue
		}
		steps = append(steps, step)
	}

	// A variables item left without variables is a plain command.
	if it.Kind == KindVariables && len(variables) == 0 {
		it.Kind = KindSimple
	}

	switch it.Kind {
	case KindWorkflow:
		it.Body = ""
		it.Variables = nil
		it.Steps = steps
	case KindVariables, KindPrompt:
		it.Variables = variables
		it.Steps = nil
	default:
		it.Kind = KindSimple
		it.Variables = nil
		it.Steps = nil
	}
}

// Validate expects a normalized item.
func (it Item) Validate() error {
	if strings.TrimSpace(it.Label) == "" {
		return invalid("label", "item label is required")
	}
	switch it.Kind {
	case KindSimple, KindPrompt, KindWorkflow:
	case KindVariables:
		if len(it.Variables) == 0 {
			return invalid("variables", "a variables item needs at least one variable")
		}
		seen := map[string]struct{}{}
		for _, v := range it.Variables {
			if _, dup := seen[v.Name]; dup {
				return invalid("variables", "duplicate variable %q", v.Name)
			}
			seen[v.Name] = struct{}{}
		}
	default:
		return invalid("kind", "unknown item kind %q", it.Kind)
	}
	return nil
}

// Validate checks identity rules across the whole document: unique category
// ids, item lists keyed by existing categories and unique ids per list.
func (d AppDocument) Validate() error {
	seen := make(map[string]struct{}, len(d.Categories))
	for _, c := range d.Categories {
		if err := c.Validate(); err != nil {
			return err
		}
		if _, dup := seen[c.ID]; dup {
			return invalid("categories", "duplicate category id %q", c.ID)
		}
		seen[c.ID] = struct{}{}
	}
	for categoryID, items := range d.Commands {
		if _, ok := seen[categoryID]; !ok {
			return invalid("commands", "item list %q has no category", categoryID)
		}
		ids := make(map[string]struct{}, len(items))
		for _, item := range items {
			if strings.TrimSpace(item.ID) == "" {
				return invalid("id", "item id is required in category %q", categoryID)
			}
			if _, dup := ids[item.ID]; dup {
				return invalid("commands", "duplicate item id %q in category %q", item.ID, categoryID)
			}
			ids[item.ID] = struct{}{}
			if err := item.Validate(); err != nil {
				return err
			}
		}
	}
	return nil
}
