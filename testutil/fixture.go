// Package testutil provides the shared test fixture: a store over an
// in-memory backend seeded with a small universe of diagrams, plus a
// wrapper backend that injects failures.
package testutil

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/flowkit/diagramstore/diagramstore"
	"github.com/flowkit/diagramstore/diagramstore/backend"
	"github.com/flowkit/diagramstore/types"
)

// Universe gives typed access to the seeded documents.
type Universe struct {
	Checkout types.Document // Simple flow, two items
	Network  types.Document // Has icons that persistence must strip
	Empty    types.Document // All arrays empty
	ByID     map[string]types.Document
}

// NewStore creates a store over a fresh unlimited memory backend.
func NewStore(t *testing.T, opts ...diagramstore.Option) (diagramstore.Store, *backend.Memory) {
	t.Helper()

	mem := backend.NewMemory()
	store, err := diagramstore.New(mem, opts...)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store, mem
}

// LoadUniverse creates a store and seeds it with the fixture diagrams.
func LoadUniverse(t *testing.T, opts ...diagramstore.Option) (diagramstore.Store, *Universe, *backend.Memory) {
	t.Helper()

	store, mem := NewStore(t, opts...)
	universe := &Universe{ByID: make(map[string]types.Document)}

	seed := func(target *types.Document, doc types.Document) {
		stored, err := store.Save(doc)
		if err != nil {
			t.Fatalf("failed to seed %q: %v", doc.Name, err)
		}
		*target = stored
		universe.ByID[stored.ID] = stored
	}

	seed(&universe.Checkout, Diagram("Checkout Flow",
		WithItems(`{"id":"cart","label":"Cart"}`, `{"id":"pay","label":"Payment"}`)))
	seed(&universe.Network, Diagram("Network Topology",
		WithItems(`{"id":"router"}`),
		WithIcons(`{"id":"isoflow-router","collection":"networking"}`)))
	seed(&universe.Empty, Diagram("Empty Canvas"))

	return store, universe, mem
}

// DiagramOption mutates a fixture document under construction.
type DiagramOption func(*types.Document)

// Diagram builds a schema-valid document with the given name.
func Diagram(name string, opts ...DiagramOption) types.Document {
	doc := types.Document{
		Name: name,
		Payload: types.Payload{
			Items:  []json.RawMessage{},
			Views:  []json.RawMessage{},
			Colors: []json.RawMessage{},
			Icons:  []json.RawMessage{},
		},
	}
	for _, opt := range opts {
		opt(&doc)
	}
	return doc
}

// WithID sets a fixed document ID.
func WithID(id string) DiagramOption {
	return func(d *types.Document) { d.ID = id }
}

// WithItems appends raw JSON item entries to the payload.
func WithItems(items ...string) DiagramOption {
	return func(d *types.Document) {
		for _, item := range items {
			d.Payload.Items = append(d.Payload.Items, json.RawMessage(item))
		}
	}
}

// WithViews appends raw JSON view entries to the payload.
func WithViews(views ...string) DiagramOption {
	return func(d *types.Document) {
		for _, view := range views {
			d.Payload.Views = append(d.Payload.Views, json.RawMessage(view))
		}
	}
}

// WithColors appends raw JSON color entries to the payload.
func WithColors(colors ...string) DiagramOption {
	return func(d *types.Document) {
		for _, color := range colors {
			d.Payload.Colors = append(d.Payload.Colors, json.RawMessage(color))
		}
	}
}

// WithIcons appends raw JSON icon entries to the payload.
func WithIcons(icons ...string) DiagramOption {
	return func(d *types.Document) {
		for _, icon := range icons {
			d.Payload.Icons = append(d.Payload.Icons, json.RawMessage(icon))
		}
	}
}

// Invalid strips a required payload array so the document fails validation.
func Invalid(field string) DiagramOption {
	return func(d *types.Document) {
		switch field {
		case "items":
			d.Payload.Items = nil
		case "views":
			d.Payload.Views = nil
		case "colors":
			d.Payload.Colors = nil
		case "name":
			d.Name = ""
		case "id":
			d.ID = ""
		default:
			panic(fmt.Sprintf("unknown field %q", field))
		}
	}
}
