package types

import (
	"encoding/json"
	"sort"
)

// Payload holds the diagram content of a document. The store preserves its
// top-level shape but does not interpret the contents of the arrays. The
// required array fields (Items, Views, Colors) must be non-nil for a payload
// to be considered schema-valid; Icons is always emptied before persistence
// because icon data dominates document size and is reconstituted from the
// caller's icon catalog on load.
//
// A nil slice means the field was absent or not an array in the source JSON.
// An empty, non-nil slice means the field was present as []. Validation
// relies on that distinction.
type Payload struct {
	Items  []json.RawMessage
	Views  []json.RawMessage
	Colors []json.RawMessage
	Icons  []json.RawMessage

	// Extra carries unrecognized top-level fields verbatim so that scalar
	// settings (titles, zoom state, format versions) survive a round trip.
	Extra map[string]json.RawMessage
}

// payload field names as they appear on the wire.
const (
	fieldItems  = "items"
	fieldViews  = "views"
	fieldColors = "colors"
	fieldIcons  = "icons"
)

// UnmarshalJSON decodes a payload, splitting known array fields from
// everything else. A known field that is present but not an array decodes
// to nil, which downstream validation treats the same as missing.
func (p *Payload) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*p = Payload{}
	for key, value := range raw {
		switch key {
		case fieldItems:
			p.Items = decodeArray(value)
		case fieldViews:
			p.Views = decodeArray(value)
		case fieldColors:
			p.Colors = decodeArray(value)
		case fieldIcons:
			p.Icons = decodeArray(value)
		default:
			if p.Extra == nil {
				p.Extra = make(map[string]json.RawMessage)
			}
			p.Extra[key] = value
		}
	}
	return nil
}

// MarshalJSON encodes the payload with the known arrays first and the extra
// fields in sorted order for deterministic output. Nil known arrays are
// emitted as [] so that a marshaled payload is always schema-valid on its
// required fields.
func (p Payload) MarshalJSON() ([]byte, error) {
	buf := []byte{'{'}

	appendField := func(name string, value []byte) {
		if len(buf) > 1 {
			buf = append(buf, ',')
		}
		key, _ := json.Marshal(name)
		buf = append(buf, key...)
		buf = append(buf, ':')
		buf = append(buf, value...)
	}

	for _, f := range []struct {
		name  string
		items []json.RawMessage
	}{
		{fieldItems, p.Items},
		{fieldViews, p.Views},
		{fieldColors, p.Colors},
		{fieldIcons, p.Icons},
	} {
		encoded, err := encodeArray(f.items)
		if err != nil {
			return nil, err
		}
		appendField(f.name, encoded)
	}

	extraKeys := make([]string, 0, len(p.Extra))
	for key := range p.Extra {
		extraKeys = append(extraKeys, key)
	}
	sort.Strings(extraKeys)
	for _, key := range extraKeys {
		appendField(key, p.Extra[key])
	}

	buf = append(buf, '}')
	return buf, nil
}

// HasRequiredArrays reports whether the required array fields were all
// present as arrays.
func (p Payload) HasRequiredArrays() bool {
	return p.Items != nil && p.Views != nil && p.Colors != nil
}

// StripIcons returns a copy of the payload with the icons array emptied.
func (p Payload) StripIcons() Payload {
	out := p.Clone()
	out.Icons = []json.RawMessage{}
	return out
}

// Clone returns a deep copy of the payload.
func (p Payload) Clone() Payload {
	out := Payload{
		Items:  cloneRawSlice(p.Items),
		Views:  cloneRawSlice(p.Views),
		Colors: cloneRawSlice(p.Colors),
		Icons:  cloneRawSlice(p.Icons),
	}
	if p.Extra != nil {
		out.Extra = make(map[string]json.RawMessage, len(p.Extra))
		for key, value := range p.Extra {
			out.Extra[key] = append(json.RawMessage(nil), value...)
		}
	}
	return out
}

// decodeArray parses value as a JSON array, returning nil when it is not one.
func decodeArray(value json.RawMessage) []json.RawMessage {
	var items []json.RawMessage
	if err := json.Unmarshal(value, &items); err != nil {
		return nil
	}
	if items == nil {
		// JSON null unmarshals to a nil slice without error.
		return nil
	}
	return items
}

// encodeArray marshals items, treating nil as an empty array.
func encodeArray(items []json.RawMessage) ([]byte, error) {
	if items == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(items)
}

func cloneRawSlice(items []json.RawMessage) []json.RawMessage {
	if items == nil {
		return nil
	}
	out := make([]json.RawMessage, len(items))
	for i, item := range items {
		out[i] = append(json.RawMessage(nil), item...)
	}
	return out
}
