package model

import (
	"bytes"
	"encoding/gob"
	"fmt"
)

// EncodeItem serializes it for storage in a store.KeyedWriter. gob is used
// here, not a pack library: nothing in the retrieval pack exercises a
// third-party struct-serialization format, and gob is the standard-library
// tool built for exactly this (self-describing Go struct encoding) with no
// schema file to keep in sync.
func EncodeItem(it *Item) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(it); err != nil {
		return nil, fmt.Errorf("model: encoding item %d: %w", it.ID, err)
	}
	return buf.Bytes(), nil
}

// DecodeItem is EncodeItem's inverse.
func DecodeItem(data []byte) (*Item, error) {
	var it Item
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&it); err != nil {
		return nil, fmt.Errorf("model: decoding item: %w", err)
	}
	return &it, nil
}

// EncodeChangeset serializes c for storage in a store.KeyedWriter.
func EncodeChangeset(c *Changeset) ([]byte, error) {
	members := c.Items()
	gc := gobChangeset{
		ID:          c.ID,
		Kind:        c.Kind,
		Symbol:      c.Symbol,
		Members:     members,
		Predecessor: c.Predecessor,
		Successor:   c.Successor,
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(gc); err != nil {
		return nil, fmt.Errorf("model: encoding changeset %d: %w", c.ID, err)
	}
	return buf.Bytes(), nil
}

// DecodeChangeset is EncodeChangeset's inverse.
func DecodeChangeset(data []byte) (*Changeset, error) {
	var gc gobChangeset
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&gc); err != nil {
		return nil, fmt.Errorf("model: decoding changeset: %w", err)
	}
	c := NewChangeset(gc.ID, gc.Kind, gc.Symbol, gc.Members...)
	c.Predecessor = gc.Predecessor
	c.Successor = gc.Successor
	return c, nil
}

// gobChangeset is Changeset's wire shape: Changeset itself holds an
// *setutil.OrderedSet, which gob cannot encode directly (unexported
// fields), so it is flattened to a plain member slice for encoding.
type gobChangeset struct {
	ID          ChangesetID
	Kind        ChangesetKind
	Symbol      SymbolID
	Members     []ItemID
	Predecessor ChangesetID
	Successor   ChangesetID
}
