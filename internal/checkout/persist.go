package checkout

import (
	"encoding/gob"
	"os"

	"gitlab.com/esr/cvs2svn/internal/model"
)

// recordSnapshot is the gob-serializable mirror of textRecord, letting
// Cache stand in for the original tool's three on-disk text databases
// (checkout_internal.py's _text_base, _delta_text, _checkout_db) as one
// file written by Collect and re-read, pruned, and re-written by
// FilterSymbols and Output.
type recordSnapshot struct {
	Kind     recordKind
	Item     uint64
	Base     uint64
	Reverse  bool
	Delta    string
	Fulltext string
	Refcount int
}

// Save gob-encodes every surviving record to path.
func (c *Cache) Save(path string) error {
	snaps := make([]recordSnapshot, 0, len(c.records))
	for _, r := range c.records {
		snaps = append(snaps, recordSnapshot{
			Kind:     r.kind,
			Item:     uint64(r.item),
			Base:     uint64(r.base),
			Reverse:  r.reverse,
			Delta:    r.delta,
			Fulltext: r.fulltext,
			Refcount: r.refcount,
		})
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := gob.NewEncoder(f).Encode(snaps); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Load rebuilds a Cache from a file written by Save.
func Load(path string) (*Cache, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var snaps []recordSnapshot
	if err := gob.NewDecoder(f).Decode(&snaps); err != nil {
		return nil, err
	}
	c := New()
	for _, s := range snaps {
		id := model.ItemID(s.Item)
		c.records[id] = &textRecord{
			kind:     s.Kind,
			item:     id,
			base:     model.ItemID(s.Base),
			reverse:  s.Reverse,
			delta:    s.Delta,
			fulltext: s.Fulltext,
			refcount: s.Refcount,
		}
	}
	return c, nil
}
