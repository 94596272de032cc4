package pass

import (
	"encoding/gob"
	"fmt"
	"os"
)

// saveGob writes v to path as a single gob-encoded value, via a temp file
// plus atomic rename so a crash mid-write cannot corrupt a previously good
// checkpoint. Used for the handful of whole-table structures (symbol
// table, metadata table, path table) that later passes load wholesale
// rather than accessing by id through a store.KeyedReader.
func saveGob(path string, v interface{}) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("pass: creating %s: %w", tmp, err)
	}
	if err := gob.NewEncoder(f).Encode(v); err != nil {
		f.Close()
		return fmt.Errorf("pass: encoding %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// loadGob is saveGob's inverse.
func loadGob(path string, v interface{}) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("pass: opening %s: %w", path, err)
	}
	defer f.Close()
	if err := gob.NewDecoder(f).Decode(v); err != nil {
		return fmt.Errorf("pass: decoding %s: %w", path, err)
	}
	return nil
}
