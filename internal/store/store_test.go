package store

import (
	"errors"
	"io"
	"path/filepath"
	"testing"
)

func TestWriterReaderRoundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stream")
	w, err := CreateWriter(path)
	if err != nil {
		t.Fatalf("CreateWriter: %v", err)
	}
	records := []Record{{Key: "b", Payload: "2"}, {Key: "a", Payload: "1"}}
	for _, r := range records {
		if err := w.Write(r); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}
	if err := w.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	r, err := OpenReader(path)
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer r.Close()
	for i, want := range records {
		got, err := r.Next()
		if err != nil {
			t.Fatalf("Next(%d): %v", i, err)
		}
		if got != want {
			t.Errorf("record %d: got %+v, want %+v", i, got, want)
		}
	}
	if _, err := r.Next(); !errors.Is(err, io.EOF) {
		t.Errorf("expected io.EOF once exhausted, got %v", err)
	}
}

func TestWriterAbortDiscardsTempFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "aborted")
	w, err := CreateWriter(path)
	if err != nil {
		t.Fatalf("CreateWriter: %v", err)
	}
	if err := w.Write(Record{Key: "x", Payload: "y"}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := w.Abort(); err != nil {
		t.Fatalf("Abort: %v", err)
	}
	if _, err := OpenReader(path); err == nil {
		t.Fatalf("Abort should leave no file at the destination path")
	}
}

func TestKeyedWriterReaderRoundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keyed")
	w, err := CreateKeyedWriter(path)
	if err != nil {
		t.Fatalf("CreateKeyedWriter: %v", err)
	}
	if err := w.Put(1, []byte("one")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := w.Put(2, []byte("two")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := w.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	r, err := OpenKeyedReader(path)
	if err != nil {
		t.Fatalf("OpenKeyedReader: %v", err)
	}
	defer r.Close()

	payload, ok, err := r.Get(1)
	if err != nil || !ok {
		t.Fatalf("Get(1): payload=%q ok=%v err=%v", payload, ok, err)
	}
	if string(payload) != "one" {
		t.Errorf("Get(1): got %q, want %q", payload, "one")
	}
	if !r.Has(2) {
		t.Errorf("Has(2) should be true")
	}
	if r.Has(3) {
		t.Errorf("Has(3) should be false")
	}
	if _, ok, err := r.Get(3); ok || err != nil {
		t.Errorf("Get of an unknown id should return ok=false, err=nil; got ok=%v err=%v", ok, err)
	}
	ids := r.IDs()
	if len(ids) != 2 {
		t.Errorf("IDs: got %v, want 2 entries", ids)
	}
}

func TestOpenKeyedReaderRejectsForeignFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notastore")
	w, err := CreateWriter(path)
	if err != nil {
		t.Fatalf("CreateWriter: %v", err)
	}
	if err := w.Write(Record{Key: "a", Payload: "b"}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := w.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if _, err := OpenKeyedReader(path); err == nil {
		t.Fatalf("OpenKeyedReader should reject a file lacking the keyed-store magic header")
	}
}

func TestExternalSortMultipleRuns(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	dst := filepath.Join(dir, "dst")

	w, err := CreateWriter(src)
	if err != nil {
		t.Fatalf("CreateWriter: %v", err)
	}
	unsorted := []string{"d", "b", "a", "c", "e", "a"}
	for i, key := range unsorted {
		if err := w.Write(Record{Key: key, Payload: payloadFor(i)}); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}
	if err := w.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	// RunSize of 2 forces generateRuns to produce several runs, exercising
	// the k-way merge rather than a single trivially-sorted run.
	if err := External(src, dst, SortOptions{RunSize: 2, TmpDir: dir}); err != nil {
		t.Fatalf("External: %v", err)
	}

	r, err := OpenReader(dst)
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer r.Close()
	var keys []string
	for {
		rec, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		keys = append(keys, rec.Key)
	}
	want := []string{"a", "a", "b", "c", "d", "e"}
	if len(keys) != len(want) {
		t.Fatalf("got %v, want %v", keys, want)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Errorf("keys[%d] = %q, want %q (full: %v)", i, keys[i], want[i], keys)
		}
	}
}

func payloadFor(i int) string {
	return string(rune('0' + i))
}
