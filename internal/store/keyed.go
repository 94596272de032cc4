package store

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

// magic identifies a keyed-store file, guarding against passes
// accidentally reading a different pass's output file.
var magic = [4]byte{'c', 'v', '2', 's'}

const schemaVersion = 1

// KeyedWriter writes a sequence of (id, payload) records plus a trailing
// offset index, so a KeyedReader opened later can seek directly to any id
// without scanning — the item and changeset stores SPEC_FULL.md's
// InitializeChangesets section calls for ("changeset store indexed by id").
type KeyedWriter struct {
	f       *os.File
	w       *bufio.Writer
	offset  int64
	offsets map[uint64]int64
	tmp     string
	dst     string
}

// CreateKeyedWriter opens path.tmp for writing.
func CreateKeyedWriter(path string) (*KeyedWriter, error) {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return nil, fmt.Errorf("store: creating %s: %w", tmp, err)
	}
	w := bufio.NewWriter(f)
	if _, err := w.Write(magic[:]); err != nil {
		return nil, err
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(schemaVersion)); err != nil {
		return nil, err
	}
	return &KeyedWriter{f: f, w: w, offset: 8, offsets: make(map[uint64]int64), tmp: tmp, dst: path}, nil
}

// Put appends payload keyed by id.
func (w *KeyedWriter) Put(id uint64, payload []byte) error {
	w.offsets[id] = w.offset
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(payload)))
	if _, err := w.w.Write(lenBuf[:]); err != nil {
		return err
	}
	if _, err := w.w.Write(payload); err != nil {
		return err
	}
	w.offset += int64(len(lenBuf)) + int64(len(payload))
	return nil
}

// Commit writes the trailing index and atomically renames the file into
// place.
func (w *KeyedWriter) Commit() error {
	indexStart := w.offset
	if err := binary.Write(w.w, binary.LittleEndian, uint32(len(w.offsets))); err != nil {
		return err
	}
	for id, off := range w.offsets {
		if err := binary.Write(w.w, binary.LittleEndian, id); err != nil {
			return err
		}
		if err := binary.Write(w.w, binary.LittleEndian, uint64(off)); err != nil {
			return err
		}
	}
	if err := binary.Write(w.w, binary.LittleEndian, uint64(indexStart)); err != nil {
		return err
	}
	if err := w.w.Flush(); err != nil {
		return err
	}
	if err := w.f.Close(); err != nil {
		return err
	}
	return os.Rename(w.tmp, w.dst)
}

// Abort discards the temp file.
func (w *KeyedWriter) Abort() error {
	w.f.Close()
	return os.Remove(w.tmp)
}

// KeyedReader provides random-access reads of a file written by
// KeyedWriter.
type KeyedReader struct {
	f       *os.File
	offsets map[uint64]int64
}

// OpenKeyedReader opens path and loads its trailing index into memory (the
// index is small: one (id, offset) pair per item/changeset, not the
// payload bytes themselves).
func OpenKeyedReader(path string) (*KeyedReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("store: opening %s: %w", path, err)
	}
	var hdr [8]byte
	if _, err := io.ReadFull(f, hdr[:]); err != nil {
		f.Close()
		return nil, fmt.Errorf("store: reading header of %s: %w", path, err)
	}
	if string(hdr[:4]) != string(magic[:]) {
		f.Close()
		return nil, fmt.Errorf("store: %s is not a cvs2svn keyed store", path)
	}
	version := binary.LittleEndian.Uint32(hdr[4:8])
	if version != schemaVersion {
		f.Close()
		return nil, fmt.Errorf("store: %s has schema version %d, want %d", path, version, schemaVersion)
	}

	size, err := f.Seek(0, io.SeekEnd)
	if err != nil {
		f.Close()
		return nil, err
	}
	if size < 8 {
		f.Close()
		return nil, fmt.Errorf("store: %s truncated", path)
	}
	if _, err := f.Seek(size-8, io.SeekStart); err != nil {
		f.Close()
		return nil, err
	}
	var indexStartBuf [8]byte
	if _, err := io.ReadFull(f, indexStartBuf[:]); err != nil {
		f.Close()
		return nil, err
	}
	indexStart := int64(binary.LittleEndian.Uint64(indexStartBuf[:]))

	if _, err := f.Seek(indexStart, io.SeekStart); err != nil {
		f.Close()
		return nil, err
	}
	var countBuf [4]byte
	if _, err := io.ReadFull(f, countBuf[:]); err != nil {
		f.Close()
		return nil, err
	}
	count := binary.LittleEndian.Uint32(countBuf[:])
	offsets := make(map[uint64]int64, count)
	for i := uint32(0); i < count; i++ {
		var idBuf, offBuf [8]byte
		if _, err := io.ReadFull(f, idBuf[:]); err != nil {
			f.Close()
			return nil, err
		}
		if _, err := io.ReadFull(f, offBuf[:]); err != nil {
			f.Close()
			return nil, err
		}
		offsets[binary.LittleEndian.Uint64(idBuf[:])] = int64(binary.LittleEndian.Uint64(offBuf[:]))
	}
	return &KeyedReader{f: f, offsets: offsets}, nil
}

// Get returns the payload stored under id, or (nil, false) if absent.
func (r *KeyedReader) Get(id uint64) ([]byte, bool, error) {
	off, ok := r.offsets[id]
	if !ok {
		return nil, false, nil
	}
	if _, err := r.f.Seek(off, io.SeekStart); err != nil {
		return nil, false, err
	}
	var lenBuf [4]byte
	if _, err := io.ReadFull(r.f, lenBuf[:]); err != nil {
		return nil, false, err
	}
	n := binary.LittleEndian.Uint32(lenBuf[:])
	payload := make([]byte, n)
	if _, err := io.ReadFull(r.f, payload); err != nil {
		return nil, false, err
	}
	return payload, true, nil
}

// Has reports whether id is present without reading its payload.
func (r *KeyedReader) Has(id uint64) bool {
	_, ok := r.offsets[id]
	return ok
}

// IDs returns every key present, in an unspecified order.
func (r *KeyedReader) IDs() []uint64 {
	out := make([]uint64, 0, len(r.offsets))
	for id := range r.offsets {
		out = append(out, id)
	}
	return out
}

// Close closes the underlying file.
func (r *KeyedReader) Close() error { return r.f.Close() }
