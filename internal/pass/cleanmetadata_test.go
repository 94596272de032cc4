package pass

import (
	"path/filepath"
	"testing"

	"golang.org/x/text/encoding/charmap"

	"gitlab.com/esr/cvs2svn/internal/control"
	"gitlab.com/esr/cvs2svn/internal/model"
)

func TestCleanMetadataPassLeavesValidUTF8Untouched(t *testing.T) {
	dataDir := t.TempDir()
	metas := []*model.Metadata{{ID: 1, Author: "esr", Log: "a perfectly good UTF-8 message"}}
	if err := saveGob(filepath.Join(dataDir, fileMetadata), metas); err != nil {
		t.Fatalf("saveGob: %v", err)
	}

	ctrl := control.New(false)
	defer ctrl.Close()

	p := NewCleanMetadataPass([]string{"utf-8"}, "utf-8")
	if err := p.Run(ctrl, dataDir); err != nil {
		t.Fatalf("Run: %v", err)
	}

	var out []*model.Metadata
	if err := loadGob(filepath.Join(dataDir, fileMetadata), &out); err != nil {
		t.Fatalf("loadGob: %v", err)
	}
	if out[0].Author != "esr" || out[0].Log != "a perfectly good UTF-8 message" {
		t.Errorf("valid UTF-8 metadata should be untouched, got %+v", out[0])
	}
}

func TestCleanMetadataPassReencodesLatin1(t *testing.T) {
	dataDir := t.TempDir()
	// "café" in ISO-8859-1 (Latin-1): the final byte is 0xE9, which is not
	// valid UTF-8 on its own.
	latin1, err := charmap.ISO8859_1.NewEncoder().String("café")
	if err != nil {
		t.Fatalf("encoding fixture: %v", err)
	}
	metas := []*model.Metadata{{ID: 1, Author: "esr", Log: latin1}}
	if err := saveGob(filepath.Join(dataDir, fileMetadata), metas); err != nil {
		t.Fatalf("saveGob: %v", err)
	}

	ctrl := control.New(false)
	defer ctrl.Close()

	p := NewCleanMetadataPass([]string{"iso-8859-1"}, "utf-8")
	if err := p.Run(ctrl, dataDir); err != nil {
		t.Fatalf("Run: %v", err)
	}

	var out []*model.Metadata
	if err := loadGob(filepath.Join(dataDir, fileMetadata), &out); err != nil {
		t.Fatalf("loadGob: %v", err)
	}
	if out[0].Log != "café" {
		t.Errorf("Log: got %q, want %q", out[0].Log, "café")
	}
}

func TestIsValidUTF8(t *testing.T) {
	if !isValidUTF8("plain ascii") {
		t.Errorf("plain ASCII should be valid UTF-8")
	}
	if isValidUTF8(string([]byte{0xff, 0xfe})) {
		t.Errorf("a non-UTF-8 byte sequence should not be considered valid")
	}
}
