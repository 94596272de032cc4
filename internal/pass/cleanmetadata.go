package pass

import (
	"path/filepath"

	"golang.org/x/text/encoding/ianaindex"

	"gitlab.com/esr/cvs2svn/internal/control"
	"gitlab.com/esr/cvs2svn/internal/cvserrors"
	"gitlab.com/esr/cvs2svn/internal/model"
)

// CleanMetadataPass re-encodes every interned (author, log message) pair to
// UTF-8, trying each configured encoding in order before falling back to
// FallbackEncoding (SPEC_FULL.md §4.2). RCS log messages and author names
// are whatever bytes the original committer's locale produced; nothing in
// the revision stream itself says which encoding that was.
type CleanMetadataPass struct {
	Encodings        []string
	FallbackEncoding string
}

func NewCleanMetadataPass(encodings []string, fallback string) *CleanMetadataPass {
	return &CleanMetadataPass{Encodings: encodings, FallbackEncoding: fallback}
}

func (p *CleanMetadataPass) Name() string { return "CleanMetadata" }

func (p *CleanMetadataPass) Run(ctrl *control.Control, dataDir string) error {
	var metas []*model.Metadata
	path := filepath.Join(dataDir, fileMetadata)
	if err := loadGob(path, &metas); err != nil {
		return err
	}

	tried := append(append([]string{}, p.Encodings...), p.FallbackEncoding)
	var reencoded int
	for _, m := range metas {
		author, aok := p.reencode(m.Author)
		log, lok := p.reencode(m.Log)
		if !aok || !lok {
			return &cvserrors.EncodingError{MetadataID: uint32(m.ID), Tried: tried}
		}
		if author != m.Author || log != m.Log {
			m.Author, m.Log = author, log
			reencoded++
		}
	}

	if err := saveGob(path, metas); err != nil {
		return err
	}
	ctrl.Logit(control.LogCollect, "CleanMetadata: re-encoded %d of %d metadata entries", reencoded, len(metas))
	return nil
}

// reencode decodes s from the first configured encoding whose round trip
// through ianaindex produces valid UTF-8, returning s unchanged if it is
// already valid UTF-8 under no transformation at all.
func (p *CleanMetadataPass) reencode(s string) (string, bool) {
	if isValidUTF8(s) {
		return s, true
	}
	for _, name := range p.Encodings {
		enc, err := ianaindex.IANA.Encoding(name)
		if err != nil || enc == nil {
			continue
		}
		decoded, err := enc.NewDecoder().String(s)
		if err == nil && isValidUTF8(decoded) {
			return decoded, true
		}
	}
	if p.FallbackEncoding != "" {
		enc, err := ianaindex.IANA.Encoding(p.FallbackEncoding)
		if err == nil && enc != nil {
			if decoded, err := enc.NewDecoder().String(s); err == nil {
				return decoded, true
			}
		}
	}
	return "", false
}

func isValidUTF8(s string) bool {
	for _, r := range s {
		if r == '�' {
			return false
		}
	}
	return true
}
