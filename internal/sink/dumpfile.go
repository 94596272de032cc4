package sink

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"time"
)

// DumpfileSink writes an SVN dumpfile (format version 2) to an io.Writer,
// following the node/revision grammar documented in
// other_examples/kfsone-svn-go__svndumpfile.go and cross-checked against
// the teacher's own dumpfile reader (surgeon/svnread.go), which parses
// exactly this format from the other direction.
type DumpfileSink struct {
	w           *bufio.Writer
	closer      io.Closer
	wroteHeader bool
	curRev      Revision
}

// NewDumpfileSink wraps w (and, if it also implements io.Closer, arranges
// for Close to close it too).
func NewDumpfileSink(w io.Writer) *DumpfileSink {
	s := &DumpfileSink{w: bufio.NewWriter(w)}
	if c, ok := w.(io.Closer); ok {
		s.closer = c
	}
	return s
}

func (s *DumpfileSink) writeHeader() error {
	if s.wroteHeader {
		return nil
	}
	s.wroteHeader = true
	_, err := fmt.Fprintf(s.w, "SVN-fs-dump-format-version: 2\n\n")
	return err
}

func propsBlock(props map[string]string) []byte {
	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var buf []byte
	for _, k := range keys {
		v := props[k]
		buf = append(buf, []byte(fmt.Sprintf("K %d\n%s\nV %d\n%s\n", len(k), k, len(v), v))...)
	}
	buf = append(buf, []byte("PROPS-END\n")...)
	return buf
}

// StartRevision writes a Revision-number header plus its property block
// (svn:author, svn:log, svn:date) and remembers rev so WriteNode can write
// Node-path lines under it.
func (s *DumpfileSink) StartRevision(rev Revision) (int, error) {
	if err := s.writeHeader(); err != nil {
		return 0, err
	}
	if rev.Number == 0 {
		rev.Number = s.curRev.Number + 1
	}
	s.curRev = rev
	if _, err := fmt.Fprintf(s.w, "Revision-number: %d\n", rev.Number); err != nil {
		return 0, err
	}
	props := propsBlock(map[string]string{
		"svn:author": rev.Author,
		"svn:log":    rev.LogMsg,
		"svn:date":   formatSVNDate(rev.Timestamp),
	})
	if _, err := fmt.Fprintf(s.w, "Prop-content-length: %d\nContent-length: %d\n\n", len(props), len(props)); err != nil {
		return 0, err
	}
	if _, err := s.w.Write(props); err != nil {
		return 0, err
	}
	if _, err := s.w.Write([]byte("\n")); err != nil {
		return 0, err
	}
	return rev.Number, nil
}

// WriteNode writes one node's header and content block.
func (s *DumpfileSink) WriteNode(revnum int, node Node) error {
	if _, err := fmt.Fprintf(s.w, "Node-path: %s\n", node.Path); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(s.w, "Node-kind: %s\n", node.Kind); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(s.w, "Node-action: %s\n", node.Action); err != nil {
		return err
	}
	if node.CopyFromRev > 0 {
		if _, err := fmt.Fprintf(s.w, "Node-copyfrom-rev: %d\n", node.CopyFromRev); err != nil {
			return err
		}
		if _, err := fmt.Fprintf(s.w, "Node-copyfrom-path: %s\n", node.CopyFromPath); err != nil {
			return err
		}
	}

	var props []byte
	if node.Properties != nil {
		props = propsBlock(node.Properties)
	}
	hasText := node.HasTextContent
	contentLen := len(props) + len(node.Content)
	if len(props) > 0 {
		if _, err := fmt.Fprintf(s.w, "Prop-content-length: %d\n", len(props)); err != nil {
			return err
		}
	}
	if hasText {
		if _, err := fmt.Fprintf(s.w, "Text-content-length: %d\n", len(node.Content)); err != nil {
			return err
		}
	}
	if contentLen > 0 {
		if _, err := fmt.Fprintf(s.w, "Content-length: %d\n\n", contentLen); err != nil {
			return err
		}
		if len(props) > 0 {
			if _, err := s.w.Write(props); err != nil {
				return err
			}
		}
		if hasText {
			if _, err := s.w.Write(node.Content); err != nil {
				return err
			}
		}
	} else {
		if _, err := s.w.Write([]byte("\n")); err != nil {
			return err
		}
	}
	_, err := s.w.Write([]byte("\n\n"))
	return err
}

// EndRevision is a no-op for the dumpfile sink: nothing trails a
// revision's last node beyond the blank-line separators WriteNode already
// emits.
func (s *DumpfileSink) EndRevision(revnum int) error { return nil }

// Close flushes buffered output and closes the underlying writer if it
// supports that.
func (s *DumpfileSink) Close() error {
	if err := s.w.Flush(); err != nil {
		return err
	}
	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}

func formatSVNDate(unixSeconds int64) string {
	const layout = "2006-01-02T15:04:05.000000Z"
	return time.Unix(unixSeconds, 0).UTC().Format(layout)
}
