// Package baton renders progress indication for the long-running passes
// of the conversion pipeline: twirling indicators for indefinite work,
// counters for "N done" work, and percentage/rate progress bars for work
// with a known total.
//
// SPDX-License-Identifier: BSD-2-Clause
package baton

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"sync"
	"time"
)

// Baton is the overall state of the progress output for one pipeline run.
type Baton struct {
	progressEnabled bool
	stream          *os.File
	channel         chan message
	start           time.Time
	twirly          twirly
	counter         counter
	progress        progress
	process         process
}

type twirly struct {
	sync.RWMutex
	lastupdate time.Time
	count      uint8
}

// counter is usually used for "N of M passes complete" type progress, but
// the caller can supply any format string it wants.
type counter struct {
	sync.RWMutex
	lastupdate time.Time
	format     string
	count      uint64
}

// progress is the evolved form of counter: percentage of completion plus
// rate of progress, used while a pass walks a stream of known length
// (e.g. "parsing RCS files" or "writing changesets").
type progress struct {
	sync.RWMutex
	start      time.Time
	lastupdate time.Time
	tag        []byte
	count      uint64
	lastcount  uint64
	expected   uint64
}

// process prints a message before and after a bracketed span of work,
// e.g. "Collect ...(4.21s) 1204 files, 3 skipped."
type process struct {
	sync.RWMutex
	startmsg []byte
	endmsg   []byte
	start    time.Time
}

type msgType uint8

const (
	none msgType = iota
	logMsg
	progressMsg
	syncMsg
)

type message struct {
	ty  msgType
	str []byte
}

const twirlInterval = 100 * time.Millisecond
const progressInterval = 1 * time.Second

// New creates a Baton. Interactive should be true when stdout is a
// terminal the caller wants to overwrite in place; when false, log
// messages are written one per line and progress messages are suppressed.
func New(interactive bool) *Baton {
	me := new(Baton)
	me.start = time.Now()
	me.channel = make(chan message)
	me.progressEnabled = interactive
	me.stream = os.Stdout
	go me.pump()
	return me
}

func (b *Baton) pump() {
	var lastProgress []byte
	const clearToEOL = "\r\033[K"
	for msg := range b.channel {
		switch msg.ty {
		case syncMsg:
			b.channel <- msg
		case logMsg:
			if b.stream == nil {
				continue
			}
			if b.progressEnabled {
				b.stream.WriteString(clearToEOL)
				b.stream.Write(msg.str)
				if !bytes.HasSuffix(msg.str, []byte{'\n'}) {
					b.stream.Write([]byte{'\n'})
				}
				b.stream.Write(lastProgress)
			} else {
				if len(msg.str) != 0 {
					b.stream.Write(msg.str)
				}
				if !bytes.HasSuffix(msg.str, []byte{'\n'}) {
					b.stream.Write([]byte{'\n'})
				}
			}
		case progressMsg:
			if b.stream == nil {
				continue
			}
			b.stream.WriteString(clearToEOL)
			b.stream.Write(msg.str)
			lastProgress = msg.str
		}
	}
}

// SetInteractive toggles whether progress lines are overwritten in place.
func (b *Baton) SetInteractive(enabled bool) {
	if b == nil {
		return
	}
	b.channel <- message{syncMsg, nil}
	b.progressEnabled = enabled
	<-b.channel
}

// PrintLog writes a one-shot log message, not overwritten by later progress.
func (b *Baton) PrintLog(str string) {
	if b == nil {
		return
	}
	if b.progressEnabled {
		b.channel <- message{logMsg, []byte(str)}
	} else {
		b.stream.WriteString(str)
	}
}

func (b *Baton) printProgress() {
	if b == nil || !b.progressEnabled {
		return
	}
	var buf bytes.Buffer
	b.render(&buf)
	b.channel <- message{progressMsg, buf.Bytes()}
}

// Twirl spins the indefinite-progress indicator; call it from inside a
// loop whose length is not known in advance (e.g. "scanning the CVS tree").
func (b *Baton) Twirl() {
	if b == nil || !b.progressEnabled {
		return
	}
	b.twirly.Lock()
	if time.Since(b.twirly.lastupdate) > twirlInterval {
		b.twirly.count = (b.twirly.count + 1) % 4
		b.twirly.lastupdate = time.Now()
		b.twirly.Unlock()
		b.printProgress()
	} else {
		b.twirly.Unlock()
	}
}

// StartProcess announces the beginning of a bracketed span of work.
func (b *Baton) StartProcess(startmsg, endmsg string) {
	if b == nil || !b.progressEnabled {
		return
	}
	b.process.Lock()
	defer b.process.Unlock()
	b.process.startmsg = []byte(startmsg)
	b.process.endmsg = []byte(endmsg)
	b.process.start = time.Now()
}

// EndProcess closes a bracketed span of work, reporting elapsed time.
func (b *Baton) EndProcess(endmsg ...string) {
	if b == nil || !b.progressEnabled {
		return
	}
	b.process.Lock()
	if len(endmsg) > 0 {
		b.process.endmsg = []byte(strings.Join(endmsg, " "))
	}
	line := fmt.Sprintf("%s ...(%s) %s.\n",
		b.process.startmsg,
		time.Since(b.process.start).Round(time.Millisecond*10),
		b.process.endmsg)
	b.process.startmsg = nil
	b.process.endmsg = nil
	b.process.Unlock()
	b.channel <- message{logMsg, []byte(line)}
}

// StartCounter begins a simple "N done" counter using countfmt as the
// Printf format for the count (e.g. "%d files collected").
func (b *Baton) StartCounter(countfmt string, initial uint64) {
	if b == nil || !b.progressEnabled {
		return
	}
	b.counter.Lock()
	defer b.counter.Unlock()
	b.counter.format = countfmt
	b.counter.count = initial
}

// BumpCounter increments the active counter by one.
func (b *Baton) BumpCounter() {
	if b == nil || !b.progressEnabled {
		return
	}
	b.counter.Lock()
	if b.counter.format != "" {
		b.counter.count++
		b.counter.Unlock()
		b.printProgress()
	} else {
		b.counter.Unlock()
		b.Twirl()
	}
}

// EndCounter finishes a counter span.
func (b *Baton) EndCounter() {
	if b == nil || !b.progressEnabled {
		return
	}
	var buf bytes.Buffer
	b.counter.render(&buf)
	b.channel <- message{logMsg, buf.Bytes()}
	b.counter.Lock()
	b.counter.format = ""
	b.counter.count = 0
	b.counter.Unlock()
}

// StartProgress begins a percentage/rate progress bar over `expected` units.
func (b *Baton) StartProgress(tag string, expected uint64) {
	if b == nil || !b.progressEnabled {
		return
	}
	b.progress.Lock()
	defer b.progress.Unlock()
	b.progress.start = time.Now()
	b.progress.lastupdate = b.progress.start
	b.progress.tag = []byte(tag)
	b.progress.count = 0
	b.progress.expected = expected
}

// PercentProgress updates the progress bar to the given count of `expected`.
func (b *Baton) PercentProgress(count uint64) {
	if b == nil || !b.progressEnabled {
		return
	}
	b.progress.Lock()
	if time.Since(b.progress.lastupdate) > progressInterval || count == b.progress.expected {
		b.progress.lastcount = b.progress.count
		b.progress.count = count
		b.progress.lastupdate = time.Now()
		b.progress.Unlock()
		b.printProgress()
	} else {
		b.progress.Unlock()
	}
}

// EndProgress finishes a progress bar span.
func (b *Baton) EndProgress() {
	if b == nil || !b.progressEnabled {
		return
	}
	b.progress.Lock()
	b.progress.count = b.progress.expected
	b.progress.lastupdate = time.Now()
	b.progress.Unlock()
	var buf bytes.Buffer
	b.progress.render(&buf)
	b.channel <- message{logMsg, buf.Bytes()}
	b.progress.Lock()
	b.progress.tag = nil
	b.progress.count = 0
	b.progress.expected = 0
	b.progress.Unlock()
}

// Write implements io.Writer so a Baton can be handed to log.New / logrus.
func (b *Baton) Write(p []byte) (int, error) {
	if b != nil {
		b.PrintLog(string(p))
	}
	return len(p), nil
}

// Sync blocks until the internal goroutine has drained its channel.
func (b *Baton) Sync() {
	if b == nil {
		return
	}
	b.channel <- message{syncMsg, nil}
	<-b.channel
}

func (b *Baton) render(buf io.Writer) {
	b.process.renderPre(buf)
	b.counter.render(buf)
	b.progress.render(buf)
	fmt.Fprintf(buf, " (%v)", time.Since(b.start).Round(time.Second))
	b.twirly.render(buf)
	b.process.renderPost(buf)
}

func (t *twirly) render(w io.Writer) {
	t.RLock()
	defer t.RUnlock()
	w.Write([]byte{' ', "-\\|/"[t.count]})
}

func (c *counter) render(w io.Writer) {
	c.RLock()
	defer c.RUnlock()
	if c.format != "" {
		n, _ := fmt.Fprintf(w, c.format, c.count)
		if n > 0 {
			w.Write([]byte{' '})
		}
	}
}

func scale(n float64) string {
	switch {
	case n < 1000:
		return fmt.Sprintf("%.0f", n)
	case n < 1000000:
		return fmt.Sprintf("%.2fK", n/1000)
	case n < 1000000000:
		return fmt.Sprintf("%.2fM", n/1000000)
	default:
		return fmt.Sprintf("%.2fG", n/1000000000)
	}
}

func (p *progress) render(w io.Writer) {
	p.RLock()
	defer p.RUnlock()
	if p.expected == 0 {
		return
	}
	frac := float64(p.count) / float64(p.expected)
	elapsed := p.lastupdate.Sub(p.start)
	rate := float64(p.count) / elapsed.Seconds()
	ratemsg := "∞"
	if !math.IsInf(rate, 0) && elapsed.Seconds() > 0 {
		ratemsg = scale(rate)
	}
	if elapsed.Seconds() > 1 {
		elapsed = elapsed.Round(time.Second)
	}
	fmt.Fprintf(w, "%s %.2f%% %s/%s, %v @ %s/s",
		p.tag, frac*100, scale(float64(p.count)), scale(float64(p.expected)), elapsed, ratemsg)
}

func (pr *process) renderPre(w io.Writer) {
	pr.RLock()
	defer pr.RUnlock()
	w.Write(pr.startmsg)
}

func (pr *process) renderPost(w io.Writer) {
	pr.RLock()
	defer pr.RUnlock()
	w.Write(pr.endmsg)
}
