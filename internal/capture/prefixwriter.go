package capture

import (
	"bufio"
	"fmt"
	"io"
	"time"
)

// PrefixSource distinguishes device-side from host-side ping lines in the
// uniform log prefix.
type PrefixSource string

const (
	SourceDevicePing PrefixSource = "device_side_ping"
	SourceHostPing   PrefixSource = "host_side_ping"
)

// PrefixWriter tees a child process's stdout into dst, rewriting every line
// with the uniform ping-log prefix `[ts_local=...][epoch_ms=...][source=...]`.
// It preserves line boundaries across arbitrary chunk splits by buffering a
// partial line across writes, and flushes any trailing partial line once
// Close is called (process end).
type PrefixWriter struct {
	dst     io.Writer
	source  PrefixSource
	now     func() time.Time
	partial []byte
}

// NewPrefixWriter wraps dst; now defaults to time.Now.
func NewPrefixWriter(dst io.Writer, source PrefixSource, now func() time.Time) *PrefixWriter {
	if now == nil {
		now = time.Now
	}
	return &PrefixWriter{dst: dst, source: source, now: now}
}

// Write implements io.Writer, splitting arbitrary byte chunks on '\n' and
// emitting one prefixed line per complete line found.
func (p *PrefixWriter) Write(b []byte) (int, error) {
	n := len(b)
	p.partial = append(p.partial, b...)
	for {
		idx := indexByte(p.partial, '\n')
		if idx < 0 {
			break
		}
		line := p.partial[:idx]
		p.partial = p.partial[idx+1:]
		if err := p.emit(string(line)); err != nil {
			return n, err
		}
	}
	return n, nil
}

// Close flushes any trailing partial line without a terminating newline.
func (p *PrefixWriter) Close() error {
	if len(p.partial) == 0 {
		return nil
	}
	line := string(p.partial)
	p.partial = nil
	return p.emit(line)
}

func (p *PrefixWriter) emit(line string) error {
	ts := p.now()
	_, err := fmt.Fprintf(p.dst, "[ts_local=%s][epoch_ms=%d][source=%s] %s\n",
		ts.Format("2006-01-02 15:04:05.000 -07:00"), ts.UnixMilli(), p.source, line)
	return err
}

func indexByte(b []byte, c byte) int {
	for i, v := range b {
		if v == c {
			return i
		}
	}
	return -1
}

// CopyLines streams src's lines into a PrefixWriter, used when tee-ing a
// child's os.Pipe stdout in a goroutine with a bufio.Scanner read-loop.
func CopyLines(src io.Reader, pw *PrefixWriter) error {
	sc := bufio.NewScanner(src)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for sc.Scan() {
		if _, err := pw.Write(append(sc.Bytes(), '\n')); err != nil {
			return err
		}
	}
	if err := sc.Err(); err != nil {
		return err
	}
	return pw.Close()
}
