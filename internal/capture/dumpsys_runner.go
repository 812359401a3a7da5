package capture

import (
	"bufio"
	"context"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/netdiag/streamcheck/internal/snapshot"
)

const dumpsysTimeout = 20 * time.Second

// lineCap is the per-service truncation applied to dumpsys stdout before it
// is framed into a snapshot body.
const lineCap = 4000

// DumpsysWriter serializes framed snapshot writes for one output file; a
// single writer per file needs no cross-writer synchronization, and the
// mutex keeps each frame's write and flush together should two runs of the
// same task overlap.
type DumpsysWriter struct {
	mu  sync.Mutex
	w   *bufio.Writer
	now func() time.Time
}

// NewDumpsysWriter wraps w with buffered writes and a clock hook for
// deterministic tests.
func NewDumpsysWriter(w *bufio.Writer, now func() time.Time) *DumpsysWriter {
	if now == nil {
		now = time.Now
	}
	return &DumpsysWriter{w: w, now: now}
}

// RunAndWrite executes `dumpsys <service>` with a 20s timeout and appends a
// framed snapshot. The returned error mirrors the
// queue's OK/TIMEOUT/ERROR counter classification: context.DeadlineExceeded
// on timeout, nil on success, any other error otherwise.
func (dw *DumpsysWriter) RunAndWrite(ctx context.Context, adbPath, serial, task, service string) error {
	runCtx, cancel := context.WithTimeout(ctx, dumpsysTimeout)
	defer cancel()

	start := dw.now()
	args := []string{"-s", serial, "shell", "dumpsys", service}
	if serial == "" {
		args = []string{"shell", "dumpsys", service}
	}
	cmd := exec.CommandContext(runCtx, adbPath, args...)
	out, runErr := cmd.Output()
	dur := dw.now().Sub(start)

	status := snapshot.OK
	detail := ""
	switch {
	case runCtx.Err() == context.DeadlineExceeded:
		status = snapshot.Timeout
		detail = "timed_out"
	case runErr != nil:
		status = snapshot.Error
		detail = runErr.Error()
	}

	body := truncateLines(string(out), lineCap)

	dw.mu.Lock()
	werr := snapshot.Write(dw.w, snapshot.Snapshot{
		HostTS:     start,
		Task:       task,
		Status:     status,
		DurationMs: int(dur.Milliseconds()),
		Detail:     detail,
		Body:       body,
	})
	if werr == nil {
		werr = dw.w.Flush()
	}
	dw.mu.Unlock()
	if werr != nil {
		return werr
	}

	if status == snapshot.Timeout {
		return context.DeadlineExceeded
	}
	if status == snapshot.Error {
		return runErr
	}
	return nil
}

func truncateLines(s string, cap int) string {
	lines := strings.Split(s, "\n")
	if len(lines) <= cap {
		return s
	}
	return strings.Join(lines[:cap], "\n")
}
