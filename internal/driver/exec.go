package driver

import (
	"bufio"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"

	"github.com/Sokrates1989/backup-restore/internal/backuperr"
)

// requireTool checks that an external binary is present on the host. A
// missing tool is surfaced distinctly so callers can give actionable
// guidance instead of a generic failure.
func requireTool(name string) error {
	if _, err := exec.LookPath(name); err != nil {
		return backuperr.Newf(backuperr.KindToolUnavailable, "%s not found in PATH", name)
	}
	return nil
}

// classifyExecError maps a subprocess failure to a classified error. Context
// expiry wins over the exit error: a force-terminated process reports
// timeout or cancellation, not its exit code.
func classifyExecError(ctx context.Context, fallback backuperr.Kind, tool, stderr string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			return backuperr.Wrap(backuperr.KindTimeout, tool+" exceeded its time bound and was terminated", err)
		}
		return backuperr.Wrap(backuperr.KindCancelled, tool+" was cancelled", err)
	}
	detail := tool + " failed"
	if s := strings.TrimSpace(stderr); s != "" {
		detail = fmt.Sprintf("%s: %s", detail, firstLine(s))
	}
	return backuperr.Wrap(fallback, detail, err)
}

func firstLine(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		return s[:idx]
	}
	return s
}

// countWriter counts bytes written through it.
type countWriter struct {
	w io.Writer
	n int64
}

func (c *countWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

// wrapSink optionally layers gzip compression over sink. The returned close
// function must run before reading the byte count.
func wrapSink(sink io.Writer, compress bool) (*countWriter, io.Writer, func() error) {
	cw := &countWriter{w: sink}
	if !compress {
		return cw, cw, func() error { return nil }
	}
	gz := gzip.NewWriter(cw)
	return cw, gz, gz.Close
}

var gzipMagic = []byte{0x1f, 0x8b}

// maybeGunzip transparently decompresses a gzipped artifact stream.
func maybeGunzip(r io.Reader) (io.Reader, error) {
	br := bufio.NewReader(r)
	magic, err := br.Peek(2)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("peek artifact header: %w", err)
	}
	if len(magic) == 2 && magic[0] == gzipMagic[0] && magic[1] == gzipMagic[1] {
		gz, err := gzip.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("open gzip artifact: %w", err)
		}
		return gz, nil
	}
	return br, nil
}
