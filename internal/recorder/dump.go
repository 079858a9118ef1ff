package recorder

import (
	"context"
	"fmt"
	"io"
	"maps"
	"slices"
	"sync"
)

// Dump writes a human-readable text layout of every case.
type Dump struct {
	mu     sync.Mutex
	w      io.Writer
	closer io.Closer
}

// NewDump creates a text recorder writing to w. If w is an io.Closer it is
// closed with the recorder.
func NewDump(w io.Writer) *Dump {
	d := &Dump{w: w}
	if c, ok := w.(io.Closer); ok {
		d.closer = c
	}
	return d
}

func (d *Dump) Startup(meta Metadata) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, err := fmt.Fprintf(d.w, "Problem %s: %d variables\n", meta.ProblemID, len(meta.Vars))
	return err
}

func (d *Dump) Record(_ context.Context, c Case) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	ew := &errWriter{w: d.w}
	ew.printf("Iteration %d (%s)\n", c.Iteration, c.Timestamp.Format("2006-01-02T15:04:05.000Z07:00"))
	if c.Success {
		ew.printf("  Status: success\n")
	} else {
		ew.printf("  Status: failed: %s\n", c.Message)
	}
	section(ew, "Params", c.Params)
	section(ew, "Unknowns", c.Unknowns)
	section(ew, "Resids", c.Resids)
	return ew.err
}

func (d *Dump) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closer == nil {
		return nil
	}
	err := d.closer.Close()
	d.closer = nil
	return err
}

func section(ew *errWriter, title string, values map[string]any) {
	ew.printf("  %s:\n", title)
	for _, name := range slices.Sorted(maps.Keys(values)) {
		ew.printf("    %s: %v\n", name, values[name])
	}
}

// errWriter keeps the first write error and skips the rest.
type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) printf(format string, args ...any) {
	if e.err != nil {
		return
	}
	_, e.err = fmt.Fprintf(e.w, format, args...)
}
