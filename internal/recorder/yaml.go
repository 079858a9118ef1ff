package recorder

import (
	"context"
	"fmt"
	"io"
	"sync"

	"gopkg.in/yaml.v3"
)

// YAML writes the metadata and then every case as a separate YAML document.
type YAML struct {
	mu     sync.Mutex
	closer io.Closer
	enc    *yaml.Encoder
}

// NewYAML creates a YAML recorder writing to w. If w is an io.Closer it is
// closed with the recorder.
func NewYAML(w io.Writer) *YAML {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	y := &YAML{enc: enc}
	if c, ok := w.(io.Closer); ok {
		y.closer = c
	}
	return y
}

func (y *YAML) Startup(meta Metadata) error {
	y.mu.Lock()
	defer y.mu.Unlock()
	if err := y.enc.Encode(meta); err != nil {
		return fmt.Errorf("encoding metadata: %w", err)
	}
	return nil
}

func (y *YAML) Record(_ context.Context, c Case) error {
	y.mu.Lock()
	defer y.mu.Unlock()
	if err := y.enc.Encode(c); err != nil {
		return fmt.Errorf("encoding case %d: %w", c.Iteration, err)
	}
	return nil
}

func (y *YAML) Close() error {
	y.mu.Lock()
	defer y.mu.Unlock()
	if err := y.enc.Close(); err != nil {
		return err
	}
	if y.closer != nil {
		return y.closer.Close()
	}
	return nil
}
