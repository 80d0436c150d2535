package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// Supported values for --output.
const (
	outputJSON = "json"
	outputYAML = "yaml"
)

// printer renders server responses in the selected format.
type printer struct {
	out    io.Writer
	format string
}

func newPrinter(out io.Writer, format string) (*printer, error) {
	switch format {
	case "", outputJSON:
		return &printer{out: out, format: outputJSON}, nil
	case outputYAML, "yml":
		return &printer{out: out, format: outputYAML}, nil
	default:
		return nil, fmt.Errorf("unknown output format %q (want json or yaml)", format)
	}
}

// Print writes a raw JSON response body.
func (p *printer) Print(data []byte) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}

	if p.format == outputYAML {
		var v any
		if err := json.Unmarshal(data, &v); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
		enc := yaml.NewEncoder(p.out)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("failed to write yaml: %w", err)
		}
		return enc.Close()
	}

	var buf bytes.Buffer
	if err := json.Indent(&buf, data, "", "  "); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	buf.WriteByte('\n')
	_, err := p.out.Write(buf.Bytes())
	return err
}
