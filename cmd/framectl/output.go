package main

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/danmuck/edgetun/internal/protocol"
	"gopkg.in/yaml.v3"
)

type frameRecord struct {
	Offset       int     `json:"offset" yaml:"offset"`
	Size         int     `json:"size" yaml:"size"`
	Kind         string  `json:"kind" yaml:"kind"`
	ConnectionID *uint16 `json:"connection_id,omitempty" yaml:"connection_id,omitempty"`
	Port         *uint16 `json:"port,omitempty" yaml:"port,omitempty"`
	Data         string  `json:"data_hex,omitempty" yaml:"data_hex,omitempty"`
	Text         string  `json:"text,omitempty" yaml:"text,omitempty"`
}

type frameReport struct {
	Frames        []frameRecord `json:"frames" yaml:"frames"`
	TrailingBytes int           `json:"trailing_bytes" yaml:"trailing_bytes"`
	Error         string        `json:"error,omitempty" yaml:"error,omitempty"`
}

func recordOf(m protocol.Message, offset, size int) frameRecord {
	rec := frameRecord{Offset: offset, Size: size, Kind: m.Kind().String()}
	if id, ok := protocol.ConnectionOf(m); ok {
		rec.ConnectionID = &id
	}
	switch v := m.(type) {
	case protocol.NewConnection:
		port := v.Port
		rec.Port = &port
	case protocol.Data:
		rec.Data = hex.EncodeToString(v.Data)
	case protocol.Log:
		rec.Text = v.Message
	}
	return rec
}

func render(w io.Writer, format string, report frameReport) error {
	switch strings.ToLower(format) {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(report); err != nil {
			return err
		}
		return enc.Close()
	case "text", "":
		for _, rec := range report.Frames {
			fmt.Fprintf(w, "offset=%d size=%d kind=%s", rec.Offset, rec.Size, rec.Kind)
			if rec.ConnectionID != nil {
				fmt.Fprintf(w, " conn=%d", *rec.ConnectionID)
			}
			if rec.Port != nil {
				fmt.Fprintf(w, " port=%d", *rec.Port)
			}
			if rec.Data != "" {
				fmt.Fprintf(w, " data=%s", rec.Data)
			}
			if rec.Kind == protocol.KindLog.String() {
				fmt.Fprintf(w, " text=%q", rec.Text)
			}
			fmt.Fprintln(w)
		}
		if report.TrailingBytes > 0 {
			fmt.Fprintf(w, "incomplete trailing_bytes=%d\n", report.TrailingBytes)
		}
		if report.Error != "" {
			fmt.Fprintf(w, "error %s\n", report.Error)
		}
		return nil
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

// parseHex accepts hex with optional whitespace, colons and a 0x prefix.
func parseHex(raw string) ([]byte, error) {
	clean := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\n', '\r', ':':
			return -1
		}
		return r
	}, raw)
	clean = strings.TrimPrefix(strings.TrimPrefix(clean, "0x"), "0X")
	return hex.DecodeString(clean)
}
