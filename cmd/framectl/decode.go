package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/danmuck/edgetun/internal/protocol"
	"github.com/spf13/cobra"
)

func decodeCmd(opts *globalOptions) *cobra.Command {
	var raw bool
	cmd := &cobra.Command{
		Use:   "decode [file]",
		Short: "Decode every frame in a capture",
		Long: `decode reads hex (default) or raw bytes from file or stdin and prints
each complete frame. Bytes left over that form a valid but unfinished
frame are reported as trailing bytes; malformed input stops decoding and
exits non-zero.`,
		Example: `  framectl encode log --text hi | framectl decode -o yaml`,
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			codec, err := opts.codec()
			if err != nil {
				return err
			}
			in := cmd.InOrStdin()
			if len(args) == 1 {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}
			body, err := io.ReadAll(in)
			if err != nil {
				return err
			}
			if !raw {
				if body, err = parseHex(string(body)); err != nil {
					return fmt.Errorf("parse hex input: %w", err)
				}
			}

			report, decodeErr := decodeAll(codec, body)
			if err := render(cmd.OutOrStdout(), opts.output, report); err != nil {
				return err
			}
			return decodeErr
		},
	}
	cmd.Flags().BoolVar(&raw, "raw", false, "input is raw bytes instead of hex")
	return cmd
}

// decodeAll walks buf frame by frame with Peek.
func decodeAll(codec protocol.Codec, buf []byte) (frameReport, error) {
	report := frameReport{Frames: []frameRecord{}}
	offset := 0
	for offset < len(buf) {
		msg, n, err := codec.Peek(buf[offset:])
		if errors.Is(err, protocol.ErrIncomplete) {
			report.TrailingBytes = len(buf) - offset
			return report, nil
		}
		if err != nil {
			var decErr *protocol.DecodeError
			if errors.As(err, &decErr) {
				err = fmt.Errorf("frame at byte %d: %w", offset+decErr.Offset, err)
			}
			report.Error = err.Error()
			return report, err
		}
		report.Frames = append(report.Frames, recordOf(msg, offset, n))
		offset += n
	}
	return report, nil
}
