package main

import (
	"encoding/hex"
	"fmt"

	"github.com/danmuck/edgetun/internal/protocol"
	"github.com/spf13/cobra"
)

type messageFlags struct {
	conn    uint16
	port    uint16
	data    string
	dataHex string
	text    string
}

func (f *messageFlags) register(cmd *cobra.Command) {
	cmd.Flags().Uint16Var(&f.conn, "conn", 0, "connection id")
	cmd.Flags().Uint16Var(&f.port, "port", 0, "target port (new_connection)")
	cmd.Flags().StringVar(&f.data, "data", "", "payload as text (data)")
	cmd.Flags().StringVar(&f.dataHex, "data-hex", "", "payload as hex (data)")
	cmd.Flags().StringVar(&f.text, "text", "", "log text (log)")
}

func (f *messageFlags) build(variant string) (protocol.Message, error) {
	kind, err := protocol.ParseKind(variant)
	if err != nil {
		return nil, err
	}
	switch kind {
	case protocol.KindClose:
		return protocol.Close{}, nil
	case protocol.KindNewConnection:
		return protocol.NewConnection{ConnectionID: f.conn, Port: f.port}, nil
	case protocol.KindData:
		payload := []byte(f.data)
		if f.dataHex != "" {
			if f.data != "" {
				return nil, fmt.Errorf("--data and --data-hex are exclusive")
			}
			if payload, err = parseHex(f.dataHex); err != nil {
				return nil, fmt.Errorf("parse --data-hex: %w", err)
			}
		}
		return protocol.Data{ConnectionID: f.conn, Data: payload}, nil
	case protocol.KindConnectionClose:
		return protocol.ConnectionClose{ConnectionID: f.conn}, nil
	default:
		return protocol.Log{Message: f.text}, nil
	}
}

func encodeCmd(opts *globalOptions) *cobra.Command {
	var (
		flags messageFlags
		raw   bool
	)
	cmd := &cobra.Command{
		Use:   "encode <close|new_connection|data|connection_close|log>",
		Short: "Encode one message and print the frame",
		Example: `  framectl encode new_connection --conn 1 --port 8080
  framectl encode data --conn 1 --data hello --raw > frame.bin`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			codec, err := opts.codec()
			if err != nil {
				return err
			}
			msg, err := flags.build(args[0])
			if err != nil {
				return err
			}
			frame, err := codec.Append(nil, msg)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if raw {
				_, err = out.Write(frame)
				return err
			}
			_, err = fmt.Fprintln(out, hex.EncodeToString(frame))
			return err
		},
	}
	flags.register(cmd)
	cmd.Flags().BoolVar(&raw, "raw", false, "write raw bytes instead of hex")
	return cmd
}
