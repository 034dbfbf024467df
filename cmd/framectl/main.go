package main

import (
	"fmt"
	"os"

	"github.com/danmuck/edgetun/internal/logging"
	"github.com/danmuck/edgetun/internal/protocol"
	"github.com/spf13/cobra"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
)

type globalOptions struct {
	byteOrder   string
	intEncoding string
	output      string
}

func (o *globalOptions) codec() (protocol.Codec, error) {
	order, err := protocol.ParseByteOrder(o.byteOrder)
	if err != nil {
		return protocol.Codec{}, err
	}
	enc, err := protocol.ParseIntEncoding(o.intEncoding)
	if err != nil {
		return protocol.Codec{}, err
	}
	return protocol.NewCodec(protocol.Config{ByteOrder: order, IntEncoding: enc}), nil
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}
	root := &cobra.Command{
		Use:   "framectl",
		Short: "Encode, decode and exchange edgetun tunnel frames",
		Long: `framectl builds tunnel frames from flags, decodes captured bytes
back into messages, and exchanges frames with a running probe over TCP
or websocket.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logging.ConfigureRuntime()
			_, err := opts.codec()
			return err
		},
	}
	root.PersistentFlags().StringVar(&opts.byteOrder, "byte-order", "little", "integer byte order: little|big")
	root.PersistentFlags().StringVar(&opts.intEncoding, "int-encoding", "varint", "integer encoding: varint|fixint")
	root.PersistentFlags().StringVarP(&opts.output, "output", "o", "text", "output format: text|json|yaml")

	root.AddCommand(
		encodeCmd(opts),
		decodeCmd(opts),
		sendCmd(opts),
		versionCmd(),
	)
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "framectl: %v\n", err)
		os.Exit(1)
	}
}
