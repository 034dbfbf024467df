package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/danmuck/edgetun/internal/probe"
	"github.com/danmuck/edgetun/internal/protocol"
	"github.com/danmuck/edgetun/internal/protocol/stream"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func sendCmd(opts *globalOptions) *cobra.Command {
	var (
		closeAfter bool
		expect     int
		timeout    time.Duration
		token      string
	)
	cmd := &cobra.Command{
		Use:   "send <host:port|ws://host/tunnel> [hex-frame...]",
		Short: "Send frames to a probe and print its replies",
		Long: `send dials the probe, writes every frame given as hex (each argument may
hold several frames), optionally follows with close, and prints the
replies until the probe answers close or the expected count arrives.`,
		Example: `  framectl send 127.0.0.1:7400 $(framectl encode log --text hi)
  framectl send ws://127.0.0.1:7401/tunnel 0401 -o json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			codec, err := opts.codec()
			if err != nil {
				return err
			}
			var msgs []protocol.Message
			for _, arg := range args[1:] {
				buf, err := parseHex(arg)
				if err != nil {
					return fmt.Errorf("parse frame %q: %w", arg, err)
				}
				parsed, err := messagesFrom(codec, buf)
				if err != nil {
					return fmt.Errorf("frame %q: %w", arg, err)
				}
				msgs = append(msgs, parsed...)
			}
			msgs = withTrailingClose(msgs, closeAfter)
			want := expect
			if want < 0 {
				want = len(msgs)
			}

			cfg := stream.DefaultConfig()
			cfg.Codec = codec.Config()
			cfg.ReadTimeout = timeout
			cfg.WriteTimeout = timeout

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			client, err := probe.Dial(ctx, args[0], cfg, probe.WithToken(token))
			if err != nil {
				return err
			}
			defer client.Close()

			report, err := exchangeAll(client, codec, msgs, want)
			if renderErr := render(cmd.OutOrStdout(), opts.output, report); renderErr != nil {
				return renderErr
			}
			return err
		},
	}
	cmd.Flags().BoolVar(&closeAfter, "close", true, "append a close frame and wait for the close reply")
	cmd.Flags().IntVar(&expect, "expect", -1, "replies to wait for without --close (default: one per frame sent)")
	cmd.Flags().StringVar(&token, "token", "", "bearer token for a websocket tunnel")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "dial and per-frame read/write timeout")
	return cmd
}

// exchangeAll writes msgs, then collects replies. A close reply always ends
// the exchange.
func exchangeAll(client *probe.Client, codec protocol.Codec, msgs []protocol.Message, expect int) (frameReport, error) {
	report := frameReport{Frames: []frameRecord{}}
	// Writes and reads run concurrently so a peer that echoes cannot stall
	// on a full transport buffer.
	sendErr := make(chan error, 1)
	go func() {
		sendErr <- client.Send(msgs...)
	}()

	offset := 0
	for len(report.Frames) < expect {
		msg, err := client.Receive()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			report.Error = err.Error()
			return report, err
		}
		size, _ := codec.EncodedLen(msg)
		report.Frames = append(report.Frames, recordOf(msg, offset, size))
		offset += size
		if msg.Kind() == protocol.KindClose {
			break
		}
	}
	if err := <-sendErr; err != nil {
		report.Error = err.Error()
		return report, err
	}
	log.Debug().Int("sent", len(msgs)).Int("received", len(report.Frames)).Msg("framectl.send done")
	return report, nil
}

// withTrailingClose appends a Close unless msgs already ends with one; the
// peer ends the session on the first Close it reads.
func withTrailingClose(msgs []protocol.Message, closeAfter bool) []protocol.Message {
	if !closeAfter {
		return msgs
	}
	if n := len(msgs); n > 0 && msgs[n-1].Kind() == protocol.KindClose {
		return msgs
	}
	return append(msgs, protocol.Close{})
}

func messagesFrom(codec protocol.Codec, buf []byte) ([]protocol.Message, error) {
	var msgs []protocol.Message
	for len(buf) > 0 {
		msg, n, err := codec.Peek(buf)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
		buf = buf[n:]
	}
	return msgs, nil
}
