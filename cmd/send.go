package cmd

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"firestige.xyz/acpipe/internal/protocol"
)

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Send a report to a running daemon",
	Long: `Act as the peer and write one message to the report channel.

Field values are given in wire order and accept 0x-prefixed hex.

Examples:
  acpipe send --code 10 --values 0x7ff612340000,0x5000
  acpipe send --code 70 --values 4321,8765,0x1fffff --count 3
  acpipe send --request`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		socket := sendSocket
		if socket == "" {
			socket = cfg.Channel.Socket
		}
		byteOrder := sendByteOrder
		if byteOrder == "" {
			byteOrder = cfg.Protocol.ByteOrder
		}
		order, err := protocol.ParseByteOrder(byteOrder)
		if err != nil {
			return err
		}

		sender, err := dialSender(cmd.Context(), socket, order, 5*time.Second)
		if err != nil {
			return err
		}
		defer sender.Close()

		return runSend(cmd.Context(), sender, sendOpts, cmd.OutOrStdout())
	},
}

type sendOptions struct {
	code    uint32
	values  []string
	request bool
	count   int
}

var (
	sendOpts      sendOptions
	sendSocket    string
	sendByteOrder string
)

func init() {
	sendCmd.Flags().StringVar(&sendSocket, "socket", "", "report channel socket (default: channel.socket from config)")
	sendCmd.Flags().StringVar(&sendByteOrder, "byte-order", "", "little or big (default: protocol.byte_order from config)")
	sendCmd.Flags().Uint32Var(&sendOpts.code, "code", 0, "report code")
	sendCmd.Flags().StringSliceVar(&sendOpts.values, "values", nil, "field values in wire order")
	sendCmd.Flags().BoolVar(&sendOpts.request, "request", false, "send a REQUEST header instead of a report")
	sendCmd.Flags().IntVar(&sendOpts.count, "count", 1, "number of times to send the message")
	sendCmd.MarkFlagsMutuallyExclusive("request", "code")
}

func runSend(ctx context.Context, sender ReportSender, opts sendOptions, out io.Writer) error {
	count := max(opts.count, 1)

	if opts.request {
		for range count {
			if err := sender.SendRequest(ctx); err != nil {
				return fmt.Errorf("failed to send request: %w", err)
			}
		}
		fmt.Fprintf(out, "✓ Sent %d request(s)\n", count)
		return nil
	}

	values, err := parseValues(opts.values)
	if err != nil {
		return err
	}
	report, err := protocol.NewReport(protocol.ReportCode(opts.code), values)
	if err != nil {
		return fmt.Errorf("invalid report: %w", err)
	}

	for range count {
		if err := sender.SendReport(ctx, report); err != nil {
			return fmt.Errorf("failed to send report: %w", err)
		}
	}
	fmt.Fprintf(out, "✓ Sent %d %s report(s)\n", count, report.Code())
	return nil
}

func parseValues(raw []string) ([]uint64, error) {
	values := make([]uint64, 0, len(raw))
	for _, s := range raw {
		v, err := strconv.ParseUint(strings.TrimSpace(s), 0, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid value %q: %w", s, err)
		}
		values = append(values, v)
	}
	return values, nil
}
