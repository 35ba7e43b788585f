package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/spf13/cobra"

	"firestige.xyz/frer/internal/core"
	"firestige.xyz/frer/internal/pcapfile"
	"firestige.xyz/frer/internal/rtag"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect FILE",
	Short: "Dissect the frames of a pcap file, R-TAG included",
	Long: `Print every frame of a pcap or pcapng file layer by layer, the way a
protocol analyzer would, with the IEEE 802.1CB R-TAG decoded between the
VLAN tag and the IPv4 header.

Examples:
  frer inspect sent.pcap
  frer inspect -n 4 --hex capture.pcapng`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInspect(cmd.Context(), args[0], inspectOpts, cmd.OutOrStdout())
	},
}

type inspectOptions struct {
	count int
	hex   bool
}

var inspectOpts inspectOptions

func init() {
	inspectCmd.Flags().IntVarP(&inspectOpts.count, "count", "n", 0, "stop after this many frames (0 = all)")
	inspectCmd.Flags().BoolVar(&inspectOpts.hex, "hex", false, "include a hex dump of every frame")
}

func runInspect(ctx context.Context, path string, opts inspectOptions, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	r := pcapfile.NewReader(path, "")
	frames := make(chan core.RawPacket, 64)
	done := make(chan error, 1)
	go func() {
		done <- r.Capture(ctx, frames)
		close(frames)
	}()

	var n, tagged int
	for raw := range frames {
		if opts.count > 0 && n == opts.count {
			cancel()
			continue
		}
		n++

		pkt := gopacket.NewPacket(raw.Data, layers.LayerTypeEthernet, gopacket.Default)
		fmt.Fprintf(out, "Frame %d: %d bytes, %s\n", n, len(raw.Data), raw.Timestamp.Format("15:04:05.000000"))
		for _, l := range pkt.Layers() {
			fmt.Fprintf(out, "  %s\n", gopacket.LayerString(l))
		}
		if tag, ok := pkt.Layer(rtag.LayerTypeRTag).(*rtag.Layer); ok {
			tagged++
			fmt.Fprintf(out, "  => %s\n", tag.Header())
		}
		if el := pkt.ErrorLayer(); el != nil {
			fmt.Fprintf(out, "  !! %v\n", el.Error())
		}
		if opts.hex {
			fmt.Fprintln(out, pkt.Dump())
		}
	}
	if err := <-done; err != nil {
		return err
	}

	fmt.Fprintf(out, "%d frames, %d with R-TAG\n", n, tagged)
	return nil
}
