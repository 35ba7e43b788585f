package cmd

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"firestige.xyz/frer/internal/afpacket"
	"firestige.xyz/frer/internal/config"
	"firestige.xyz/frer/internal/log"
	"firestige.xyz/frer/internal/pcapfile"
	"firestige.xyz/frer/internal/sender"
)

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Generate R-TAG traffic scenarios",
	Long: `Send R-TAG frames: every frame goes out as an original followed by its
duplicates, sender.duplicate_gap apart. Scenarios that use two interfaces run
one lane per interface concurrently.

Scenarios:
  reference      3 VLAN frames without R-TAG
  official       sequences 1-5
  basic          sequences 1-10
  multi-stream   streams 1-3 x sequences 1-5
  vlan-priority  priorities 0/3/6/7 on VLANs 100/200/300/400
  payload-size   payloads of 64 to 1500 bytes
  wraparound     sequences 65533, 65534, 65535, 0, 1, 2
  bidirectional  sequences 100-102 and 200-202 on two interfaces
  all            every R-TAG scenario, sender.scenario_pause apart

Examples:
  frer send -s basic
  frer send -s bidirectional -i enp2s0 -i enp11s0
  frer send -s all --write sent.pcap           # send and record
  frer send -s wraparound --dry-run -w out.pcap  # record only, no sockets`,
	RunE: func(cmd *cobra.Command, args []string) error {
		s := &globalConfig.Sender
		if cmd.Flags().Changed("interface") {
			s.Interfaces = sendOpts.interfaces
		}
		if cmd.Flags().Changed("copies") {
			s.Copies = sendOpts.copies
		}
		if err := globalConfig.ValidateAndApplyDefaults(); err != nil {
			return err
		}

		ctx, cancel := signalContext(0)
		defer cancel()
		return runSend(ctx, globalConfig.Sender, sendOpts, cmd.OutOrStdout())
	},
}

type sendOptions struct {
	scenario   string
	interfaces []string
	copies     int
	write      string
	dryRun     bool
	list       bool
}

var sendOpts sendOptions

func init() {
	sendCmd.Flags().StringVarP(&sendOpts.scenario, "scenario", "s", "all", "scenario to send")
	sendCmd.Flags().StringSliceVarP(&sendOpts.interfaces, "interface", "i", nil,
		"transmit interface, repeatable (default from config)")
	sendCmd.Flags().IntVar(&sendOpts.copies, "copies", 0, "copies per frame (default from config)")
	sendCmd.Flags().StringVarP(&sendOpts.write, "write", "w", "", "record transmitted frames to this pcap file")
	sendCmd.Flags().BoolVar(&sendOpts.dryRun, "dry-run", false, "do not open sockets")
	sendCmd.Flags().BoolVarP(&sendOpts.list, "list", "l", false, "list scenarios and exit")
}

// discard drops frames in a dry run without a recording.
type discard struct{}

func (discard) WritePacketData([]byte) error { return nil }

func runSend(ctx context.Context, cfg config.SenderConfig, opts sendOptions, out io.Writer) error {
	scfg, err := sender.ConfigFrom(cfg)
	if err != nil {
		return err
	}

	if opts.list {
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "SCENARIO\tFRAMES\tDESCRIPTION")
		for _, sc := range sender.Scenarios() {
			fmt.Fprintf(tw, "%s\t%d\t%s\n", sc.Name, sc.Frames(scfg.Copies), sc.Description)
		}
		return tw.Flush()
	}

	sc, err := sender.Lookup(opts.scenario)
	if err != nil {
		return err
	}

	var recorder *pcapfile.Writer
	if opts.write != "" {
		if recorder, err = pcapfile.Create(opts.write); err != nil {
			return err
		}
		defer recorder.Close()
	}

	tx := make(map[string]sender.Transmitter, len(scfg.Interfaces))
	for _, iface := range scfg.Interfaces {
		var tee sender.Tee
		if !opts.dryRun {
			t, err := afpacket.OpenTransmitter(iface)
			if err != nil {
				return err
			}
			defer t.Close()
			tee = append(tee, t)
		}
		if recorder != nil {
			tee = append(tee, recorder)
		}
		if len(tee) == 0 {
			tx[iface] = discard{}
		} else {
			tx[iface] = tee
		}
	}
	scfg.DiscoverMAC = !opts.dryRun

	s, err := sender.New(scfg, tx)
	if err != nil {
		return err
	}
	runErr := s.Run(ctx, sc)

	fmt.Fprintf(out, "Sent %d frames (scenario %s, %d copies each)\n", s.Sent(), sc.Name, scfg.Copies)
	if recorder != nil {
		if err := recorder.Close(); err != nil {
			log.GetLogger().WithError(err).Warn("closing recording failed")
		}
		fmt.Fprintf(out, "Recorded %d frames to %s\n", recorder.Packets(), opts.write)
	}
	return runErr
}
