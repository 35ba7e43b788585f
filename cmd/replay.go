package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"firestige.xyz/frer/internal/analyzer"
	"firestige.xyz/frer/internal/config"
	"firestige.xyz/frer/internal/pcapfile"
)

var replayCmd = &cobra.Command{
	Use:   "replay FILE...",
	Short: "Analyze R-TAG frames from pcap or pcapng files",
	Long: `Replay capture files through the duplicate elimination engine.

Each file is read as one capture interface named after the file. Several files
are merged into one session, frames of each file staying in file order.

Examples:
  frer replay capture.pcap
  frer replay -e 2 -k flow enp2s0.pcapng enp11s0.pcapng
  frer replay -q --reject-malformed capture.pcap`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := replayOpts.apply(cmd, globalConfig); err != nil {
			return err
		}
		ctx, cancel := signalContext(0)
		defer cancel()
		return runReplay(ctx, globalConfig, args, cmd.OutOrStdout())
	},
}

var replayOpts analysisFlags

func init() {
	replayOpts.register(replayCmd)
}

func runReplay(ctx context.Context, cfg *config.GlobalConfig, files []string, out io.Writer) error {
	capturers := make([]analyzer.Capturer, 0, len(files))
	for _, f := range files {
		capturers = append(capturers, pcapfile.NewReader(f, ""))
	}

	st, err := runAnalysis(ctx, cfg, capturers, out)
	if err != nil {
		return err
	}
	if st.Received == 0 {
		return fmt.Errorf("no frames read from %v", files)
	}
	return nil
}
