package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"firestige.xyz/frer/internal/afpacket"
	"firestige.xyz/frer/internal/analyzer"
	"firestige.xyz/frer/internal/config"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Capture live traffic and eliminate duplicate R-TAG frames",
	Long: `Capture frames on one or more interfaces with AF_PACKET and classify every
R-TAG frame as ORIGINAL (first copy, accepted) or DUPLICATE (eliminated).

Frames from all interfaces are analyzed by a single loop in arrival order.
Statistics are reported every --report-every R-TAG frames and at exit.
Requires Linux and CAP_NET_RAW.

Examples:
  frer analyze                                  # interfaces and filter from config
  frer analyze -i enp2s0 -i enp11s0 -k vlan     # two interfaces, one stream per VLAN
  frer analyze -i enp2s0 -d 30s --filter ''     # 30 seconds, no BPF filter`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := analyzeOpts.apply(cmd, globalConfig); err != nil {
			return err
		}
		a := &globalConfig.Analyzer
		if cmd.Flags().Changed("interface") {
			a.Interfaces = analyzeInterfaces
		}
		if cmd.Flags().Changed("filter") {
			a.BPFFilter = analyzeFilter
		}

		capturers, err := liveCapturers(*a)
		if err != nil {
			return err
		}

		ctx, cancel := signalContext(analyzeDuration)
		defer cancel()

		_, err = runAnalysis(ctx, globalConfig, capturers, cmd.OutOrStdout())
		return err
	},
}

var (
	analyzeOpts       analysisFlags
	analyzeInterfaces []string
	analyzeFilter     string
	analyzeDuration   time.Duration
)

func init() {
	analyzeOpts.register(analyzeCmd)
	analyzeCmd.Flags().StringSliceVarP(&analyzeInterfaces, "interface", "i", nil,
		"capture interface, repeatable (default from config)")
	analyzeCmd.Flags().StringVar(&analyzeFilter, "filter", "",
		"BPF filter (default from config)")
	analyzeCmd.Flags().DurationVarP(&analyzeDuration, "duration", "d", 0,
		"stop after this long (0 = until interrupted)")
}

func liveCapturers(a config.AnalyzerConfig) ([]analyzer.Capturer, error) {
	if len(a.Interfaces) == 0 {
		return nil, fmt.Errorf("no capture interface configured")
	}
	capturers := make([]analyzer.Capturer, 0, len(a.Interfaces))
	for _, iface := range a.Interfaces {
		c, err := afpacket.NewCapturer(afpacket.Config{
			Interface:    iface,
			BPFFilter:    a.BPFFilter,
			SnapLen:      a.SnapLen,
			BufferSizeMB: a.RingSizeMB,
		})
		if err != nil {
			return nil, err
		}
		capturers = append(capturers, c)
	}
	return capturers, nil
}
