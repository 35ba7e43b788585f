package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"firestige.xyz/frer/internal/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file",
	Long: `Validate a frer configuration file without capturing or sending anything.

The file is loaded with environment overrides applied, every section is
checked, and every reporter is created and initialized with its own config.

Examples:
  frer validate -f frer.yml
  FRER_ANALYZER_STREAM_KEY=flow frer validate -f frer.yml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runValidate(validateConfigFile, cmd.OutOrStdout())
	},
}

var validateConfigFile string

func init() {
	validateCmd.Flags().StringVarP(&validateConfigFile, "file", "f", "",
		"configuration file to validate (required)")
	validateCmd.MarkFlagRequired("file")
}

func runValidate(path string, out io.Writer) error {
	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(out, "INVALID: %v\n", err)
		return err
	}
	reporters, err := buildReporters(cfg.Reporters, io.Discard)
	if err != nil {
		fmt.Fprintf(out, "INVALID: %v\n", err)
		return err
	}

	names := make([]string, 0, len(reporters))
	for _, r := range reporters {
		names = append(names, r.Name())
	}
	fmt.Fprintf(out, "VALID: analyzer on %s (stream key %s, %d expected copies), sender on %s, reporters: %s\n",
		strings.Join(cfg.Analyzer.Interfaces, ","),
		cfg.Analyzer.StreamKey,
		cfg.Analyzer.ExpectedCopies,
		strings.Join(cfg.Sender.Interfaces, ","),
		strings.Join(names, ","),
	)
	return nil
}
