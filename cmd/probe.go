package cmd

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/smazurov/sidecar/internal/notifier"
	"github.com/smazurov/sidecar/internal/readiness"
	"github.com/spf13/cobra"
)

// CreateProbeCmd creates the probe command, which runs the readiness parser
// over lines given as arguments or read from stdin.
func CreateProbeCmd() *cobra.Command {
	var marker string
	var printURL bool

	cmd := &cobra.Command{
		Use:   "probe [line...]",
		Short: "Parse readiness announcements",
		Long: `Runs the readiness parser over each line and prints the port of the first announcement. ` +
			`Lines come from the arguments, or from stdin when none are given. Exits 1 when no line matches.`,
		Example: `  sidecar probe "Server running on http://127.0.0.1:54231"
  ./server | sidecar probe --url`,
		RunE: func(c *cobra.Command, args []string) error {
			parser := readiness.NewParser(marker)

			var in io.Reader = c.InOrStdin()
			if len(args) > 0 {
				in = strings.NewReader(strings.Join(args, "\n"))
			}

			port, ok, err := probe(parser, in)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("no line contains %q followed by a port", parser.Marker())
			}

			if printURL {
				fmt.Fprintln(c.OutOrStdout(), notifier.URL(port))
			} else {
				fmt.Fprintln(c.OutOrStdout(), port)
			}
			return nil
		},
		SilenceUsage: true,
	}

	cmd.Flags().StringVar(&marker, "marker", readiness.Marker, "Text that marks a readiness line")
	cmd.Flags().BoolVar(&printURL, "url", false, "Print the backend URL instead of the port")

	return cmd
}

// probe returns the port of the first matching line. It stops reading at the
// first match.
func probe(parser *readiness.Parser, in io.Reader) (uint16, bool, error) {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		if port, ok := parser.Parse(strings.TrimSuffix(scanner.Text(), "\r")); ok {
			return port, true, nil
		}
	}
	return 0, false, scanner.Err()
}
