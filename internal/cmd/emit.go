package cmd

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/kerlexov/applog/pkg/logger"
	"github.com/kerlexov/applog/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
)

var (
	emitCount   int
	emitLevel   string
	emitMessage string
	emitUserID  string
	emitUpload  bool
	emitMetrics bool
)

var emitCmd = &cobra.Command{
	Use:   "emit",
	Short: "Write sample entries through the configured pipeline",
	Long: `Emit initializes a logger service from the config file and environment,
writes --count entries at --level, and optionally uploads the log files
afterwards. Useful for checking a collector end to end.

With --metrics the pipeline counters are printed once the service is closed.`,
	RunE: runEmit,
}

func init() {
	rootCmd.AddCommand(emitCmd)
	emitCmd.Flags().IntVarP(&emitCount, "count", "n", 1, "number of entries")
	emitCmd.Flags().StringVarP(&emitLevel, "level", "l", "info", "entry level")
	emitCmd.Flags().StringVarP(&emitMessage, "message", "m", "sample entry", "entry message")
	emitCmd.Flags().StringVar(&emitUserID, "user", "", "user id attached to every entry")
	emitCmd.Flags().BoolVar(&emitUpload, "upload", false, "upload log files after emitting")
	emitCmd.Flags().BoolVar(&emitMetrics, "metrics", false, "print pipeline counters when done")
}

func runEmit(cmd *cobra.Command, args []string) error {
	level, err := logger.ParseLevel(emitLevel)
	if err != nil {
		return err
	}

	config, err := logger.LoadConfig(configFile)
	if err != nil {
		return err
	}

	diagnostics := newDiagnostics()
	defer diagnostics.Sync()

	registry := prometheus.NewRegistry()
	opts := []logger.Option{
		logger.WithDiagnostics(diagnostics),
		logger.WithConsoleOutput(cmd.OutOrStdout()),
	}
	if emitMetrics {
		opts = append(opts, logger.WithMetrics(metrics.NewPipeline(registry)))
	}

	service := logger.NewService(opts...)
	if err := service.Initialize(config); err != nil {
		return err
	}

	err = emitEntries(cmd, service, level)
	err = multierr.Append(err, service.Close())

	if emitMetrics {
		err = multierr.Append(err, printCounters(cmd.OutOrStdout(), registry))
	}
	return err
}

func emitEntries(cmd *cobra.Command, service *logger.Service, level logger.LogLevel) error {
	if emitUserID != "" {
		service.SetUserID(emitUserID)
	}

	for i := 0; i < emitCount; i++ {
		service.Log(level, emitMessage, logger.F("seq", i+1))
	}
	service.Flush()

	if emitUpload {
		result := service.UploadLogs(cmd.Context())
		fmt.Fprintln(cmd.ErrOrStderr(), result.Message)
		if !result.Success {
			return fmt.Errorf("upload failed: %s", result.Message)
		}
	}
	return nil
}

// printCounters writes one "name{label="value"} n" line per counter series.
func printCounters(w io.Writer, registry *prometheus.Registry) error {
	families, err := registry.Gather()
	if err != nil {
		return err
	}

	var lines []string
	for _, family := range families {
		for _, metric := range family.GetMetric() {
			if metric.GetCounter() == nil {
				continue
			}
			labels := make([]string, 0, len(metric.GetLabel()))
			for _, pair := range metric.GetLabel() {
				labels = append(labels, fmt.Sprintf("%s=%q", pair.GetName(), pair.GetValue()))
			}
			name := family.GetName()
			if len(labels) > 0 {
				name += "{" + strings.Join(labels, ",") + "}"
			}
			lines = append(lines, fmt.Sprintf("%s %g", name, metric.GetCounter().GetValue()))
		}
	}
	sort.Strings(lines)

	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}
