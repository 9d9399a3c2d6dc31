package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/kerlexov/applog/pkg/logger"
	"github.com/kerlexov/applog/pkg/uploader"
	"github.com/spf13/cobra"
)

var (
	uploadEndpoint string
	uploadFormat   string
	uploadRetries  int
)

var uploadCmd = &cobra.Command{
	Use:   "upload [dir]",
	Short: "Upload every *.log file in a directory",
	Long: `Upload sends each *.log file in dir (default: the configured log directory)
to the upload endpoint, either one multipart request per file or a single
aggregated JSON document. The result is printed as JSON.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runUpload,
}

func init() {
	rootCmd.AddCommand(uploadCmd)
	uploadCmd.Flags().StringVarP(&uploadEndpoint, "endpoint", "e", "", "upload endpoint (overrides config)")
	uploadCmd.Flags().StringVarP(&uploadFormat, "format", "f", "", "multipart or json (overrides config)")
	uploadCmd.Flags().IntVar(&uploadRetries, "retries", 0, "attempts per file (overrides config)")
}

func runUpload(cmd *cobra.Command, args []string) error {
	loggerConfig, err := logger.LoadConfig(configFile)
	if err != nil {
		return err
	}

	upload := uploader.DefaultConfig()
	if loggerConfig.Upload != nil {
		upload = *loggerConfig.Upload
	}
	if uploadEndpoint != "" {
		upload.Endpoint = uploadEndpoint
	}
	if uploadFormat != "" {
		upload.Format = uploader.Format(uploadFormat)
	}
	if uploadRetries > 0 {
		upload.MaxRetries = uploadRetries
	}

	dir := loggerConfig.File.Dir
	if len(args) == 1 {
		dir = args[0]
	}
	if dir == "" {
		return fmt.Errorf("no log directory given and none configured")
	}
	files, err := logFilesIn(dir)
	if err != nil {
		return err
	}

	log := newDiagnostics()
	defer log.Sync()

	up, err := uploader.New(upload, uploader.WithLogger(log))
	if err != nil {
		return err
	}

	result := up.Upload(cmd.Context(), files)

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		return err
	}
	if !result.Success {
		return fmt.Errorf("upload failed: %s", result.Message)
	}
	return nil
}

// logFilesIn lists *.log files in dir, newest first.
func logFilesIn(dir string) ([]string, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.log"))
	if err != nil {
		return nil, err
	}

	modTimes := make(map[string]int64, len(files))
	for _, f := range files {
		info, err := os.Stat(f)
		if err != nil {
			return nil, err
		}
		modTimes[f] = info.ModTime().UnixNano()
	}
	sort.SliceStable(files, func(i, j int) bool {
		return modTimes[files[i]] > modTimes[files[j]]
	})
	return files, nil
}
