package main

import (
	"context"
	"encoding/json"
	"time"

	"github.com/spf13/cobra"

	"github.com/king0079z/Tender-Tracker-60/internal/api"
	"github.com/king0079z/Tender-Tracker-60/internal/monitor"
)

var queryTimeout time.Duration

var queryCmd = &cobra.Command{
	Use:   "query SQL [PARAM...]",
	Short: "Execute a statement through the tracker server",
	Long: `Execute a statement through the tracker server and print the result as
JSON.

Parameters that parse as JSON scalars are sent typed, so '"7"' is the
string 7 and 7 is a number. Anything else is sent as a string. Unreachable
failures are retried with the monitor backoff policy.

Examples:
  tracker query 'SELECT company_name FROM timelines'
  tracker query 'UPDATE timelines SET nda_received_completed = $1 WHERE company_id = $2' true '"7"'`,
	Args: cobra.MinimumNArgs(1),
	RunE: runQuery,
}

func init() {
	queryCmd.Flags().DurationVar(&queryTimeout, "timeout", 2*time.Minute, "overall deadline including retries")
}

func runQuery(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signalContext(cmd.Context())
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	client := api.NewClient(cfg.Monitor.ServerURL,
		api.WithTimeout(cfg.Monitor.RequestTimeout),
		api.WithLogger(logger),
	)
	mon := monitor.New(monitorConfig(cfg), client, logger)
	defer mon.Stop(context.Background())

	result, err := mon.Execute(ctx, args[0], parseParams(args[1:]))
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// parseParams keeps JSON scalars typed and passes everything else as text.
func parseParams(args []string) []any {
	if len(args) == 0 {
		return nil
	}
	params := make([]any, len(args))
	for i, arg := range args {
		var v any
		if err := json.Unmarshal([]byte(arg), &v); err == nil {
			switch v.(type) {
			case string, float64, bool, nil:
				params[i] = v
				continue
			}
		}
		params[i] = arg
	}
	return params
}
