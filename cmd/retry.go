package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/geo-orchestrator/internal/fallback"
	"github.com/sells-group/geo-orchestrator/internal/jobrecord"
	"github.com/sells-group/geo-orchestrator/internal/model"
	"github.com/sells-group/geo-orchestrator/internal/scheduler"
)

var (
	retryInputPath  string
	retryOutputPath string
)

// retryCmd re-drives a previously run batch's rows through the Fallback
// Engine's retry mode (spec §4.6 "Retry mode"), reading the prior run's
// geo_* columns (as written by run.go) to seed RetryInput per row. Every
// row of the input is retried; rows are not filtered by their prior
// status or precision.
//
// Grounded on the teacher's retryFailedCmd in cmd/batch.go: same
// signal.NotifyContext + errgroup-backed concurrency shape, re-pointed
// at the Fallback Engine instead of a DLQ table.
var retryCmd = &cobra.Command{
	Use:   "retry",
	Short: "Re-geocode every row of a previous run in retry mode",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		rows, priors, header, err := readPreviousRunCSV(retryInputPath)
		if err != nil {
			return eris.Wrap(err, "retry: read input")
		}

		mapping := model.FieldMapping{
			Name:        colName,
			Street:      colStreet,
			PostalCode:  colPostalCode,
			City:        colCity,
			Governorate: colGovernorate,
			Country:     colCountry,
			Complement:  colComplement,
			FullAddress: colFullAddress,
		}

		engine, err := buildEngine(cfg)
		if err != nil {
			return eris.Wrap(err, "retry: build fallback engine")
		}

		job := jobrecord.Open("", len(rows))
		zap.L().Info("starting retry batch",
			zap.String("job_id", job.JobID),
			zap.Int("rows", len(rows)),
		)

		results := scheduler.Run(ctx, rows, scheduler.Config{
			BatchSize:   cfg.Batch.Size,
			WorkerCount: cfg.Batch.WorkerCount,
			Sink:        progressLogger{total: len(rows)},
		}, func(ctx context.Context, rowIndex int, row model.Row) model.Result {
			addr := model.Resolve(row, mapping)
			return engine.Retry(ctx, rowIndex, addr, priors[rowIndex])
		})
		job.Finalize(results)

		improved := 0
		for _, r := range results {
			if r.Improved {
				improved++
			}
		}
		zap.L().Info("retry batch complete",
			zap.String("job_id", job.JobID),
			zap.Int("success", job.SuccessCount),
			zap.Int("failed", job.FailedCount),
			zap.Int("improved", improved),
		)

		return writeCSVResults(retryOutputPath, header, rows, results)
	},
}

func init() {
	retryCmd.Flags().StringVar(&retryInputPath, "input", "", "previous run's output CSV path (required)")
	retryCmd.Flags().StringVar(&retryOutputPath, "output", "", "output CSV path (required)")
	_ = retryCmd.MarkFlagRequired("input")
	_ = retryCmd.MarkFlagRequired("output")
	rootCmd.AddCommand(retryCmd)
}

// readPreviousRunCSV reads a CSV previously written by run.go's
// writeCSVResults, splitting each record back into its original input
// columns plus a RetryInput derived from the geo_* columns it appended.
func readPreviousRunCSV(path string) ([]model.Row, []fallback.RetryInput, []string, error) {
	rows, fullHeader, err := readCSVRows(path)
	if err != nil {
		return nil, nil, nil, err
	}

	const numGeoCols = 7
	if len(fullHeader) < numGeoCols {
		return nil, nil, nil, eris.New("retry: input is missing the geo_* columns written by a prior run")
	}
	origHeader := fullHeader[:len(fullHeader)-numGeoCols]

	origRows := make([]model.Row, len(rows))
	priors := make([]fallback.RetryInput, len(rows))
	for i, row := range rows {
		origRow := make(model.Row, len(origHeader))
		for _, col := range origHeader {
			origRow[col] = row[col]
		}
		origRows[i] = origRow

		priors[i] = fallback.RetryInput{
			PreviousProvider:  model.ProviderName(row["geo_api_used"]),
			PreviousPrecision: model.PrecisionLevel(row["geo_precision_level"]),
			PreviousStatus:    model.Status(row["geo_status"]),
		}
	}
	return origRows, priors, origHeader, nil
}
