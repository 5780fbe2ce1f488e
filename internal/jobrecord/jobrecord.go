// Package jobrecord implements the Job Recorder (C8): pure
// open/finalize bookkeeping for one batch job, with no I/O.
//
// Grounded on original_source/src/geocoding.py's create_job_entry and
// finalize_job, generalized from a pandas value_counts() roll-up to
// explicit precision/provider histograms, and using
// github.com/google/uuid for job IDs in place of the caller-supplied
// string id the source assumed.
package jobrecord

import (
	"time"

	"github.com/google/uuid"

	"github.com/sells-group/geo-orchestrator/internal/model"
)

// Status is the lifecycle state of a Job record.
type Status string

const (
	StatusInProgress Status = "in_progress"
	StatusSuccess    Status = "success"
	StatusFailed     Status = "failed"
)

// Job is the append-only record for one Batch Scheduler invocation
// (spec §3 "Job record").
type Job struct {
	JobID              string
	StartedAt          time.Time
	EndedAt            time.Time
	Status             Status
	TotalRows          int
	SuccessCount       int
	FailedCount        int
	PrecisionHistogram map[model.PrecisionLevel]int
	APIHistogram       map[model.ProviderName]int

	sealed bool
}

// Open creates an in_progress Job for a batch of total rows. jobID ==
// ""generates a fresh uuid.
func Open(jobID string, total int) *Job {
	if jobID == "" {
		jobID = uuid.NewString()
	}
	return &Job{
		JobID:     jobID,
		StartedAt: time.Now().UTC(),
		Status:    StatusInProgress,
		TotalRows: total,
	}
}

// Finalize computes counts and histograms from results and seals the
// job. Finalize is a no-op on an already-sealed job (append-only
// invariant, spec §3 "Lifecycles").
func (j *Job) Finalize(results []model.Result) {
	if j.sealed {
		return
	}

	precisionHistogram := make(map[model.PrecisionLevel]int)
	apiHistogram := make(map[model.ProviderName]int)
	success, failed := 0, 0

	for _, r := range results {
		if r.OK() {
			success++
			precisionHistogram[r.PrecisionLevel]++
		} else {
			failed++
		}
		if r.APIUsed != "" {
			apiHistogram[r.APIUsed]++
		}
	}

	j.EndedAt = time.Now().UTC()
	j.Status = StatusSuccess
	j.SuccessCount = success
	j.FailedCount = failed
	j.PrecisionHistogram = precisionHistogram
	j.APIHistogram = apiHistogram
	j.sealed = true
}

// Sealed reports whether Finalize has already run.
func (j *Job) Sealed() bool { return j.sealed }
