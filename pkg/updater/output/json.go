package output

import (
	"bytes"
	"encoding/json"
	"time"
)

// jsonOutput is the full JSON output structure.
type jsonOutput struct {
	Meta       jsonMeta        `json:"meta"`
	Operations []jsonOperation `json:"operations"`
	Result     *jsonResult     `json:"result,omitempty"`
	Warnings   []jsonWarning   `json:"warnings,omitempty"`
}

// jsonMeta describes the run inputs.
type jsonMeta struct {
	SnapshotRoot string    `json:"snapshot_root"`
	InstanceRoot string    `json:"instance_root"`
	Branch       string    `json:"branch,omitempty"`
	Commit       string    `json:"commit,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	Mutations    int       `json:"mutations"`
}

// jsonOperation is one planned operation, with its outcome when the
// plan was executed.
type jsonOperation struct {
	Kind   string `json:"kind"`
	Path   string `json:"path"`
	Size   int64  `json:"size,omitempty"`
	Status string `json:"status,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// jsonResult is the aggregate execution outcome.
type jsonResult struct {
	RunID   string `json:"run_id"`
	Status  string `json:"status"`
	Applied int    `json:"applied"`
	Skipped int    `json:"skipped"`
	Failed  int    `json:"failed"`
	Elapsed string `json:"elapsed"`
}

// jsonWarning is a non-fatal walk problem.
type jsonWarning struct {
	Path  string `json:"path"`
	Error string `json:"error"`
}

// JSONFormatter formats a report as a single indented JSON document.
type JSONFormatter struct{}

// Format writes the formatted report to the buffer.
func (f *JSONFormatter) Format(w *bytes.Buffer, r *Report) error {
	out := jsonOutput{
		Meta: jsonMeta{
			SnapshotRoot: r.Plan.SnapshotRoot,
			InstanceRoot: r.Plan.InstanceRoot,
			Branch:       r.Branch,
			Commit:       r.Commit,
			CreatedAt:    r.Plan.CreatedAt,
			Mutations:    r.Plan.Mutations(),
		},
	}

	out.Operations = make([]jsonOperation, len(r.Plan.Operations))
	for i, op := range r.Plan.Operations {
		out.Operations[i] = jsonOperation{
			Kind: op.Kind.String(),
			Path: op.Path,
			Size: op.Size,
		}
	}

	if r.Result != nil {
		for i, res := range r.Result.Results {
			if i < len(out.Operations) {
				out.Operations[i].Status = res.Status.String()
				out.Operations[i].Reason = res.Reason
			}
		}
		out.Result = &jsonResult{
			RunID:   r.Result.RunID,
			Status:  r.Result.Status.String(),
			Applied: r.Result.Applied,
			Skipped: r.Result.Skipped,
			Failed:  r.Result.Failed,
			Elapsed: r.Result.Elapsed.String(),
		}
	}

	for _, warn := range r.Plan.Warnings {
		out.Warnings = append(out.Warnings, jsonWarning{Path: warn.Path, Error: warn.Error})
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(out)
}

func init() {
	Register("json", func() Formatter { return &JSONFormatter{} })
}

// Ensure JSONFormatter implements Formatter.
var _ Formatter = (*JSONFormatter)(nil)
