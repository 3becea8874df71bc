package harness

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true if the replay ended as expected and every assertion held.
	Pass bool `json:"pass"`

	// Errors contains failure messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	Applied      int    `json:"applied"`
	Skipped      int    `json:"skipped"`
	LastPosition int64  `json:"last_position"`
	Digest       string `json:"digest,omitempty"`

	// ErrorCode is the code of the replay error that stopped the run, if any.
	ErrorCode string `json:"error_code,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Errors: []string{},
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
