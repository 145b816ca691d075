package sandbox

// Judge0 status IDs that the classifier distinguishes.
const (
	StatusAccepted          = 3
	StatusTimeLimitExceeded = 5
	StatusCompilationError  = 6
	StatusRuntimeError      = 11
)

// Status is the execution status reported by Judge0.
type Status struct {
	ID          int    `json:"id"`
	Description string `json:"description"`
}

// Result is a decoded Judge0 submission. Output fields are base64-decoded and trimmed.
type Result struct {
	Status        Status `json:"status"`
	Stdout        string `json:"stdout"`
	Stderr        string `json:"stderr"`
	CompileOutput string `json:"compile_output"`
	Message       string `json:"message"`
	Time          string `json:"time"`
	Memory        int    `json:"memory"`
}

// Accepted reports whether the program ran to completion.
func (r *Result) Accepted() bool {
	return r.Status.ID == StatusAccepted
}

// Failure classifies a non-accepted result into the message shown to the
// candidate. It returns "" for accepted results.
func (r *Result) Failure() string {
	switch r.Status.ID {
	case StatusAccepted:
		return ""
	case StatusTimeLimitExceeded:
		return "Time limit exceeded - possible infinite loop"
	case StatusCompilationError:
		return firstNonEmpty(r.CompileOutput, "Compilation error")
	case StatusRuntimeError:
		return firstNonEmpty(r.Stderr, "Runtime error")
	default:
		return firstNonEmpty(r.Status.Description, r.Stderr, "Execution error")
	}
}

// deterministic reports whether resubmitting the same program would yield the same result.
func (r *Result) deterministic() bool {
	return r.Status.ID == StatusAccepted || r.Status.ID == StatusCompilationError
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
