package schemas

import (
	"hash/crc32"
	"strconv"
	"time"
)

// Message is a single role/content entry of an agent conversation.
type Message struct {
	Role    string `json:"role"    yaml:"role"    validate:"required"`
	Content string `json:"content" yaml:"content" validate:"required"`
}

// AgentQuery is one request issued against an agent model, either in-process
// during pre-deployment validation (canary query) or against the live
// endpoint during smoke testing.
type AgentQuery struct {
	// Input is the message sequence sent to the agent.
	Input []Message `json:"input" yaml:"input" validate:"required,min=1,dive"`

	// CustomInputs carries request-scoped extras such as the customer
	// identifier the agent should scope its answers to. Optional.
	CustomInputs map[string]string `json:"custom_inputs,omitempty" yaml:"custom_inputs"`

	// Description is a human-readable label used in logs and reports.
	Description string `json:"-" yaml:"description"`
}

// Label returns the query's description, falling back to the first input
// message so that logs always carry something meaningful.
func (q AgentQuery) Label() string {
	if q.Description != "" {
		return q.Description
	}

	if len(q.Input) > 0 {
		return q.Input[0].Content
	}

	return "(empty query)"
}

// ContentBlock is one typed chunk of an agent output message.
type ContentBlock struct {
	Type string `json:"type,omitempty"`
	Text string `json:"text,omitempty"`
}

// OutputItem is a single entry of the agent response output sequence.
type OutputItem struct {
	Role    string         `json:"role,omitempty"`
	Content []ContentBlock `json:"content,omitempty"`
}

// AgentResponse is the response shape returned both by in-process predictions
// and by the live serving endpoint.
type AgentResponse struct {
	Output        []OutputItem      `json:"output"`
	CustomOutputs map[string]string `json:"custom_outputs,omitempty"`
}

// Empty reports whether the response carries no output at all. Validation
// treats an empty response as a failure.
func (r AgentResponse) Empty() bool {
	return len(r.Output) == 0
}

// FirstText returns the first text block found in the response output, or an
// empty string when none exists.
func (r AgentResponse) FirstText() string {
	for _, out := range r.Output {
		for _, block := range out.Content {
			if block.Text != "" {
				return block.Text
			}
		}
	}

	return ""
}

// SmokeTestCaseResult records the outcome of a single smoke-test case. Cases
// are independent: one failure never blocks the others.
type SmokeTestCaseResult struct {
	Description string // Label of the case
	Passed      bool   // Whether the endpoint answered with a non-empty output
	Error       string // Failure message, empty on success
	Answer      string // Truncated first text of the response, for the report
}

// SmokeTestReport aggregates the per-case outcomes of one smoke-test run
// against a deployed endpoint.
type SmokeTestReport struct {
	EndpointName string                // The endpoint that was tested
	Results      []SmokeTestCaseResult // Per-case outcomes, in execution order
	RanAt        time.Time             // When the run finished
}

// PassedCount returns how many cases passed.
func (r SmokeTestReport) PassedCount() (n int) {
	for _, res := range r.Results {
		if res.Passed {
			n++
		}
	}

	return
}

// FailedCount returns how many cases failed.
func (r SmokeTestReport) FailedCount() int {
	return len(r.Results) - r.PassedCount()
}

// SmokeTestReportKey is a unique identifier for a smoke-test report.
type SmokeTestReportKey string

// Key generates a unique key for a SmokeTestReport using a CRC32 checksum of
// the endpoint name and run time.
func (r SmokeTestReport) Key() SmokeTestReportKey {
	return SmokeTestReportKey(strconv.Itoa(int(crc32.ChecksumIEEE(
		[]byte(r.EndpointName + r.RanAt.UTC().Format(time.RFC3339)),
	))))
}

// SmokeTestReports is a map used to keep track of smoke-test runs.
type SmokeTestReports map[SmokeTestReportKey]SmokeTestReport

// Count returns the number of recorded smoke-test reports.
func (rs SmokeTestReports) Count() int {
	return len(rs)
}
