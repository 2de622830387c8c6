package pullrequests

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

const (
	reportIndentationConstant         = 2
	reportEncodeErrorTemplateConstant = "unable to write result report: %w"
)

// Outcome names the terminal state of a workflow run.
type Outcome string

// Workflow outcomes.
const (
	OutcomeFound     Outcome = "found"
	OutcomeCreated   Outcome = "created"
	OutcomeNoCommits Outcome = "no-commits"
	OutcomePending   Outcome = "pending"
	OutcomeMerged    Outcome = "merged"
)

// Result summarizes a workflow run for downstream CI steps.
type Result struct {
	Outcome Outcome `yaml:"outcome"`
	Number  int     `yaml:"number,omitempty"`
	HeadSHA string  `yaml:"head_sha,omitempty"`
	Merged  bool    `yaml:"merged"`
}

// NewResult builds the result for a resolved pull request.
func NewResult(resolution Resolution) Result {
	return Result{
		Outcome: resolution.Outcome,
		Number:  resolution.Reference.Number,
		HeadSHA: resolution.Reference.HeadSHA,
	}
}

// WriteReport encodes the result as a YAML document.
func WriteReport(writer io.Writer, result Result) error {
	encoder := yaml.NewEncoder(writer)
	encoder.SetIndent(reportIndentationConstant)
	if encodeError := encoder.Encode(result); encodeError != nil {
		return fmt.Errorf(reportEncodeErrorTemplateConstant, encodeError)
	}
	if closeError := encoder.Close(); closeError != nil {
		return fmt.Errorf(reportEncodeErrorTemplateConstant, closeError)
	}
	return nil
}
