package otfreporter

import (
	"encoding/json"
	"time"

	"github.com/nsip/otf-reporter/internal/portfolio"
	"github.com/nsip/otf-reporter/internal/reporter"
)

//
// Request payloads of the web service.
// All payloads are json; nested identities and nodes
// cannot travel as form or query params.
//

//
// asks for the outcome variables of a packaged test
//
type VariablesRequest struct {
	Entry reporter.RepositoryEntry `json:"entry"`
}

//
// asks for a learner's computed results on a node
//
type ResultsRequest struct {
	Identity reporter.Identity `json:"identity"`
	Node     reporter.Node     `json:"node"`
	// 0 selects the newest result file
	AssessmentID int64 `json:"assessmentId"`
}

//
// asks for a link into the reporter pages
//
type LinkRequest struct {
	Caller       reporter.Identity   `json:"caller"`
	Students     []reporter.Identity `json:"students"`
	Node         reporter.Node       `json:"node"`
	AssessmentID int64               `json:"assessmentId"`
	StudentView  bool                `json:"studentView"`
	ReporterView bool                `json:"reporterView"`
	// folder below the survey root, results are then read anonymously
	SurveyDir string `json:"surveyDir"`
}

//
// asks for the statistical view over a survey folder
//
type SurveyRequest struct {
	Caller    reporter.Identity `json:"caller"`
	Node      reporter.Node     `json:"node"`
	SurveyDir string            `json:"surveyDir"`
}

//
// asks whether anything can be shown for a node
//
type HasResultsRequest struct {
	ForSurvey bool                `json:"forSurvey"`
	Students  []reporter.Identity `json:"students"`
	SurveyDir string              `json:"surveyDir"`
	Node      reporter.Node       `json:"node"`
}

//
// registers a portfolio task template
//
type TemplateRequest struct {
	Kind       portfolio.Kind `json:"kind"`
	Title      string         `json:"title"`
	ResourceID string         `json:"resourceId"`
}

//
// a learner's visit to a portfolio node; the node's module
// configuration is passed through as raw json
//
type PortfolioRequest struct {
	portfolio.Env
	NodeConfig json.RawMessage `json:"nodeConfig"`
}

//
// remembers the open state of a run panel
//
type PanelRequest struct {
	PortfolioRequest
	Panel string `json:"panel"`
	Open  bool   `json:"open"`
}

//
// records the hand back of an assessed copy
//
type ReturnRequest struct {
	CopyKey int64 `json:"copyKey"`
	// defaults to now
	ReturnDate *time.Time `json:"returnDate"`
}
