//
// Package reporter talks to the external result-reporting service.
// It locates learners' result files on disk, hands them to the service
// together with the test's content package and returns either the
// computed outcome values or a link into the reporter's own pages.
//
package reporter

import (
	"strings"

	"github.com/pkg/errors"
)

// protocol version sent on every remote call
const protocolVersion = 1

// placeholder for blank first/last names
const noName = "NONAME"

// session id used when the service does not hand one back
const dummySessionID = "dummy"

// marker the service embeds in urls pointing at its own error page
const errorPageMarker = "reportererror"

// view suffixes appended to the reporter url
const (
	viewAllLearners   = "4"
	viewSingleLearner = "1"
	viewReporting     = "5"
)

var (
	// the service could not be reached when the connector was dialled
	ErrServiceUnavailable = errors.New("reporter service unavailable")
	// the service did not return a usable value
	ErrReporting = errors.New("reporter error")
)

//
// an LMS user as far as the reporter is concerned
//
type Identity struct {
	Key       int64  `json:"key"`
	Name      string `json:"name"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

//
// the repository entry holding the packaged test
//
type RepositoryEntry struct {
	ResourceID   string `json:"resourceId"`
	ResourceName string `json:"resourceName"`
}

//
// the course node the test is attached to
//
type Node struct {
	Ident          string          `json:"ident"`
	ShortName      string          `json:"shortName"`
	AssessmentType string          `json:"assessmentType"`
	Entry          RepositoryEntry `json:"entry"`
}

//
// one learner's results as submitted to the service
//
type ResultRecord struct {
	StudentID   string
	FirstName   string
	LastName    string
	GroupName   string
	TutorName   string
	ResultsFile []byte
}

//
// the pair handed out by armSite, passed unchanged to
// every later call of the same interaction
//
type Session struct {
	Secret string
	ID     string
}

//
// request for a link into the reporter pages
//
type LinkRequest struct {
	Caller   Identity
	Students []Identity
	Node     Node
	// selects a specific attempt, 0 picks the newest result file
	AssessmentID int64
	StudentView  bool
	ReporterView bool
	// when set, results are read anonymously from this folder instead
	// of the students' reporting directories
	SurveyDir string
}

func nameOrPlaceholder(s string) string {
	if strings.TrimSpace(s) == "" {
		return noName
	}
	return s
}
