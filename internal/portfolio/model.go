//
// Package portfolio decides what the portfolio task panel of a course
// page shows: whether the learner can take a new copy of the task
// template or open the copy they already have, plus deadline, copy date
// and assessment details of that copy.
//
package portfolio

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

var (
	// the learner has no copy to open
	ErrNoCopy = errors.New("no portfolio copy")
	// the node references no portfolio template
	ErrNoTemplate = errors.New("no portfolio template")
)

//
// the two template flavours: legacy structured maps and binders
//
type Kind string

const (
	KindMap    Kind = "map"
	KindBinder Kind = "binder"
)

//
// lifecycle of a binder copy; maps only ever use StatusOpen
//
type Status string

const (
	StatusOpen    Status = "open"
	StatusClosed  Status = "closed"
	StatusDeleted Status = "deleted"
)

//
// task template referenced by a course node
//
type Template struct {
	Key        int64  `json:"key"`
	Kind       Kind   `json:"kind"`
	Title      string `json:"title"`
	ResourceID string `json:"resourceId"`
}

//
// a learner's own copy of a template
//
type Copy struct {
	Key         int64      `json:"key"`
	TemplateKey int64      `json:"templateKey"`
	Kind        Kind       `json:"kind"`
	OwnerKey    int64      `json:"ownerKey"`
	CourseEntry string     `json:"courseEntry"`
	NodeIdent   string     `json:"nodeIdent"`
	Title       string     `json:"title"`
	Status      Status     `json:"status"`
	CopyDate    *time.Time `json:"copyDate,omitempty"`
	ReturnDate  *time.Time `json:"returnDate,omitempty"`
	Deadline    *time.Time `json:"deadline,omitempty"`
}

// a deleted binder counts as no copy; maps have no deleted state
func (c *Copy) live() bool {
	if c == nil {
		return false
	}
	return c.Kind == KindMap || c.Status != StatusDeleted
}

//
// Store persists templates and copies
//
type Store interface {
	// nil, nil when the resource holds no template
	TemplateByResource(ctx context.Context, resourceID string) (*Template, error)
	// nil, nil when the owner has no copy; deleted binders are returned
	FindCopy(ctx context.Context, ownerKey, templateKey int64, courseEntry, nodeIdent string) (*Copy, error)
	AssignCopy(ctx context.Context, ownerKey int64, tpl Template, courseEntry, nodeIdent string, deadline *time.Time) (*Copy, error)
	SetStatus(ctx context.Context, copyKey int64, status Status) (*Copy, error)
}

//
// Preferences keeps per-user panel open/closed state
//
type Preferences interface {
	// found is false when nothing was saved under key
	PanelOpen(ctx context.Context, ownerKey int64, key string) (open bool, found bool, err error)
	SavePanel(ctx context.Context, ownerKey int64, key string, open bool) error
}

//
// how a score or passed value comes about
//
type Mode string

const (
	ModeNone      Mode = "none"
	ModeSetByNode Mode = "setByNode"
	ModeEvaluated Mode = "evaluated"
)

//
// the node's assessment settings
//
type AssessmentConfig struct {
	ScoreMode    Mode     `json:"scoreMode"`
	PassedMode   Mode     `json:"passedMode"`
	MinScore     *float64 `json:"minScore,omitempty"`
	MaxScore     *float64 `json:"maxScore,omitempty"`
	CutValue     *float64 `json:"cutValue,omitempty"`
	HasComment   bool     `json:"hasComment"`
	HasDocuments bool     `json:"hasDocuments"`
}

//
// the learner's evaluated score on the node
//
type ScoreEvaluation struct {
	Score       *float64 `json:"score,omitempty"`
	Passed      *bool    `json:"passed,omitempty"`
	UserVisible *bool    `json:"userVisible,omitempty"`
}

//
// the portfolio course node
//
type Node struct {
	Ident string `json:"ident"`
	// resource id of the referenced template, "" when none
	TemplateResource string     `json:"templateResource"`
	Config           NodeConfig `json:"-"`
}

//
// Env is everything known about the learner's visit to the node
//
type Env struct {
	IdentityKey int64 `json:"identityKey"`
	Admin       bool  `json:"admin"`
	Coach       bool  `json:"coach"`
	Participant bool  `json:"participant"`
	// course resource id and course repository entry
	CourseResID int64  `json:"courseResId"`
	CourseEntry string `json:"courseEntry"`
	Node        Node   `json:"node"`

	Score      ScoreEvaluation  `json:"score"`
	Assessment AssessmentConfig `json:"assessment"`
	Comment    string           `json:"comment"`
	Documents  []string         `json:"documents"`
}
