package portfolio

import (
	"context"
	"fmt"
	"html"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/gommon/log"
	"github.com/pkg/errors"
)

const (
	dateLayout     = "2006-01-02"
	dateTimeLayout = "2006-01-02 15:04"
)

// label keys of the deadline panel
const (
	labelDeadlineAbsolute = "map.deadline.absolut.label"
	labelDeadlineFmt      = "map.deadline.%s.label"
)

// panel ids with remembered open state
const (
	PanelComment   = "comment"
	PanelDocuments = "assessmentDocuments"
)

//
// View is the state of the run panel
//
type View struct {
	// shown to admins and coaches, names the template
	CoachMessage string `json:"coachMessage,omitempty"`
	InfosVisible bool   `json:"infosVisible"`
	HighScore    bool   `json:"highScore"`
	Explanation  string `json:"explanation,omitempty"`

	Deadline *DeadlinePanel `json:"deadline,omitempty"`

	// "take a copy" state
	NewLink          bool   `json:"newLink"`
	AvailableMessage string `json:"availableMessage,omitempty"`

	// "open my copy" state
	SelectLink  bool   `json:"selectLink"`
	SelectTitle string `json:"selectTitle,omitempty"`
	CopyDate    string `json:"copyDate,omitempty"`

	Assessment *AssessmentPanel `json:"assessment,omitempty"`
}

type DeadlinePanel struct {
	Label string `json:"label"`
	Info  string `json:"info"`
}

type AssessmentPanel struct {
	ReturnDate     string `json:"returnDate"`
	ResultsVisible bool   `json:"resultsVisible"`

	HasScoreField bool   `json:"hasScoreField"`
	Score         string `json:"score,omitempty"`
	ScoreMin      string `json:"scoreMin,omitempty"`
	ScoreMax      string `json:"scoreMax,omitempty"`

	HasPassedField bool   `json:"hasPassedField"`
	Passed         *bool  `json:"passed,omitempty"`
	HasPassedValue bool   `json:"hasPassedValue"`
	PassedCutValue string `json:"passedCutValue,omitempty"`

	Comment     *string `json:"comment,omitempty"`
	CommentOpen bool    `json:"commentOpen"`

	Documents     []string `json:"documents,omitempty"`
	DocumentsOpen bool     `json:"documentsOpen"`
}

//
// outcome of asking for a new copy
//
type NewResult struct {
	// a copy was created
	Copied bool `json:"copied"`
	// the learner's binder is in the trash and has to be restored instead
	NeedsRestore bool   `json:"needsRestore"`
	Message      string `json:"message,omitempty"`
	View         *View  `json:"view"`
}

//
// Runner drives the portfolio run panel
//
type Runner struct {
	store  Store
	prefs  Preferences
	logger *log.Logger
	now    func() time.Time
}

func NewRunner(store Store, prefs Preferences, logger *log.Logger) *Runner {
	return &Runner{store: store, prefs: prefs, logger: logger, now: time.Now}
}

//
// View builds the panel for env
//
func (r *Runner) View(ctx context.Context, env Env) (*View, error) {

	cfg := env.Node.Config
	v := &View{
		InfosVisible: env.Participant,
		HighScore:    cfg.HasScoreField,
	}

	tpl, err := r.template(ctx, env)
	if err != nil {
		return nil, err
	}

	if env.Admin || env.Coach {
		title := ""
		if tpl != nil {
			title = html.EscapeString(tpl.Title)
		}
		v.CoachMessage = fmt.Sprintf("Learners take their own copy of the portfolio task %q.", title)
	}

	if strings.TrimSpace(cfg.Text) != "" {
		v.Explanation = cfg.Text
	}

	if cfg.HasDeadline() {
		v.Deadline = &DeadlinePanel{Label: fmt.Sprintf(labelDeadlineFmt, cfg.DeadlineType)}
		if cfg.DeadlineType == DeadlineAbsolute {
			v.Deadline.Info = formatDate(cfg.DeadlineDate)
		} else {
			v.Deadline.Info = relativeDeadlineInfo(cfg)
		}
	}

	if tpl == nil {
		return v, nil
	}

	cp, err := r.store.FindCopy(ctx, env.IdentityKey, tpl.Key, env.CourseEntry, env.Node.Ident)
	if err != nil {
		return nil, errors.Wrap(err, "cannot load portfolio copy")
	}

	if !cp.live() {
		v.NewLink = true
		v.AvailableMessage = fmt.Sprintf("The portfolio task %q is available. Create your own copy to start.", html.EscapeString(tpl.Title))
		return v, nil
	}

	v.SelectLink = true
	v.SelectTitle = html.EscapeString(cp.Title)
	v.CopyDate = formatDateTime(cp.CopyDate)

	if env.Participant && (cp.ReturnDate != nil || tpl.Kind == KindBinder) {
		panel, err := r.assessment(ctx, env, cp)
		if err != nil {
			return nil, err
		}
		v.Assessment = panel
	}

	// a taken copy carries its own absolute deadline
	if v.Deadline != nil && cp.Deadline != nil {
		v.Deadline.Label = labelDeadlineAbsolute
		v.Deadline.Info = formatDateTime(cp.Deadline)
	}

	return v, nil
}

//
// New hands the learner a copy of the template. A binder copy that sits in
// the trash is not replaced, the caller has to confirm a restore.
//
func (r *Runner) New(ctx context.Context, env Env) (*NewResult, error) {

	tpl, err := r.template(ctx, env)
	if err != nil {
		return nil, err
	}
	if tpl == nil {
		return nil, ErrNoTemplate
	}

	cp, err := r.store.FindCopy(ctx, env.IdentityKey, tpl.Key, env.CourseEntry, env.Node.Ident)
	if err != nil {
		return nil, errors.Wrap(err, "cannot load portfolio copy")
	}

	res := &NewResult{}
	switch {
	case tpl.Kind == KindBinder && cp != nil && cp.Status == StatusDeleted:
		res.NeedsRestore = true
		res.Message = fmt.Sprintf("Your copy %q is in the trash. Restore it?", html.EscapeString(cp.Title))
	case cp == nil:
		deadline := env.Node.Config.Deadline(r.now())
		if _, err := r.store.AssignCopy(ctx, env.IdentityKey, *tpl, env.CourseEntry, env.Node.Ident, deadline); err != nil {
			return nil, errors.Wrap(err, "cannot assign portfolio copy")
		}
		res.Copied = true
		res.Message = fmt.Sprintf("A copy of %q was created.", html.EscapeString(tpl.Title))
		r.logger.Infof("portfolio task started: identity %d template %d node %s", env.IdentityKey, tpl.Key, env.Node.Ident)
	}

	if res.View, err = r.View(ctx, env); err != nil {
		return nil, err
	}
	return res, nil
}

//
// Restore takes the learner's binder copy out of the trash
//
func (r *Runner) Restore(ctx context.Context, env Env) (*View, error) {

	tpl, err := r.template(ctx, env)
	if err != nil {
		return nil, err
	}
	if tpl == nil {
		return nil, ErrNoTemplate
	}

	cp, err := r.store.FindCopy(ctx, env.IdentityKey, tpl.Key, env.CourseEntry, env.Node.Ident)
	if err != nil {
		return nil, errors.Wrap(err, "cannot load portfolio copy")
	}
	if cp == nil {
		return nil, ErrNoCopy
	}

	if _, err := r.store.SetStatus(ctx, cp.Key, StatusOpen); err != nil {
		return nil, errors.Wrap(err, "cannot restore binder")
	}

	return r.View(ctx, env)
}

//
// SelectURL is the business path opening the learner's copy
//
func (r *Runner) SelectURL(ctx context.Context, env Env) (string, error) {

	tpl, err := r.template(ctx, env)
	if err != nil {
		return "", err
	}
	if tpl == nil {
		return "", ErrNoTemplate
	}

	cp, err := r.store.FindCopy(ctx, env.IdentityKey, tpl.Key, env.CourseEntry, env.Node.Ident)
	if err != nil {
		return "", errors.Wrap(err, "cannot load portfolio copy")
	}
	if cp == nil {
		return "", ErrNoCopy
	}

	if cp.Kind == KindMap {
		return fmt.Sprintf("[HomeSite:%d][Portfolio:0][EPStructuredMap:%d]", env.IdentityKey, cp.Key), nil
	}
	return fmt.Sprintf("[HomeSite:%d][PortfolioV2:0][MyBinders:0][Binder:%d]", env.IdentityKey, cp.Key), nil
}

//
// SavePanel remembers whether a panel is open for this learner, course and node
//
func (r *Runner) SavePanel(ctx context.Context, env Env, panel string, open bool) error {
	if strings.TrimSpace(panel) == "" {
		return errors.New("panel id is required")
	}
	return r.prefs.SavePanel(ctx, env.IdentityKey, panelKey(env, panel), open)
}

func (r *Runner) template(ctx context.Context, env Env) (*Template, error) {
	if env.Node.TemplateResource == "" {
		return nil, nil
	}
	tpl, err := r.store.TemplateByResource(ctx, env.Node.TemplateResource)
	if err != nil {
		return nil, errors.Wrap(err, "cannot load portfolio template")
	}
	return tpl, nil
}

func (r *Runner) assessment(ctx context.Context, env Env, cp *Copy) (*AssessmentPanel, error) {

	score := env.Score
	conf := env.Assessment

	p := &AssessmentPanel{
		ReturnDate:     formatDateTime(cp.ReturnDate),
		ResultsVisible: score.UserVisible == nil || *score.UserVisible,
		HasScoreField:  conf.ScoreMode != "" && conf.ScoreMode != ModeNone,
		HasPassedField: conf.PassedMode != "" && conf.PassedMode != ModeNone,
	}

	if p.HasScoreField {
		p.Score = roundedScore(score.Score)
		p.ScoreMin = roundedScore(conf.MinScore)
		p.ScoreMax = roundedScore(conf.MaxScore)
	}

	if p.HasPassedField {
		p.Passed = score.Passed
		p.HasPassedValue = score.Passed != nil
		p.PassedCutValue = roundedScore(conf.CutValue)
	}

	if !p.ResultsVisible {
		return p, nil
	}

	if conf.HasComment {
		comment := env.Comment
		p.Comment = &comment
		open, err := r.panelOpen(ctx, env, PanelComment)
		if err != nil {
			return nil, err
		}
		p.CommentOpen = open
	}

	if conf.HasDocuments {
		p.Documents = env.Documents
		open, err := r.panelOpen(ctx, env, PanelDocuments)
		if err != nil {
			return nil, err
		}
		p.DocumentsOpen = open
	}

	return p, nil
}

// panels are open unless the learner closed them
func (r *Runner) panelOpen(ctx context.Context, env Env, panel string) (bool, error) {
	open, found, err := r.prefs.PanelOpen(ctx, env.IdentityKey, panelKey(env, panel))
	if err != nil {
		return false, errors.Wrap(err, "cannot load panel preference")
	}
	if !found {
		return true, nil
	}
	return open, nil
}

func panelKey(env Env, panel string) string {
	return panel + "::" + strconv.FormatInt(env.CourseResID, 10) + "::" + env.Node.Ident
}

func relativeDeadlineInfo(cfg NodeConfig) string {
	var parts []string
	if s := strings.TrimSpace(cfg.DeadlineMonth); s != "" {
		parts = append(parts, s+" month(s)")
	}
	if s := strings.TrimSpace(cfg.DeadlineWeek); s != "" {
		parts = append(parts, s+" week(s)")
	}
	if s := strings.TrimSpace(cfg.DeadlineDay); s != "" {
		parts = append(parts, s+" day(s)")
	}
	if len(parts) == 0 {
		return ""
	}
	return strings.Join(parts, " ") + " after taking the task"
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(dateLayout)
}

func formatDateTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(dateTimeLayout)
}

// up to three decimals, trailing zeros dropped
func roundedScore(f *float64) string {
	if f == nil {
		return ""
	}
	return strconv.FormatFloat(math.Round(*f*1000)/1000, 'f', -1, 64)
}
