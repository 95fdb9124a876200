package portfolio_test

import (
	"context"
	"io"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/labstack/gommon/log"
	"github.com/nsip/otf-reporter/internal/portfolio"
	"github.com/nsip/otf-reporter/internal/portfolio/store"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRunner(t *testing.T) (*portfolio.Runner, *store.Store) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "portfolio.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	logger := log.New("test")
	logger.SetOutput(io.Discard)
	return portfolio.NewRunner(st, st, logger), st
}

func participantEnv(resource string) portfolio.Env {
	return portfolio.Env{
		IdentityKey: 42,
		Participant: true,
		CourseResID: 9,
		CourseEntry: "course-9",
		Node: portfolio.Node{
			Ident:            "node-1",
			TemplateResource: resource,
		},
	}
}

func addTemplate(t *testing.T, st *store.Store, kind portfolio.Kind, title string) *portfolio.Template {
	t.Helper()
	tpl, err := st.AddTemplate(context.Background(), portfolio.Template{Kind: kind, Title: title, ResourceID: "res-" + string(kind)})
	require.NoError(t, err)
	return tpl
}

func TestView_NoCopyOffersNewLink(t *testing.T) {
	r, st := newRunner(t)
	addTemplate(t, st, portfolio.KindBinder, "Tom & Jerry")

	v, err := r.View(context.Background(), participantEnv("res-binder"))
	require.NoError(t, err)
	assert.True(t, v.InfosVisible)
	assert.True(t, v.NewLink)
	assert.False(t, v.SelectLink)
	assert.Contains(t, v.AvailableMessage, "Tom &amp; Jerry")
	assert.Empty(t, v.CoachMessage)
	assert.Nil(t, v.Assessment)
}

func TestView_CoachMessage(t *testing.T) {
	r, st := newRunner(t)
	addTemplate(t, st, portfolio.KindMap, "<b>Map</b>")

	env := participantEnv("res-map")
	env.Participant = false
	env.Coach = true
	v, err := r.View(context.Background(), env)
	require.NoError(t, err)
	assert.Contains(t, v.CoachMessage, "&lt;b&gt;Map&lt;/b&gt;")
	assert.False(t, v.InfosVisible)
}

func TestView_WithoutTemplate(t *testing.T) {
	r, _ := newRunner(t)
	env := participantEnv("")
	env.Node.Config = portfolio.NodeConfig{Text: "  "}

	v, err := r.View(context.Background(), env)
	require.NoError(t, err)
	assert.False(t, v.NewLink)
	assert.False(t, v.SelectLink)
	assert.Empty(t, v.Explanation)
}

func TestNew_BinderAssignsCopyWithDeadline(t *testing.T) {
	r, st := newRunner(t)
	tpl := addTemplate(t, st, portfolio.KindBinder, "Reflection")

	env := participantEnv("res-binder")
	env.Node.Config = portfolio.NodeConfig{DeadlineType: portfolio.DeadlineRelative, DeadlineWeek: "2"}

	res, err := r.New(context.Background(), env)
	require.NoError(t, err)
	assert.True(t, res.Copied)
	assert.False(t, res.NeedsRestore)

	v := res.View
	assert.True(t, v.SelectLink)
	assert.False(t, v.NewLink)
	assert.Equal(t, "Reflection", v.SelectTitle)
	assert.NotEmpty(t, v.CopyDate)
	require.NotNil(t, v.Deadline)
	assert.Equal(t, "map.deadline.absolut.label", v.Deadline.Label)
	// binder copies always show the assessment panel to participants
	require.NotNil(t, v.Assessment)
	assert.Equal(t, "", v.Assessment.ReturnDate)

	cp, err := st.FindCopy(context.Background(), 42, tpl.Key, "course-9", "node-1")
	require.NoError(t, err)
	require.NotNil(t, cp.Deadline)
	assert.WithinDuration(t, time.Now().AddDate(0, 0, 14), *cp.Deadline, time.Minute)
}

func TestNew_DeletedBinderNeedsRestore(t *testing.T) {
	r, st := newRunner(t)
	tpl := addTemplate(t, st, portfolio.KindBinder, "Reflection")
	ctx := context.Background()
	env := participantEnv("res-binder")

	cp, err := st.AssignCopy(ctx, 42, *tpl, "course-9", "node-1", nil)
	require.NoError(t, err)
	_, err = st.SetStatus(ctx, cp.Key, portfolio.StatusDeleted)
	require.NoError(t, err)

	v, err := r.View(ctx, env)
	require.NoError(t, err)
	assert.True(t, v.NewLink)
	assert.False(t, v.SelectLink)

	res, err := r.New(ctx, env)
	require.NoError(t, err)
	assert.True(t, res.NeedsRestore)
	assert.False(t, res.Copied)

	v, err = r.Restore(ctx, env)
	require.NoError(t, err)
	assert.True(t, v.SelectLink)
	assert.False(t, v.NewLink)
}

func TestView_AssessmentPanel(t *testing.T) {
	r, st := newRunner(t)
	tpl := addTemplate(t, st, portfolio.KindMap, "Map")
	ctx := context.Background()

	cp, err := st.AssignCopy(ctx, 42, *tpl, "course-9", "node-1", nil)
	require.NoError(t, err)

	env := participantEnv("res-map")
	score, min, max, cut := 7.12345, 0.0, 10.0, 5.5
	passed := true
	env.Score = portfolio.ScoreEvaluation{Score: &score, Passed: &passed}
	env.Assessment = portfolio.AssessmentConfig{
		ScoreMode:  portfolio.ModeSetByNode,
		PassedMode: portfolio.ModeEvaluated,
		MinScore:   &min,
		MaxScore:   &max,
		CutValue:   &cut,
		HasComment: true,
	}
	env.Comment = "well done"

	// maps show the panel only once returned
	v, err := r.View(ctx, env)
	require.NoError(t, err)
	assert.Nil(t, v.Assessment)

	_, err = st.SetReturnDate(ctx, cp.Key, time.Date(2021, 5, 4, 13, 15, 0, 0, time.UTC))
	require.NoError(t, err)
	require.NoError(t, r.SavePanel(ctx, env, portfolio.PanelComment, false))

	v, err = r.View(ctx, env)
	require.NoError(t, err)
	p := v.Assessment
	require.NotNil(t, p)
	assert.Equal(t, "2021-05-04 13:15", p.ReturnDate)
	assert.True(t, p.ResultsVisible)
	assert.True(t, p.HasScoreField)
	assert.Equal(t, "7.123", p.Score)
	assert.Equal(t, "0", p.ScoreMin)
	assert.Equal(t, "10", p.ScoreMax)
	assert.True(t, p.HasPassedField)
	assert.True(t, p.HasPassedValue)
	assert.Equal(t, "5.5", p.PassedCutValue)
	require.NotNil(t, p.Comment)
	assert.Equal(t, "well done", *p.Comment)
	assert.False(t, p.CommentOpen)
	assert.Nil(t, p.Documents)
}

func TestView_HiddenResultsOmitComment(t *testing.T) {
	r, st := newRunner(t)
	addTemplate(t, st, portfolio.KindBinder, "Reflection")
	ctx := context.Background()
	env := participantEnv("res-binder")

	_, err := r.New(ctx, env)
	require.NoError(t, err)

	hidden := false
	env.Score = portfolio.ScoreEvaluation{UserVisible: &hidden}
	env.Assessment = portfolio.AssessmentConfig{ScoreMode: portfolio.ModeNone, PassedMode: portfolio.ModeNone, HasComment: true, HasDocuments: true}
	env.Documents = []string{"feedback.pdf"}

	v, err := r.View(ctx, env)
	require.NoError(t, err)
	require.NotNil(t, v.Assessment)
	assert.False(t, v.Assessment.ResultsVisible)
	assert.False(t, v.Assessment.HasScoreField)
	assert.Nil(t, v.Assessment.Comment)
	assert.Nil(t, v.Assessment.Documents)

	env.Score.UserVisible = nil
	v, err = r.View(ctx, env)
	require.NoError(t, err)
	assert.Equal(t, []string{"feedback.pdf"}, v.Assessment.Documents)
	assert.True(t, v.Assessment.DocumentsOpen)
}

func TestSelectURL(t *testing.T) {
	r, st := newRunner(t)
	ctx := context.Background()
	binder := addTemplate(t, st, portfolio.KindBinder, "Reflection")
	mapTpl := addTemplate(t, st, portfolio.KindMap, "Map")

	_, err := r.SelectURL(ctx, participantEnv("res-binder"))
	assert.True(t, errors.Is(err, portfolio.ErrNoCopy))

	bc, err := st.AssignCopy(ctx, 42, *binder, "course-9", "node-1", nil)
	require.NoError(t, err)
	mc, err := st.AssignCopy(ctx, 42, *mapTpl, "course-9", "node-1", nil)
	require.NoError(t, err)

	u, err := r.SelectURL(ctx, participantEnv("res-binder"))
	require.NoError(t, err)
	assert.Equal(t, "[HomeSite:42][PortfolioV2:0][MyBinders:0][Binder:"+itoa(bc.Key)+"]", u)

	u, err = r.SelectURL(ctx, participantEnv("res-map"))
	require.NoError(t, err)
	assert.Equal(t, "[HomeSite:42][Portfolio:0][EPStructuredMap:"+itoa(mc.Key)+"]", u)
}

func TestNew_WithoutTemplate(t *testing.T) {
	r, _ := newRunner(t)
	_, err := r.New(context.Background(), participantEnv("res-none"))
	assert.True(t, errors.Is(err, portfolio.ErrNoTemplate))
}

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}
