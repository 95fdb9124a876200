package reporter

import (
	"context"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/gommon/log"
	"github.com/nsip/otf-reporter/internal/util"
	"github.com/pkg/errors"
)

//
// Config describes where the reporter lives and where results are kept
//
type Config struct {
	// soap endpoint of the reporter service
	Target string
	// target namespace of the service, "" for DefaultNamespace
	Namespace string
	// per-call http timeout, 0 leaves it to the transport
	Timeout time.Duration
	TLS     TLSFiles
	// root of the per-user data directories
	UserDataRoot string
	// reporting directory below UserDataRoot
	ReportingDir string
	// root of the repository file resources
	ResourceRoot string
}

//
// Connector proxies result reporting to the remote service.
// A connector holds no mutable state; every call arms its own session.
//
type Connector struct {
	service Service
	locator *Locator
	content *ContentResolver
	logger  *log.Logger
	secret  func() (string, error)
}

//
// New assembles a connector from its parts without touching the network
//
func New(service Service, locator *Locator, content *ContentResolver, logger *log.Logger) *Connector {
	return &Connector{
		service: service,
		locator: locator,
		content: content,
		logger:  logger,
		secret:  util.RandomSecret,
	}
}

//
// Dial probes the configured target once and, if it answers, returns a
// connector using the soap service at that target. A failed probe is
// reported as ErrServiceUnavailable and no connector is returned.
// client is shared between calls; nil builds one from cfg.
//
func Dial(ctx context.Context, cfg Config, client *http.Client, logger *log.Logger) (*Connector, error) {

	if client == nil {
		var err error
		if client, err = cfg.HTTPClient(); err != nil {
			return nil, err
		}
	}

	health := Probe(ctx, client, cfg.Target)
	if !health.Available {
		logger.Errorf("reporter service is unavailable! tried to use: %s (status %d, err: %v)",
			cfg.Target, health.StatusCode, health.Err)
		return nil, errors.Wrapf(ErrServiceUnavailable, "unable to connect to reporter at %s", cfg.Target)
	}

	svc := NewSOAPService(client, cfg.Target, cfg.Namespace)
	locator := NewLocator(cfg.UserDataRoot, cfg.ReportingDir, logger)
	content := NewContentResolver(DirResources{Root: cfg.ResourceRoot}, logger)

	return New(svc, locator, content, logger), nil
}

//
// http client for the target, with tls settings for https targets
//
func (cfg Config) HTTPClient() (*http.Client, error) {
	if !strings.HasPrefix(strings.ToLower(cfg.Target), "https://") {
		return util.NewNetClient(cfg.Timeout, nil), nil
	}
	tlsConf, err := cfg.TLS.Config()
	if err != nil {
		return nil, errors.Wrap(err, "cannot build reporter tls config")
	}
	return util.NewNetClient(cfg.Timeout, tlsConf), nil
}

//
// PossibleOutcomeVariables lists every outcome variable of the test
// held by entry, name -> type. A failed conversation is logged and
// yields an empty map.
//
func (c *Connector) PossibleOutcomeVariables(ctx context.Context, entry RepositoryEntry) map[string]string {
	vars, err := c.service.GetResultVariables(ctx, protocolVersion, c.content.Read(entry), map[string]string{})
	if err != nil {
		c.logger.Errorf("error in getPossibleOutcomeVariables reporter conversation! resource: %s: %v", entry.ResourceID, err)
		return map[string]string{}
	}
	return vars
}

//
// Results returns the computed outcome values of the newest result file
// of identity for node.
//
func (c *Connector) Results(ctx context.Context, node Node, identity Identity) (map[string]string, error) {
	file, _ := c.locator.ResultFile(identity.Name, node.AssessmentType, node.Ident, 0)
	return c.ResultsForFile(ctx, file, node, identity)
}

//
// ResultsForFile submits an already located result file under a fresh
// session and fetches the computed outcome values, name -> value.
// An empty path returns an empty map without calling the service.
//
func (c *Connector) ResultsForFile(ctx context.Context, resultFile string, node Node, identity Identity) (map[string]string, error) {

	defer util.TimeTrack(c.logger, time.Now(), "ResultsForFile")

	if resultFile == "" {
		c.logger.Infof("missing result file! for %s node: %s:%s", identity.Name, node.ShortName, node.Ident)
		return map[string]string{}, nil
	}

	session, err := c.armSite(ctx, identity, false)
	if err != nil {
		return nil, err
	}

	var students []ResultRecord
	if rec, ok := c.studentRecord(identity, resultFile); ok {
		students = append(students, rec)
	}

	_, err = c.service.InitiateSite(ctx, protocolVersion, session.ID, session.Secret, students,
		c.content.Read(node.Entry), map[string]string{})
	if err != nil {
		return nil, errors.Wrapf(ErrReporting, "initiate site failed for session %s: %v", session.ID, err)
	}

	values, err := c.service.GetResultValues(ctx, protocolVersion, session.ID, session.Secret,
		map[string]string{}, map[string]string{})
	if err != nil {
		c.logger.Errorf("error in getResults reporter conversation! session: %s, identity: %s: %v", session.ID, identity.Name, err)
		return nil, errors.Wrapf(ErrReporting, "error getting results for test! session: %s: %v", session.ID, err)
	}

	return values, nil
}

//
// ReporterLink submits the results selected by req under a fresh session and
// returns the reporter url with view suffix and session parameters appended.
// An error-page url from the service is returned as is.
//
func (c *Connector) ReporterLink(ctx context.Context, req LinkRequest) (string, error) {

	defer util.TimeTrack(c.logger, time.Now(), "ReporterLink")

	if req.StudentView && len(req.Students) == 0 {
		return "", errors.Wrap(ErrReporting, "student view needs a student")
	}

	var students []ResultRecord
	if req.SurveyDir != "" {
		students = SurveyRecords(req.SurveyDir, req.Node.Ident, c.logger)
	} else {
		students = c.studentsWithResults(req.Students, req.Node, req.AssessmentID)
	}

	session, err := c.armSite(ctx, req.Caller, req.StudentView)
	if err != nil {
		return "", err
	}

	link, err := c.service.InitiateSite(ctx, protocolVersion, session.ID, session.Secret, students,
		c.content.Read(req.Node.Entry), map[string]string{})
	if err != nil {
		return "", errors.Wrapf(ErrReporting, "unable to start reporter: %v", err)
	}
	if link == "" {
		return "", errors.Wrap(ErrReporting, "unable to start reporter, could not resolve reporter url")
	}
	if strings.Contains(link, errorPageMarker) {
		return link, nil
	}

	var studentKey int64
	if req.StudentView && !req.ReporterView {
		studentKey = req.Students[0].Key
	}

	return decorateLink(link, session, req.StudentView, req.ReporterView, studentKey), nil
}

//
// SurveyLink opens the reporting view over the anonymous survey
// results found in surveyDir
//
func (c *Connector) SurveyLink(ctx context.Context, caller Identity, node Node, surveyDir string) (string, error) {
	return c.ReporterLink(ctx, LinkRequest{
		Caller:       caller,
		Node:         node,
		ReporterView: true,
		SurveyDir:    surveyDir,
	})
}

//
// ResultFile locates the identity's result file for node, preferring the
// attempt assessmentID when it is not 0
//
func (c *Connector) ResultFile(identity Identity, node Node, assessmentID int64) (string, bool) {
	return c.locator.ResultFile(identity.Name, node.AssessmentType, node.Ident, assessmentID)
}

//
// true if the user has a result file for the node
//
func (c *Connector) HasResultFile(username, assessmentType, nodeID string) bool {
	_, ok := c.locator.ResultFile(username, assessmentType, nodeID, 0)
	return ok
}

//
// HasAnyResults reports whether there is anything to show: a survey file
// for the node in surveyDir, or a result file of any of the students
//
func (c *Connector) HasAnyResults(forSurvey bool, students []Identity, surveyDir string, node Node) bool {
	if forSurvey {
		return len(listPrefixed(surveyDir, node.Ident)) > 0
	}
	for _, st := range students {
		if c.locator.HasAny(st.Name, node.AssessmentType, node.Ident) {
			return true
		}
	}
	return false
}

//
// appends <view>?sid=..&secret=..[&uid=..] to the base url,
// uid only when view 1 was chosen
//
func decorateLink(base string, session Session, studentView, reporterView bool, studentKey int64) string {

	var b strings.Builder
	b.WriteString(base)

	switch {
	case reporterView:
		b.WriteString(viewReporting)
	case studentView:
		b.WriteString(viewSingleLearner)
	default:
		b.WriteString(viewAllLearners)
	}

	b.WriteString("?sid=")
	b.WriteString(url.QueryEscape(session.ID))
	b.WriteString("&secret=")
	b.WriteString(url.QueryEscape(session.Secret))

	// the learner id belongs to the single-learner view only
	if studentView && !reporterView {
		b.WriteString("&uid=")
		b.WriteString(strconv.FormatInt(studentKey, 10))
	}

	return b.String()
}

func (c *Connector) armSite(ctx context.Context, caller Identity, studentView bool) (Session, error) {

	secret, err := c.secret()
	if err != nil {
		return Session{}, errors.Wrap(ErrReporting, err.Error())
	}

	role := 1
	if studentView {
		role = 0
	}

	id, err := c.service.ArmSite(ctx, protocolVersion, caller.Name, role, secret,
		nameOrPlaceholder(caller.LastName), nameOrPlaceholder(caller.FirstName), map[string]string{})
	if err != nil {
		return Session{}, errors.Wrapf(ErrReporting, "arm site failed: %v", err)
	}
	if id == "" {
		id = dummySessionID
	}

	return Session{Secret: secret, ID: id}, nil
}

func (c *Connector) studentRecord(student Identity, resultFile string) (ResultRecord, bool) {
	data, err := os.ReadFile(resultFile)
	if err != nil {
		logFileError(c.logger, resultFile, err)
		return ResultRecord{}, false
	}
	return ResultRecord{
		StudentID:   strconv.FormatInt(student.Key, 10),
		FirstName:   nameOrPlaceholder(student.FirstName),
		LastName:    nameOrPlaceholder(student.LastName),
		ResultsFile: data,
	}, true
}

func (c *Connector) studentsWithResults(students []Identity, node Node, assessmentID int64) []ResultRecord {
	var records []ResultRecord
	for _, st := range students {
		file, ok := c.locator.ResultFile(st.Name, node.AssessmentType, node.Ident, assessmentID)
		if !ok {
			continue
		}
		if rec, ok := c.studentRecord(st, file); ok {
			records = append(records, rec)
		}
	}
	return records
}
