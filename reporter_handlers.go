package otfreporter

import (
	"net/http"
	"path/filepath"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/nsip/otf-reporter/internal/portfolio"
	"github.com/nsip/otf-reporter/internal/reporter"
	"github.com/pkg/errors"
)

//
// reports whether the reporter currently answers its service
// description; 503 when it does not
//
func (s *OtfReporterService) buildHealthHandler() echo.HandlerFunc {

	return func(c echo.Context) error {
		health := reporter.Probe(c.Request().Context(), s.reporterClient, s.reporterCfg.Target)

		status := http.StatusOK
		resp := map[string]interface{}{
			"reporter":    health,
			"serviceName": s.serviceName,
			"serviceID":   s.serviceID,
		}
		if !health.Available {
			status = http.StatusServiceUnavailable
			if health.Err != nil {
				resp["error"] = health.Err.Error()
			}
		}
		return c.JSON(status, resp)
	}
}

//
// lists the outcome variables of a packaged test
// requires: entry.resourceId
//
func (s *OtfReporterService) buildVariablesHandler() echo.HandlerFunc {

	return func(c echo.Context) error {
		vr := &VariablesRequest{}
		if err := c.Bind(vr); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		if vr.Entry.ResourceID == "" {
			return echo.NewHTTPError(http.StatusBadRequest, "must supply a value for entry.resourceId")
		}
		if err := checkPathParts(vr.Entry.ResourceID, vr.Entry.ResourceName); err != nil {
			return err
		}

		conn, err := s.dial(c)
		if err != nil {
			return httpError(err)
		}

		return c.JSON(http.StatusOK, map[string]interface{}{
			"variables": conn.PossibleOutcomeVariables(c.Request().Context(), vr.Entry),
		})
	}
}

//
// fetches a learner's computed outcome values
// requires: identity.name, node.ident, node.assessmentType
//
func (s *OtfReporterService) buildResultsHandler() echo.HandlerFunc {

	return func(c echo.Context) error {
		rr := &ResultsRequest{}
		if err := c.Bind(rr); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		if err := requireNode(rr.Node); err != nil {
			return err
		}
		if rr.Identity.Name == "" {
			return echo.NewHTTPError(http.StatusBadRequest, "must supply a value for identity.name")
		}
		if err := checkIdentities(rr.Identity); err != nil {
			return err
		}

		conn, err := s.dial(c)
		if err != nil {
			return httpError(err)
		}

		file, found := conn.ResultFile(rr.Identity, rr.Node, rr.AssessmentID)
		values, err := conn.ResultsForFile(c.Request().Context(), file, rr.Node, rr.Identity)
		if err != nil {
			return httpError(err)
		}

		return c.JSON(http.StatusOK, map[string]interface{}{
			"found":  found,
			"values": values,
		})
	}
}

//
// builds a link into the reporter pages for the caller
// requires: caller.name, node.ident, node.assessmentType
//
func (s *OtfReporterService) buildLinkHandler() echo.HandlerFunc {

	return func(c echo.Context) error {
		lr := &LinkRequest{}
		if err := c.Bind(lr); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		if err := requireNode(lr.Node); err != nil {
			return err
		}
		if lr.StudentView && len(lr.Students) == 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "studentView requires a student")
		}
		if err := checkIdentities(lr.Students...); err != nil {
			return err
		}

		surveyDir := ""
		if lr.SurveyDir != "" {
			dir, err := s.surveyPath(lr.SurveyDir)
			if err != nil {
				return err
			}
			surveyDir = dir
		}

		conn, err := s.dial(c)
		if err != nil {
			return httpError(err)
		}

		link, err := conn.ReporterLink(c.Request().Context(), reporter.LinkRequest{
			Caller:       lr.Caller,
			Students:     lr.Students,
			Node:         lr.Node,
			AssessmentID: lr.AssessmentID,
			StudentView:  lr.StudentView,
			ReporterView: lr.ReporterView,
			SurveyDir:    surveyDir,
		})
		if err != nil {
			return httpError(err)
		}

		return c.JSON(http.StatusOK, map[string]interface{}{"link": link})
	}
}

//
// builds the statistical reporter view over a survey folder
// requires: node.ident, surveyDir
//
func (s *OtfReporterService) buildSurveyHandler() echo.HandlerFunc {

	return func(c echo.Context) error {
		sr := &SurveyRequest{}
		if err := c.Bind(sr); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		if sr.Node.Ident == "" || sr.SurveyDir == "" {
			return echo.NewHTTPError(http.StatusBadRequest, "must supply values for node.ident & surveyDir")
		}
		if err := checkPathParts(sr.Node.Entry.ResourceID, sr.Node.Entry.ResourceName); err != nil {
			return err
		}
		dir, err := s.surveyPath(sr.SurveyDir)
		if err != nil {
			return err
		}

		conn, err := s.dial(c)
		if err != nil {
			return httpError(err)
		}

		link, err := conn.SurveyLink(c.Request().Context(), sr.Caller, sr.Node, dir)
		if err != nil {
			return httpError(err)
		}

		return c.JSON(http.StatusOK, map[string]interface{}{"link": link})
	}
}

//
// reports whether any results exist for the node
//
func (s *OtfReporterService) buildHasResultsHandler() echo.HandlerFunc {

	return func(c echo.Context) error {
		hr := &HasResultsRequest{}
		if err := c.Bind(hr); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		if hr.Node.Ident == "" {
			return echo.NewHTTPError(http.StatusBadRequest, "must supply a value for node.ident")
		}
		if err := checkIdentities(hr.Students...); err != nil {
			return err
		}
		if err := checkPathParts(hr.Node.Ident, hr.Node.AssessmentType); err != nil {
			return err
		}

		surveyDir := ""
		if hr.ForSurvey {
			dir, err := s.surveyPath(hr.SurveyDir)
			if err != nil {
				return err
			}
			surveyDir = dir
		}

		conn, err := s.dial(c)
		if err != nil {
			return httpError(err)
		}

		resp := map[string]interface{}{
			"hasResults": conn.HasAnyResults(hr.ForSurvey, hr.Students, surveyDir, hr.Node),
		}
		if !hr.ForSurvey {
			withFile := []int64{}
			for _, st := range hr.Students {
				if conn.HasResultFile(st.Name, hr.Node.AssessmentType, hr.Node.Ident) {
					withFile = append(withFile, st.Key)
				}
			}
			resp["studentsWithResultFile"] = withFile
		}
		return c.JSON(http.StatusOK, resp)
	}
}

//
// every reporter request probes the service afresh,
// over the service's one client
//
func (s *OtfReporterService) dial(c echo.Context) (*reporter.Connector, error) {
	return reporter.Dial(c.Request().Context(), s.reporterCfg, s.reporterClient, s.reporterLog)
}

//
// resolves a request's survey folder below the survey root;
// the folder cannot climb out of the root
//
func (s *OtfReporterService) surveyPath(dir string) (string, error) {
	if s.surveyRoot == "" {
		return "", echo.NewHTTPError(http.StatusBadRequest, "survey folders are not configured")
	}
	if strings.TrimSpace(dir) == "" {
		return "", echo.NewHTTPError(http.StatusBadRequest, "must supply a value for surveyDir")
	}
	return filepath.Join(s.surveyRoot, filepath.Clean("/"+dir)), nil
}

func requireNode(node reporter.Node) error {
	if node.Ident == "" || node.AssessmentType == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "must supply values for node.ident & node.assessmentType")
	}
	return checkPathParts(node.Ident, node.AssessmentType, node.Entry.ResourceID, node.Entry.ResourceName)
}

//
// names that end up in result and resource paths must stay
// single path elements
//
func checkPathParts(parts ...string) error {
	for _, p := range parts {
		if p == ".." || strings.ContainsAny(p, `/\`) {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid name: "+p)
		}
	}
	return nil
}

func checkIdentities(ids ...reporter.Identity) error {
	for _, id := range ids {
		if err := checkPathParts(id.Name); err != nil {
			return err
		}
	}
	return nil
}

//
// maps domain errors onto http status codes
//
func httpError(err error) error {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, reporter.ErrServiceUnavailable):
		code = http.StatusServiceUnavailable
	case errors.Is(err, reporter.ErrReporting):
		code = http.StatusBadGateway
	case errors.Is(err, portfolio.ErrNoCopy), errors.Is(err, portfolio.ErrNoTemplate):
		code = http.StatusNotFound
	}
	return echo.NewHTTPError(code, err.Error())
}
