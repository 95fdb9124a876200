package otfreporter

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/nsip/otf-reporter/internal/portfolio"
)

//
// registers (or renames) the template held by a resource
// requires: kind (map|binder), title, resourceId
//
func (s *OtfReporterService) buildTemplateHandler() echo.HandlerFunc {

	return func(c echo.Context) error {
		tr := &TemplateRequest{}
		if err := c.Bind(tr); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		if tr.Kind != portfolio.KindMap && tr.Kind != portfolio.KindBinder {
			return echo.NewHTTPError(http.StatusBadRequest, "kind must be one of (map|binder)")
		}
		if strings.TrimSpace(tr.Title) == "" || tr.ResourceID == "" {
			return echo.NewHTTPError(http.StatusBadRequest, "must supply values for title & resourceId")
		}

		tpl, err := s.store.AddTemplate(c.Request().Context(), portfolio.Template{
			Kind:       tr.Kind,
			Title:      tr.Title,
			ResourceID: tr.ResourceID,
		})
		if err != nil {
			return httpError(err)
		}
		return c.JSON(http.StatusOK, tpl)
	}
}

func (s *OtfReporterService) buildViewHandler() echo.HandlerFunc {

	return func(c echo.Context) error {
		env, err := bindEnv(c, &PortfolioRequest{})
		if err != nil {
			return err
		}
		v, err := s.runner.View(c.Request().Context(), env)
		if err != nil {
			return httpError(err)
		}
		return c.JSON(http.StatusOK, v)
	}
}

func (s *OtfReporterService) buildNewHandler() echo.HandlerFunc {

	return func(c echo.Context) error {
		env, err := bindEnv(c, &PortfolioRequest{})
		if err != nil {
			return err
		}
		res, err := s.runner.New(c.Request().Context(), env)
		if err != nil {
			return httpError(err)
		}
		return c.JSON(http.StatusOK, res)
	}
}

func (s *OtfReporterService) buildRestoreHandler() echo.HandlerFunc {

	return func(c echo.Context) error {
		env, err := bindEnv(c, &PortfolioRequest{})
		if err != nil {
			return err
		}
		v, err := s.runner.Restore(c.Request().Context(), env)
		if err != nil {
			return httpError(err)
		}
		return c.JSON(http.StatusOK, v)
	}
}

func (s *OtfReporterService) buildSelectHandler() echo.HandlerFunc {

	return func(c echo.Context) error {
		env, err := bindEnv(c, &PortfolioRequest{})
		if err != nil {
			return err
		}
		path, err := s.runner.SelectURL(c.Request().Context(), env)
		if err != nil {
			return httpError(err)
		}
		return c.JSON(http.StatusOK, map[string]interface{}{"businessPath": path})
	}
}

func (s *OtfReporterService) buildPanelHandler() echo.HandlerFunc {

	return func(c echo.Context) error {
		pr := &PanelRequest{}
		env, err := bindEnv(c, pr)
		if err != nil {
			return err
		}
		if pr.Panel != portfolio.PanelComment && pr.Panel != portfolio.PanelDocuments {
			return echo.NewHTTPError(http.StatusBadRequest, "panel must be one of (comment|assessmentDocuments)")
		}
		if err := s.runner.SavePanel(c.Request().Context(), env, pr.Panel, pr.Open); err != nil {
			return httpError(err)
		}
		return c.JSON(http.StatusOK, map[string]interface{}{"panel": pr.Panel, "open": pr.Open})
	}
}

func (s *OtfReporterService) buildReturnHandler() echo.HandlerFunc {

	return func(c echo.Context) error {
		rr := &ReturnRequest{}
		if err := c.Bind(rr); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		if rr.CopyKey <= 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "must supply a value for copyKey")
		}
		at := time.Now().UTC()
		if rr.ReturnDate != nil {
			at = *rr.ReturnDate
		}
		cp, err := s.store.SetReturnDate(c.Request().Context(), rr.CopyKey, at)
		if err != nil {
			return httpError(err)
		}
		return c.JSON(http.StatusOK, cp)
	}
}

//
// envRequest is implemented by payloads carrying a portfolio visit
//
type envRequest interface {
	visit() *PortfolioRequest
}

func (r *PortfolioRequest) visit() *PortfolioRequest { return r }

//
// binds the payload and returns its env with the node
// configuration parsed
//
func bindEnv(c echo.Context, req envRequest) (portfolio.Env, error) {

	if err := c.Bind(req); err != nil {
		return portfolio.Env{}, echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	pr := req.visit()
	if pr.IdentityKey == 0 || pr.Node.Ident == "" {
		return portfolio.Env{}, echo.NewHTTPError(http.StatusBadRequest, "must supply values for identityKey & node.ident")
	}

	cfg, err := portfolio.ParseNodeConfig(pr.NodeConfig)
	if err != nil {
		return portfolio.Env{}, echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	env := pr.Env
	env.Node.Config = cfg
	return env, nil
}
