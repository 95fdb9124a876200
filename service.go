package otfreporter

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/nsip/otf-reporter/internal/portfolio"
	"github.com/nsip/otf-reporter/internal/portfolio/store"
	"github.com/nsip/otf-reporter/internal/reporter"
	"github.com/nsip/otf-reporter/internal/util"
	"github.com/pkg/errors"
)

type OtfReporterService struct {
	// embedded web server to handle reporter and portfolio requests
	e *echo.Echo
	// the unique name of this service when running multiple instances
	serviceName string
	// the unique id of this service when running multiple instances
	serviceID string
	// the host address this service instance is running on
	serviceHost string
	// the port that this service instance is running on
	servicePort int
	// where the reporter lives and where result files are kept
	reporterCfg reporter.Config
	// survey folders named in requests are resolved below this root
	surveyRoot string
	// sqlite file holding portfolio templates, copies and preferences
	dbPath       string
	logLevel     log.Lvl
	logLevelName string

	reporterLog    *log.Logger
	// one pooled client for every call to the reporter
	reporterClient *http.Client
	store          *store.Store
	runner         *portfolio.Runner
}

//
// create a new service instance
//
func New(options ...Option) (*OtfReporterService, error) {

	srvc := OtfReporterService{}

	defaults := []Option{Name(""), ID(""), Host(""), ReportingDir(""), LogLevel("")}
	if err := srvc.setOptions(append(defaults, options...)...); err != nil {
		return nil, err
	}
	if srvc.servicePort == 0 {
		if err := srvc.setOptions(Port(0)); err != nil {
			return nil, err
		}
	}
	if err := srvc.validate(); err != nil {
		return nil, err
	}

	srvc.reporterLog = newLogger("reporter", srvc.logLevel)
	client, err := srvc.reporterCfg.HTTPClient()
	if err != nil {
		return nil, err
	}
	srvc.reporterClient = client

	st, err := store.Open(srvc.dbPath)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot open portfolio database %s", srvc.dbPath)
	}
	srvc.store = st
	srvc.runner = portfolio.NewRunner(st, st, newLogger("portfolio", srvc.logLevel))

	srvc.e = echo.New()
	srvc.e.Logger.SetLevel(srvc.logLevel)
	srvc.e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: util.GenerateID,
	}))
	srvc.e.Use(middleware.Recover())

	// add pingable method to know we're up
	srvc.e.GET("/", func(c echo.Context) error {
		return c.JSON(http.StatusOK, "OK")
	})
	srvc.e.GET("/health", srvc.buildHealthHandler())

	rg := srvc.e.Group("/reporter")
	rg.POST("/variables", srvc.buildVariablesHandler())
	rg.POST("/results", srvc.buildResultsHandler())
	rg.POST("/link", srvc.buildLinkHandler())
	rg.POST("/survey", srvc.buildSurveyHandler())
	rg.POST("/has-results", srvc.buildHasResultsHandler())

	pg := srvc.e.Group("/portfolio")
	pg.POST("/templates", srvc.buildTemplateHandler())
	pg.POST("/view", srvc.buildViewHandler())
	pg.POST("/new", srvc.buildNewHandler())
	pg.POST("/restore", srvc.buildRestoreHandler())
	pg.POST("/select", srvc.buildSelectHandler())
	pg.POST("/panel", srvc.buildPanelHandler())
	pg.POST("/return", srvc.buildReturnHandler())

	return &srvc, nil
}

func (s *OtfReporterService) validate() error {
	switch {
	case s.reporterCfg.Target == "":
		return errors.New("reporter target must be supplied")
	case s.reporterCfg.UserDataRoot == "":
		return errors.New("user data root must be supplied")
	case s.reporterCfg.ResourceRoot == "":
		return errors.New("resource root must be supplied")
	case s.dbPath == "":
		return errors.New("database path must be supplied")
	}
	return nil
}

func newLogger(prefix string, level log.Lvl) *log.Logger {
	l := log.New(prefix)
	l.SetLevel(level)
	return l
}

//
// start the service running
//
func (s *OtfReporterService) Start() {

	address := fmt.Sprintf("%s:%d", s.serviceHost, s.servicePort)
	go func(addr string) {
		if err := s.e.Start(addr); err != nil && err != http.ErrServerClosed {
			s.e.Logger.Info("error starting server: ", err, ", shutting down...")
			// attempt clean shutdown by raising sig int
			p, _ := os.FindProcess(os.Getpid())
			p.Signal(os.Interrupt)
		}
	}(address)

}

//
// the echo instance serving the api, for tests and embedding
//
func (s *OtfReporterService) Handler() http.Handler {
	return s.e
}

//
// shut the server down gracefully
//
func (s *OtfReporterService) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.e.Shutdown(ctx); err != nil {
		fmt.Println("could not shut down server cleanly: ", err)
	}
	if err := s.store.Close(); err != nil {
		fmt.Println("could not close portfolio database: ", err)
	}
	s.reporterClient.CloseIdleConnections()
}

func (s *OtfReporterService) PrintConfig() {

	fmt.Println("\n\tOTF-Reporter Service Configuration")
	fmt.Println("\t------------------------------------")
	fmt.Println()

	s.printID()
	s.printReporterConfig()
	s.printPortfolioConfig()

}

func (s *OtfReporterService) printID() {
	fmt.Println("\tservice name:\t\t", s.serviceName)
	fmt.Println("\tservice ID:\t\t", s.serviceID)
	fmt.Println("\tservice host:\t\t", s.serviceHost)
	fmt.Println("\tservice port:\t\t", s.servicePort)
	fmt.Println("\tlog level:\t\t", s.logLevelName)
}

func (s *OtfReporterService) printReporterConfig() {
	cfg := s.reporterCfg
	ns := cfg.Namespace
	if ns == "" {
		ns = reporter.DefaultNamespace
	}
	fmt.Println("\treporter target:\t", cfg.Target)
	fmt.Println("\treporter namespace:\t", ns)
	fmt.Println("\treporter timeout:\t", cfg.Timeout)
	if cfg.TLS.CACertFile != "" {
		fmt.Println("\treporter ca cert:\t", cfg.TLS.CACertFile)
	}
	if cfg.TLS.CertFile != "" {
		fmt.Println("\treporter client cert:\t", cfg.TLS.CertFile)
	}
	fmt.Println("\tuser data root:\t\t", cfg.UserDataRoot)
	fmt.Println("\treporting dir:\t\t", cfg.ReportingDir)
	fmt.Println("\tresource root:\t\t", cfg.ResourceRoot)
	fmt.Println("\tsurvey root:\t\t", s.surveyRoot)
}

func (s *OtfReporterService) printPortfolioConfig() {
	fmt.Println("\tportfolio database:\t", s.dbPath)
}
