package otfreporter

import (
	"net/url"
	"strings"
	"time"

	"github.com/labstack/gommon/log"
	"github.com/nsip/otf-reporter/internal/util"
	"github.com/pkg/errors"
)

type Option func(*OtfReporterService) error

//
// apply all supplied options to the service
// returns any error encountered while applying the options
//
func (srvc *OtfReporterService) setOptions(options ...Option) error {
	for _, opt := range options {
		if err := opt(srvc); err != nil {
			return err
		}
	}
	return nil
}

//
// set the name of this service instance,
// if empty a short random name is generated
//
func Name(name string) Option {
	return func(s *OtfReporterService) error {
		if name != "" {
			s.serviceName = name
			return nil
		}
		s.serviceName = util.GenerateName()
		return nil
	}
}

//
// set the unique id of this service instance,
// if empty a nuid is generated
//
func ID(id string) Option {
	return func(s *OtfReporterService) error {
		if id != "" {
			s.serviceID = id
			return nil
		}
		s.serviceID = util.GenerateID()
		return nil
	}
}

//
// set the host address for this service,
// defaults to localhost
//
func Host(hostName string) Option {
	return func(s *OtfReporterService) error {
		if hostName != "" {
			s.serviceHost = hostName
			return nil
		}
		s.serviceHost = "localhost"
		return nil
	}
}

//
// set the port for this service,
// 0 picks any available port
//
func Port(port int) Option {
	return func(s *OtfReporterService) error {
		if port < 0 {
			return errors.Errorf("invalid port %d", port)
		}
		if port != 0 {
			s.servicePort = port
			return nil
		}
		p, err := util.AvailablePort()
		if err != nil {
			return errors.Wrap(err, "cannot auto-assign service port")
		}
		s.servicePort = p
		return nil
	}
}

//
// soap endpoint of the reporter service, must be an
// absolute http or https url
//
func ReporterTarget(target string) Option {
	return func(s *OtfReporterService) error {
		if target == "" {
			return errors.New("reporter target must be supplied")
		}
		u, err := url.Parse(target)
		if err != nil {
			return errors.Wrap(err, "invalid reporter target")
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return errors.Errorf("reporter target must be http or https, got: %s", target)
		}
		s.reporterCfg.Target = target
		return nil
	}
}

//
// target namespace of the reporter's soap operations
//
func Namespace(ns string) Option {
	return func(s *OtfReporterService) error {
		s.reporterCfg.Namespace = ns
		return nil
	}
}

//
// per-call timeout for the reporter
//
func Timeout(d time.Duration) Option {
	return func(s *OtfReporterService) error {
		if d < 0 {
			return errors.Errorf("invalid reporter timeout %s", d)
		}
		s.reporterCfg.Timeout = d
		return nil
	}
}

//
// pem files for https targets, all optional
//
func TLSFiles(caCertFile, certFile, keyFile string) Option {
	return func(s *OtfReporterService) error {
		if (certFile == "") != (keyFile == "") {
			return errors.New("client certificate and key must be supplied together")
		}
		s.reporterCfg.TLS.CACertFile = caCertFile
		s.reporterCfg.TLS.CertFile = certFile
		s.reporterCfg.TLS.KeyFile = keyFile
		return nil
	}
}

//
// root of the per-user data directories
//
func UserDataRoot(dir string) Option {
	return func(s *OtfReporterService) error {
		if dir == "" {
			return errors.New("user data root must be supplied")
		}
		s.reporterCfg.UserDataRoot = dir
		return nil
	}
}

//
// name of the reporting directory below the user data root
//
func ReportingDir(dir string) Option {
	return func(s *OtfReporterService) error {
		if dir == "" {
			dir = "reporting"
		}
		s.reporterCfg.ReportingDir = dir
		return nil
	}
}

//
// root of the repository file resources holding the content packages
//
func ResourceRoot(dir string) Option {
	return func(s *OtfReporterService) error {
		if dir == "" {
			return errors.New("resource root must be supplied")
		}
		s.reporterCfg.ResourceRoot = dir
		return nil
	}
}

//
// folder the anonymous survey folders of requests are resolved against
//
func SurveyRoot(dir string) Option {
	return func(s *OtfReporterService) error {
		s.surveyRoot = dir
		return nil
	}
}

//
// file of the portfolio sqlite database
//
func DBPath(path string) Option {
	return func(s *OtfReporterService) error {
		if path == "" {
			return errors.New("database path must be supplied")
		}
		s.dbPath = path
		return nil
	}
}

//
// log level of the service: debug, info, warn, error or off
//
func LogLevel(level string) Option {
	return func(s *OtfReporterService) error {
		level = strings.ToLower(level)
		switch level {
		case "debug":
			s.logLevel = log.DEBUG
		case "", "info":
			s.logLevel = log.INFO
		case "warn":
			s.logLevel = log.WARN
		case "error":
			s.logLevel = log.ERROR
		case "off":
			s.logLevel = log.OFF
		default:
			return errors.Errorf("unknown log level: %s", level)
		}
		if level == "" {
			level = "info"
		}
		s.logLevelName = level
		return nil
	}
}
