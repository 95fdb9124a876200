package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	otfrep "github.com/nsip/otf-reporter"
	"github.com/peterbourgon/ff/v3"
)

func main() {

	fs := flag.NewFlagSet("otf-reporter", flag.ExitOnError)
	var (
		_            = fs.String("config", "", "config file (optional), json format.")
		serviceName  = fs.String("name", "", "name for this reporter service instance")
		serviceID    = fs.String("id", "", "id for this reporter service instance, leave blank to auto-generate a unique id")
		serviceHost  = fs.String("host", "localhost", "name/address of host for this service")
		servicePort  = fs.Int("port", 0, "port to run service on, if not specified will assign an available port automatically")
		target       = fs.String("reporterTarget", "", "soap endpoint of the reporter service")
		namespace    = fs.String("reporterNamespace", "", "target namespace of the reporter soap operations, leave blank for the default")
		timeout      = fs.Duration("reporterTimeout", 30*time.Second, "timeout of each call to the reporter service")
		caCert       = fs.String("caCert", "", "pem file of the CA that signed the reporter's certificate (https only), system pool if blank")
		clientCert   = fs.String("clientCert", "", "pem client certificate presented to the reporter (https only)")
		clientKey    = fs.String("clientKey", "", "pem key of the client certificate")
		userDataRoot = fs.String("userDataRoot", "", "root folder of the per-user data directories")
		reportingDir = fs.String("reportingDir", "reporting", "reporting folder below the user data root")
		resourceRoot = fs.String("resourceRoot", "", "root folder of the repository file resources")
		surveyRoot   = fs.String("surveyRoot", "", "root folder of anonymous survey result folders")
		dbPath       = fs.String("db", "./otf-reporter.db", "sqlite file holding portfolio templates and copies")
		logLevel     = fs.String("logLevel", "info", "log level, one of (debug|info|warn|error|off)")
	)

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithConfigFileFlag("config"),
		ff.WithConfigFileParser(ff.JSONParser),
		ff.WithEnvVarPrefix("OTF_REPORTER"),
	); err != nil {
		fmt.Printf("\nCannot read otf-reporter configuration:\n%s\n\n", err)
		os.Exit(1)
	}

	opts := []otfrep.Option{
		otfrep.Name(*serviceName),
		otfrep.ID(*serviceID),
		otfrep.Host(*serviceHost),
		otfrep.Port(*servicePort),
		otfrep.ReporterTarget(*target),
		otfrep.Namespace(*namespace),
		otfrep.Timeout(*timeout),
		otfrep.TLSFiles(*caCert, *clientCert, *clientKey),
		otfrep.UserDataRoot(*userDataRoot),
		otfrep.ReportingDir(*reportingDir),
		otfrep.ResourceRoot(*resourceRoot),
		otfrep.SurveyRoot(*surveyRoot),
		otfrep.DBPath(*dbPath),
		otfrep.LogLevel(*logLevel),
	}

	srvc, err := otfrep.New(opts...)
	if err != nil {
		fmt.Printf("\nCannot create otf-reporter service:\n%s\n\n", err)
		os.Exit(1)
	}

	srvc.PrintConfig()

	// signal handler for shutdown
	closed := make(chan struct{})
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-c
		fmt.Println("\notf-reporter shutting down")
		srvc.Shutdown()
		fmt.Println("otf-reporter closed")
		close(closed)
	}()

	srvc.Start()

	// block until shutdown by sig-handler
	<-closed

}
