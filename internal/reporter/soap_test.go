package reporter

import (
	"context"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nsip/otf-reporter/internal/reporter/reportertest"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDial_UnavailableService(t *testing.T) {
	srv := reportertest.NewServer()
	defer srv.Close()
	srv.Set(func(s *reportertest.Server) { s.WSDLStatus = http.StatusServiceUnavailable })

	c, err := Dial(context.Background(), Config{Target: srv.URL}, nil, quietLogger())
	require.Error(t, err)
	assert.Nil(t, c)
	assert.True(t, errors.Is(err, ErrServiceUnavailable))
	assert.Empty(t, srv.Operations())
}

func TestDial_ClosedEndpoint(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	target := srv.URL
	srv.Close()

	_, err := Dial(context.Background(), Config{Target: target, Timeout: time.Second}, nil, quietLogger())
	assert.True(t, errors.Is(err, ErrServiceUnavailable))
}

func TestSOAP_ResultsRoundTrip(t *testing.T) {
	srv := reportertest.NewServer()
	defer srv.Close()
	srv.Set(func(s *reportertest.Server) { s.Values = map[string]string{"SCORE": "3", "PASS": "false"} })

	root := t.TempDir()
	writeResult(t, root, "anna", "onyx", "node1.xml", "<result/>", time.Now())

	c, err := Dial(context.Background(), Config{
		Target:       srv.URL,
		UserDataRoot: filepath.Join(root, "users"),
		ReportingDir: "reporting",
		ResourceRoot: filepath.Join(root, "resources"),
	}, nil, quietLogger())
	require.NoError(t, err)

	values, err := c.Results(context.Background(), testNode, Identity{Key: 11, Name: "anna"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"SCORE": "3", "PASS": "false"}, values)

	assert.Equal(t, []string{"armSite", "initiateSite", "getResultValues"}, srv.Operations())
	arms := srv.ArmCalls()
	require.Len(t, arms, 1)
	assert.Equal(t, "anna", arms[0].Username)
	assert.Equal(t, 1, arms[0].Role)
	assert.Equal(t, "NONAME", arms[0].Firstname)
	assert.NotEmpty(t, arms[0].Secret)

	submitted := srv.Submitted()
	require.Len(t, submitted, 1)
	require.Len(t, submitted[0], 1)
	assert.Equal(t, "11", submitted[0][0].StudentID)
	assert.Equal(t, "<result/>", submitted[0][0].ResultsFile)
}

func TestSOAP_FaultAndEmptyReturns(t *testing.T) {
	srv := reportertest.NewServer()
	defer srv.Close()
	srv.Set(func(s *reportertest.Server) {
		s.FailValues = true
		s.SessionID = ""
		s.LinkURL = ""
	})

	svc := NewSOAPService(http.DefaultClient, srv.URL, "")
	ctx := context.Background()

	sid, err := svc.ArmSite(ctx, 1, "anna", 1, "1", "a", "b", nil)
	require.NoError(t, err)
	assert.Equal(t, "", sid)

	link, err := svc.InitiateSite(ctx, 1, "dummy", "1", nil, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "", link)

	_, err = svc.GetResultValues(ctx, 1, "dummy", "1", nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no results for session")
}

func TestSOAP_ResultVariables(t *testing.T) {
	srv := reportertest.NewServer()
	defer srv.Close()
	srv.Set(func(s *reportertest.Server) { s.Variables = map[string]string{"SCORE": "float", "PASS": "boolean"} })

	svc := NewSOAPService(http.DefaultClient, srv.URL, "")
	vars, err := svc.GetResultVariables(context.Background(), 1, []byte("cp"), nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"SCORE": "float", "PASS": "boolean"}, vars)
}

func TestProbe_TLS(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := r.URL.Query()["wsdl"]; !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	caFile := filepath.Join(t.TempDir(), "ca.pem")
	pemBytes := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: srv.Certificate().Raw})
	require.NoError(t, os.WriteFile(caFile, pemBytes, 0o644))

	cfg := Config{Target: srv.URL, TLS: TLSFiles{CACertFile: caFile}}
	client, err := cfg.HTTPClient()
	require.NoError(t, err)

	h := Probe(context.Background(), client, srv.URL)
	assert.True(t, h.Available)
	assert.Equal(t, http.StatusOK, h.StatusCode)
	assert.NoError(t, h.Err)

	// the system pool does not hold the test server's certificate
	system, err := Config{Target: srv.URL}.HTTPClient()
	if err == nil {
		h = Probe(context.Background(), system, srv.URL)
		assert.False(t, h.Available)
		assert.Error(t, h.Err)
	}
}
