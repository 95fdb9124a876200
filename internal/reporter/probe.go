package reporter

import (
	"context"
	"io"
	"net/http"
	"strings"
)

//
// outcome of a single availability probe
//
type Health struct {
	Target     string `json:"target"`
	Available  bool   `json:"available"`
	StatusCode int    `json:"statusCode,omitempty"`
	Err        error  `json:"-"`
}

//
// Probe requests the service description (<target>?wsdl) once and
// reports the service available only when it answers 200.
// Transport and tls failures are returned inside Health, never as a panic,
// and the connection is released on every path.
//
func Probe(ctx context.Context, client *http.Client, target string) Health {

	h := Health{Target: target}

	url := target + "?wsdl"
	if strings.Contains(target, "?") {
		url = target + "&wsdl"
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		h.Err = err
		return h
	}

	res, err := client.Do(req)
	if err != nil {
		h.Err = err
		return h
	}
	defer res.Body.Close()
	// drain so the connection can be reused or closed cleanly
	_, _ = io.Copy(io.Discard, res.Body)

	h.StatusCode = res.StatusCode
	h.Available = res.StatusCode == http.StatusOK

	return h
}
