package util

import (
	"context"
	"crypto/rand"
	"crypto/tls"
	"fmt"
	"io"
	"log"
	"math"
	"math/big"
	"net"
	"net/http"
	"time"

	"github.com/nats-io/nuid"
	"github.com/pkg/errors"
	hashids "github.com/speps/go-hashids"
)

//
// create an http client for talking to the reporter service.
// timeout of zero means the transport defaults apply,
// tlsConf may be nil for plain http targets.
// build one per target and share it, each client owns
// its own connection pool.
//
func NewNetClient(timeout time.Duration, tlsConf *tls.Config) *http.Client {

	var netTransport = &http.Transport{
		DialContext: (&net.Dialer{
			Timeout: 10 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout: 5 * time.Second,
		IdleConnTimeout:     90 * time.Second,
		MaxIdleConnsPerHost: 8,
		TLSClientConfig:     tlsConf,
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: netTransport,
	}
}

//
// generate a short useful unique name - hashid in this case
//
func GenerateName() string {

	name := "reporter"

	// generate a random number
	number0, err := rand.Int(rand.Reader, big.NewInt(10000000))
	if err != nil {
		log.Println("error generating random number for name: ", err)
		return name
	}

	hd := hashids.NewData()
	hd.Salt = "otf-reporter random name generator 2021"
	hd.MinLength = 5
	h, err := hashids.NewWithData(hd)
	if err != nil {
		log.Println("error auto-generating name: ", err)
		return name
	}
	e, err := h.EncodeInt64([]int64{number0.Int64()})
	if err != nil {
		log.Println("error encoding auto-generated name: ", err)
		return name
	}
	name = e

	return name

}

//
// generate a unique id - nuid in this case
//
func GenerateID() string {

	return nuid.Next()

}

//
// generate a random signed 64-bit number rendered as a decimal string,
// used as the shared secret of a reporter session
//
func RandomSecret() (string, error) {

	n, err := rand.Int(rand.Reader, big.NewInt(math.MaxInt64))
	if err != nil {
		return "", errors.Wrap(err, "cannot generate secret")
	}
	sign, err := rand.Int(rand.Reader, big.NewInt(2))
	if err != nil {
		return "", errors.Wrap(err, "cannot generate secret")
	}
	if sign.Int64() == 1 {
		n.Neg(n)
	}

	return n.String(), nil
}

//
// Makes network calls to other services, and returns
// the response payload as bytes, or an error
//
// client - http client to use
// method - http method to invoke (post/put/get etc.)
// header - map of headers to include in request
// body - reader for any content to supply as request body
//
// the response status is returned alongside the payload so
// callers can inspect non-200 payloads (soap faults arrive as 500s)
//
func Fetch(ctx context.Context, client *http.Client, method string, url string, header map[string]string, body io.Reader) (int, []byte, error) {

	// Create request.
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return 0, nil, err
	}

	// Add any required headers.
	for key, value := range header {
		req.Header.Add(key, value)
	}

	// Perform the network call.
	res, err := client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer res.Body.Close()

	// return response payload as bytes
	respByte, err := io.ReadAll(res.Body)
	if err != nil {
		return res.StatusCode, nil, errors.Wrap(err, "cannot read Fetch response")
	}

	return res.StatusCode, respByte, nil
}

//
// Debugger is satisfied by the component loggers
//
type Debugger interface {
	Debugf(format string, args ...interface{})
}

//
// small utility function embedded in major ops
// to print a performance indicator at debug level.
//
func TimeTrack(logger Debugger, start time.Time, name string) {
	elapsed := time.Since(start)
	logger.Debugf("%s took %s", name, elapsed.Truncate(time.Millisecond).String())

}

//
// find an available tcp port
//
func AvailablePort() (int, error) {

	listener, err := net.Listen("tcp", ":0")
	if err != nil {
		return 0, errors.Wrap(err, "cannot acquire a tcp port")
	}
	defer listener.Close()

	return listener.Addr().(*net.TCPAddr).Port, nil

}

//
// error reported when a network call does not answer 200
//
func StatusError(status int) error {
	return errors.New(fmt.Sprintf("Network call failed with response: %d", status))
}
