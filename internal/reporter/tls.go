package reporter

import (
	"crypto/tls"
	"crypto/x509"
	"os"

	"github.com/pkg/errors"
)

//
// TLSFiles names the pem files used when the reporter is reached over https.
// All fields are optional: without a CA file the system pool is used,
// without a cert/key pair no client certificate is presented.
//
type TLSFiles struct {
	CACertFile string
	CertFile   string
	KeyFile    string
}

//
// builds the client tls config. The peer's chain is verified against
// the CA pool, the certificate's host names are not checked.
//
func (f TLSFiles) Config() (*tls.Config, error) {

	roots, err := f.rootPool()
	if err != nil {
		return nil, err
	}

	conf := &tls.Config{
		MinVersion: tls.VersionTLS12,
		// chain verification happens in VerifyConnection
		InsecureSkipVerify: true,
		VerifyConnection: func(cs tls.ConnectionState) error {
			return verifyPeer(cs, roots)
		},
	}

	if f.CertFile != "" || f.KeyFile != "" {
		cert, err := tls.LoadX509KeyPair(f.CertFile, f.KeyFile)
		if err != nil {
			return nil, errors.Wrap(err, "failed to load client certificate key pair")
		}
		conf.Certificates = []tls.Certificate{cert}
	}

	return conf, nil
}

func (f TLSFiles) rootPool() (*x509.CertPool, error) {
	if f.CACertFile == "" {
		pool, err := x509.SystemCertPool()
		if err != nil {
			return nil, errors.Wrap(err, "failed to load system certificate pool")
		}
		return pool, nil
	}
	caBytes, err := os.ReadFile(f.CACertFile)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read CA certificate %s", f.CACertFile)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(caBytes) {
		return nil, errors.New("failed to parse CA certificate")
	}
	return pool, nil
}

func verifyPeer(cs tls.ConnectionState, roots *x509.CertPool) error {
	if len(cs.PeerCertificates) == 0 {
		return errors.New("no peer certificate presented")
	}
	opts := x509.VerifyOptions{
		Roots:         roots,
		Intermediates: x509.NewCertPool(),
	}
	for _, cert := range cs.PeerCertificates[1:] {
		opts.Intermediates.AddCert(cert)
	}
	if _, err := cs.PeerCertificates[0].Verify(opts); err != nil {
		return errors.Wrap(err, "peer certificate verification failed")
	}
	return nil
}
