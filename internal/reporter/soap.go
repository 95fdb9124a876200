package reporter

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/xml"
	"net/http"

	"github.com/nsip/otf-reporter/internal/util"
	"github.com/pkg/errors"
)

//
// the remote reporting service as consumed by the connector
//
type Service interface {
	// all outcome variables of a test, name -> type
	GetResultVariables(ctx context.Context, version int, contentPackage []byte, options map[string]string) (map[string]string, error)
	// opens a reporting session and returns its id
	ArmSite(ctx context.Context, version int, username string, role int, secret, lastname, firstname string, options map[string]string) (string, error)
	// submits results for a session and returns the reporter url
	InitiateSite(ctx context.Context, version int, sessionID, secret string, students []ResultRecord, contentPackage []byte, options map[string]string) (string, error)
	// computed outcome values of the session's results, name -> value
	GetResultValues(ctx context.Context, version int, sessionID, secret string, params, options map[string]string) (map[string]string, error)
}

const soapEnvNS = "http://schemas.xmlsoap.org/soap/envelope/"

// DefaultNamespace is the target namespace of the reporter service
const DefaultNamespace = "http://server.webservice.plugin.bps.de/"

//
// SOAPService calls the reporter over SOAP 1.1
//
type SOAPService struct {
	client    *http.Client
	endpoint  string
	namespace string
}

//
// create a soap client for the service at endpoint,
// an empty namespace selects DefaultNamespace
//
func NewSOAPService(client *http.Client, endpoint, namespace string) *SOAPService {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	return &SOAPService{client: client, endpoint: endpoint, namespace: namespace}
}

type mapEntry struct {
	Key   string `xml:"key"`
	Value string `xml:"value"`
}

type wireMap struct {
	Entries []mapEntry `xml:"entry"`
}

func toWireMap(m map[string]string) wireMap {
	w := wireMap{}
	for k, v := range m {
		w.Entries = append(w.Entries, mapEntry{Key: k, Value: v})
	}
	return w
}

func (w *wireMap) toMap() map[string]string {
	m := make(map[string]string, len(w.Entries))
	for _, e := range w.Entries {
		m[e.Key] = e.Value
	}
	return m
}

type wireStudent struct {
	StudentID   string `xml:"studentId"`
	Firstname   string `xml:"firstname"`
	Lastname    string `xml:"lastname"`
	Groupname   string `xml:"groupname"`
	Tutorname   string `xml:"tutorname"`
	ResultsFile string `xml:"resultsFile"`
}

type getResultVariablesRequest struct {
	XMLName        xml.Name
	NS             string  `xml:"xmlns:rep,attr"`
	Version        int     `xml:"version"`
	ContentPackage string  `xml:"contentPackage"`
	Options        wireMap `xml:"options"`
}

type armSiteRequest struct {
	XMLName   xml.Name
	NS        string  `xml:"xmlns:rep,attr"`
	Version   int     `xml:"version"`
	Username  string  `xml:"username"`
	Role      int     `xml:"role"`
	Secret    string  `xml:"secret"`
	Lastname  string  `xml:"lastname"`
	Firstname string  `xml:"firstname"`
	Options   wireMap `xml:"options"`
}

type initiateSiteRequest struct {
	XMLName        xml.Name
	NS             string        `xml:"xmlns:rep,attr"`
	Version        int           `xml:"version"`
	SessionID      string        `xml:"sessionId"`
	Secret         string        `xml:"secret"`
	Students       []wireStudent `xml:"students>student"`
	ContentPackage string        `xml:"contentPackage"`
	Options        wireMap       `xml:"options"`
}

type getResultValuesRequest struct {
	XMLName   xml.Name
	NS        string  `xml:"xmlns:rep,attr"`
	Version   int     `xml:"version"`
	SessionID string  `xml:"sessionId"`
	Secret    string  `xml:"secret"`
	Params    wireMap `xml:"params"`
	Options   wireMap `xml:"options"`
}

type stringResponse struct {
	Return *string `xml:"return"`
}

type mapResponse struct {
	Return *wireMap `xml:"return"`
}

type requestEnvelope struct {
	XMLName xml.Name `xml:"soapenv:Envelope"`
	SoapNS  string   `xml:"xmlns:soapenv,attr"`
	Body    struct {
		Content interface{}
	} `xml:"soapenv:Body"`
}

type soapFault struct {
	Code   string `xml:"faultcode"`
	String string `xml:"faultstring"`
}

type responseEnvelope struct {
	Body struct {
		Fault *soapFault `xml:"Fault"`
		Inner []byte     `xml:",innerxml"`
	} `xml:"Body"`
}

//
// GetResultVariables implements Service
//
func (s *SOAPService) GetResultVariables(ctx context.Context, version int, contentPackage []byte, options map[string]string) (map[string]string, error) {
	req := &getResultVariablesRequest{
		XMLName:        s.name("getResultVariables"),
		NS:             s.namespace,
		Version:        version,
		ContentPackage: base64.StdEncoding.EncodeToString(contentPackage),
		Options:        toWireMap(options),
	}
	resp := &mapResponse{}
	if err := s.call(ctx, req, resp); err != nil {
		return nil, err
	}
	if resp.Return == nil {
		return nil, errors.New("getResultVariables returned no map")
	}
	return resp.Return.toMap(), nil
}

//
// ArmSite implements Service, an absent session id comes back as ""
//
func (s *SOAPService) ArmSite(ctx context.Context, version int, username string, role int, secret, lastname, firstname string, options map[string]string) (string, error) {
	req := &armSiteRequest{
		XMLName:   s.name("armSite"),
		NS:        s.namespace,
		Version:   version,
		Username:  username,
		Role:      role,
		Secret:    secret,
		Lastname:  lastname,
		Firstname: firstname,
		Options:   toWireMap(options),
	}
	resp := &stringResponse{}
	if err := s.call(ctx, req, resp); err != nil {
		return "", err
	}
	if resp.Return == nil {
		return "", nil
	}
	return *resp.Return, nil
}

//
// InitiateSite implements Service, an absent url comes back as ""
//
func (s *SOAPService) InitiateSite(ctx context.Context, version int, sessionID, secret string, students []ResultRecord, contentPackage []byte, options map[string]string) (string, error) {
	req := &initiateSiteRequest{
		XMLName:        s.name("initiateSite"),
		NS:             s.namespace,
		Version:        version,
		SessionID:      sessionID,
		Secret:         secret,
		ContentPackage: base64.StdEncoding.EncodeToString(contentPackage),
		Options:        toWireMap(options),
	}
	for _, st := range students {
		req.Students = append(req.Students, wireStudent{
			StudentID:   st.StudentID,
			Firstname:   st.FirstName,
			Lastname:    st.LastName,
			Groupname:   st.GroupName,
			Tutorname:   st.TutorName,
			ResultsFile: base64.StdEncoding.EncodeToString(st.ResultsFile),
		})
	}
	resp := &stringResponse{}
	if err := s.call(ctx, req, resp); err != nil {
		return "", err
	}
	if resp.Return == nil {
		return "", nil
	}
	return *resp.Return, nil
}

//
// GetResultValues implements Service
//
func (s *SOAPService) GetResultValues(ctx context.Context, version int, sessionID, secret string, params, options map[string]string) (map[string]string, error) {
	req := &getResultValuesRequest{
		XMLName:   s.name("getResultValues"),
		NS:        s.namespace,
		Version:   version,
		SessionID: sessionID,
		Secret:    secret,
		Params:    toWireMap(params),
		Options:   toWireMap(options),
	}
	resp := &mapResponse{}
	if err := s.call(ctx, req, resp); err != nil {
		return nil, err
	}
	if resp.Return == nil {
		return nil, errors.New("getResultValues returned no map")
	}
	return resp.Return.toMap(), nil
}

// operations are qualified with the rep prefix, their parts stay unqualified
func (s *SOAPService) name(op string) xml.Name {
	return xml.Name{Local: "rep:" + op}
}

//
// wraps the operation in an envelope, posts it and decodes
// the body content of the reply into out
//
func (s *SOAPService) call(ctx context.Context, op interface{}, out interface{}) error {

	env := requestEnvelope{SoapNS: soapEnvNS}
	env.Body.Content = op

	payload, err := xml.Marshal(env)
	if err != nil {
		return errors.Wrap(err, "cannot encode soap request")
	}

	headers := map[string]string{
		"Content-Type": "text/xml; charset=utf-8",
		"SOAPAction":   `""`,
	}
	body := bytes.NewBuffer(append([]byte(xml.Header), payload...))

	status, res, err := util.Fetch(ctx, s.client, http.MethodPost, s.endpoint, headers, body)
	if err != nil {
		return errors.Wrap(err, "soap call failed")
	}

	renv := &responseEnvelope{}
	if err := xml.Unmarshal(res, renv); err != nil {
		if status != http.StatusOK {
			return util.StatusError(status)
		}
		return errors.Wrap(err, "cannot decode soap response")
	}
	if f := renv.Body.Fault; f != nil {
		return errors.Errorf("soap fault %s: %s", f.Code, f.String)
	}
	if status != http.StatusOK {
		return util.StatusError(status)
	}
	// empty body, the caller sees a nil return
	if len(bytes.TrimSpace(renv.Body.Inner)) == 0 {
		return nil
	}
	if err := xml.Unmarshal(renv.Body.Inner, out); err != nil {
		return errors.Wrap(err, "cannot decode soap response body")
	}

	return nil
}
