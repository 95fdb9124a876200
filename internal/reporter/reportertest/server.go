//
// Package reportertest provides an in-process reporter service
// for tests of code that talks to the reporter over soap.
//
package reportertest

import (
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
)

//
// Server answers the four reporter operations with canned values
// and records what it was sent
//
type Server struct {
	*httptest.Server

	mu sync.Mutex

	// returned by armSite, "" sends an empty return
	SessionID string
	// returned by initiateSite, "" sends an empty return
	LinkURL string
	// returned by getResultValues; FailValues sends a fault instead
	Values     map[string]string
	FailValues bool
	// returned by getResultVariables
	Variables map[string]string
	// status of the ?wsdl probe, 0 means 200
	WSDLStatus int

	Arms     []Arm
	Students [][]Student
	Calls    []string
}

//
// one recorded armSite call
//
type Arm struct {
	Username  string `xml:"username"`
	Role      int    `xml:"role"`
	Secret    string `xml:"secret"`
	Lastname  string `xml:"lastname"`
	Firstname string `xml:"firstname"`
}

//
// one student as received by initiateSite, results decoded
//
type Student struct {
	StudentID   string `xml:"studentId"`
	Firstname   string `xml:"firstname"`
	Lastname    string `xml:"lastname"`
	ResultsFile string `xml:"resultsFile"`
}

type envelope struct {
	Body struct {
		Inner []byte `xml:",innerxml"`
	} `xml:"Body"`
}

type operation struct {
	XMLName  xml.Name
	Arm
	Students []Student `xml:"students>student"`
}

//
// start a server with session "sid-1" and url "http://reporter.test/view"
//
func NewServer() *Server {
	s := &Server{
		SessionID: "sid-1",
		LinkURL:   "http://reporter.test/view",
		Values:    map[string]string{},
		Variables: map[string]string{},
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	return s
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {

	s.mu.Lock()
	defer s.mu.Unlock()

	if r.Method == http.MethodGet {
		if _, ok := r.URL.Query()["wsdl"]; ok {
			status := s.WSDLStatus
			if status == 0 {
				status = http.StatusOK
			}
			w.WriteHeader(status)
			fmt.Fprint(w, "<definitions/>")
			return
		}
		http.NotFound(w, r)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	env := envelope{}
	if err := xml.Unmarshal(body, &env); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	op := operation{}
	if err := xml.Unmarshal(env.Body.Inner, &op); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	name := op.XMLName.Local
	s.Calls = append(s.Calls, name)

	switch name {
	case "armSite":
		s.Arms = append(s.Arms, op.Arm)
		writeString(w, name, s.SessionID)
	case "initiateSite":
		for i, st := range op.Students {
			raw, _ := base64.StdEncoding.DecodeString(st.ResultsFile)
			op.Students[i].ResultsFile = string(raw)
		}
		s.Students = append(s.Students, op.Students)
		writeString(w, name, s.LinkURL)
	case "getResultValues":
		if s.FailValues {
			writeFault(w, "no results for session")
			return
		}
		writeMap(w, name, s.Values)
	case "getResultVariables":
		writeMap(w, name, s.Variables)
	default:
		writeFault(w, "unknown operation "+name)
	}
}

const envelopeStart = `<?xml version="1.0" encoding="UTF-8"?><S:Envelope xmlns:S="http://schemas.xmlsoap.org/soap/envelope/"><S:Body>`
const envelopeEnd = `</S:Body></S:Envelope>`

func writeString(w http.ResponseWriter, op, value string) {
	w.Header().Set("Content-Type", "text/xml; charset=utf-8")
	var b strings.Builder
	b.WriteString(envelopeStart)
	fmt.Fprintf(&b, "<ns2:%sResponse xmlns:ns2=\"urn:reporter\">", op)
	if value != "" {
		b.WriteString("<return>")
		xml.EscapeText(&b, []byte(value))
		b.WriteString("</return>")
	}
	fmt.Fprintf(&b, "</ns2:%sResponse>", op)
	b.WriteString(envelopeEnd)
	io.WriteString(w, b.String())
}

func writeMap(w http.ResponseWriter, op string, m map[string]string) {
	w.Header().Set("Content-Type", "text/xml; charset=utf-8")
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	b.WriteString(envelopeStart)
	fmt.Fprintf(&b, "<ns2:%sResponse xmlns:ns2=\"urn:reporter\"><return>", op)
	for _, k := range keys {
		b.WriteString("<entry><key>")
		xml.EscapeText(&b, []byte(k))
		b.WriteString("</key><value>")
		xml.EscapeText(&b, []byte(m[k]))
		b.WriteString("</value></entry>")
	}
	fmt.Fprintf(&b, "</return></ns2:%sResponse>", op)
	b.WriteString(envelopeEnd)
	io.WriteString(w, b.String())
}

func writeFault(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "text/xml; charset=utf-8")
	w.WriteHeader(http.StatusInternalServerError)
	var b strings.Builder
	b.WriteString(envelopeStart)
	b.WriteString("<S:Fault><faultcode>S:Server</faultcode><faultstring>")
	xml.EscapeText(&b, []byte(msg))
	b.WriteString("</faultstring></S:Fault>")
	b.WriteString(envelopeEnd)
	io.WriteString(w, b.String())
}

//
// snapshot of recorded arm calls
//
func (s *Server) ArmCalls() []Arm {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Arm(nil), s.Arms...)
}

//
// snapshot of the student lists received by initiateSite
//
func (s *Server) Submitted() [][]Student {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]Student(nil), s.Students...)
}

//
// names of the operations called so far
//
func (s *Server) Operations() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.Calls...)
}

//
// Set changes canned values while the server runs
//
func (s *Server) Set(fn func(s *Server)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s)
}
