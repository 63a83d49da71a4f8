package wave

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/samvad-hq/wave-analyzer/pkg/httpclient"
)

// fakeResponse lets us stub the httpclient.Response interface.
type fakeResponse struct {
	body       []byte
	statusCode int
}

func (f fakeResponse) Body() []byte    { return f.body }
func (f fakeResponse) StatusCode() int { return f.statusCode }

// fakeTransport returns a canned response and records every call.
type fakeTransport struct {
	resp    fakeResponse
	err     error
	calls   int
	urls    []string
	queries []httpclient.Query
}

func (f *fakeTransport) Get(_ context.Context, url string, query httpclient.Query, _ map[string]string) (httpclient.Response, error) {
	f.calls++
	f.urls = append(f.urls, url)
	f.queries = append(f.queries, query)
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

func (f *fakeTransport) lastQuery() string {
	if len(f.queries) == 0 {
		return ""
	}
	return f.queries[len(f.queries)-1].Encode()
}

func okTransport(body []byte) *fakeTransport {
	return &fakeTransport{resp: fakeResponse{body: body, statusCode: http.StatusOK}}
}

func loadFixture(t *testing.T, name string) []byte {
	t.Helper()
	raw, err := os.ReadFile(filepath.Join("testdata", name))
	if err != nil {
		t.Fatalf("read fixture %s: %v", name, err)
	}
	return raw
}

func TestNewDefaults(t *testing.T) {
	c, err := New("key", nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if c.APIKey() != "key" {
		t.Errorf("APIKey = %q", c.APIKey())
	}
	if c.Format() != FormatJSON {
		t.Errorf("Format = %q want json", c.Format())
	}
	if _, ok := c.ViewportWidth(); ok {
		t.Errorf("viewport width should be unset")
	}
	if _, ok := c.ReportType(); ok {
		t.Errorf("report type should be unset")
	}
	if _, ok := c.Transport().(*httpclient.RestyClient); !ok {
		t.Errorf("expected default resty transport, got %T", c.Transport())
	}
	if c.LastResponse() != nil || c.LastResult() != nil {
		t.Errorf("expected no last response on a fresh client")
	}
}

func TestValidParametersRoundTrip(t *testing.T) {
	cases := []struct {
		name  string
		param string
		value any
		get   func(*Client) any
	}{
		{"format json", "format", "json", func(c *Client) any { return string(c.Format()) }},
		{"format xml", "format", "xml", func(c *Client) any { return string(c.Format()) }},
		{"viewportwidth", "viewportwidth", 1440, func(c *Client) any { v, _ := c.ViewportWidth(); return v }},
		{"evaldelay", "evaldelay", 220, func(c *Client) any { v, _ := c.EvalDelay(); return v }},
		{"reporttype 1", "reporttype", 1, func(c *Client) any { v, _ := c.ReportType(); return int(v) }},
		{"reporttype 2", "reporttype", 2, func(c *Client) any { v, _ := c.ReportType(); return int(v) }},
		{"reporttype 3", "reporttype", 3, func(c *Client) any { v, _ := c.ReportType(); return int(v) }},
		{"username", "username", "Geralt", func(c *Client) any { v, _ := c.Username(); return v }},
		{"password", "password", "of Rivia", func(c *Client) any { v, _ := c.Password(); return v }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, err := New("key", Params{tc.param: tc.value})
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			if got := tc.get(c); got != tc.value {
				t.Fatalf("got %v want %v", got, tc.value)
			}
		})
	}
}

func TestTypedSettersRoundTrip(t *testing.T) {
	c, err := New("key", nil, WithTransport(okTransport(nil)))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := c.SetFormat(FormatXML); err != nil {
		t.Fatalf("SetFormat: %v", err)
	}
	if err := c.SetReportType(ReportXPaths); err != nil {
		t.Fatalf("SetReportType: %v", err)
	}
	c.SetViewportWidth(1024)
	c.SetEvalDelay(0)
	c.SetUsername("Geralt")
	c.SetPassword("of Rivia")
	c.SetAPIKey("other")

	if c.Format() != FormatXML {
		t.Errorf("Format = %q", c.Format())
	}
	if rt, ok := c.ReportType(); !ok || rt != ReportXPaths {
		t.Errorf("ReportType = %v %v", rt, ok)
	}
	if w, ok := c.ViewportWidth(); !ok || w != 1024 {
		t.Errorf("ViewportWidth = %v %v", w, ok)
	}
	if d, ok := c.EvalDelay(); !ok || d != 0 {
		t.Errorf("EvalDelay should be explicitly zero, got %v %v", d, ok)
	}
	if u, ok := c.Username(); !ok || u != "Geralt" {
		t.Errorf("Username = %v %v", u, ok)
	}
	if p, ok := c.Password(); !ok || p != "of Rivia" {
		t.Errorf("Password = %v %v", p, ok)
	}
	if c.APIKey() != "other" {
		t.Errorf("APIKey = %q", c.APIKey())
	}
}

func TestInvalidValuesAreRejected(t *testing.T) {
	c, err := New("key", nil, WithTransport(okTransport(nil)))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	err = c.SetFormat("csv")
	var perr *InvalidParameterError
	if !errors.As(err, &perr) || !errors.Is(err, ErrInvalidParameter) {
		t.Fatalf("expected InvalidParameterError, got %v", err)
	}
	if !strings.Contains(err.Error(), "csv") {
		t.Errorf("error should name the value: %v", err)
	}
	if c.Format() != FormatJSON {
		t.Errorf("format changed after rejected set: %q", c.Format())
	}

	for _, rt := range []ReportType{0, 4, -1} {
		if err := c.SetReportType(rt); !errors.Is(err, ErrInvalidParameter) {
			t.Errorf("SetReportType(%d) = %v, want ErrInvalidParameter", rt, err)
		}
	}
	if _, ok := c.ReportType(); ok {
		t.Errorf("report type should remain unset")
	}
}

func TestNewRejectsInvalidParameters(t *testing.T) {
	cases := map[string]Params{
		"format":     {"format": "csv"},
		"reporttype": {"reporttype": 4},
	}
	for name, params := range cases {
		t.Run(name, func(t *testing.T) {
			c, err := New("key", params)
			if !errors.Is(err, ErrInvalidParameter) {
				t.Fatalf("expected ErrInvalidParameter, got %v", err)
			}
			if c != nil {
				t.Fatalf("expected no client on error")
			}
		})
	}
}

func TestNewRejectsUnknownParameter(t *testing.T) {
	c, err := New("key", Params{"nickname": "Geralt"})
	var perr *InvalidParameterError
	if !errors.As(err, &perr) {
		t.Fatalf("expected InvalidParameterError, got %v", err)
	}
	if !perr.Unknown || perr.Name != "nickname" {
		t.Fatalf("unexpected error details %+v", perr)
	}
	if c != nil {
		t.Fatalf("expected no client on error")
	}
	if !strings.Contains(err.Error(), "nickname is not a valid parameter") {
		t.Errorf("unexpected message %q", err.Error())
	}
}

func TestNewRejectsInvalidTypes(t *testing.T) {
	cases := map[string]any{
		"format":        []any{},
		"viewportwidth": "sort of medium-ish, you know?",
		"evaldelay":     "two ticks",
		"reporttype":    "good",
		"username":      nil,
		"password":      nil,
	}
	for param, value := range cases {
		t.Run(param, func(t *testing.T) {
			_, err := New("key", Params{param: value})
			var terr *InvalidTypeError
			if !errors.As(err, &terr) || !errors.Is(err, ErrInvalidType) {
				t.Fatalf("expected InvalidTypeError, got %v", err)
			}
			if errors.Is(err, ErrInvalidParameter) {
				t.Fatalf("type errors must not match ErrInvalidParameter")
			}
			if terr.Name != param {
				t.Fatalf("Name = %q want %q", terr.Name, param)
			}
		})
	}
}

func TestNumericParamsAcceptDecodedNumbers(t *testing.T) {
	var params Params
	if err := json.Unmarshal([]byte(`{"viewportwidth":1440,"reporttype":2}`), &params); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	c, err := New("key", params, WithTransport(okTransport(nil)))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if w, _ := c.ViewportWidth(); w != 1440 {
		t.Errorf("ViewportWidth = %d", w)
	}

	if _, err := New("key", Params{"evaldelay": 1.5}); !errors.Is(err, ErrInvalidType) {
		t.Errorf("fractional delay should be a type error, got %v", err)
	}
	if _, err := New("key", Params{"reporttype": ReportItems, "format": FormatXML, "evaldelay": int64(5)}); err != nil {
		t.Errorf("named types should be accepted: %v", err)
	}
}

func TestSetParamsIsAllOrNothing(t *testing.T) {
	c, err := New("key", Params{"viewportwidth": 800}, WithTransport(okTransport(nil)))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	err = c.SetParams(Params{
		"format":        "xml",
		"viewportwidth": 1440,
		"username":      "Geralt",
		"zzz":           true,
	})
	if !errors.Is(err, ErrInvalidParameter) {
		t.Fatalf("expected ErrInvalidParameter, got %v", err)
	}
	if c.Format() != FormatJSON {
		t.Errorf("format applied from rejected batch")
	}
	if w, _ := c.ViewportWidth(); w != 800 {
		t.Errorf("viewport width applied from rejected batch: %d", w)
	}
	if _, ok := c.Username(); ok {
		t.Errorf("username applied from rejected batch")
	}
}

func TestClientCanMakeRequestWithValidParameters(t *testing.T) {
	fixture := loadFixture(t, "successful_analysis.json")
	transport := okTransport(fixture)

	c, err := New("key", Params{
		"format":        "json",
		"viewportwidth": 1440,
		"evaldelay":     30,
		"reporttype":    1,
		"username":      "Geralt",
		"password":      "of Rivia",
	}, WithTransport(transport))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	res, err := c.Analyze(context.Background(), "https://christiangriffin.ca", nil)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	want := "url=https%3A%2F%2Fchristiangriffin.ca&key=key&format=json&viewportwidth=1440&evaldelay=30&reporttype=1&username=Geralt&password=of+Rivia"
	if got := transport.lastQuery(); got != want {
		t.Fatalf("query =\n%s\nwant\n%s", got, want)
	}
	if transport.urls[0] != "https://wave.webaim.org/api/request" {
		t.Fatalf("endpoint = %s", transport.urls[0])
	}
	if string(c.LastResponse()) != string(fixture) {
		t.Fatalf("LastResponse does not match body")
	}
	if res.Format() != FormatJSON {
		t.Fatalf("Format = %s", res.Format())
	}
}

func TestAnalyzeReturnsDecodedJSON(t *testing.T) {
	fixture := loadFixture(t, "successful_analysis.json")
	c, err := New("key", nil, WithTransport(okTransport(fixture)))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	res, err := c.Analyze(context.Background(), "https://example.com", nil)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	jr, ok := res.(*JSONResult)
	if !ok {
		t.Fatalf("expected *JSONResult, got %T", res)
	}

	var want any
	if err := json.Unmarshal(fixture, &want); err != nil {
		t.Fatalf("unmarshal fixture: %v", err)
	}
	if !reflect.DeepEqual(jr.Data, want) {
		t.Fatalf("decoded data differs from fixture")
	}
	obj, ok := jr.Object()
	if !ok || obj["categories"] == nil {
		t.Fatalf("expected categories in object")
	}
	if c.LastResult() != res {
		t.Fatalf("LastResult should return the decoded result")
	}
}

func TestAnalyzeReturnsXMLTree(t *testing.T) {
	fixture := loadFixture(t, "successful_analysis.xml")
	transport := okTransport(fixture)
	c, err := New("key", Params{"format": "xml"}, WithTransport(transport))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	res, err := c.Analyze(context.Background(), "https://example.com", nil)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	xr, ok := res.(*XMLResult)
	if !ok {
		t.Fatalf("expected *XMLResult, got %T", res)
	}
	if xr.Root.Name != "response" {
		t.Fatalf("root = %s", xr.Root.Name)
	}
	title, ok := xr.Root.Child("statistics").ChildText("pagetitle")
	if !ok || title != "Christian Griffin" {
		t.Fatalf("pagetitle = %q %v", title, ok)
	}
	errNode := xr.Root.Child("categories").Child("error")
	if errNode == nil || errNode.Attrs["description"] != "Errors" {
		t.Fatalf("unexpected error category node %+v", errNode)
	}
	if v, _ := transport.queries[0].Get("format"); v != "xml" {
		t.Fatalf("format param = %q", v)
	}
}

func TestAnalyzeServiceErrors(t *testing.T) {
	cases := []struct {
		name   string
		format string
		body   string
		want   string
	}{
		{"json", "json", `{"success":false,"error":"Invalid key"}`, "Invalid key"},
		{"json nested status", "json", `{"status":{"success":false,"error":"Invalid key"}}`, "Invalid key"},
		{"json no message", "json", `{"success":false}`, "Request was not successful"},
		{"xml", "xml", `<response><success>false</success><error>Invalid key</error></response>`, "Invalid key"},
		{"xml no message", "xml", `<response><success>false</success></response>`, "Request was not successful"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, err := New("key", Params{"format": tc.format}, WithTransport(okTransport([]byte(tc.body))))
			if err != nil {
				t.Fatalf("New: %v", err)
			}

			res, err := c.Analyze(context.Background(), "https://example.com", nil)
			if res != nil {
				t.Fatalf("expected nil result on service error")
			}
			var serr *ServiceError
			if !errors.As(err, &serr) || !errors.Is(err, ErrService) {
				t.Fatalf("expected ServiceError, got %v", err)
			}
			if serr.Message != tc.want {
				t.Fatalf("Message = %q want %q", serr.Message, tc.want)
			}
			if string(c.LastResponse()) != tc.body {
				t.Fatalf("raw body should be retained after a service error")
			}
			if c.LastResult() != nil {
				t.Fatalf("failed analysis must not replace LastResult")
			}
		})
	}
}

func TestAnalyzeSuccessFlagVariants(t *testing.T) {
	bodies := []string{
		`{"success":true}`,
		`{"success":"false"}`,
		`[1,2,3]`,
		`{"categories":{}}`,
	}
	for _, body := range bodies {
		c, err := New("key", nil, WithTransport(okTransport([]byte(body))))
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		if _, err := c.Analyze(context.Background(), "https://example.com", nil); err != nil {
			t.Errorf("body %s: unexpected error %v", body, err)
		}
	}
}

func TestAnalyzeIsIdempotent(t *testing.T) {
	fixture := loadFixture(t, "successful_analysis.json")
	transport := okTransport(fixture)
	c, err := New("key", nil, WithTransport(transport))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	first, err := c.Analyze(context.Background(), "https://example.com", Params{"reporttype": 2})
	if err != nil {
		t.Fatalf("first Analyze: %v", err)
	}
	second, err := c.Analyze(context.Background(), "https://example.com", Params{"reporttype": 2})
	if err != nil {
		t.Fatalf("second Analyze: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("expected equal results for identical calls")
	}
	if transport.calls != 2 {
		t.Fatalf("expected 2 transport calls, got %d", transport.calls)
	}
	if transport.queries[0].Encode() != transport.queries[1].Encode() {
		t.Fatalf("queries differ between identical calls")
	}
}

func TestAnalyzeOmitsZeroValues(t *testing.T) {
	transport := okTransport([]byte(`{"success":true}`))
	c, err := New("key", Params{"viewportwidth": 0, "evaldelay": 0, "username": ""}, WithTransport(transport))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := c.Analyze(context.Background(), "https://example.com", nil); err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if got, want := transport.lastQuery(), "url=https%3A%2F%2Fexample.com&key=key&format=json"; got != want {
		t.Fatalf("query = %s want %s", got, want)
	}

	zero, err := New("key", Params{"viewportwidth": 0}, WithTransport(transport), WithZeroValues())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := zero.Analyze(context.Background(), "https://example.com", nil); err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if got, want := transport.lastQuery(), "url=https%3A%2F%2Fexample.com&key=key&format=json&viewportwidth=0"; got != want {
		t.Fatalf("query with zero values = %s want %s", got, want)
	}
}

func TestAnalyzeParamsApplyToSingleCall(t *testing.T) {
	transport := okTransport([]byte(`<response><success>true</success></response>`))
	c, err := New("key", nil, WithTransport(transport))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	res, err := c.Analyze(context.Background(), "https://example.com", Params{"format": "xml", "evaldelay": 250})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if res.Format() != FormatXML {
		t.Fatalf("per-call format not honoured: %s", res.Format())
	}
	if v, ok := transport.queries[0].Get("evaldelay"); !ok || v != "250" {
		t.Fatalf("evaldelay = %q %v", v, ok)
	}
	if c.Format() != FormatJSON {
		t.Fatalf("per-call format leaked into client: %s", c.Format())
	}
	if _, ok := c.EvalDelay(); ok {
		t.Fatalf("per-call evaldelay leaked into client")
	}
}

func TestAnalyzeRejectsBadParamsBeforeRequest(t *testing.T) {
	transport := okTransport([]byte(`{}`))
	c, err := New("key", nil, WithTransport(transport))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if _, err := c.Analyze(context.Background(), "https://example.com", Params{"key": "x"}); !errors.Is(err, ErrInvalidParameter) {
		t.Fatalf("expected ErrInvalidParameter for key in params, got %v", err)
	}
	if _, err := c.Analyze(context.Background(), "https://example.com", Params{"evaldelay": "soon"}); !errors.Is(err, ErrInvalidType) {
		t.Fatalf("expected ErrInvalidType, got %v", err)
	}
	if transport.calls != 0 {
		t.Fatalf("no request should be sent for invalid params, got %d", transport.calls)
	}
}

func TestAnalyzeTransportFailures(t *testing.T) {
	boom := errors.New("connection refused")
	c, err := New("key", nil, WithTransport(&fakeTransport{err: boom}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	_, err = c.Analyze(context.Background(), "https://example.com", nil)
	var terr *TransportError
	if !errors.As(err, &terr) || !errors.Is(err, ErrTransport) || !errors.Is(err, boom) {
		t.Fatalf("expected TransportError wrapping cause, got %v", err)
	}

	c.SetTransport(&fakeTransport{resp: fakeResponse{body: []byte("down for maintenance"), statusCode: http.StatusServiceUnavailable}})
	_, err = c.Analyze(context.Background(), "https://example.com", nil)
	if !errors.As(err, &terr) {
		t.Fatalf("expected TransportError for 503, got %v", err)
	}
	if terr.StatusCode != http.StatusServiceUnavailable || !strings.Contains(terr.Body, "maintenance") {
		t.Fatalf("unexpected transport error %+v", terr)
	}
	if string(c.LastResponse()) != "down for maintenance" {
		t.Fatalf("LastResponse = %q", c.LastResponse())
	}
}

func TestAnalyzeMalformedBodies(t *testing.T) {
	cases := map[string]string{
		"json": `{"success":`,
		"xml":  `<response><success>true</success>`,
	}
	for format, body := range cases {
		t.Run(format, func(t *testing.T) {
			c, err := New("key", Params{"format": format}, WithTransport(okTransport([]byte(body))))
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			_, err = c.Analyze(context.Background(), "https://example.com", nil)
			var derr *DecodeError
			if !errors.As(err, &derr) || !errors.Is(err, ErrDecode) {
				t.Fatalf("expected DecodeError, got %v", err)
			}
			if string(derr.Format) != format {
				t.Fatalf("Format = %s", derr.Format)
			}
		})
	}
}

func TestAnalyzeAgainstHTTPServer(t *testing.T) {
	fixture := loadFixture(t, "successful_analysis.json")
	var gotPath, gotKey, gotURL string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.URL.Query().Get("key")
		gotURL = r.URL.Query().Get("url")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(fixture)
	}))
	defer srv.Close()

	c, err := New("secret", nil, WithBaseURL(srv.URL+"/api/"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := c.Analyze(context.Background(), "https://example.com/page?x=1", nil); err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if gotPath != "/api/request" {
		t.Errorf("path = %s", gotPath)
	}
	if gotKey != "secret" {
		t.Errorf("key = %s", gotKey)
	}
	if gotURL != "https://example.com/page?x=1" {
		t.Errorf("url = %s", gotURL)
	}
}
