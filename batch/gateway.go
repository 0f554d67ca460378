// Package batch implements the batch gateway: one endpoint that replays
// a list of sub-requests in-process through the HTTP app and returns
// their responses positionally.
//
// Sub-requests run sequentially so dependent operations (create then
// reorder) observe each other's effects. The aggregate response is
// always 200; per-entry failures are reported in the entry itself.
package batch

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
)

// HeaderBatch marks replayed sub-requests so downstream filters can skip
// side effects meant only for top-level calls.
const HeaderBatch = "X-Langboard-Batch"

// SubRequest is one entry in the batch body.
type SubRequest struct {
	// PathOrAPIName is either a literal path or a registered route name.
	PathOrAPIName string `json:"path_or_api_name"`

	// Method is one of GET, POST, PUT, DELETE.
	Method string `json:"method"`

	// Query parameters appended to the URL.
	Query map[string]string `json:"query,omitempty"`

	// Form fields sent as the request body for POST and PUT.
	Form map[string]string `json:"form,omitempty"`
}

// SubResponse is the positional result for one sub-request.
type SubResponse struct {
	Status int `json:"status"`
	Body   any `json:"body"`
}

// batchBody is the request envelope for the gateway endpoint.
type batchBody struct {
	RequestSchemas []SubRequest `json:"request_schemas"`
}

// RouteResolver supplies the named route table, mapping route names to
// templated paths such as "/board/{pid}/card".
type RouteResolver interface {
	Routes() map[string]string
}

// RouteMap is a static RouteResolver.
type RouteMap map[string]string

// Routes returns the map itself.
func (m RouteMap) Routes() map[string]string { return m }

// Gateway replays sub-requests through the wrapped HTTP app.
type Gateway struct {
	app    http.Handler
	routes RouteResolver
	logger *slog.Logger

	// Route names are stable for the process lifetime, so the table is
	// resolved once and read lock-free afterwards.
	routeOnce  sync.Once
	routeCache map[string]string
}

// NewGateway creates a batch gateway over the application handler.
func NewGateway(app http.Handler, routes RouteResolver, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	if routes == nil {
		routes = RouteMap(nil)
	}
	return &Gateway{app: app, routes: routes, logger: logger}
}

// ServeHTTP handles POST /batch.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var body batchBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, `{"error":"invalid batch body"}`, http.StatusBadRequest)
		return
	}

	out := make([]SubResponse, 0, len(body.RequestSchemas))
	for _, sub := range body.RequestSchemas {
		out = append(out, g.replay(r, sub))
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(out) //nolint:errcheck // client gone
}

// replay executes one sub-request in-process. The parent request
// contributes its headers and auth principal; the sub-request is marked
// so downstream filters know it is not a top-level call.
func (g *Gateway) replay(parent *http.Request, sub SubRequest) SubResponse {
	method, ok := allowedMethod(sub.Method)
	if !ok {
		return SubResponse{Status: http.StatusBadRequest, Body: map[string]any{}}
	}

	// Resolve the route name against a per-iteration snapshot: entries
	// sharing a name must not see each other's substitutions.
	path := sub.PathOrAPIName
	if tmpl, found := g.routeTable()[path]; found {
		path = tmpl
	}
	path = substitute(path, sub.Form, sub.Query)

	target, err := url.Parse(path)
	if err != nil {
		return SubResponse{Status: http.StatusBadRequest, Body: map[string]any{}}
	}
	q := target.Query()
	for k, v := range sub.Query {
		q.Set(k, v)
	}
	target.RawQuery = q.Encode()

	var bodyReader *strings.Reader
	if (method == http.MethodPost || method == http.MethodPut) && len(sub.Form) > 0 {
		form := url.Values{}
		for k, v := range sub.Form {
			form.Set(k, v)
		}
		bodyReader = strings.NewReader(form.Encode())
	} else {
		bodyReader = strings.NewReader("")
	}

	req, err := http.NewRequestWithContext(parent.Context(), method, target.String(), bodyReader)
	if err != nil {
		return SubResponse{Status: http.StatusBadRequest, Body: map[string]any{}}
	}
	for k, vs := range parent.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if bodyReader.Len() > 0 {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	req.Header.Set(HeaderBatch, "true")

	rec := newRecorder()
	g.app.ServeHTTP(rec, req)

	var decoded any
	if err := json.Unmarshal(rec.body, &decoded); err != nil {
		g.logger.DebugContext(parent.Context(), "sub-response is not JSON",
			"path", target.Path, "status", rec.status)
		decoded = map[string]any{"error": "Invalid JSON response"}
	}
	return SubResponse{Status: rec.status, Body: decoded}
}

func (g *Gateway) routeTable() map[string]string {
	g.routeOnce.Do(func() {
		g.routeCache = make(map[string]string)
		for name, tmpl := range g.routes.Routes() {
			g.routeCache[name] = tmpl
		}
	})
	return g.routeCache
}

func allowedMethod(m string) (string, bool) {
	switch strings.ToUpper(m) {
	case http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete:
		return strings.ToUpper(m), true
	default:
		return "", false
	}
}

// substitute fills {placeholder} segments from the form fields, with
// query parameters taking precedence.
func substitute(path string, form, query map[string]string) string {
	merged := make(map[string]string, len(form)+len(query))
	for k, v := range form {
		merged[k] = v
	}
	for k, v := range query {
		merged[k] = v
	}
	for k, v := range merged {
		path = strings.ReplaceAll(path, "{"+k+"}", url.PathEscape(v))
	}
	return path
}

// recorder captures one in-process response.
type recorder struct {
	header http.Header
	body   []byte
	status int
}

func newRecorder() *recorder {
	return &recorder{header: make(http.Header), status: http.StatusOK}
}

func (r *recorder) Header() http.Header { return r.header }

func (r *recorder) Write(p []byte) (int, error) {
	r.body = append(r.body, p...)
	return len(p), nil
}

func (r *recorder) WriteHeader(status int) { r.status = status }
