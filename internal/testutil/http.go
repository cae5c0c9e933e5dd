package testutil

import (
	"net/http"
	"net/http/httptest"
	"strings"
)

// ResponseRecorder wraps httptest.ResponseRecorder with helper methods.
type ResponseRecorder struct {
	*httptest.ResponseRecorder
}

// Serve runs a GET for target against h and returns the recorded response.
func Serve(h http.Handler, target string) *ResponseRecorder {
	return ServeRequest(h, httptest.NewRequest(http.MethodGet, target, nil))
}

// ServeBearer is Serve with an "Authorization: Bearer <token>" header.
func ServeBearer(h http.Handler, target, token string) *ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	req.Header.Set("Authorization", "Bearer "+token)
	return ServeRequest(h, req)
}

// ServeRequest runs req against h and returns the recorded response.
func ServeRequest(h http.Handler, req *http.Request) *ResponseRecorder {
	rec := &ResponseRecorder{httptest.NewRecorder()}
	h.ServeHTTP(rec, req)
	return rec
}

// AssertStatus checks the response status code.
func (r *ResponseRecorder) AssertStatus(t interface{ Errorf(string, ...any) }, expected int) {
	if r.Code != expected {
		t.Errorf("status code: got %d, want %d", r.Code, expected)
	}
}

// AssertContains checks if the response body contains the expected string.
func (r *ResponseRecorder) AssertContains(t interface{ Errorf(string, ...any) }, expected string) {
	if !strings.Contains(r.Body.String(), expected) {
		t.Errorf("response body does not contain %q", expected)
	}
}
