package daemon

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestAuthMiddleware(t *testing.T) {
	next := func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) }

	cases := []struct {
		name   string
		token  string
		header string
		want   int
	}{
		{name: "disabled", token: "", header: "", want: http.StatusNoContent},
		{name: "missing header", token: "t", header: "", want: http.StatusUnauthorized},
		{name: "wrong scheme", token: "t", header: "Basic t", want: http.StatusUnauthorized},
		{name: "wrong token", token: "t", header: "Bearer x", want: http.StatusUnauthorized},
		{name: "valid", token: "t", header: "Bearer t", want: http.StatusNoContent},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			authMiddleware(tc.token, next)(w, req)
			if w.Code != tc.want {
				t.Fatalf("status = %d, want %d", w.Code, tc.want)
			}
			if tc.want == http.StatusUnauthorized && w.Header().Get("Content-Type") != problemMediaType {
				t.Fatalf("expected problem body, got %q", w.Header().Get("Content-Type"))
			}
		})
	}
}

func TestDescribeValidation(t *testing.T) {
	v := newValidator()
	req := struct {
		Topic string `json:"topic" validate:"required,notblank,max=5"`
		Tone  string `json:"tone" validate:"max=3"`
	}{Topic: "  ", Tone: "friendly"}

	got := describeValidation(v.Struct(req))
	want := "topic is required; tone must be at most 3 characters"
	if got != want {
		t.Fatalf("describeValidation = %q, want %q", got, want)
	}
}
