package subsentryclient

import (
	"testing"
)

func TestUnwrapList_Shapes(t *testing.T) {
	cases := []struct {
		name string
		body string
		keys []string
		want string
	}{
		{"single envelope", `{"data":[{"id":1}],"total":1}`, nil, `[{"id":1}]`},
		{"double envelope", `{"data":{"data":[{"id":2}]}}`, nil, `[{"id":2}]`},
		{"bare array", `[{"id":3}]`, nil, `[{"id":3}]`},
		{"keyed object", `{"data":{"monthlyData":[{"month":"Jan"}]}}`, []string{"monthlyData"}, `[{"month":"Jan"}]`},
		{"object without key", `{"data":{"total":3}}`, nil, `[]`},
		{"string payload", `{"data":"nope"}`, nil, `[]`},
		{"null payload", `{"data":null}`, nil, `[]`},
		{"not json", `<html>`, nil, `[]`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := string(UnwrapList([]byte(tc.body), tc.keys...))
			if got != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, got)
			}
		})
	}
}

func TestUnwrapObject_Shapes(t *testing.T) {
	if got := string(UnwrapObject([]byte(`{"data":{"data":{"a":1}}}`))); got != `{"a":1}` {
		t.Fatalf("expected inner object, got %s", got)
	}
	if got := string(UnwrapObject([]byte(`{"user":{"id":"u"}}`))); got != `{"user":{"id":"u"}}` {
		t.Fatalf("expected body itself when no data key, got %s", got)
	}
	if got := string(UnwrapObject([]byte(`{"data":[1,2]}`))); got != `{}` {
		t.Fatalf("expected empty object for array payload, got %s", got)
	}
}

func TestMessageFrom_Precedence(t *testing.T) {
	cases := map[string]string{
		`{"message":"m","error":"e"}`:   "m",
		`{"error":"e"}`:                 "e",
		`{"data":{"message":"nested"}}`: "nested",
		`{"error":{"code":1}}`:          "Request failed",
		`not json`:                      "Request failed",
		``:                              "Request failed",
	}
	for body, want := range cases {
		if got := messageFrom([]byte(body)); got != want {
			t.Fatalf("%q: expected %q, got %q", body, want, got)
		}
	}
}

func TestFilenameFrom(t *testing.T) {
	if got := filenameFrom(`attachment; filename="a.csv"`, "x", "pdf"); got != "a.csv" {
		t.Fatalf("expected header filename, got %q", got)
	}
	if got := filenameFrom("", "report-1", "pdf"); got != "report-1.pdf" {
		t.Fatalf("expected fallback filename, got %q", got)
	}
}

func TestRouteOf(t *testing.T) {
	cases := map[string]string{
		"/subscriptions":               "/subscriptions",
		"/subscriptions/bulk":          "/subscriptions/bulk",
		"/subscriptions/sub-123":       "/subscriptions/:id",
		"/notifications/n1/read":       "/notifications/:id",
		"/auth/reset-password/abc123":  "/auth/reset-password",
		"/analytics/category-breakdown": "/analytics/category-breakdown",
	}
	for path, want := range cases {
		if got := routeOf(path); got != want {
			t.Fatalf("%s: expected %s, got %s", path, want, got)
		}
	}
}
