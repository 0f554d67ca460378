package batch

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// testApp is a tiny board API: create cards and reorder them.
func testApp(t *testing.T) http.Handler {
	t.Helper()

	cards := make(map[string]string) // uid -> order
	next := 0

	mux := http.NewServeMux()
	mux.HandleFunc("POST /board/{pid}/card", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(HeaderBatch) != "true" {
			t.Error("sub-request missing batch marker")
		}
		if err := r.ParseForm(); err != nil {
			http.Error(w, "bad form", http.StatusBadRequest)
			return
		}
		next++
		uid := fmt.Sprintf("card_%d", next)
		cards[uid] = "0"
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{ //nolint:errcheck
			"uid":   uid,
			"title": r.PostFormValue("title"),
		})
	})
	mux.HandleFunc("PUT /board/{pid}/card/{uid}/order", func(w http.ResponseWriter, r *http.Request) {
		uid := r.PathValue("uid")
		if _, ok := cards[uid]; !ok {
			http.Error(w, `{"error":"no such card"}`, http.StatusNotFound)
			return
		}
		r.ParseForm() //nolint:errcheck
		cards[uid] = r.PostFormValue("order")
		json.NewEncoder(w).Encode(map[string]any{"uid": uid, "order": cards[uid]}) //nolint:errcheck
	})
	mux.HandleFunc("GET /plain", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "not json at all")
	})
	return mux
}

func post(t *testing.T, g *Gateway, subs []SubRequest) []SubResponse {
	t.Helper()

	body, err := json.Marshal(map[string]any{"request_schemas": subs})
	if err != nil {
		t.Fatalf("marshal batch: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/batch", strings.NewReader(string(body)))
	rec := httptest.NewRecorder()
	g.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("aggregate status = %d, want 200", rec.Code)
	}
	var out []SubResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode aggregate: %v", err)
	}
	return out
}

func TestUnknownMethod(t *testing.T) {
	g := NewGateway(testApp(t), nil, nil)

	out := post(t, g, []SubRequest{{PathOrAPIName: "/plain", Method: "PATCH"}})
	if len(out) != 1 || out[0].Status != http.StatusBadRequest {
		t.Fatalf("out = %+v", out)
	}
	body, ok := out[0].Body.(map[string]any)
	if !ok || len(body) != 0 {
		t.Fatalf("body = %#v, want empty object", out[0].Body)
	}
}

func TestDependentRequests(t *testing.T) {
	g := NewGateway(testApp(t), RouteMap{
		"create_card": "/board/{pid}/card",
		"order_card":  "/board/{pid}/card/{card_uid}/order",
	}, nil)

	out := post(t, g, []SubRequest{
		{
			PathOrAPIName: "create_card",
			Method:        "POST",
			Form:          map[string]string{"pid": "proj_1", "title": "Ship it"},
		},
		{
			PathOrAPIName: "order_card",
			Method:        "PUT",
			Form:          map[string]string{"pid": "proj_1", "card_uid": "card_1", "order": "3"},
		},
	})

	if len(out) != 2 {
		t.Fatalf("got %d responses", len(out))
	}
	if out[0].Status != http.StatusOK {
		t.Fatalf("create status = %d: %v", out[0].Status, out[0].Body)
	}
	created := out[0].Body.(map[string]any)
	if created["uid"] != "card_1" || created["title"] != "Ship it" {
		t.Fatalf("create body = %v", created)
	}

	// The second entry must see the card created by the first.
	if out[1].Status != http.StatusOK {
		t.Fatalf("order status = %d: %v", out[1].Status, out[1].Body)
	}
	ordered := out[1].Body.(map[string]any)
	if ordered["order"] != "3" {
		t.Fatalf("order body = %v", ordered)
	}
}

func TestSharedRouteNameSnapshots(t *testing.T) {
	g := NewGateway(testApp(t), RouteMap{
		"create_card": "/board/{pid}/card",
	}, nil)

	// Two entries share the route name with different substitutions;
	// neither must leak into the other.
	out := post(t, g, []SubRequest{
		{PathOrAPIName: "create_card", Method: "POST", Form: map[string]string{"pid": "proj_1", "title": "a"}},
		{PathOrAPIName: "create_card", Method: "POST", Form: map[string]string{"pid": "proj_2", "title": "b"}},
	})

	if out[0].Status != http.StatusOK || out[1].Status != http.StatusOK {
		t.Fatalf("out = %+v", out)
	}
	if out[0].Body.(map[string]any)["title"] != "a" || out[1].Body.(map[string]any)["title"] != "b" {
		t.Fatalf("substitution leaked: %+v", out)
	}
}

func TestNonJSONSubResponse(t *testing.T) {
	g := NewGateway(testApp(t), nil, nil)

	out := post(t, g, []SubRequest{{PathOrAPIName: "/plain", Method: "GET"}})
	body := out[0].Body.(map[string]any)
	if body["error"] != "Invalid JSON response" {
		t.Fatalf("body = %v", body)
	}
}

func TestQueryOverridesFormInSubstitution(t *testing.T) {
	got := substitute("/board/{pid}/card", map[string]string{"pid": "from_form"}, map[string]string{"pid": "from_query"})
	if got != "/board/from_query/card" {
		t.Fatalf("substitute = %q", got)
	}
}
