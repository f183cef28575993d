package server

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dukerupert/larder/internal/auth"
	"github.com/dukerupert/larder/internal/database"
	"github.com/dukerupert/larder/internal/feed"
	"github.com/dukerupert/larder/internal/grocery"
	"github.com/dukerupert/larder/internal/model"
	"github.com/dukerupert/larder/internal/store"
)

type testEnv struct {
	ts     *httptest.Server
	tokens *auth.Tokens
}

func setupServer(t *testing.T) *testEnv {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	st := store.New(db, store.WithTxAttempts(3))
	t.Cleanup(func() { st.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	tokens := auth.NewTokens("test-secret", time.Hour)
	srv := New(st, Config{Tokens: tokens, Publisher: feed.NewBus(logger)}, logger)

	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return &testEnv{ts: ts, tokens: tokens}
}

func (e *testEnv) token(t *testing.T, userID, name string) string {
	t.Helper()
	tok, err := e.tokens.Issue(userID, name)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return tok
}

// do sends body as JSON and decodes the response into out when out is non-nil.
func (e *testEnv) do(t *testing.T, token, method, path string, body, out any) int {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, e.ts.URL+path, rd)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s %s: %v", method, path, err)
		}
	}
	return resp.StatusCode
}

func TestHealth(t *testing.T) {
	e := setupServer(t)

	var body map[string]string
	if code := e.do(t, "", http.MethodGet, "/health", nil, &body); code != http.StatusOK {
		t.Fatalf("status = %d, want 200", code)
	}
	if body["status"] != "ok" {
		t.Errorf("status body = %q, want ok", body["status"])
	}
}

func TestAuthRequired(t *testing.T) {
	e := setupServer(t)

	if code := e.do(t, "", http.MethodGet, "/api/inventory", nil, nil); code != http.StatusUnauthorized {
		t.Errorf("no token: status = %d, want 401", code)
	}
	if code := e.do(t, "garbage", http.MethodGet, "/api/inventory", nil, nil); code != http.StatusUnauthorized {
		t.Errorf("bad token: status = %d, want 401", code)
	}

	ann := e.token(t, "u1", "Ann")
	if code := e.do(t, ann, http.MethodGet, "/api/inventory", nil, nil); code != http.StatusForbidden {
		t.Errorf("no family: status = %d, want 403", code)
	}
}

func TestInventoryFlow(t *testing.T) {
	e := setupServer(t)
	ann := e.token(t, "u1", "Ann")
	bob := e.token(t, "u2", "Bob")

	var fam model.Family
	if code := e.do(t, ann, http.MethodPost, "/api/families", map[string]any{"name": "Home"}, &fam); code != http.StatusCreated {
		t.Fatalf("create family: status = %d", code)
	}
	if code := e.do(t, bob, http.MethodPost, "/api/families/join", map[string]string{"code": fam.Code}, nil); code != http.StatusOK {
		t.Fatalf("join family: status = %d", code)
	}

	var b model.Batch
	code := e.do(t, ann, http.MethodPost, "/api/inventory/batches", map[string]any{
		"name":          "Milk",
		"quantity":      2,
		"unit":          "L",
		"owner_id":      model.PublicOwner,
		"min_threshold": 3,
	}, &b)
	if code != http.StatusCreated {
		t.Fatalf("add batch: status = %d", code)
	}
	if b.Category != grocery.FreshFood {
		t.Errorf("Category = %q, want %q", b.Category, grocery.FreshFood)
	}

	var alerts []model.Alert
	e.do(t, bob, http.MethodGet, "/api/alerts?pending=true", nil, &alerts)
	if len(alerts) != 1 || alerts[0].CurrentTotal != 2 || alerts[0].Threshold != 3 {
		t.Fatalf("alerts = %+v, want one alert 2/3", alerts)
	}

	var consumed map[string]string
	code = e.do(t, bob, http.MethodPost, "/api/inventory/consume", map[string]string{"name": "milk", "owner_id": model.PublicOwner}, &consumed)
	if code != http.StatusOK {
		t.Fatalf("consume: status = %d", code)
	}
	if consumed["owner_id"] != model.PublicOwner {
		t.Errorf("owner_id = %q, want PUBLIC", consumed["owner_id"])
	}

	e.do(t, ann, http.MethodGet, "/api/alerts", nil, &alerts)
	if len(alerts) != 1 || alerts[0].CurrentTotal != 1 {
		t.Fatalf("alerts after consume = %+v, want total 1", alerts)
	}

	// Bob cannot touch Ann's private stock.
	var private model.Batch
	e.do(t, ann, http.MethodPost, "/api/inventory/batches", map[string]any{"name": "Chocolate", "quantity": 1, "owner_id": "u1"}, &private)
	if code := e.do(t, bob, http.MethodPost, "/api/inventory/batches/"+private.ID+"/adjust", map[string]int{"delta": -1}, nil); code != http.StatusForbidden {
		t.Errorf("adjust foreign batch: status = %d, want 403", code)
	}

	// A missing name must not widen to every item the owner holds.
	if code := e.do(t, ann, http.MethodDelete, "/api/inventory/group?owner=u1", nil, nil); code != http.StatusBadRequest {
		t.Errorf("delete group without name: status = %d, want 400", code)
	}
	var group map[string]any
	if code := e.do(t, ann, http.MethodGet, "/api/inventory/group?name=Chocolate&owner=u1", nil, &group); code != http.StatusOK {
		t.Errorf("chocolate group after blank delete: status = %d, want 200", code)
	}

	// The last unit goes; the group and its alert disappear.
	e.do(t, ann, http.MethodPost, "/api/inventory/consume", map[string]string{"name": "Milk", "owner_id": model.PublicOwner}, nil)
	if code := e.do(t, ann, http.MethodPost, "/api/inventory/consume", map[string]string{"name": "Milk", "owner_id": model.PublicOwner}, nil); code != http.StatusConflict {
		t.Errorf("consume empty group: status = %d, want 409", code)
	}
	e.do(t, ann, http.MethodGet, "/api/alerts", nil, &alerts)
	if len(alerts) != 0 {
		t.Errorf("alerts = %+v, want none", alerts)
	}
}

func TestShoppingCheckoutFlow(t *testing.T) {
	e := setupServer(t)
	ann := e.token(t, "u1", "Ann")

	e.do(t, ann, http.MethodPost, "/api/families", map[string]any{"name": "Home"}, nil)

	var entry model.ShoppingEntry
	code := e.do(t, ann, http.MethodPost, "/api/shopping", map[string]any{"name": "Rice", "quantity": 2, "owner_id": model.PublicOwner}, &entry)
	if code != http.StatusOK {
		t.Fatalf("quick add: status = %d", code)
	}

	var resp checkoutBody
	if code := e.do(t, ann, http.MethodPost, "/api/shopping/checkout", map[string]any{"ids": []string{entry.ID}}, nil); code != http.StatusBadRequest {
		t.Errorf("checkout unchecked entry: status = %d, want 400", code)
	}
	if code := e.do(t, ann, http.MethodPut, "/api/shopping/"+entry.ID, map[string]any{"checked": true}, nil); code != http.StatusOK {
		t.Fatalf("check entry: status = %d", code)
	}
	code = e.do(t, ann, http.MethodPost, "/api/shopping/checkout", map[string]any{"ids": []string{entry.ID}}, &resp)
	if code != http.StatusOK {
		t.Fatalf("checkout: status = %d", code)
	}
	if len(resp.Created) != 1 || len(resp.Errors) != 0 {
		t.Fatalf("checkout = %+v, want one batch", resp)
	}
	if !resp.Created[0].PendingSetup {
		t.Error("new item should be pending setup")
	}

	var list []model.ShoppingEntry
	e.do(t, ann, http.MethodGet, "/api/shopping", nil, &list)
	if len(list) != 0 {
		t.Errorf("shopping list = %+v, want empty", list)
	}

	if code := e.do(t, ann, http.MethodPost, "/api/shopping/checkout", map[string]any{"ids": []string{"missing"}}, nil); code != http.StatusNotFound {
		t.Errorf("checkout unknown entry: status = %d, want 404", code)
	}
}

type checkoutBody struct {
	Created []model.Batch `json:"created"`
	Errors  []string      `json:"errors"`
}

func TestJoinRateLimited(t *testing.T) {
	e := setupServer(t)
	ann := e.token(t, "u1", "Ann")

	for i := range joinLimit {
		code := e.do(t, ann, http.MethodPost, "/api/families/join", map[string]string{"code": "ZZZZZZ"}, nil)
		if code != http.StatusNotFound {
			t.Fatalf("attempt %d: status = %d, want 404", i+1, code)
		}
	}
	if code := e.do(t, ann, http.MethodPost, "/api/families/join", map[string]string{"code": "ZZZZZZ"}, nil); code != http.StatusTooManyRequests {
		t.Errorf("over limit: status = %d, want 429", code)
	}

	// The limit is per user.
	bob := e.token(t, "u2", "Bob")
	if code := e.do(t, bob, http.MethodPost, "/api/families/join", map[string]string{"code": "ZZZZZZ"}, nil); code != http.StatusNotFound {
		t.Errorf("other user: status = %d, want 404", code)
	}
}
