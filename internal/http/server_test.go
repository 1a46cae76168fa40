package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"txfilter/internal/core"
	"txfilter/internal/dataset"
	"txfilter/internal/dataset/remote"
	"txfilter/internal/middleware/ratelimit"
	"txfilter/internal/middleware/trace"
	"txfilter/internal/pipeline"
)

type fakeSource struct {
	txs []core.Transaction
	err error
}

func (f fakeSource) ListTransactions(context.Context) ([]core.Transaction, error) {
	return f.txs, f.err
}

var sample = []core.Transaction{
	{Date: "2019-05-10", IsBuy: true, Quantity: 2, UnitPrice: "10.00"},
	{Date: "2019-05-20", IsBuy: false, Quantity: 1, UnitPrice: "5.00"},
}

var may2019 = core.DateRange{From: core.NewDate(2019, 5, 1), To: core.NewDate(2019, 5, 31)}

func newTestServer(t *testing.T, src fakeSource, mutate ...func(*Options)) *Server {
	t.Helper()
	opts := Options{
		Addr:      ":0",
		Window:    may2019,
		Currency:  "ISK",
		RateLimit: ratelimit.Config{RequestsPerSecond: 1000, Burst: 1000},
	}
	for _, m := range mutate {
		m(&opts)
	}
	srv, err := NewServer(src, opts)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	return srv
}

func get(t *testing.T, srv *Server, target string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, target, nil))
	return rr
}

func TestIndex(t *testing.T) {
	srv := newTestServer(t, fakeSource{txs: sample})
	rr := get(t, srv, "/")
	if rr.Code != http.StatusOK {
		t.Fatalf("index status=%d", rr.Code)
	}
	body := rr.Body.String()
	for _, want := range []string{
		`id="transaction-type"`, `id="start"`, `id="end"`, `id="transactions"`,
		`value="2019-05-01"`, `value="2019-05-31"`,
		"There are 2 results.", "Totaling -15.00 ISK", "-20.00 ISK", "May 10", "2 x 10.00 =",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("index body missing %q", want)
		}
	}
	if strings.Contains(body, `hx-swap-oob`) {
		t.Error("full page must not carry out-of-band swaps")
	}
	if rr.Header().Get("X-Frame-Options") != "DENY" {
		t.Error("security headers missing")
	}
	if rr.Header().Get(trace.HeaderRequestID) == "" {
		t.Error("request id header missing")
	}

	body = get(t, srv, "/?end=nope").Body.String()
	if !strings.Contains(body, `id="end-error" class="field-error invalid">Not a valid date string.`) {
		t.Error("full page must mark the invalid end field")
	}
}

func TestResultsFragment(t *testing.T) {
	srv := newTestServer(t, fakeSource{txs: sample})

	t.Run("type filter", func(t *testing.T) {
		rr := get(t, srv, "/ui/results?transaction-type=income&start=2019-05-01&end=2019-05-31")
		if rr.Code != http.StatusOK {
			t.Fatalf("status=%d", rr.Code)
		}
		body := rr.Body.String()
		if !strings.Contains(body, "There are 1 results.") || !strings.Contains(body, "Totaling 5.00 ISK") {
			t.Fatalf("unexpected fragment: %s", body)
		}
		if strings.Contains(body, "<html") {
			t.Fatal("fragment rendered the full page")
		}
		if !strings.Contains(rr.Header().Get("HX-Trigger"), "results:updated") {
			t.Fatalf("HX-Trigger = %q", rr.Header().Get("HX-Trigger"))
		}
	})

	t.Run("invalid end clears results", func(t *testing.T) {
		body := get(t, srv, "/ui/results?transaction-type=all&start=2019-05-01&end=soon").Body.String()
		if !strings.Contains(body, "Not a valid date string.") || !strings.Contains(body, "There are 0 results.") {
			t.Fatalf("unexpected fragment: %s", body)
		}
		if !strings.Contains(body, `id="end-error" class="field-error invalid" hx-swap-oob="true">Not a valid date string.`) {
			t.Fatal("end error and its invalid cue not swapped out of band")
		}
		if !strings.Contains(body, `id="start-error" class="field-error" hx-swap-oob="true"></span>`) {
			t.Fatal("valid start must be swapped without the invalid cue")
		}
	})

	t.Run("stylesheet ties the border to the error span", func(t *testing.T) {
		css := get(t, srv, "/static/style.css").Body.String()
		if !strings.Contains(css, "input:has(+ .field-error.invalid)") {
			t.Fatal("invalid border rule missing")
		}
	})

	t.Run("fixed end clears the invalid cue", func(t *testing.T) {
		body := get(t, srv, "/ui/results?transaction-type=all&start=2019-05-01&end=2019-05-31").Body.String()
		if !strings.Contains(body, `id="end-error" class="field-error" hx-swap-oob="true"></span>`) {
			t.Fatalf("end cue not reset: %s", body)
		}
	})

	t.Run("end before start", func(t *testing.T) {
		body := get(t, srv, "/ui/results?start=2019-05-20&end=2019-05-05").Body.String()
		if !strings.Contains(body, "Field: end - End date cannot be before the start date") {
			t.Fatalf("cross-field error missing: %s", body)
		}
	})

	t.Run("out of window", func(t *testing.T) {
		body := get(t, srv, "/ui/results?start=2019-04-30").Body.String()
		if !strings.Contains(body, "Date must be between 2019-05-01 and 2019-05-31") {
			t.Fatalf("range error missing: %s", body)
		}
	})
}

func TestQueryInputIsSanitized(t *testing.T) {
	srv := newTestServer(t, fakeSource{txs: sample})
	body := get(t, srv, "/?start=%3Cscript%3Ealert(1)%3C%2Fscript%3E").Body.String()
	if strings.Contains(body, "<script>alert") {
		t.Fatal("markup reflected into the page")
	}
	if !strings.Contains(body, "Not a valid date string.") {
		t.Fatal("sanitized value should still fail validation")
	}
}

func TestResultsJSON(t *testing.T) {
	srv := newTestServer(t, fakeSource{txs: sample})

	rr := get(t, srv, "/results.json?transaction-type=all&start=2019-05-01&end=2019-05-31")
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body)
	}
	var out filterResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Count != 2 || out.TotalCents != -1500 || out.Total != "-15.00" || out.Currency != "ISK" {
		t.Fatalf("unexpected response %+v", out)
	}
	if out.Transactions[0].Type != "expense" || out.Transactions[0].Cost != "20.00" {
		t.Fatalf("unexpected first transaction %+v", out.Transactions[0])
	}

	rr = get(t, srv, "/results.json?end=garbage")
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("invalid filter status=%d", rr.Code)
	}
	var errBody struct {
		FieldErrors map[string]string `json:"field_errors"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &errBody); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if errBody.FieldErrors["end"] != "Not a valid date string." {
		t.Fatalf("unexpected field errors %v", errBody.FieldErrors)
	}
}

func TestTransactionsEnvelope(t *testing.T) {
	srv := newTestServer(t, fakeSource{txs: sample})
	rr := get(t, srv, "/transactions.json?transaction-type=income")
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	txs, err := dataset.Decode(rr.Body)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	// The envelope ignores filter parameters.
	if len(txs) != 2 || txs[0] != sample[0] || txs[1] != sample[1] {
		t.Fatalf("unexpected dataset %+v", txs)
	}

	srv = newTestServer(t, fakeSource{err: errors.New("down")})
	if rr := get(t, srv, "/transactions.json"); rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("failing source status=%d", rr.Code)
	}
}

func TestRemoteSourceReadsTransactions(t *testing.T) {
	upstream := httptest.NewServer(newTestServer(t, fakeSource{txs: sample}).Handler)
	defer upstream.Close()

	src := remote.New(remote.Options{URL: upstream.URL + "/transactions.json"})
	txs, err := src.ListTransactions(context.Background())
	if err != nil {
		t.Fatalf("ListTransactions: %v", err)
	}
	if len(txs) != len(sample) {
		t.Fatalf("got %d transactions, want %d", len(txs), len(sample))
	}
	for i := range sample {
		if txs[i] != sample[i] {
			t.Fatalf("row %d = %+v, want %+v", i, txs[i], sample[i])
		}
	}

	// A downstream instance filters the chained dataset like the upstream one.
	downstream := newTestServer(t, fakeSource{txs: txs})
	rr := get(t, downstream, "/results.json?transaction-type=expense")
	var out filterResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Count != 1 || out.TotalCents != -2000 {
		t.Fatalf("buys lost on the way: %+v", out)
	}
}

func TestExport(t *testing.T) {
	srv := newTestServer(t, fakeSource{txs: sample})

	rr := get(t, srv, "/export.xlsx?transaction-type=expense")
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body)
	}
	if ct := rr.Header().Get("Content-Type"); !strings.Contains(ct, "spreadsheetml") {
		t.Fatalf("Content-Type = %q", ct)
	}
	if cd := rr.Header().Get("Content-Disposition"); cd != `attachment; filename="transactions-2019-05-01-2019-05-31.xlsx"` {
		t.Fatalf("Content-Disposition = %q", cd)
	}
	if !strings.HasPrefix(rr.Body.String(), "PK") {
		t.Fatal("body is not a zip container")
	}

	rr = get(t, srv, "/export.xlsx?start=2019-05-20&end=2019-05-01")
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("invalid filter status=%d", rr.Code)
	}
}

func TestLoadFailure(t *testing.T) {
	srv := newTestServer(t, fakeSource{err: errors.New("upstream down")})

	rr := get(t, srv, "/")
	if rr.Code != http.StatusOK {
		t.Fatalf("index status=%d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), pipeline.BannerLoadFailed) {
		t.Fatal("banner missing")
	}

	rr = get(t, srv, "/ui/results")
	if !strings.Contains(rr.Header().Get("HX-Trigger"), "show-notification") {
		t.Fatalf("HX-Trigger = %q", rr.Header().Get("HX-Trigger"))
	}

	if rr := get(t, srv, "/results.json"); rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("json status=%d", rr.Code)
	}
	// Validation errors still win over the load failure.
	if rr := get(t, srv, "/results.json?start=nope"); rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("json invalid status=%d", rr.Code)
	}
}

func TestHealthAndReady(t *testing.T) {
	srv := newTestServer(t, fakeSource{txs: sample})
	for _, path := range []string{"/healthz", "/readyz"} {
		if rr := get(t, srv, path); rr.Code != http.StatusOK {
			t.Fatalf("%s status=%d", path, rr.Code)
		}
	}

	srv = newTestServer(t, fakeSource{}, func(o *Options) {
		o.Ready = func(context.Context) error { return errors.New("db locked") }
	})
	rr := get(t, srv, "/readyz")
	if rr.Code != http.StatusServiceUnavailable || !strings.Contains(rr.Body.String(), "db locked") {
		t.Fatalf("readyz status=%d body=%s", rr.Code, rr.Body)
	}
}

func TestRateLimit(t *testing.T) {
	srv := newTestServer(t, fakeSource{txs: sample}, func(o *Options) {
		o.RateLimit = ratelimit.Config{RequestsPerSecond: 0.01, Burst: 1}
	})
	if rr := get(t, srv, "/"); rr.Code != http.StatusOK {
		t.Fatalf("first status=%d", rr.Code)
	}
	if rr := get(t, srv, "/"); rr.Code != http.StatusTooManyRequests {
		t.Fatalf("second status=%d", rr.Code)
	}
	// Probes stay reachable while throttled.
	if rr := get(t, srv, "/healthz"); rr.Code != http.StatusOK {
		t.Fatalf("healthz status=%d", rr.Code)
	}
	if len(srv.Cleaners()) != 1 {
		t.Fatal("limiter not exposed for sweeping")
	}
}

func TestStaticAssets(t *testing.T) {
	srv := newTestServer(t, fakeSource{})
	rr := get(t, srv, "/static/style.css")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), ".transactions") {
		t.Fatalf("static status=%d", rr.Code)
	}
	if rr.Header().Get("Cache-Control") == "" {
		t.Fatal("cache header missing")
	}
}
