package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"kanakku/internal/cache"
	"kanakku/internal/extract"
	"kanakku/internal/services"
	"kanakku/internal/storage"
	"kanakku/internal/tabular/memory"

	"github.com/stretchr/testify/require"
)

const testUser = "user@example.com"

func newTestServer(t *testing.T) *Server {
	t.Helper()
	store := memory.New()
	require.NoError(t, storage.Migrate(context.Background(), store))
	repos := storage.New(store)
	memo := cache.NewLRUCache[services.Summary](16, time.Minute)
	svcs := services.New(repos, nil, memo)
	s := NewServer(":0", svcs, repos, extract.MockParser{}, "USD")
	t.Cleanup(func() { s.rateLimiter.stop() })
	return s
}

func doJSON(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Server.Handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(rec.Body).Decode(out))
}

func TestHealthEndpoints(t *testing.T) {
	s := newTestServer(t)

	for _, path := range []string{"/healthz", "/readyz"} {
		rec := doJSON(t, s, http.MethodGet, path, nil)
		require.Equal(t, http.StatusOK, rec.Code, path)
	}
}

func TestRecurringFlow(t *testing.T) {
	s := newTestServer(t)

	rec := doJSON(t, s, http.MethodPost, "/api/v1/recurring/upsert", map[string]any{
		"user_id":        testUser,
		"description":    "Rent",
		"category":       "Housing",
		"day_of_month":   10,
		"default_cost":   100.0,
		"start_date_iso": "2024-01-01",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var tpl struct {
		ID string `json:"template_id"`
	}
	decodeBody(t, rec, &tpl)
	require.NotEmpty(t, tpl.ID)

	rec = doJSON(t, s, http.MethodGet, "/api/v1/recurring/due?user="+testUser+"&as_of=2024-02-28", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var due []struct {
		TemplateID    string  `json:"template_id"`
		DateISO       string  `json:"date_iso"`
		SuggestedCost float64 `json:"suggested_cost"`
	}
	decodeBody(t, rec, &due)
	require.Len(t, due, 2)
	require.Equal(t, "2024-01-10", due[0].DateISO)
	require.Equal(t, "2024-02-10", due[1].DateISO)

	confirm := map[string]any{
		"user":  testUser,
		"as_of": "2024-02-28",
		"items": []map[string]any{
			{"template_id": tpl.ID, "date_iso": "2024-01-10"},
			{"template_id": tpl.ID, "date_iso": "2024-02-10"},
		},
	}
	rec = doJSON(t, s, http.MethodPost, "/api/v1/recurring/confirm", confirm)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var result map[string]int
	decodeBody(t, rec, &result)
	require.Equal(t, 2, result["processed"])

	// A replay of the same batch creates nothing.
	rec = doJSON(t, s, http.MethodPost, "/api/v1/recurring/confirm", confirm)
	require.Equal(t, http.StatusOK, rec.Code)
	decodeBody(t, rec, &result)
	require.Equal(t, 0, result["processed"])

	rec = doJSON(t, s, http.MethodGet, "/api/v1/recurring/due?user="+testUser+"&as_of=2024-02-28", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decodeBody(t, rec, &due)
	require.Empty(t, due)
}

func receiptBody(merchant string) map[string]any {
	return map[string]any{
		"user_email": testUser,
		"header": map[string]any{
			"merchant_name": merchant,
			"purchased_at":  "2024-05-01T10:15:00Z",
			"amount":        10.48,
			"tax":           0.50,
		},
		"items": []map[string]any{
			{"line_no": 1, "item_name": "Milk", "line_total": 4.99},
			{"line_no": 2, "item_name": "Bread", "line_total": 4.99},
		},
	}
}

func TestIngestDuplicateReturns409(t *testing.T) {
	s := newTestServer(t)

	rec := doJSON(t, s, http.MethodPost, "/api/v1/expenses/with_items", receiptBody("Acme Market"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created struct {
		ExpenseID string   `json:"expense_id"`
		ItemIDs   []string `json:"item_ids"`
	}
	decodeBody(t, rec, &created)
	require.NotEmpty(t, created.ExpenseID)
	require.Len(t, created.ItemIDs, 2)

	rec = doJSON(t, s, http.MethodPost, "/api/v1/expenses/with_items", receiptBody("Acme Market"))
	require.Equal(t, http.StatusConflict, rec.Code)
	var conflict errorResponse
	decodeBody(t, rec, &conflict)
	require.Equal(t, created.ExpenseID, conflict.ExpenseID)

	rec = doJSON(t, s, http.MethodPost, "/api/v1/expenses/with_items?force=true", receiptBody("Acme Market"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func TestIngestUnreconciledReturns400(t *testing.T) {
	s := newTestServer(t)

	body := receiptBody("Acme Market")
	body["header"].(map[string]any)["amount"] = 99.99
	rec := doJSON(t, s, http.MethodPost, "/api/v1/expenses/with_items", body)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExpenseCreateGetDelete(t *testing.T) {
	s := newTestServer(t)

	rec := doJSON(t, s, http.MethodPost, "/api/v1/expenses", map[string]any{
		"user_email": testUser,
		"header": map[string]any{
			"purchased_at": "2024-03-15",
			"description":  "coffee",
			"category":     "Food",
			"amount":       4.50,
		},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created map[string]string
	decodeBody(t, rec, &created)
	id := created["expense_id"]
	require.NotEmpty(t, id)

	rec = doJSON(t, s, http.MethodGet, fmt.Sprintf("/api/v1/expenses/%s?user=%s", id, testUser), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var got struct {
		Header expenseHeaderDTO `json:"header"`
	}
	decodeBody(t, rec, &got)
	require.Equal(t, "coffee", got.Header.Description)
	require.Equal(t, "USD", got.Header.Currency, "default currency is applied")

	// Other users cannot see it.
	rec = doJSON(t, s, http.MethodGet, fmt.Sprintf("/api/v1/expenses/%s?user=other@example.com", id), nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, s, http.MethodDelete, fmt.Sprintf("/api/v1/expenses/%s?user=%s", id, testUser), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, s, http.MethodGet, fmt.Sprintf("/api/v1/expenses/%s?user=%s", id, testUser), nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestExpenseListValidation(t *testing.T) {
	s := newTestServer(t)

	rec := doJSON(t, s, http.MethodGet, "/api/v1/expenses", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code, "missing user")

	rec = doJSON(t, s, http.MethodGet, "/api/v1/expenses?user="+testUser+"&month=13", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code, "month out of range")
}

func TestAnalysisEndpoint(t *testing.T) {
	s := newTestServer(t)

	rec := doJSON(t, s, http.MethodPost, "/api/v1/expenses", map[string]any{
		"user_email": testUser,
		"header": map[string]any{
			"purchased_at": "2024-01-10",
			"category":     "Food",
			"amount":       20.0,
		},
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, s, http.MethodGet, "/api/v1/analysis?user="+testUser+"&year=2024", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var summary struct {
		Total      float64            `json:"total"`
		Count      int                `json:"count"`
		ByCategory map[string]float64 `json:"by_category"`
	}
	decodeBody(t, rec, &summary)
	require.Equal(t, 1, summary.Count)
	require.InDelta(t, 20.0, summary.Total, 0.001)
	require.InDelta(t, 20.0, summary.ByCategory["Food"], 0.001)
}

func TestReceiptParseEndpoint(t *testing.T) {
	s := newTestServer(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "receipt.txt")
	require.NoError(t, err)
	_, err = fw.Write([]byte("Merchant: Acme Market\nDate: 2024-05-01T10:15:00Z\n1. Milk qty 1 pc price 2.50 total 2.50\nTotal: 2.50\n"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/ingest/receipt/parse", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	s.Server.Handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var parsed struct {
		Header      expenseHeaderDTO `json:"header"`
		Items       []expenseItemDTO `json:"items"`
		Fingerprint string           `json:"fingerprint"`
	}
	decodeBody(t, rec, &parsed)
	require.Equal(t, "Acme Market", parsed.Header.MerchantName)
	require.Len(t, parsed.Items, 1)
	require.NotEmpty(t, parsed.Fingerprint)
}

func TestSecurityHeaders(t *testing.T) {
	s := newTestServer(t)

	rec := doJSON(t, s, http.MethodGet, "/api/v1/expenses?user="+testUser, nil)
	require.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	require.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
}
