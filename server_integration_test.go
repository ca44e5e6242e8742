package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/gin-gonic/gin"

	"pfin/pkg/logger"
	"pfin/pkg/transaction"
)

// helper to perform requests with auth token
func performRequest(r http.Handler, method, path string, body io.Reader, token string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest(method, path, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func setupTestServer(t *testing.T) *gin.Engine {
	// integration tests are opt-in. Set DB_DSN_TEST=1 and DB_DSN to run them.
	if os.Getenv("DB_DSN_TEST") != "1" {
		t.Skip("integration tests are disabled; set DB_DSN_TEST=1 to enable")
	}
	gin.SetMode(gin.TestMode)
	jwtSecret = []byte("test-secret")
	initDB()
	engine := transaction.NewEngine(transaction.NewGormRepository(db), logger.New())
	r := gin.Default()
	setupRoutes(r, engine)
	return r
}

func TestFullFlow(t *testing.T) {
	r := setupTestServer(t)

	// 1. Sign up
	signupBody, _ := json.Marshal(map[string]string{"name": "User One", "email": "user1@example.com", "password": "pass123"})
	resp := performRequest(r, http.MethodPost, "/auth/signup", bytes.NewBuffer(signupBody), "")
	if resp.Code != 201 && resp.Code != 400 {
		t.Fatalf("signup failed status=%d body=%s", resp.Code, resp.Body.String())
	}

	// 2. Login
	loginBody, _ := json.Marshal(map[string]string{"email": "user1@example.com", "password": "pass123"})
	resp = performRequest(r, http.MethodPost, "/auth/login", bytes.NewBuffer(loginBody), "")
	if resp.Code != 200 {
		t.Fatalf("login failed status=%d body=%s", resp.Code, resp.Body.String())
	}
	var loginResp map[string]any
	_ = json.Unmarshal(resp.Body.Bytes(), &loginResp)
	token, _ := loginResp["token"].(string)
	if token == "" {
		t.Fatalf("empty token in login response: %+v", loginResp)
	}

	// 3. Create a plain expense
	expBody, _ := json.Marshal(map[string]any{
		"amountInCents": 5000, "date": "2024-01-10", "description": "groceries", "type": "EXPENSE",
	})
	resp = performRequest(r, http.MethodPost, "/transactions", bytes.NewBuffer(expBody), token)
	if resp.Code != 201 {
		t.Fatalf("create expense failed status=%d body=%s", resp.Code, resp.Body.String())
	}

	// 4. Create an installment plan
	instBody, _ := json.Marshal(map[string]any{
		"amountInCents": 1000, "date": "2024-01-01", "description": "notebook",
		"type": "INSTALLMENT", "totalInstallments": 3,
	})
	resp = performRequest(r, http.MethodPost, "/transactions", bytes.NewBuffer(instBody), token)
	if resp.Code != 201 {
		t.Fatalf("create installment failed status=%d body=%s", resp.Code, resp.Body.String())
	}
	var parent map[string]any
	_ = json.Unmarshal(resp.Body.Bytes(), &parent)
	parentID, _ := parent["id"].(string)
	if parentID == "" {
		t.Fatalf("missing parent id: %+v", parent)
	}
	if amt, _ := parent["amountInCents"].(float64); amt != 3000 {
		t.Fatalf("parent amount expected 3000 got %v", parent["amountInCents"])
	}

	// 5. Parcels of the plan
	resp = performRequest(r, http.MethodGet, "/installments/"+parentID+"/installments", nil, token)
	if resp.Code != 200 {
		t.Fatalf("list parcels failed status=%d body=%s", resp.Code, resp.Body.String())
	}
	var parcels []map[string]any
	_ = json.Unmarshal(resp.Body.Bytes(), &parcels)
	if len(parcels) != 3 {
		t.Fatalf("expected 3 parcels got %d", len(parcels))
	}

	// 6. Pay every parcel; the parent must end up PAID
	for _, p := range parcels {
		id, _ := p["id"].(string)
		payBody, _ := json.Marshal(map[string]string{"status": "PAID"})
		resp = performRequest(r, http.MethodPut, "/transactions/"+id+"/status", bytes.NewBuffer(payBody), token)
		if resp.Code != 200 {
			t.Fatalf("pay parcel failed status=%d body=%s", resp.Code, resp.Body.String())
		}
	}
	resp = performRequest(r, http.MethodGet, "/transactions/"+parentID, nil, token)
	if resp.Code != 200 {
		t.Fatalf("get parent failed status=%d body=%s", resp.Code, resp.Body.String())
	}
	var got map[string]any
	_ = json.Unmarshal(resp.Body.Bytes(), &got)
	if got["status"] != "PAID" {
		t.Fatalf("expected parent PAID got %v", got["status"])
	}

	// 7. Recurring transaction with projection
	recBody, _ := json.Marshal(map[string]any{
		"amountInCents": 2000, "date": "2024-01-01", "description": "rent",
		"type": "RECURRING", "recurrencePattern": "monthly",
	})
	resp = performRequest(r, http.MethodPost, "/transactions", bytes.NewBuffer(recBody), token)
	if resp.Code != 201 {
		t.Fatalf("create recurring failed status=%d body=%s", resp.Code, resp.Body.String())
	}
	resp = performRequest(r, http.MethodGet,
		"/transactions?type=RECURRING&startDate=2024-01-01&endDate=2024-04-01", nil, token)
	if resp.Code != 200 {
		t.Fatalf("list recurring failed status=%d body=%s", resp.Code, resp.Body.String())
	}
	var listed []map[string]any
	_ = json.Unmarshal(resp.Body.Bytes(), &listed)
	virtual := 0
	for _, tx := range listed {
		if v, _ := tx["virtual"].(bool); v {
			virtual++
		}
	}
	if virtual != 3 {
		t.Fatalf("expected 3 virtual occurrences got %d (body=%s)", virtual, resp.Body.String())
	}

	// 8. Summary
	resp = performRequest(r, http.MethodGet, "/transactions/summary?startDate=2024-01-01&endDate=2024-12-31", nil, token)
	if resp.Code != 200 {
		t.Fatalf("summary failed status=%d body=%s", resp.Code, resp.Body.String())
	}

	// 9. Stats
	resp = performRequest(r, http.MethodGet, "/stats", nil, token)
	if resp.Code != 200 {
		t.Fatalf("stats failed status=%d body=%s", resp.Code, resp.Body.String())
	}

	// 10. Unauthorized access to protected endpoint should be 401
	unauth := performRequest(r, http.MethodGet, "/transactions", nil, "")
	if unauth.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for unauthorized list got %d", unauth.Code)
	}

	// 11. Invalid status for the type is a 400 naming the allowed set
	badBody, _ := json.Marshal(map[string]string{"status": "RECEIVED"})
	resp = performRequest(r, http.MethodPut, fmt.Sprintf("/transactions/%s/status", parentID), bytes.NewBuffer(badBody), token)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid status got %d body=%s", resp.Code, resp.Body.String())
	}
}

func TestMigrateCommand(t *testing.T) {
	if os.Getenv("DB_DSN_TEST") != "1" {
		t.Skip("integration tests are disabled; set DB_DSN_TEST=1 to enable")
	}
	initDB()
}
