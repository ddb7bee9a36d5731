package server_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/kerm1977/rifas/internal/analytics"
	analytics_api "github.com/kerm1977/rifas/internal/analytics/api"
	"github.com/kerm1977/rifas/internal/auth"
	"github.com/kerm1977/rifas/internal/config"
	"github.com/kerm1977/rifas/internal/database/testdb"
	"github.com/kerm1977/rifas/internal/logger"
	"github.com/kerm1977/rifas/internal/raffles"
	raffle_db "github.com/kerm1977/rifas/internal/raffles/db"
	"github.com/kerm1977/rifas/internal/raffles/raffle_api"
	"github.com/kerm1977/rifas/internal/selections"
	selection_db "github.com/kerm1977/rifas/internal/selections/db"
	"github.com/kerm1977/rifas/internal/selections/redis"
	"github.com/kerm1977/rifas/internal/selections/selection_api"
	"github.com/kerm1977/rifas/internal/server"
	"github.com/kerm1977/rifas/internal/sse"
)

const (
	adminEmail    = "admin@rifas.test"
	adminPassword = "s3cret-admin"
)

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

type testServer struct {
	handler http.Handler
	token   string
}

func setupServer(t *testing.T) *testServer {
	t.Helper()
	bunDB := testdb.New(t)
	log := logger.Discard()

	hasher := auth.NewBcryptHasher(bcrypt.MinCost)
	adminHash, err := hasher.Hash(adminPassword)
	require.NoError(t, err)
	issuer, err := auth.NewTokenIssuer("test-secret", time.Hour)
	require.NoError(t, err)
	revocations := auth.NewMemoryRevocations()

	board := sse.NewBoardEventEmitter()
	raffleService := raffles.NewService(&raffle_db.DB{Bun: bunDB}, t.TempDir(), log)
	selectionService := selections.NewService(&selection_db.DB{Bun: bunDB}, raffleService, hasher, redis.Noop{}, nil, board, log)

	router := server.NewRouter(server.Dependencies{
		DB:          bunDB,
		Raffles:     raffle_api.NewHandler(raffleService, selectionService, "https://rifas.test", log),
		Selections:  selection_api.NewHandler(selectionService, log),
		BoardEvents: selection_api.NewSSEHandler(log, board, raffleService),
		Analytics:   analytics_api.NewHandler(analytics.NewService(bunDB), log),
		Auth: &auth.Handler{
			Admin:       config.AdminConfig{Email: adminEmail, PasswordHash: adminHash},
			Issuer:      issuer,
			Hasher:      hasher,
			Revocations: revocations,
			Logger:      log,
		},
		Issuer:         issuer,
		Revocations:    revocations,
		AllowedOrigins: []string{"*"},
		Logger:         log,
	})

	ts := &testServer{handler: router}
	rec := ts.do(t, http.MethodPost, "/api/auth/login", map[string]string{"email": adminEmail, "password": adminPassword}, false)
	require.Equal(t, http.StatusOK, rec.Code)
	var token struct {
		AccessToken string `json:"access_token"`
	}
	decodeData(t, rec, &token)
	require.NotEmpty(t, token.AccessToken)
	ts.token = token.AccessToken
	return ts
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}, asAdmin bool) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if asAdmin {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	require.NoError(t, json.Unmarshal(env.Data, out))
}

func (s *testServer) createRaffle(t *testing.T, number string) int64 {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/api/raffles", map[string]interface{}{
		"raffle_number": number,
		"name":          "Rifa " + number,
		"price":         1500,
		"prize":         "Televisor",
		"draw_date":     "2026-12-24",
		"draw_time":     "19:30",
	}, true)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var raffle struct {
		ID int64 `json:"id"`
	}
	decodeData(t, rec, &raffle)
	return raffle.ID
}

type claimResult struct {
	Claimed []struct {
		ID     int64  `json:"id"`
		Number string `json:"number"`
	} `json:"claimed"`
	Rejected []string `json:"rejected"`
	Invalid  []string `json:"invalid"`
}

func (s *testServer) claim(t *testing.T, raffleID int64, name, phone, secret string, numbers ...string) (*httptest.ResponseRecorder, claimResult) {
	t.Helper()
	rec := s.do(t, http.MethodPost, fmt.Sprintf("/api/raffles/%d/selections", raffleID), map[string]interface{}{
		"numbers":        numbers,
		"customer_name":  name,
		"customer_phone": phone,
		"secret":         secret,
	}, false)
	var res claimResult
	if rec.Code == http.StatusCreated || rec.Code == http.StatusConflict {
		decodeData(t, rec, &res)
	}
	return rec, res
}

func TestHealth(t *testing.T) {
	s := setupServer(t)
	rec := s.do(t, http.MethodGet, "/health", nil, false)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "sqlite")
}

func TestAdminRoutesRequireToken(t *testing.T) {
	s := setupServer(t)

	rec := s.do(t, http.MethodPost, "/api/raffles", map[string]string{"name": "x"}, false)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	id := s.createRaffle(t, "001")
	for _, tc := range []struct{ method, path string }{
		{http.MethodPut, "/api/raffles/%d"},
		{http.MethodDelete, "/api/raffles/%d"},
		{http.MethodGet, "/api/raffles/%d/report.txt"},
		{http.MethodGet, "/api/raffles/%d/report.csv"},
		{http.MethodPost, "/api/raffles/%d/selections/cancel"},
		{http.MethodPost, "/api/raffles/%d/selections/purge"},
		{http.MethodPut, "/api/raffles/%d/winners"},
		{http.MethodDelete, "/api/raffles/%d/winners"},
	} {
		rec := s.do(t, tc.method, fmt.Sprintf(tc.path, id), map[string]interface{}{}, false)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, "%s %s", tc.method, tc.path)
	}
}

func TestCreateRaffle_Validation(t *testing.T) {
	s := setupServer(t)
	s.createRaffle(t, "001")

	rec := s.do(t, http.MethodPost, "/api/raffles", map[string]interface{}{
		"raffle_number": "001", "name": "Otra", "price": 10, "prize": "x", "draw_date": "2026-01-01",
	}, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/raffles", map[string]interface{}{
		"raffle_number": "002", "name": "Otra", "price": 10, "prize": "x", "draw_date": "24/12/2026",
	}, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestClaimAndReleaseFlow(t *testing.T) {
	s := setupServer(t)
	id := s.createRaffle(t, "001")

	rec, res := s.claim(t, id, "Ana", "8888-1111", "s1", "5", "17")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.Len(t, res.Claimed, 2)
	assert.NotContains(t, rec.Body.String(), "secret_hash")

	rec, res2 := s.claim(t, id, "Luis", "7777-2222", "s2", "17", "23")
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, []string{"17"}, res2.Rejected)

	rec, _ = s.claim(t, id, "Luis", "7777-2222", "s2", "17")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec, _ = s.claim(t, id, "", "7777-2222", "s2", "40")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = s.claim(t, id+100, "Luis", "7777-2222", "s2", "40")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	releasePath := fmt.Sprintf("/api/raffles/%d/selections/release", id)
	rec = s.do(t, http.MethodPost, releasePath, map[string]interface{}{
		"selection_ids": []int64{res.Claimed[0].ID}, "secret": "wrong",
	}, false)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, http.MethodPost, releasePath, map[string]interface{}{
		"selection_ids": []int64{res.Claimed[0].ID}, "secret": "s1",
	}, false)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodGet, fmt.Sprintf("/api/raffles/%d/selections", id), nil, false)
	require.Equal(t, http.StatusOK, rec.Code)
	var rows []struct {
		Number string `json:"number"`
	}
	decodeData(t, rec, &rows)
	require.Len(t, rows, 2)
	assert.Equal(t, "17", rows[0].Number)
	assert.Equal(t, "23", rows[1].Number)
}

func TestRaffleDetailAndList(t *testing.T) {
	s := setupServer(t)
	id := s.createRaffle(t, "001")
	s.claim(t, id, "Ana", "1", "s1", "03", "09")
	s.claim(t, id, "Luis", "2", "s2", "07")

	rec := s.do(t, http.MethodGet, fmt.Sprintf("/api/raffles/%d", id), nil, false)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var detail raffle_api.RaffleDetail
	decodeData(t, rec, &detail)
	assert.Equal(t, 3, detail.Occupancy.Total)
	assert.Len(t, detail.Board, 100)
	require.Len(t, detail.Customers, 2)
	assert.Equal(t, []string{"03", "09"}, detail.Customers[0].Numbers)
	assert.Empty(t, detail.Winners)

	rec = s.do(t, http.MethodGet, "/api/raffles", nil, false)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []struct {
		ID        int64 `json:"id"`
		Occupancy struct {
			Active int `json:"active"`
		} `json:"occupancy"`
	}
	decodeData(t, rec, &list)
	require.Len(t, list, 1)
	assert.Equal(t, 3, list[0].Occupancy.Active)

	rec = s.do(t, http.MethodGet, "/api/raffles/abc", nil, false)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = s.do(t, http.MethodGet, "/api/raffles/999", nil, false)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdminCancelPurgeAndWinners(t *testing.T) {
	s := setupServer(t)
	id := s.createRaffle(t, "001")
	_, res := s.claim(t, id, "Ana", "1", "s1", "07", "08")
	canceledID := res.Claimed[1].ID

	rec := s.do(t, http.MethodPost, fmt.Sprintf("/api/raffles/%d/selections/cancel", id), map[string]interface{}{
		"selection_ids": []int64{canceledID},
	}, true)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodPut, fmt.Sprintf("/api/raffles/%d/winners", id), map[string]interface{}{
		"numbers": []string{"7, 8", "55", "zz"},
	}, true)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodGet, fmt.Sprintf("/api/raffles/%d/winners", id), nil, false)
	require.Equal(t, http.StatusOK, rec.Code)
	var winners []struct {
		Number       string `json:"number"`
		Status       string `json:"status"`
		CustomerName string `json:"customer_name"`
	}
	decodeData(t, rec, &winners)
	require.Len(t, winners, 3)
	assert.Equal(t, "active", winners[0].Status)
	assert.Equal(t, "Ana", winners[0].CustomerName)
	assert.Equal(t, "canceled", winners[1].Status)
	assert.Equal(t, "unclaimed", winners[2].Status)

	rec = s.do(t, http.MethodPost, fmt.Sprintf("/api/raffles/%d/selections/purge", id), map[string]interface{}{
		"selection_ids": []int64{canceledID},
	}, true)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodDelete, fmt.Sprintf("/api/raffles/%d/winners", id), nil, true)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(t, http.MethodGet, fmt.Sprintf("/api/raffles/%d/winners", id), nil, false)
	decodeData(t, rec, &winners)
	assert.Empty(t, winners)
}

func TestRaffleAnalytics(t *testing.T) {
	s := setupServer(t)
	id := s.createRaffle(t, "001")
	s.claim(t, id, "Ana", "1", "s1", "07", "08")

	path := fmt.Sprintf("/api/analytics/raffles/%d", id)
	rec := s.do(t, http.MethodGet, path, nil, false)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, http.MethodGet, path, nil, true)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var a analytics.RaffleAnalytics
	decodeData(t, rec, &a)
	assert.Equal(t, 2, a.ActiveNumbers)
	assert.Equal(t, 98, a.AvailableNumbers)
	assert.Equal(t, 3000.0, a.ExpectedRevenue)
	require.Len(t, a.SalesByPaymentMethod, 1)

	rec = s.do(t, http.MethodGet, fmt.Sprintf("/api/analytics/raffles/%d", id+100), nil, true)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/analytics/raffles/batch", map[string]interface{}{
		"raffle_ids": []int64{id, id + 100},
	}, true)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var batch []analytics.RaffleAnalytics
	decodeData(t, rec, &batch)
	assert.Len(t, batch, 1)

	rec = s.do(t, http.MethodPost, "/api/analytics/raffles/batch", map[string]interface{}{}, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReportsAndShare(t *testing.T) {
	s := setupServer(t)
	id := s.createRaffle(t, "001")
	s.claim(t, id, "Ana", "1", "s1", "07")

	rec := s.do(t, http.MethodGet, fmt.Sprintf("/api/raffles/%d/report.txt", id), nil, true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "raffle_report_001.txt")
	assert.Contains(t, rec.Body.String(), "RAFFLE REPORT: Rifa 001 (#001)")

	rec = s.do(t, http.MethodGet, fmt.Sprintf("/api/raffles/%d/report.csv", id), nil, true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Body.String(), "number,customer_name"))

	rec = s.do(t, http.MethodGet, fmt.Sprintf("/api/raffles/%d/share.png?size=128", id), nil, false)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("\x89PNG")))

	rec = s.do(t, http.MethodGet, fmt.Sprintf("/api/raffles/%d/share.png?size=5", id), nil, false)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateAndDeleteRaffle(t *testing.T) {
	s := setupServer(t)
	id := s.createRaffle(t, "001")
	s.claim(t, id, "Ana", "1", "s1", "07")

	rec := s.do(t, http.MethodPut, fmt.Sprintf("/api/raffles/%d", id), map[string]interface{}{
		"raffle_number": "001", "name": "Renombrada", "price": 2000, "prize": "Moto", "draw_date": "2027-01-10",
	}, true)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodDelete, fmt.Sprintf("/api/raffles/%d", id), nil, true)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(t, http.MethodGet, fmt.Sprintf("/api/raffles/%d", id), nil, false)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLogoutRevokesToken(t *testing.T) {
	s := setupServer(t)

	rec := s.do(t, http.MethodPost, "/api/auth/logout", nil, true)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/raffles", nil, true)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestBoardEventsStream(t *testing.T) {
	s := setupServer(t)
	id := s.createRaffle(t, "001")

	srv := httptest.NewServer(s.handler)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/api/raffles/%d/events", srv.URL, id), nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	lines := bufio.NewScanner(resp.Body)
	require.True(t, lines.Scan())
	assert.Equal(t, "event: connected", lines.Text())

	rec, _ := s.claim(t, id, "Ana", "1", "s1", "42")
	require.Equal(t, http.StatusCreated, rec.Code)

	var got []string
	for lines.Scan() {
		line := lines.Text()
		if strings.HasPrefix(line, "event: ") && line != "event: connected" {
			got = append(got, line)
		}
		if strings.HasPrefix(line, "data: ") && len(got) > 0 {
			assert.Contains(t, line, `"numbers":["42"]`)
			break
		}
	}
	assert.Equal(t, []string{"event: selection.claimed"}, got)
}
