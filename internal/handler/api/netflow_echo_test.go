package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"NetflowWatch/internal/domain/models"
	"NetflowWatch/internal/usecase"
	xhttp "NetflowWatch/pkg/http"

	"github.com/labstack/echo/v4"
)

type stubQuery struct {
	rows   []models.DailyNetflowRow
	err    error
	params usecase.SeriesParams
	k      int
	scope  string
	label  string
}

func (s *stubQuery) Total(ctx context.Context, p usecase.SeriesParams) ([]models.DailyNetflowRow, error) {
	s.params = p
	return s.rows, s.err
}

func (s *stubQuery) Exchanges(ctx context.Context, p usecase.SeriesParams, exchange string) ([]models.DailyNetflowRow, error) {
	s.params, s.label = p, exchange
	return s.rows, s.err
}

func (s *stubQuery) Anomalies(ctx context.Context, p usecase.SeriesParams) ([]models.Anomaly, error) {
	s.params = p
	if s.err != nil {
		return nil, s.err
	}
	return []models.Anomaly{{Row: s.rows[0], Polarity: models.PolarityHigh}}, nil
}

func (s *stubQuery) TopK(ctx context.Context, p usecase.SeriesParams, k int, scope string) ([]models.DailyNetflowRow, error) {
	s.params, s.k, s.scope = p, k, scope
	return s.rows, s.err
}

func (s *stubQuery) Memory(ctx context.Context) models.MemoryView {
	return models.MemoryView{Backend: "file", Count: 1, SeenDates: []string{"2025-05-07"}}
}

func serve(t *testing.T, q NetflowQuerier, target string) (xhttp.APIResponse, json.RawMessage) {
	t.Helper()
	e := echo.New()
	NewNetflowEchoHandler(nil, q).RegisterRoutes(e)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("http status %d", rec.Code)
	}
	var raw struct {
		Status  int             `json:"status"`
		Message string          `json:"message"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &raw); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return xhttp.APIResponse{Status: raw.Status, Message: raw.Message}, raw.Data
}

func spikeRow() models.DailyNetflowRow {
	return models.DailyNetflowRow{
		Date:    time.Date(2025, 5, 7, 0, 0, 0, 0, time.UTC),
		Netflow: 500,
		Inflow:  500,
		ZScore:  models.Float(2.449),
	}
}

func TestTotalDefaultsAndParams(t *testing.T) {
	q := &stubQuery{rows: []models.DailyNetflowRow{spikeRow()}}
	resp, data := serve(t, q, "/api/netflow/total?from=2025-05-01&to=2025-05-09&min_periods=3")
	if resp.Status != http.StatusOK {
		t.Fatalf("status %+v", resp)
	}
	if q.params.Window != 7 || q.params.MinPeriods != 3 || q.params.Z != 2 {
		t.Fatalf("params %+v", q.params)
	}
	if q.params.From.Format(models.DateLayout) != "2025-05-01" || q.params.To.Format(models.DateLayout) != "2025-05-09" {
		t.Fatalf("range %s..%s", q.params.From, q.params.To)
	}
	var rows []models.RowView
	if err := json.Unmarshal(data, &rows); err != nil {
		t.Fatalf("rows: %v", err)
	}
	if len(rows) != 1 || rows[0].Date != "2025-05-07" || rows[0].RollMean != nil || *rows[0].ZScore != 2.449 {
		t.Fatalf("rows %+v", rows)
	}
}

func TestValidationErrors(t *testing.T) {
	q := &stubQuery{}
	for _, target := range []string{
		"/api/netflow/total?window=0&z=-1",
		"/api/netflow/total?from=05/01/2025",
		"/api/netflow/topk?scope=wallet",
		"/api/netflow/anomalies?window=abc",
	} {
		resp, _ := serve(t, q, target)
		if resp.Status != http.StatusBadRequest {
			t.Fatalf("%s: status %d", target, resp.Status)
		}
	}
}

func TestUsecaseErrorsMapped(t *testing.T) {
	in := &stubQuery{err: &models.InputError{Row: -1, Field: "from", Err: models.ErrInvalidParams}}
	resp, data := serve(t, in, "/api/netflow/total")
	if resp.Status != http.StatusBadRequest {
		t.Fatalf("input error status %d", resp.Status)
	}
	var details []xhttp.AppError
	if err := json.Unmarshal(data, &details); err != nil || len(details) != 1 || details[0].Field != "from" {
		t.Fatalf("error details %s (%v)", data, err)
	}

	internal := &stubQuery{err: errors.New("clickhouse down")}
	resp, _ = serve(t, internal, "/api/netflow/exchanges?exchange=binance")
	if resp.Status != http.StatusInternalServerError {
		t.Fatalf("internal error status %d", resp.Status)
	}
}

func TestTopKAndExchanges(t *testing.T) {
	q := &stubQuery{rows: []models.DailyNetflowRow{spikeRow()}}
	if resp, _ := serve(t, q, "/api/netflow/topk?k=3&scope=exchange"); resp.Status != http.StatusOK {
		t.Fatalf("topk status %d", resp.Status)
	}
	if q.k != 3 || q.scope != "exchange" {
		t.Fatalf("topk args k=%d scope=%s", q.k, q.scope)
	}

	if resp, _ := serve(t, q, "/api/netflow/exchanges?exchange=kraken"); resp.Status != http.StatusOK {
		t.Fatalf("exchanges status %d", resp.Status)
	}
	if q.label != "kraken" {
		t.Fatalf("label %s", q.label)
	}
}

func TestAnomaliesAndMemory(t *testing.T) {
	q := &stubQuery{rows: []models.DailyNetflowRow{spikeRow()}}
	_, data := serve(t, q, "/api/netflow/anomalies?z=2.5")
	var anoms []models.AnomalyView
	if err := json.Unmarshal(data, &anoms); err != nil {
		t.Fatalf("anomalies: %v", err)
	}
	if len(anoms) != 1 || anoms[0].Polarity != models.PolarityHigh || q.params.Z != 2.5 {
		t.Fatalf("anomalies %+v z %v", anoms, q.params.Z)
	}

	_, data = serve(t, q, "/api/alerts/memory")
	var mem models.MemoryView
	if err := json.Unmarshal(data, &mem); err != nil {
		t.Fatalf("memory: %v", err)
	}
	if mem.Count != 1 || mem.SeenDates[0] != "2025-05-07" {
		t.Fatalf("memory %+v", mem)
	}
}
