package etherscan

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"
)

func tx(i int) map[string]string {
	return map[string]string{
		"hash":         fmt.Sprintf("0x%02d", i),
		"blockNumber":  strconv.Itoa(100 + i),
		"timeStamp":    strconv.Itoa(1746057600 + i),
		"from":         "0xaaa",
		"to":           "0xf977",
		"value":        "1500000000000000000",
		"tokenDecimal": "18",
	}
}

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New("key", "0xC0N", WithBaseURL(srv.URL), WithRate(1000), WithRetry(2, time.Millisecond))
}

func TestFetchTransfersPaginates(t *testing.T) {
	var pages int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("action") != "tokentx" || r.URL.Query().Get("apikey") != "key" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		atomic.AddInt32(&pages, 1)
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		var rows []map[string]string
		switch page {
		case 1:
			rows = []map[string]string{tx(1), tx(2)}
		case 2:
			rows = []map[string]string{tx(3)}
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"status": "1", "message": "OK", "result": rows})
	})
	c.pageSize = 2

	got, err := c.FetchTransfers(context.Background(), "0xf977", 1, 2)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(got) != 3 || atomic.LoadInt32(&pages) != 2 {
		t.Fatalf("rows %d pages %d", len(got), pages)
	}
	if math.Abs(got[0].Value-1.5) > 1e-12 || got[0].BlockNumber != 101 || got[0].Timestamp != 1746057601 {
		t.Fatalf("normalized %+v", got[0])
	}
}

func TestFetchTransfersNoResults(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"0","message":"No transactions found","result":[]}`))
	})
	got, err := c.FetchTransfers(context.Background(), "0xf977", 0, 0)
	if err != nil || len(got) != 0 {
		t.Fatalf("got %v err %v", got, err)
	}
}

func TestCallRetriesOnRateLimit(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			_, _ = w.Write([]byte(`{"status":"0","message":"NOTOK","result":"Max rate limit reached"}`))
			return
		}
		_, _ = w.Write([]byte(`{"status":"1","message":"OK","result":"19876543"}`))
	})
	n, err := c.BlockByTime(context.Background(), time.Unix(1746057600, 0), "before")
	if err != nil || n != 19876543 {
		t.Fatalf("block %d err %v", n, err)
	}
	if atomic.LoadInt32(&calls) != 2 {
		t.Fatalf("calls %d", calls)
	}
}

func TestCallGivesUpOnServerErrors(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	if _, err := c.BlockByTime(context.Background(), time.Now(), "after"); err == nil {
		t.Fatalf("expected error after retries")
	}
}
