package repository

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"NetflowWatch/internal/domain/models"
)

func TestReadTransfersCSV(t *testing.T) {
	in := "hash,blockNumber,timeStamp,from,to,value_LPT\n" +
		"0xh1,22385294,1746057600,0xA,0xB,12.5\n" +
		"0xh2,,1746061200,0xB,0xC,3\n"
	ts, err := ReadTransfersCSV(strings.NewReader(in), TransferCSVOptions{ValueColumn: "value_LPT", Exchange: "gate1"})
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(ts) != 2 {
		t.Fatalf("rows %d", len(ts))
	}
	if ts[0].BlockNumber != 22385294 || ts[0].Value != 12.5 || ts[0].Exchange != "gate1" || ts[0].Timestamp != 1746057600 {
		t.Fatalf("row 0 %+v", ts[0])
	}
	if ts[1].BlockNumber != 0 {
		t.Fatalf("empty block number should stay zero")
	}
}

func TestReadTransfersCSVErrors(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want error
	}{
		{"missing column", "hash,timeStamp,from,to\n0x1,1,0xA,0xB\n", models.ErrMissingColumn},
		{"bad amount", "timeStamp,from,to,value\n1,0xA,0xB,abc\n", models.ErrInvalidValue},
		{"bad timestamp", "timeStamp,from,to,value\nyesterday,0xA,0xB,1\n", models.ErrInvalidValue},
		{"empty file", "", models.ErrMissingColumn},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ReadTransfersCSV(strings.NewReader(tc.in), TransferCSVOptions{})
			if !errors.Is(err, tc.want) || !models.IsInputError(err) {
				t.Fatalf("err = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestTransfersCSVRoundTrip(t *testing.T) {
	in := []models.TransferRecord{{Hash: "0x1", BlockNumber: 9, Timestamp: 100, From: "0xa", To: "0xb", Value: 0.25, Exchange: "binance"}}
	var buf bytes.Buffer
	if err := WriteTransfersCSV(&buf, in); err != nil {
		t.Fatalf("write: %v", err)
	}
	out, err := ReadTransfersCSV(&buf, TransferCSVOptions{})
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(out) != 1 || out[0] != in[0] {
		t.Fatalf("round trip %+v", out)
	}
}

func TestReadDailyCSV(t *testing.T) {
	in := "date,inflow,outflow,netflow\n2025-05-01,10,4,6\n2025-05-02,,,-3.5\n"
	rows, err := ReadDailyCSV(strings.NewReader(in))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(rows) != 2 || rows[1].Netflow != -3.5 || rows[1].Inflow != 0 {
		t.Fatalf("rows %+v", rows)
	}
	if !rows[0].Date.Equal(time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("date %v", rows[0].Date)
	}

	if _, err := ReadDailyCSV(strings.NewReader("date,inflow\n2025-05-01,1\n")); !errors.Is(err, models.ErrMissingColumn) {
		t.Fatalf("missing netflow: %v", err)
	}
	if _, err := ReadDailyCSV(strings.NewReader("date,netflow\n05/01/2025,1\n")); !errors.Is(err, models.ErrInvalidValue) {
		t.Fatalf("bad date: %v", err)
	}
}

func TestWriteDailyCSVWithFlags(t *testing.T) {
	rows := []models.DailyNetflowRow{
		{Date: time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC), Netflow: 1},
		{Date: time.Date(2025, 5, 2, 0, 0, 0, 0, time.UTC), Netflow: 9, RollMean: models.Float(5), RollStd: models.Float(2), ZScore: models.Float(2)},
	}
	th := 2.0
	var buf bytes.Buffer
	if err := WriteDailyCSV(&buf, rows, DailyCSVOptions{Threshold: &th}); err != nil {
		t.Fatalf("write: %v", err)
	}
	want := "date,inflow,outflow,netflow,roll_mean,roll_std,zscore,anomaly_hi,anomaly_lo\n" +
		"2025-05-01,0,0,1,,,,false,false\n" +
		"2025-05-02,0,0,9,5,2,2,true,false\n"
	if buf.String() != want {
		t.Fatalf("csv:\n%s\nwant:\n%s", buf.String(), want)
	}
}
