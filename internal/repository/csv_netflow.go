package repository

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"NetflowWatch/internal/domain/models"
	"NetflowWatch/internal/domain/repository"
)

// TransferCSVOptions controls how transfer exports are read.
type TransferCSVOptions struct {
	ValueColumn string // defaults to "value"
	Exchange    string // label used when the file has no exchange column
}

var transferHeader = []string{"hash", "blockNumber", "timeStamp", "from", "to", "value", "exchange"}

type header map[string]int

func readHeader(r *csv.Reader) (header, error) {
	cols, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, &models.InputError{Row: -1, Field: "header", Err: fmt.Errorf("%w: empty file", models.ErrMissingColumn)}
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	h := make(header, len(cols))
	for i, c := range cols {
		h[strings.TrimSpace(strings.TrimPrefix(c, "\ufeff"))] = i
	}
	return h, nil
}

func (h header) require(names ...string) error {
	for _, n := range names {
		if _, ok := h[n]; !ok {
			return &models.InputError{Row: -1, Field: n, Err: models.ErrMissingColumn}
		}
	}
	return nil
}

func (h header) get(rec []string, name string) string {
	i, ok := h[name]
	if !ok || i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}

func parseFloatField(rec []string, h header, row int, name string, optional bool) (float64, error) {
	s := h.get(rec, name)
	if s == "" && optional {
		return 0, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, &models.InputError{Row: row, Field: name, Value: s, Err: models.ErrInvalidValue}
	}
	return v, nil
}

// ReadTransfersCSV parses a transfer export. timeStamp, from, to and the value
// column are required; hash, blockNumber and exchange are optional.
func ReadTransfersCSV(r io.Reader, opts TransferCSVOptions) ([]models.TransferRecord, error) {
	valueCol := opts.ValueColumn
	if valueCol == "" {
		valueCol = "value"
	}
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	h, err := readHeader(cr)
	if err != nil {
		return nil, err
	}
	if err := h.require("timeStamp", "from", "to", valueCol); err != nil {
		return nil, err
	}

	var out []models.TransferRecord
	for row := 0; ; row++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", row, err)
		}
		tsRaw := h.get(rec, "timeStamp")
		stamp, err := strconv.ParseInt(tsRaw, 10, 64)
		if err != nil {
			return nil, &models.InputError{Row: row, Field: "timeStamp", Value: tsRaw, Err: models.ErrInvalidValue}
		}
		value, err := parseFloatField(rec, h, row, valueCol, false)
		if err != nil {
			return nil, err
		}
		t := models.TransferRecord{
			Hash:      h.get(rec, "hash"),
			Timestamp: stamp,
			From:      h.get(rec, "from"),
			To:        h.get(rec, "to"),
			Value:     value,
			Exchange:  h.get(rec, "exchange"),
		}
		if t.From == "" || t.To == "" {
			return nil, &models.InputError{Row: row, Field: "from/to", Err: fmt.Errorf("%w: empty address", models.ErrInvalidValue)}
		}
		if bn := h.get(rec, "blockNumber"); bn != "" {
			if t.BlockNumber, err = strconv.ParseUint(bn, 10, 64); err != nil {
				return nil, &models.InputError{Row: row, Field: "blockNumber", Value: bn, Err: models.ErrInvalidValue}
			}
		}
		if t.Exchange == "" {
			t.Exchange = opts.Exchange
		}
		out = append(out, t)
	}
	return out, nil
}

// WriteTransfersCSV writes transfers with the canonical header.
func WriteTransfersCSV(w io.Writer, ts []models.TransferRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(transferHeader); err != nil {
		return err
	}
	for _, t := range ts {
		rec := []string{
			t.Hash,
			strconv.FormatUint(t.BlockNumber, 10),
			strconv.FormatInt(t.Timestamp, 10),
			t.From,
			t.To,
			formatFloat(t.Value),
			t.Exchange,
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadDailyCSV parses a daily netflow table. date and netflow are required;
// inflow, outflow and exchange are optional.
func ReadDailyCSV(r io.Reader) ([]models.DailyNetflowRow, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	h, err := readHeader(cr)
	if err != nil {
		return nil, err
	}
	if err := h.require("date", "netflow"); err != nil {
		return nil, err
	}

	var out []models.DailyNetflowRow
	for row := 0; ; row++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", row, err)
		}
		dateRaw := h.get(rec, "date")
		date, err := models.ParseDay(dateRaw)
		if err != nil {
			return nil, &models.InputError{Row: row, Field: "date", Value: dateRaw, Err: models.ErrInvalidValue}
		}
		r := models.DailyNetflowRow{Date: date, Exchange: models.NormalizeLabel(h.get(rec, "exchange"))}
		if r.Netflow, err = parseFloatField(rec, h, row, "netflow", false); err != nil {
			return nil, err
		}
		if r.Inflow, err = parseFloatField(rec, h, row, "inflow", true); err != nil {
			return nil, err
		}
		if r.Outflow, err = parseFloatField(rec, h, row, "outflow", true); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

// DailyCSVOptions selects optional column groups.
type DailyCSVOptions struct {
	Exchange  bool     // include the exchange column
	Stats     bool     // include roll_mean, roll_std, zscore
	Threshold *float64 // include anomaly_hi, anomaly_lo against this threshold
}

// WriteDailyCSV writes rows; undefined statistics are empty cells.
func WriteDailyCSV(w io.Writer, rows []models.DailyNetflowRow, opts DailyCSVOptions) error {
	head := []string{"date"}
	if opts.Exchange {
		head = append(head, "exchange")
	}
	head = append(head, "inflow", "outflow", "netflow")
	if opts.Stats || opts.Threshold != nil {
		head = append(head, "roll_mean", "roll_std", "zscore")
	}
	if opts.Threshold != nil {
		head = append(head, "anomaly_hi", "anomaly_lo")
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(head); err != nil {
		return err
	}
	for _, r := range rows {
		rec := []string{r.DateKey()}
		if opts.Exchange {
			rec = append(rec, r.Exchange)
		}
		rec = append(rec, formatFloat(r.Inflow), formatFloat(r.Outflow), formatFloat(r.Netflow))
		if opts.Stats || opts.Threshold != nil {
			rec = append(rec, formatOptional(r.RollMean), formatOptional(r.RollStd), formatOptional(r.ZScore))
		}
		if opts.Threshold != nil {
			t := *opts.Threshold
			hi := r.ZScore != nil && *r.ZScore >= t
			lo := r.ZScore != nil && *r.ZScore <= -t
			rec = append(rec, strconv.FormatBool(hi), strconv.FormatBool(lo))
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatFloat(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }

func formatOptional(v *float64) string {
	if v == nil {
		return ""
	}
	return formatFloat(*v)
}

// ReadTransfersFile opens path and parses it with ReadTransfersCSV.
func ReadTransfersFile(path string, opts TransferCSVOptions) ([]models.TransferRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	ts, err := ReadTransfersCSV(f, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return ts, nil
}

// ReadDailyFile opens path and parses it with ReadDailyCSV.
func ReadDailyFile(path string) ([]models.DailyNetflowRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	rows, err := ReadDailyCSV(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return rows, nil
}

// WriteFile renders into a temp file and renames it over path, so a failed
// render never leaves a partial output behind.
func WriteFile(path string, render func(io.Writer) error) error {
	var sb strings.Builder
	if err := render(&sb); err != nil {
		return err
	}
	return writeFileAtomic(path, []byte(sb.String()))
}

// CSVSeriesSource reads the daily total series from a CSV file on every call.
type CSVSeriesSource struct {
	path string
}

func NewCSVSeriesSource(path string) *CSVSeriesSource { return &CSVSeriesSource{path: path} }

var _ repository.SeriesSource = (*CSVSeriesSource)(nil)

func (s *CSVSeriesSource) LoadTotal(ctx context.Context) ([]models.DailyNetflowRow, error) {
	return ReadDailyFile(s.path)
}
