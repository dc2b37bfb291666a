package models

// Requests for netflow HTTP endpoints. Defined in domain for consistency and reuse.

type SeriesRequest struct {
	From       string  `query:"from" json:"from" validate:"omitempty,datetime=2006-01-02"`
	To         string  `query:"to" json:"to" validate:"omitempty,datetime=2006-01-02"`
	Window     int     `query:"window" json:"window" default:"7" validate:"gte=1,lte=365"`
	MinPeriods int     `query:"min_periods" json:"min_periods" validate:"gte=0,lte=365"`
	Z          float64 `query:"z" json:"z" default:"2" validate:"gt=0,lte=100"`
}

type ExchangeSeriesRequest struct {
	SeriesRequest
	Exchange string `query:"exchange" json:"exchange"`
}

type TopKRequest struct {
	SeriesRequest
	K     int    `query:"k" json:"k" default:"10" validate:"gte=1,lte=100"`
	Scope string `query:"scope" json:"scope" default:"total" validate:"oneof=total exchange"`
}

// RowView is the wire shape of a DailyNetflowRow.
type RowView struct {
	Date     string   `json:"date"`
	Exchange string   `json:"exchange,omitempty"`
	Inflow   float64  `json:"inflow"`
	Outflow  float64  `json:"outflow"`
	Netflow  float64  `json:"netflow"`
	RollMean *float64 `json:"roll_mean"`
	RollStd  *float64 `json:"roll_std"`
	ZScore   *float64 `json:"zscore"`
}

func NewRowView(r DailyNetflowRow) RowView {
	return RowView{
		Date:     r.DateKey(),
		Exchange: r.Exchange,
		Inflow:   r.Inflow,
		Outflow:  r.Outflow,
		Netflow:  r.Netflow,
		RollMean: r.RollMean,
		RollStd:  r.RollStd,
		ZScore:   r.ZScore,
	}
}

func NewRowViews(rows []DailyNetflowRow) []RowView {
	out := make([]RowView, 0, len(rows))
	for _, r := range rows {
		out = append(out, NewRowView(r))
	}
	return out
}

// AnomalyView is the wire shape of an Anomaly.
type AnomalyView struct {
	RowView
	Polarity Polarity `json:"polarity"`
}

func NewAnomalyViews(as []Anomaly) []AnomalyView {
	out := make([]AnomalyView, 0, len(as))
	for _, a := range as {
		out = append(out, AnomalyView{RowView: NewRowView(a.Row), Polarity: a.Polarity})
	}
	return out
}

// AlertView is the payload pushed to Kafka and websocket subscribers.
type AlertView struct {
	ID        string        `json:"id"`
	RunID     string        `json:"run_id"`
	CreatedAt string        `json:"created_at"`
	Threshold float64       `json:"threshold"`
	Window    int           `json:"window"`
	Report    string        `json:"report,omitempty"`
	Anomalies []AnomalyView `json:"anomalies"`
}

func NewAlertView(a Alert) AlertView {
	return AlertView{
		ID:        a.ID,
		RunID:     a.RunID,
		CreatedAt: a.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
		Threshold: a.Threshold,
		Window:    a.Window,
		Report:    a.Report,
		Anomalies: NewAnomalyViews(a.Anomalies),
	}
}

// MemoryView is the response of the alert memory endpoint.
type MemoryView struct {
	Backend   string   `json:"backend"`
	Count     int      `json:"count"`
	SeenDates []string `json:"seen_dates"`
}
