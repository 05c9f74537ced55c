package ledger

import (
	"context"
	"time"

	"github.com/kilianp07/wsd/core/events"
)

// LogRecord captures the settlement of one building period.
type LogRecord struct {
	Timestamp      time.Time          `json:"timestamp"`
	Building       string             `json:"building"`
	Period         int                `json:"period"`
	Production     float64            `json:"production"`
	TotalDemand    float64            `json:"total_demand"`
	Supplied       map[string]float64 `json:"supplied"`
	Unmet          map[string]float64 `json:"unmet,omitempty"`
	Accepted       []Transfer         `json:"accepted,omitempty"`
	Lent           float64            `json:"lent"`
	Excess         float64            `json:"excess"`
	ProviderDemand map[string]float64 `json:"provider_demand,omitempty"`
}

// Transfer is medium bought from a peer during negotiation.
type Transfer struct {
	From   string  `json:"from"`
	Amount float64 `json:"amount"`
	Price  float64 `json:"price"`
}

// FromSettlement converts a settlement event into a record.
func FromSettlement(ev events.SettlementEvent) LogRecord {
	rec := LogRecord{
		Timestamp:      ev.Time,
		Building:       ev.Building,
		Period:         ev.Period,
		Production:     ev.Production,
		TotalDemand:    ev.TotalDemand,
		Supplied:       ev.Supplied,
		Unmet:          ev.Unmet,
		Lent:           ev.Lent,
		Excess:         ev.Excess,
		ProviderDemand: ev.ProviderDemand,
	}
	for _, t := range ev.Accepted {
		rec.Accepted = append(rec.Accepted, Transfer{From: t.From, Amount: t.Amount, Price: t.Price})
	}
	return rec
}

// SuppliedTotal sums the medium handed to consumers.
func (r LogRecord) SuppliedTotal() float64 {
	var s float64
	for _, v := range r.Supplied {
		s += v
	}
	return s
}

// LogQuery defines filters for retrieving records.
type LogQuery struct {
	Start    time.Time
	End      time.Time
	Building string
	// Consumer keeps records that supplied or left demand unmet for it.
	Consumer string
}

// Match reports whether r passes every filter of q.
func (q LogQuery) Match(r LogRecord) bool {
	if !q.Start.IsZero() && r.Timestamp.Before(q.Start) {
		return false
	}
	if !q.End.IsZero() && r.Timestamp.After(q.End) {
		return false
	}
	if q.Building != "" && r.Building != q.Building {
		return false
	}
	if q.Consumer != "" {
		_, supplied := r.Supplied[q.Consumer]
		_, unmet := r.Unmet[q.Consumer]
		if !supplied && !unmet {
			return false
		}
	}
	return true
}

// LogStore persists LogRecords and supports querying.
type LogStore interface {
	Append(ctx context.Context, rec LogRecord) error
	Query(ctx context.Context, q LogQuery) ([]LogRecord, error)
	Close() error
}

// NopStore discards every record.
type NopStore struct{}

func (NopStore) Append(context.Context, LogRecord) error              { return nil }
func (NopStore) Query(context.Context, LogQuery) ([]LogRecord, error) { return nil, nil }
func (NopStore) Close() error                                         { return nil }
