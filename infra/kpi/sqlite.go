package kpi

import (
	"database/sql"
	"time"

	core "github.com/kilianp07/wsd/core/metrics/kpi"
	_ "modernc.org/sqlite"
)

// SQLiteStore persists KPI records in a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates the database and ensures schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	schema := `CREATE TABLE IF NOT EXISTS market_kpi (
        building TEXT,
        day INTEGER,
        demand REAL,
        supplied REAL,
        imported REAL,
        excess REAL,
        PRIMARY KEY(building, day)
    );`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

// Add accumulates the record into its building and day.
func (s *SQLiteStore) Add(r core.Record) error {
	d := core.Day(r.Date)
	_, err := s.db.Exec(`INSERT INTO market_kpi (building, day, demand, supplied, imported, excess)
        VALUES (?, ?, ?, ?, ?, ?)
        ON CONFLICT(building, day) DO UPDATE SET
            demand = demand + excluded.demand,
            supplied = supplied + excluded.supplied,
            imported = imported + excluded.imported,
            excess = excess + excluded.excess`,
		r.Building, d.Unix(), r.Demand, r.Supplied, r.Imported, r.Excess)
	return err
}

// Query returns records in the range [start,end].
func (s *SQLiteStore) Query(building string, start, end time.Time) ([]core.Record, error) {
	start = core.Day(start)
	end = core.Day(end)
	rows, err := s.db.Query(`SELECT building, day, demand, supplied, imported, excess
        FROM market_kpi WHERE building = ? AND day >= ? AND day <= ? ORDER BY day`,
		building, start.Unix(), end.Unix())
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var res []core.Record
	for rows.Next() {
		var r core.Record
		var ts int64
		if err := rows.Scan(&r.Building, &ts, &r.Demand, &r.Supplied, &r.Imported, &r.Excess); err != nil {
			return nil, err
		}
		r.Date = time.Unix(ts, 0).UTC()
		res = append(res, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return res, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error { return s.db.Close() }
