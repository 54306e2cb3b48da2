// Package sqlite persists battery snapshots and monitoring sessions.
// Uses WAL mode for concurrent reads and crash-safe writes.
package sqlite

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // Pure-Go SQLite driver (no CGO required)

	"github.com/batfi/batfi/internal/domain"
)

// DB wraps a SQLite connection with WAL mode and migrations.
type DB struct {
	db *sql.DB
}

// Open creates or opens the SQLite database at dir/history.db.
// Enables WAL mode, foreign keys, and 5-second busy timeout.
func Open(dir string) (*DB, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	dbPath := filepath.Join(dir, "history.db")
	dsn := dbPath + "?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite is single-writer
	db.SetMaxIdleConns(1)

	d := &DB{db: db}
	if err := d.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return d, nil
}

// Close cleanly shuts down the database.
func (d *DB) Close() error {
	return d.db.Close()
}

// Ping checks database connectivity.
func (d *DB) Ping() error {
	return d.db.Ping()
}

// migrate runs idempotent schema migrations.
func (d *DB) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			id         TEXT PRIMARY KEY,
			battery    TEXT NOT NULL,
			host       TEXT NOT NULL DEFAULT '',
			started_at INTEGER NOT NULL,
			ended_at   INTEGER
		)`,
		`CREATE TABLE IF NOT EXISTS snapshots (
			id             INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id     TEXT REFERENCES sessions(id) ON DELETE CASCADE,
			battery        TEXT NOT NULL,
			ts             INTEGER NOT NULL,
			status         TEXT NOT NULL,
			capacity       INTEGER NOT NULL,
			health         REAL NOT NULL DEFAULT 0,
			energy_now     REAL,
			energy_full    REAL,
			energy_design  REAL,
			power          REAL,
			smoothed_power REAL,
			rolling_power  REAL,
			voltage        REAL,
			current_ma     INTEGER,
			temperature    REAL,
			cpu_temp       REAL,
			minutes        INTEGER,
			power_trend    TEXT NOT NULL DEFAULT 'stable',
			capacity_trend TEXT NOT NULL DEFAULT 'stable',
			accuracy       TEXT NOT NULL DEFAULT 'calibrating',
			samples        INTEGER NOT NULL DEFAULT 0,
			cycles         INTEGER,
			manufacturer   TEXT NOT NULL DEFAULT '',
			model          TEXT NOT NULL DEFAULT '',
			technology     TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_snapshots_battery_ts ON snapshots(battery, ts)`,
		`CREATE INDEX IF NOT EXISTS idx_snapshots_session ON snapshots(session_id)`,
	}

	for _, m := range migrations {
		if _, err := d.db.Exec(m); err != nil {
			return fmt.Errorf("exec migration: %w", err)
		}
	}
	return nil
}

// ─── Sessions ───────────────────────────────────────────────────────────────

// StartSession opens a monitoring run and returns its ID.
func (d *DB) StartSession(battery string) (string, error) {
	id := uuid.NewString()
	host, _ := os.Hostname()
	_, err := d.db.Exec(
		`INSERT INTO sessions (id, battery, host, started_at) VALUES (?, ?, ?, ?)`,
		id, battery, host, time.Now().UnixMilli(),
	)
	if err != nil {
		return "", fmt.Errorf("start session: %w", err)
	}
	return id, nil
}

// EndSession stamps the end time of a run.
func (d *DB) EndSession(id string) error {
	_, err := d.db.Exec(`UPDATE sessions SET ended_at = ? WHERE id = ?`, time.Now().UnixMilli(), id)
	return err
}

// ListSessions returns the newest runs first, with their snapshot counts.
func (d *DB) ListSessions(limit int) ([]domain.Session, error) {
	rows, err := d.db.Query(
		`SELECT s.id, s.battery, s.host, s.started_at, s.ended_at, COUNT(n.id)
		 FROM sessions s LEFT JOIN snapshots n ON n.session_id = s.id
		 GROUP BY s.id ORDER BY s.started_at DESC LIMIT ?`, limitOrAll(limit),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Session
	for rows.Next() {
		var s domain.Session
		var started int64
		var ended sql.NullInt64
		if err := rows.Scan(&s.ID, &s.Battery, &s.Host, &started, &ended, &s.Snapshots); err != nil {
			return nil, err
		}
		s.StartedAt = time.UnixMilli(started)
		if ended.Valid {
			t := time.UnixMilli(ended.Int64)
			s.EndedAt = &t
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// ─── Snapshots ──────────────────────────────────────────────────────────────

const snapshotColumns = `session_id, battery, ts, status, capacity, health,
	energy_now, energy_full, energy_design, power, smoothed_power, rolling_power, voltage, current_ma,
	temperature, cpu_temp, minutes, power_trend, capacity_trend, accuracy, samples,
	cycles, manufacturer, model, technology`

// InsertSnapshot stores one poll result and returns its row ID.
func (d *DB) InsertSnapshot(info *domain.BatteryInfo) (int64, error) {
	res, err := d.db.Exec(
		`INSERT INTO snapshots (`+snapshotColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		nullString(info.SessionID), info.Name, info.Timestamp.UnixMilli(),
		string(info.Status), info.CapacityPercent, info.HealthPercent,
		nullFloat(info.EnergyNowWh), nullFloat(info.EnergyFullWh), nullFloat(info.EnergyFullDesignWh), nullFloat(info.PowerW),
		nullFloat(info.SmoothedPowerW), nullFloat(info.RollingPowerW), nullFloat(info.VoltageV),
		nullInt32(info.CurrentMA), nullFloat(info.TemperatureC), nullFloat(info.CPUTemperatureC),
		nullUint32(info.TimeRemainingMinutes), string(info.PowerTrend), string(info.CapacityTrend),
		string(info.Accuracy), info.Samples,
		nullUint32(info.Cycles), info.Manufacturer, info.Model, info.Technology,
	)
	if err != nil {
		return 0, fmt.Errorf("insert snapshot: %w", err)
	}
	return res.LastInsertId()
}

// RecentSnapshots returns up to limit snapshots for battery, newest first.
// An empty battery matches all.
func (d *DB) RecentSnapshots(battery string, limit int) ([]domain.BatteryInfo, error) {
	rows, err := d.db.Query(
		`SELECT `+snapshotColumns+` FROM snapshots
		 WHERE (? = '' OR battery = ?) ORDER BY ts DESC, id DESC LIMIT ?`,
		battery, battery, limitOrAll(limit),
	)
	if err != nil {
		return nil, err
	}
	return scanSnapshots(rows)
}

// SessionSnapshots returns every snapshot of a run in time order.
func (d *DB) SessionSnapshots(sessionID string) ([]domain.BatteryInfo, error) {
	rows, err := d.db.Query(
		`SELECT `+snapshotColumns+` FROM snapshots WHERE session_id = ? ORDER BY ts, id`,
		sessionID,
	)
	if err != nil {
		return nil, err
	}
	return scanSnapshots(rows)
}

// Prune deletes snapshots older than before and returns how many went.
func (d *DB) Prune(before time.Time) (int64, error) {
	res, err := d.db.Exec(`DELETE FROM snapshots WHERE ts < ?`, before.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("prune snapshots: %w", err)
	}
	return res.RowsAffected()
}

// ─── Helpers ────────────────────────────────────────────────────────────────

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanSnapshots(rows *sql.Rows) ([]domain.BatteryInfo, error) {
	defer rows.Close()
	var out []domain.BatteryInfo
	for rows.Next() {
		info, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, info)
	}
	return out, rows.Err()
}

func scanSnapshot(s scanner) (domain.BatteryInfo, error) {
	var (
		info                                            domain.BatteryInfo
		session                                         sql.NullString
		ts                                              int64
		status, powerTrend, capacityTrend, accuracy     string
		energyNow, energyFull, power, smoothed, rolling sql.NullFloat64
		energyDesign, voltage, temp, cpuTemp            sql.NullFloat64
		current, minutes, cycles                        sql.NullInt64
	)
	err := s.Scan(&session, &info.Name, &ts, &status, &info.CapacityPercent, &info.HealthPercent,
		&energyNow, &energyFull, &energyDesign, &power, &smoothed, &rolling, &voltage, &current,
		&temp, &cpuTemp, &minutes, &powerTrend, &capacityTrend, &accuracy, &info.Samples,
		&cycles, &info.Manufacturer, &info.Model, &info.Technology)
	if err != nil {
		return info, err
	}

	info.SessionID = session.String
	info.Timestamp = time.UnixMilli(ts)
	info.Status = domain.Status(status)
	info.PowerTrend = domain.Trend(powerTrend)
	info.CapacityTrend = domain.Trend(capacityTrend)
	info.Accuracy = domain.Accuracy(accuracy)
	info.EnergyNowWh = floatPtr(energyNow)
	info.EnergyFullWh = floatPtr(energyFull)
	info.EnergyFullDesignWh = floatPtr(energyDesign)
	info.PowerW = floatPtr(power)
	info.SmoothedPowerW = floatPtr(smoothed)
	info.RollingPowerW = floatPtr(rolling)
	info.VoltageV = floatPtr(voltage)
	info.TemperatureC = floatPtr(temp)
	info.CPUTemperatureC = floatPtr(cpuTemp)
	if current.Valid {
		v := int32(current.Int64)
		info.CurrentMA = &v
	}
	if minutes.Valid {
		v := uint32(minutes.Int64)
		info.TimeRemainingMinutes = &v
	}
	if cycles.Valid {
		v := uint32(cycles.Int64)
		info.Cycles = &v
	}
	return info, nil
}

func limitOrAll(limit int) int {
	if limit <= 0 {
		return -1 // SQLite: no limit
	}
	return limit
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func nullInt32(v *int32) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func nullUint32(v *uint32) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
