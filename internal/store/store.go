// Package store provides the SQLite-backed durable per-area store. Only the
// colony core writes these records; collaborators read them. Writes arrive
// once per tick as a single batched transaction — the cache's write-back.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/colony-mind/internal/cache"
	"github.com/talgya/colony-mind/internal/colony"
)

// DB wraps a SQLite connection for per-area state persistence.
type DB struct {
	conn *sqlx.DB
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS areas (
		area_id TEXT PRIMARY KEY,
		tick INTEGER NOT NULL,
		throughput_current REAL NOT NULL,
		throughput_max REAL NOT NULL,
		role_counts_json TEXT NOT NULL,
		priorities_json TEXT NOT NULL,
		build_count INTEGER NOT NULL,
		build_ids_json TEXT NOT NULL,
		build_by_type_json TEXT NOT NULL,
		repair_json TEXT NOT NULL,
		source_json TEXT NOT NULL,
		source_tick INTEGER NOT NULL,
		active_nodes_json TEXT NOT NULL,
		active_tick INTEGER NOT NULL,
		dropped_json TEXT NOT NULL,
		delivery_json TEXT NOT NULL,
		threat_json TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS spawn_orders (
		id TEXT PRIMARY KEY,
		area_id TEXT NOT NULL,
		role TEXT NOT NULL,
		urgency REAL NOT NULL,
		tick INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS core_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_spawn_orders_tick ON spawn_orders(tick);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// WriteAreaRecords upserts all touched areas in one transaction. Implements
// the cache's WriteSink.
func (db *DB) WriteAreaRecords(recs []cache.AreaRecord) error {
	if len(recs) == 0 {
		return nil
	}

	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Preparex(`INSERT OR REPLACE INTO areas
		(area_id, tick, throughput_current, throughput_max,
		 role_counts_json, priorities_json,
		 build_count, build_ids_json, build_by_type_json, repair_json,
		 source_json, source_tick, active_nodes_json, active_tick,
		 dropped_json, delivery_json, threat_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range recs {
		countsJSON := mustJSON(r.RoleCounts)
		prioJSON := mustJSON(r.Priorities)
		buildIDs := mustJSON(r.Build.IDs)
		buildByType := mustJSON(r.Build.ByType)
		repairJSON := mustJSON(r.Repair)
		sourceJSON := mustJSON(r.Source)
		activeJSON := mustJSON(r.Active)
		droppedJSON := mustJSON(r.Dropped)
		deliveryJSON := mustJSON(r.Delivery)
		threatJSON := mustJSON(r.Threat)

		_, err := stmt.Exec(
			string(r.Area), r.Tick,
			r.Throughput.Current, r.Throughput.Max,
			countsJSON, prioJSON,
			r.Build.Count, buildIDs, buildByType, repairJSON,
			sourceJSON, r.SourceTick, activeJSON, r.ActiveTick,
			droppedJSON, deliveryJSON, threatJSON,
		)
		if err != nil {
			return fmt.Errorf("upsert area %s: %w", r.Area, err)
		}
	}

	return tx.Commit()
}

// LoadAreaRecord reads one area's durable record back. Missing areas return
// a zero record with found=false rather than an error.
func (db *DB) LoadAreaRecord(area colony.AreaID) (cache.AreaRecord, bool, error) {
	var row struct {
		AreaID            string  `db:"area_id"`
		Tick              uint64  `db:"tick"`
		ThroughputCurrent float64 `db:"throughput_current"`
		ThroughputMax     float64 `db:"throughput_max"`
		RoleCountsJSON    string  `db:"role_counts_json"`
		PrioritiesJSON    string  `db:"priorities_json"`
		BuildCount        int     `db:"build_count"`
		BuildIDsJSON      string  `db:"build_ids_json"`
		BuildByTypeJSON   string  `db:"build_by_type_json"`
		RepairJSON        string  `db:"repair_json"`
		SourceJSON        string  `db:"source_json"`
		SourceTick        uint64  `db:"source_tick"`
		ActiveNodesJSON   string  `db:"active_nodes_json"`
		ActiveTick        uint64  `db:"active_tick"`
		DroppedJSON       string  `db:"dropped_json"`
		DeliveryJSON      string  `db:"delivery_json"`
		ThreatJSON        string  `db:"threat_json"`
	}

	err := db.conn.Get(&row, "SELECT * FROM areas WHERE area_id = ?", string(area))
	if err == sql.ErrNoRows {
		return cache.AreaRecord{}, false, nil
	}
	if err != nil {
		return cache.AreaRecord{}, false, fmt.Errorf("load area %s: %w", area, err)
	}

	rec := cache.AreaRecord{
		Area:       colony.AreaID(row.AreaID),
		Tick:       row.Tick,
		Throughput: colony.Throughput{Current: row.ThroughputCurrent, Max: row.ThroughputMax},
		SourceTick: row.SourceTick,
		ActiveTick: row.ActiveTick,
	}
	rec.Build.Count = row.BuildCount

	unmarshal(row.RoleCountsJSON, &rec.RoleCounts)
	unmarshal(row.PrioritiesJSON, &rec.Priorities)
	unmarshal(row.BuildIDsJSON, &rec.Build.IDs)
	unmarshal(row.BuildByTypeJSON, &rec.Build.ByType)
	unmarshal(row.RepairJSON, &rec.Repair)
	unmarshal(row.SourceJSON, &rec.Source)
	unmarshal(row.ActiveNodesJSON, &rec.Active)
	unmarshal(row.DroppedJSON, &rec.Dropped)
	unmarshal(row.DeliveryJSON, &rec.Delivery)
	unmarshal(row.ThreatJSON, &rec.Threat)

	return rec, true, nil
}

// AreaIDs lists every area with a durable record.
func (db *DB) AreaIDs() ([]colony.AreaID, error) {
	var ids []string
	if err := db.conn.Select(&ids, "SELECT area_id FROM areas ORDER BY area_id"); err != nil {
		return nil, err
	}
	out := make([]colony.AreaID, len(ids))
	for i, id := range ids {
		out[i] = colony.AreaID(id)
	}
	return out, nil
}

// RecordSpawnOrder journals a submitted spawn order for correlation.
func (db *DB) RecordSpawnOrder(o colony.SpawnOrder) error {
	_, err := db.conn.Exec(
		"INSERT OR REPLACE INTO spawn_orders (id, area_id, role, urgency, tick) VALUES (?, ?, ?, ?, ?)",
		o.ID, string(o.Area), o.Role.String(), o.Urgency, o.Tick,
	)
	return err
}

// RecentSpawnOrders returns the most recent N journaled spawn orders.
func (db *DB) RecentSpawnOrders(limit int) ([]colony.SpawnOrder, error) {
	var rows []struct {
		ID      string  `db:"id"`
		AreaID  string  `db:"area_id"`
		Role    string  `db:"role"`
		Urgency float64 `db:"urgency"`
		Tick    uint64  `db:"tick"`
	}
	err := db.conn.Select(&rows,
		"SELECT id, area_id, role, urgency, tick FROM spawn_orders ORDER BY tick DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, err
	}
	orders := make([]colony.SpawnOrder, 0, len(rows))
	for _, r := range rows {
		role, _ := colony.ParseRole(r.Role)
		orders = append(orders, colony.SpawnOrder{
			ID: r.ID, Area: colony.AreaID(r.AreaID), Role: role,
			Urgency: r.Urgency, Tick: r.Tick,
		})
	}
	return orders, nil
}

// SaveMeta stores a key-value pair in core metadata.
func (db *DB) SaveMeta(key, value string) error {
	_, err := db.conn.Exec(
		"INSERT OR REPLACE INTO core_meta (key, value) VALUES (?, ?)",
		key, value,
	)
	return err
}

// GetMeta retrieves a metadata value.
func (db *DB) GetMeta(key string) (string, error) {
	var value string
	err := db.conn.Get(&value, "SELECT value FROM core_meta WHERE key = ?", key)
	return value, err
}

func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		slog.Error("marshal for store", "error", err)
		return "null"
	}
	return string(b)
}

func unmarshal(data string, target any) {
	if data == "" || data == "null" {
		return
	}
	if err := json.Unmarshal([]byte(data), target); err != nil {
		slog.Warn("corrupt store field, keeping zero value", "error", err)
	}
}
