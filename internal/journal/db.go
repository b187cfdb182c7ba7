package journal

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"go-der-dashboard/internal/model"
)

// DB is the sqlite journal of notifications and optimistic mutation outcomes.
// It is an audit trail only; the model store itself is never persisted.
type DB struct {
	db *sql.DB
}

// Open connects to the sqlite file at dbPath and creates the tables if needed
func Open(dbPath string) (*DB, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}
	// sqlite allows a single writer
	db.SetMaxOpenConns(1)

	notificationTable := `
	CREATE TABLE IF NOT EXISTS notifications (
		id TEXT PRIMARY KEY,
		kind TEXT,
		message TEXT,
		entity_type TEXT,
		entity_id TEXT,
		created_at DATETIME
	);
	`
	mutationTable := `
	CREATE TABLE IF NOT EXISTS mutations (
		id TEXT PRIMARY KEY,
		entity_type TEXT,
		entity_id TEXT,
		op TEXT,
		outcome TEXT,
		error_message TEXT,
		started_at DATETIME,
		finished_at DATETIME
	);
	`

	for _, stmt := range []string{notificationTable, mutationTable} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("create journal tables: %w", err)
		}
	}

	return &DB{db: db}, nil
}

// Close releases the connection
func (j *DB) Close() error {
	return j.db.Close()
}

// SaveNotification stores a raised notification
func (j *DB) SaveNotification(n model.Notification) error {
	var entityType, entityID sql.NullString
	if n.Entity != nil {
		entityType = sql.NullString{String: string(n.Entity.Type), Valid: true}
		entityID = sql.NullString{String: n.Entity.ID, Valid: true}
	}
	_, err := j.db.Exec(`INSERT INTO notifications (id, kind, message, entity_type, entity_id, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		n.ID, string(n.Kind), n.Message, entityType, entityID, n.CreatedAt.UTC())
	return err
}

// ListNotifications returns the most recent notifications, newest first
func (j *DB) ListNotifications(limit int) ([]model.Notification, error) {
	rows, err := j.db.Query(`SELECT id, kind, message, entity_type, entity_id, created_at FROM notifications ORDER BY created_at DESC LIMIT ?`, limitOrAll(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	notifications := []model.Notification{}
	for rows.Next() {
		var n model.Notification
		var kind string
		var entityType, entityID sql.NullString
		if err := rows.Scan(&n.ID, &kind, &n.Message, &entityType, &entityID, &n.CreatedAt); err != nil {
			return nil, err
		}
		n.Kind = model.NotificationKind(kind)
		if entityType.Valid {
			n.Entity = &model.Key{Type: model.Type(entityType.String), ID: entityID.String}
		}
		notifications = append(notifications, n)
	}
	return notifications, rows.Err()
}

// SaveMutation records the outcome of one optimistic mutation
func (j *DB) SaveMutation(m model.MutationRecord) error {
	_, err := j.db.Exec(`INSERT INTO mutations (id, entity_type, entity_id, op, outcome, error_message, started_at, finished_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, string(m.Entity.Type), m.Entity.ID, m.Op, m.Outcome, m.Error, m.StartedAt.UTC(), m.FinishedAt.UTC())
	return err
}

// ListMutations returns the most recent mutation records, newest first.
// An empty entity type lists mutations of every type.
func (j *DB) ListMutations(entityType model.Type, limit int) ([]model.MutationRecord, error) {
	query := `SELECT id, entity_type, entity_id, op, outcome, error_message, started_at, finished_at FROM mutations`
	args := []interface{}{}
	if entityType != "" {
		query += ` WHERE entity_type = ?`
		args = append(args, string(entityType))
	}
	query += ` ORDER BY started_at DESC LIMIT ?`
	args = append(args, limitOrAll(limit))

	rows, err := j.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := []model.MutationRecord{}
	for rows.Next() {
		var m model.MutationRecord
		var t string
		var errMsg sql.NullString
		var startedAt, finishedAt time.Time
		if err := rows.Scan(&m.ID, &t, &m.Entity.ID, &m.Op, &m.Outcome, &errMsg, &startedAt, &finishedAt); err != nil {
			return nil, err
		}
		m.Entity.Type = model.Type(t)
		m.Error = errMsg.String
		m.StartedAt = startedAt
		m.FinishedAt = finishedAt
		records = append(records, m)
	}
	return records, rows.Err()
}

// GetMutation fetches one mutation record by id
func (j *DB) GetMutation(id string) (model.MutationRecord, error) {
	var m model.MutationRecord
	var t string
	var errMsg sql.NullString
	err := j.db.QueryRow(`SELECT id, entity_type, entity_id, op, outcome, error_message, started_at, finished_at FROM mutations WHERE id = ?`, id).
		Scan(&m.ID, &t, &m.Entity.ID, &m.Op, &m.Outcome, &errMsg, &m.StartedAt, &m.FinishedAt)
	if err == sql.ErrNoRows {
		return m, fmt.Errorf("mutation %s: %w", id, model.ErrNotFound)
	}
	if err != nil {
		return m, err
	}
	m.Entity.Type = model.Type(t)
	m.Error = errMsg.String
	return m, nil
}

func limitOrAll(limit int) int {
	if limit <= 0 {
		return -1
	}
	return limit
}
