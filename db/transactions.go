package db

import (
	"database/sql"
	"fmt"
	"time"
)

type EventKind string

const (
	KindCommand      EventKind = "command"
	KindSignal       EventKind = "signal"
	KindParseFailure EventKind = "parse_failure"
)

// Event is one handled inbound message.
type Event struct {
	ID          int64     `json:"id"`
	At          time.Time `json:"at"`
	Kind        EventKind `json:"kind"`
	Topic       string    `json:"topic"`
	Outcome     string    `json:"outcome"`
	MessageID   string    `json:"messageId,omitempty"`
	Detail      string    `json:"detail,omitempty"`
	Transmitted bool      `json:"transmitted"`
}

// StartTransaction starts a new database transaction.
func StartTransaction(db *sql.DB) (*sql.Tx, error) {
	tx, err := db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	return tx, nil
}

// CommitTransaction commits the given transaction.
func CommitTransaction(tx *sql.Tx) error {
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// RollbackTransaction rolls back the given transaction.
func RollbackTransaction(tx *sql.Tx) {
	tx.Rollback()
}

func InsertEventWithTx(tx *sql.Tx, ev Event) (int64, error) {
	var messageID interface{}
	if ev.MessageID != "" {
		messageID = ev.MessageID
	}
	res, err := tx.Exec(`INSERT INTO events (at, kind, topic, outcome, message_id, detail, transmitted) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ev.At.UTC().Format(time.RFC3339Nano), string(ev.Kind), ev.Topic, ev.Outcome, messageID, ev.Detail, ev.Transmitted)
	if err != nil {
		return 0, fmt.Errorf("insert event: %w", err)
	}
	return res.LastInsertId()
}

func RecordEvent(db *sql.DB, ev Event) (int64, error) {
	tx, err := StartTransaction(db)
	if err != nil {
		return 0, err
	}
	id, err := InsertEventWithTx(tx, ev)
	if err != nil {
		RollbackTransaction(tx)
		return 0, err
	}
	return id, CommitTransaction(tx)
}

// PruneEvents deletes events older than the cutoff.
func PruneEvents(db *sql.DB, before time.Time) (int64, error) {
	res, err := db.Exec(`DELETE FROM events WHERE at < ?`, before.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return 0, fmt.Errorf("prune events: %w", err)
	}
	return res.RowsAffected()
}

// History records events into a database; it satisfies the dispatcher's recorder.
type History struct {
	conn *sql.DB
}

func NewHistory(conn *sql.DB) *History {
	return &History{conn: conn}
}

func (h *History) Record(ev Event) error {
	_, err := RecordEvent(h.conn, ev)
	return err
}

func (h *History) Recent(limit int) ([]Event, error) {
	return RecentEvents(h.conn, limit)
}
