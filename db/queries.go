package db

import (
	"database/sql"
	"fmt"
	"time"
)

const DefaultEventLimit = 50

// RecentEvents returns up to limit events, newest first.
func RecentEvents(db *sql.DB, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = DefaultEventLimit
	}
	rows, err := db.Query(`SELECT id, at, kind, topic, outcome, message_id, detail, transmitted FROM events ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	events := []Event{}
	for rows.Next() {
		var ev Event
		var at, kind string
		var messageID sql.NullString
		if err := rows.Scan(&ev.ID, &at, &kind, &ev.Topic, &ev.Outcome, &messageID, &ev.Detail, &ev.Transmitted); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		ev.At, err = time.Parse(time.RFC3339Nano, at)
		if err != nil {
			return nil, fmt.Errorf("failed to parse event %d timestamp: %w", ev.ID, err)
		}
		ev.Kind = EventKind(kind)
		ev.MessageID = messageID.String
		events = append(events, ev)
	}
	return events, rows.Err()
}

// GetEventByMessageID finds the event recorded for a command's messageId.
func GetEventByMessageID(db *sql.DB, messageID string) (*Event, error) {
	var ev Event
	var at, kind string
	err := db.QueryRow(`SELECT id, at, kind, topic, outcome, detail, transmitted FROM events WHERE message_id = ? ORDER BY id DESC LIMIT 1`, messageID).
		Scan(&ev.ID, &at, &kind, &ev.Topic, &ev.Outcome, &ev.Detail, &ev.Transmitted)
	if err != nil {
		return nil, fmt.Errorf("failed to get event for message %s: %w", messageID, err)
	}
	ev.At, err = time.Parse(time.RFC3339Nano, at)
	if err != nil {
		return nil, fmt.Errorf("failed to parse event timestamp: %w", err)
	}
	ev.Kind = EventKind(kind)
	ev.MessageID = messageID
	return &ev, nil
}

// CountOutcomes tallies events by kind and outcome.
func CountOutcomes(db *sql.DB) (map[string]int, error) {
	rows, err := db.Query(`SELECT kind, outcome, COUNT(*) FROM events GROUP BY kind, outcome`)
	if err != nil {
		return nil, fmt.Errorf("failed to count outcomes: %w", err)
	}
	defer rows.Close()

	counts := map[string]int{}
	for rows.Next() {
		var kind, outcome string
		var n int
		if err := rows.Scan(&kind, &outcome, &n); err != nil {
			return nil, fmt.Errorf("failed to scan outcome count: %w", err)
		}
		counts[kind+"/"+outcome] = n
	}
	return counts, rows.Err()
}
