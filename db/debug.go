package db

import (
	"fmt"
	"io"
	"sort"
	"time"
)

func PrintEventsCLI(dbPath string, limit int, w io.Writer) error {
	conn, err := Open(dbPath)
	if err != nil {
		return err
	}
	defer conn.Close()

	events, err := RecentEvents(conn, limit)
	if err != nil {
		return err
	}
	for i := len(events) - 1; i >= 0; i-- {
		ev := events[i]
		tx := ""
		if ev.Transmitted {
			tx = " [ir]"
		}
		id := ""
		if ev.MessageID != "" {
			id = " id=" + ev.MessageID
		}
		fmt.Fprintf(w, "%s %-13s %-20s %s%s%s", ev.At.Local().Format(time.DateTime), ev.Kind, ev.Outcome, ev.Topic, id, tx)
		if ev.Detail != "" {
			fmt.Fprintf(w, " (%s)", ev.Detail)
		}
		fmt.Fprintln(w)
	}
	return nil
}

func PrintEventCLI(dbPath, messageID string, w io.Writer) error {
	conn, err := Open(dbPath)
	if err != nil {
		return err
	}
	defer conn.Close()

	ev, err := GetEventByMessageID(conn, messageID)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "%s %s %s on %s transmitted=%t %s\n", ev.At.Local().Format(time.DateTime), ev.Kind, ev.Outcome, ev.Topic, ev.Transmitted, ev.Detail)
	return nil
}

func PrintStatsCLI(dbPath string, w io.Writer) error {
	conn, err := Open(dbPath)
	if err != nil {
		return err
	}
	defer conn.Close()

	counts, err := CountOutcomes(conn)
	if err != nil {
		return err
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "%-40s %d\n", k, counts[k])
	}
	return nil
}

func PruneEventsCLI(dbPath string, olderThan time.Duration) (int64, error) {
	conn, err := Open(dbPath)
	if err != nil {
		return 0, err
	}
	defer conn.Close()
	return PruneEvents(conn, time.Now().Add(-olderThan))
}
