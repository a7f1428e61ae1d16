package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/thatsimonsguy/ac-controller/db"
	"github.com/thatsimonsguy/ac-controller/internal/config"
	"github.com/thatsimonsguy/ac-controller/internal/model"
	"github.com/thatsimonsguy/ac-controller/internal/mqttbus"
)

func main() {
	DebugCLI()
}

func DebugCLI() {
	var dbPath, command, broker, topic, status, messageID string
	var limit int
	var olderThan time.Duration
	flag.StringVar(&dbPath, "db", "data/ac.db", "Path to the SQLite event history")
	flag.StringVar(&command, "cmd", "", "Command to run: events, event, stats, prune, send")
	flag.IntVar(&limit, "limit", db.DefaultEventLimit, "Number of events to show")
	flag.DurationVar(&olderThan, "older-than", 30*24*time.Hour, "Age of events to delete with prune")
	flag.StringVar(&broker, "broker", "tcp://localhost:1883", "MQTT broker for send")
	flag.StringVar(&topic, "topic", "", "Set topic for send")
	flag.StringVar(&messageID, "id", "", "messageId to look up with event")
	flag.StringVar(&status, "status", "", `Status fields for send, e.g. '{"temp":22,"mode":"cool"}'`)
	help := flag.Bool("help", false, "Show help")
	flag.Parse()

	if *help || command == "" {
		fmt.Println("\nUsage of ac-debug:")
		fmt.Println("  -db string\tPath to the SQLite event history (default 'data/ac.db')")
		fmt.Println("  -cmd string\tCommand to run: events, event, stats, prune, send")
		fmt.Println("  -id string\tmessageId to look up with event")
		fmt.Println("  -limit int\tNumber of events to show")
		fmt.Println("  -older-than duration\tAge of events to delete with prune")
		fmt.Println("  -broker string\tMQTT broker for send")
		fmt.Println("  -topic string\tSet topic for send")
		fmt.Println("  -status string\tStatus fields for send")
		fmt.Println("  -help\tShow this help message")
		os.Exit(0)
	}

	var err error
	switch command {
	case "events":
		err = db.PrintEventsCLI(dbPath, limit, os.Stdout)
	case "event":
		if messageID == "" {
			fmt.Println("Error: -id is required")
			os.Exit(1)
		}
		err = db.PrintEventCLI(dbPath, messageID, os.Stdout)
	case "stats":
		err = db.PrintStatsCLI(dbPath, os.Stdout)
	case "prune":
		var n int64
		n, err = db.PruneEventsCLI(dbPath, olderThan)
		if err == nil {
			fmt.Printf("Deleted %d events\n", n)
		}
	case "send":
		if topic == "" || status == "" {
			fmt.Println("Error: -topic and -status are required")
			os.Exit(1)
		}
		err = send(broker, topic, status)
	default:
		fmt.Println("Invalid command")
		os.Exit(1)
	}

	if err != nil {
		fmt.Printf("Command %s failed: %v\n", command, err)
		os.Exit(1)
	}
	fmt.Printf("Command %s completed successfully\n", command)
}

func send(broker, topic, status string) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(status), &fields); err != nil {
		return fmt.Errorf("status is not a JSON object: %w", err)
	}
	id := uuid.NewString()
	payload, err := json.Marshal(map[string]interface{}{"messageId": id, "status": fields})
	if err != nil {
		return err
	}
	// dry-parse so typos are reported here rather than as warnings on the device
	cmd, err := model.ParseCommand(payload)
	if err != nil {
		return err
	}
	for _, w := range cmd.Rejected {
		fmt.Printf("Warning: %v\n", w)
	}

	bus := mqttbus.New(config.MQTT{
		Broker:            broker,
		ClientID:          "ac-debug-" + id[:8],
		AvailabilityTopic: topic + "/debug",
	}, func(string, []byte) {})
	if err := bus.Connect(5 * time.Second); err != nil {
		return err
	}
	defer bus.Disconnect()
	if !bus.IsConnected() {
		return fmt.Errorf("broker %s not reachable", broker)
	}
	if err := bus.Publish(topic, payload); err != nil {
		return err
	}
	fmt.Printf("Sent messageId %s to %s\n", id, topic)
	return nil
}
