// Command dbctl is a small diagnostic tool for operating on the store's
// SQLite file without going through the daemon, generalized from the
// teacher's cmd/dbctl (agent heartbeat/shutdown probes) to this module's
// session/memory domain. It opens the database directly with the
// cgo-free modernc.org/sqlite driver rather than internal/store's
// mattn/go-sqlite3 driver, so it can be built and run without a C
// toolchain on the operator's machine.
package main

import (
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	_ "modernc.org/sqlite"
)

func main() {
	dbPath := flag.String("db", "data/rdvcore.db", "Path to SQLite database")
	action := flag.String("action", "", "Action to perform: touch-session, check-stalled, memory-stats")
	sessionID := flag.String("session", "", "Session ID")
	userID := flag.String("user", "", "User ID")
	stallMinutes := flag.Int("stall-minutes", 15, "Minutes of inactivity to consider a session stalled")
	jsonOutput := flag.Bool("json", false, "Output as JSON")

	flag.Parse()

	if *action == "" {
		fmt.Fprintf(os.Stderr, "Usage: dbctl -db <path> -action <action> [-session <id>] [-user <id>] [-json]\n")
		fmt.Fprintf(os.Stderr, "Actions: touch-session, check-stalled, memory-stats\n")
		os.Exit(1)
	}

	db, err := sql.Open("sqlite", fmt.Sprintf("%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", *dbPath))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	switch *action {
	case "touch-session":
		if *sessionID == "" {
			fmt.Fprintln(os.Stderr, "touch-session requires -session")
			os.Exit(1)
		}
		if err := touchSession(db, *sessionID); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to touch session: %v\n", err)
			os.Exit(1)
		}
		if *jsonOutput {
			json.NewEncoder(os.Stdout).Encode(map[string]interface{}{"success": true, "session_id": *sessionID})
		} else {
			fmt.Printf("Touched session %s\n", *sessionID)
		}

	case "check-stalled":
		if *userID == "" {
			fmt.Fprintln(os.Stderr, "check-stalled requires -user")
			os.Exit(1)
		}
		stalled, err := checkStalled(db, *userID, *stallMinutes)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to check stalled sessions: %v\n", err)
			os.Exit(1)
		}
		if *jsonOutput {
			json.NewEncoder(os.Stdout).Encode(stalled)
		} else {
			if len(stalled) == 0 {
				fmt.Println("No stalled sessions")
			}
			for _, id := range stalled {
				fmt.Println(id)
			}
		}

	case "memory-stats":
		stats, err := memoryStats(db)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to compute memory stats: %v\n", err)
			os.Exit(1)
		}
		json.NewEncoder(os.Stdout).Encode(stats)

	default:
		fmt.Fprintf(os.Stderr, "Unknown action: %s\n", *action)
		os.Exit(1)
	}
}

func touchSession(db *sql.DB, sessionID string) error {
	now := time.Now().UnixMilli()
	result, err := db.Exec(
		`UPDATE terminal_session SET last_activity_at = ?, updated_at = ? WHERE id = ?`,
		now, now, sessionID,
	)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("session not found: %s", sessionID)
	}
	return nil
}

func checkStalled(db *sql.DB, userID string, stallMinutes int) ([]string, error) {
	cutoff := time.Now().Add(-time.Duration(stallMinutes) * time.Minute).UnixMilli()
	rows, err := db.Query(
		`SELECT id FROM terminal_session
		 WHERE user_id = ? AND status = 'active' AND is_orchestrator_session = 0
		   AND (last_activity_at IS NULL OR last_activity_at < ?)`,
		userID, cutoff,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// MemoryStats reports the row count of each memory tier, for a quick
// operational sanity check without running the full daemon.
type MemoryStats struct {
	ShortTerm int `json:"short_term"`
	Working   int `json:"working"`
	LongTerm  int `json:"long_term"`
}

func memoryStats(db *sql.DB) (*MemoryStats, error) {
	var stats MemoryStats
	if err := db.QueryRow(`SELECT COUNT(*) FROM sdk_memory_entries WHERE tier = 'short_term'`).Scan(&stats.ShortTerm); err != nil {
		return nil, err
	}
	if err := db.QueryRow(`SELECT COUNT(*) FROM sdk_memory_entries WHERE tier = 'working'`).Scan(&stats.Working); err != nil {
		return nil, err
	}
	if err := db.QueryRow(`SELECT COUNT(*) FROM sdk_memory_entries WHERE tier = 'long_term'`).Scan(&stats.LongTerm); err != nil {
		return nil, err
	}
	return &stats, nil
}
