package main

import (
	"fmt"
	"os"

	"uzenet/internal/store"
)

// runCLI handles the operator-facing subcommands. Live player/room/match
// state is deliberately not queryable this way: it lives only in the
// running room server's memory (spec.md's non-goal of persisting game
// state), so "status" reports what actually is persisted — the deny list
// and the admin audit trail — rather than pretending to snapshot live
// connections from a process that isn't this one.
func runCLI(args []string) bool {
	if len(args) == 0 {
		return false
	}
	dbPath := "uzenet-room.db"
	switch args[0] {
	case "status":
		return cliStatus(dbPath)
	case "denylist":
		return cliDenylist(args[1:], dbPath)
	default:
		return false
	}
}

func cliStatus(dbPath string) bool {
	st, err := store.New(dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error opening database: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	denies, err := st.LoadDenyList()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	audit, err := st.RecentAuditLog(5)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Database: %s\n", dbPath)
	fmt.Printf("Denied IPs: %d\n", len(denies))
	fmt.Printf("Recent audit entries: %d\n", len(audit))
	for _, a := range audit {
		fmt.Printf("  [%d] %d %s %s %s\n", a.ID, a.CreatedAt, a.Action, a.Target, a.Details)
	}
	return true
}

func cliDenylist(args []string, dbPath string) bool {
	st, err := store.New(dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error opening database: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	if len(args) > 0 && args[0] == "clear" && len(args) > 1 {
		if err := st.ClearDenyEntry(args[1]); err != nil {
			fmt.Fprintf(os.Stderr, "error clearing %s: %v\n", args[1], err)
			os.Exit(1)
		}
		fmt.Printf("cleared %s\n", args[1])
		return true
	}

	entries, err := st.LoadDenyList()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if len(entries) == 0 {
		fmt.Println("No denied IPs.")
		return true
	}
	for _, e := range entries {
		fmt.Printf("  %s strikes=%d first=%d last=%d\n", e.IP, e.Strikes, e.FirstSeen, e.LastSeen)
	}
	return true
}
