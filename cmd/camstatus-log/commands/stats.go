package commands

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/courtside/camstatus-go/pkg/connection"
	"github.com/courtside/camstatus-go/pkg/log"
)

// Stats holds aggregate statistics about a log file.
type Stats struct {
	TotalEvents       int
	EventsByLayer     map[log.Layer]int
	EventsByCategory  map[log.Category]int
	EventsByDirection map[log.Direction]int
	Connections       map[string]*ConnectionStats
	CloseCodes        map[int]int
	Snapshots         int
	StatusChanges     int
	Retries           int
	GiveUps           int
	Errors            int
	TimeRange         struct {
		Start time.Time
		End   time.Time
	}
}

// ConnectionStats holds statistics for a single connection attempt.
type ConnectionStats struct {
	FirstSeen time.Time
	LastSeen  time.Time
	Events    int
	Endpoint  string
	Opened    bool
	CloseCode *int
}

// Collect reads every event of reader into a Stats.
func Collect(reader *log.Reader) (*Stats, error) {
	stats := &Stats{
		EventsByLayer:     make(map[log.Layer]int),
		EventsByCategory:  make(map[log.Category]int),
		EventsByDirection: make(map[log.Direction]int),
		Connections:       make(map[string]*ConnectionStats),
		CloseCodes:        make(map[int]int),
	}

	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read event: %w", err)
		}
		stats.add(event)
	}
	return stats, nil
}

func (s *Stats) add(event log.Event) {
	s.TotalEvents++
	s.EventsByLayer[event.Layer]++
	s.EventsByCategory[event.Category]++
	s.EventsByDirection[event.Direction]++

	if s.TimeRange.Start.IsZero() || event.Timestamp.Before(s.TimeRange.Start) {
		s.TimeRange.Start = event.Timestamp
	}
	if event.Timestamp.After(s.TimeRange.End) {
		s.TimeRange.End = event.Timestamp
	}

	if event.ConnectionID != "" {
		conn, ok := s.Connections[event.ConnectionID]
		if !ok {
			conn = &ConnectionStats{
				FirstSeen: event.Timestamp,
				LastSeen:  event.Timestamp,
			}
			s.Connections[event.ConnectionID] = conn
		}
		conn.Events++
		if event.Timestamp.After(conn.LastSeen) {
			conn.LastSeen = event.Timestamp
		}
		if event.Endpoint != "" && conn.Endpoint == "" {
			conn.Endpoint = event.Endpoint
		}
		if ctrl := event.ControlMsg; ctrl != nil {
			switch ctrl.Type {
			case log.ControlMsgOpen:
				conn.Opened = true
			case log.ControlMsgClose:
				conn.CloseCode = ctrl.CloseCode
			}
		}
	}

	if ctrl := event.ControlMsg; ctrl != nil && ctrl.Type == log.ControlMsgClose && ctrl.CloseCode != nil {
		s.CloseCodes[*ctrl.CloseCode]++
	}

	if msg := event.Message; msg != nil && event.Direction == log.DirectionIn {
		switch msg.Type {
		case log.MessageTypeSnapshot:
			s.Snapshots++
		case log.MessageTypeStatusChange:
			s.StatusChanges++
		}
	}

	if sc := event.StateChange; sc != nil {
		switch sc.NewState {
		case connection.StateReconnectPending.String():
			s.Retries++
		case connection.StateGivenUp.String():
			s.GiveUps++
		}
	}

	if event.Error != nil {
		s.Errors++
	}
}

// RunStats analyzes the log file and prints statistics.
func RunStats(path string, w io.Writer) error {
	reader, err := log.NewReader(path)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	stats, err := Collect(reader)
	if err != nil {
		return err
	}
	printStats(w, stats)
	return nil
}

func printStats(w io.Writer, stats *Stats) {
	fmt.Fprintln(w, "=== Camera Status Protocol Log Statistics ===")
	fmt.Fprintln(w)

	if stats.TotalEvents > 0 {
		fmt.Fprintf(w, "Time Range: %s to %s\n",
			stats.TimeRange.Start.Format(time.RFC3339),
			stats.TimeRange.End.Format(time.RFC3339))
		fmt.Fprintf(w, "Duration:   %s\n", stats.TimeRange.End.Sub(stats.TimeRange.Start).Round(time.Second))
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Total Events: %d\n", stats.TotalEvents)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Layer:")
	for _, layer := range []log.Layer{log.LayerTransport, log.LayerWire, log.LayerClient} {
		if count := stats.EventsByLayer[layer]; count > 0 {
			fmt.Fprintf(w, "  %-12s %d\n", layer.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Category:")
	for _, cat := range []log.Category{log.CategoryMessage, log.CategoryControl, log.CategoryState, log.CategoryError} {
		if count := stats.EventsByCategory[cat]; count > 0 {
			fmt.Fprintf(w, "  %-12s %d\n", cat.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Direction:")
	for _, dir := range []log.Direction{log.DirectionIn, log.DirectionOut} {
		if count := stats.EventsByDirection[dir]; count > 0 {
			fmt.Fprintf(w, "  %-12s %d\n", dir.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "Snapshots:      %d\n", stats.Snapshots)
	fmt.Fprintf(w, "Status changes: %d\n", stats.StatusChanges)
	fmt.Fprintf(w, "Retries:        %d\n", stats.Retries)
	if stats.GiveUps > 0 {
		fmt.Fprintf(w, "Gave up:        %d\n", stats.GiveUps)
	}
	fmt.Fprintln(w)

	if len(stats.CloseCodes) > 0 {
		codes := make([]int, 0, len(stats.CloseCodes))
		for code := range stats.CloseCodes {
			codes = append(codes, code)
		}
		sort.Ints(codes)
		fmt.Fprintln(w, "Close Codes:")
		for _, code := range codes {
			fmt.Fprintf(w, "  %-12d %d\n", code, stats.CloseCodes[code])
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Connections: %d\n", len(stats.Connections))
	if len(stats.Connections) > 0 {
		type connInfo struct {
			id    string
			stats *ConnectionStats
		}
		conns := make([]connInfo, 0, len(stats.Connections))
		for id, cs := range stats.Connections {
			conns = append(conns, connInfo{id, cs})
		}
		sort.Slice(conns, func(i, j int) bool {
			return conns[i].stats.FirstSeen.Before(conns[j].stats.FirstSeen)
		})

		fmt.Fprintln(w)
		for _, c := range conns {
			duration := c.stats.LastSeen.Sub(c.stats.FirstSeen).Round(time.Millisecond)
			outcome := "never opened"
			if c.stats.Opened {
				outcome = "opened"
			}
			if c.stats.CloseCode != nil {
				outcome += fmt.Sprintf(", closed %d", *c.stats.CloseCode)
			}
			fmt.Fprintf(w, "  [%s] %d events, duration %s, %s\n",
				shortenConnID(c.id), c.stats.Events, duration, outcome)
			if c.stats.Endpoint != "" {
				fmt.Fprintf(w, "           Endpoint: %s\n", c.stats.Endpoint)
			}
		}
	}

	if stats.Errors > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Errors: %d\n", stats.Errors)
	}
}
