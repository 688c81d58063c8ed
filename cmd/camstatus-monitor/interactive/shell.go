// Package interactive provides the interactive command-line interface
// for camstatus-monitor.
package interactive

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/chzyer/readline"

	"github.com/courtside/camstatus-go/pkg/connection"
	"github.com/courtside/camstatus-go/pkg/monitor"
	"github.com/courtside/camstatus-go/pkg/wire"
)

// DefaultRecent is how many status changes "recent" shows without an argument.
const DefaultRecent = 10

// Client is the part of the status client the shell drives.
type Client interface {
	Connect()
	Disconnect()
	SendMessage(payload any)
	State() connection.State
	Attempts() int
	ConnectionID() string
}

// Shell handles interactive mode for camstatus-monitor.
type Shell struct {
	client   Client
	monitor  *monitor.Monitor
	endpoint string
	rl       *readline.Instance
	out      io.Writer
}

// New creates a shell reading from the terminal.
func New(client Client, mon *monitor.Monitor, endpoint string) (*Shell, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "camstatus> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}

	s := newShell(client, mon, endpoint, rl.Stdout())
	s.rl = rl
	return s, nil
}

func newShell(client Client, mon *monitor.Monitor, endpoint string, out io.Writer) *Shell {
	return &Shell{
		client:   client,
		monitor:  mon,
		endpoint: endpoint,
		out:      out,
	}
}

// Stdout returns a writer that properly coordinates with the readline input.
// Use this for log output to avoid interfering with the command prompt.
func (s *Shell) Stdout() io.Writer {
	return s.out
}

// Run starts the interactive command loop.
func (s *Shell) Run(ctx context.Context, cancel context.CancelFunc) {
	defer s.rl.Close()

	s.printHelp()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := s.rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			fmt.Fprintln(s.out, "Exiting...")
			cancel()
			return
		}

		if !s.Execute(line) {
			cancel()
			return
		}
	}
}

// Execute runs one command line. It returns false when the shell should exit.
func (s *Shell) Execute(line string) bool {
	input := strings.TrimSpace(line)
	if input == "" {
		return true
	}

	cmd, rest, _ := strings.Cut(input, " ")
	cmd = strings.ToLower(cmd)
	rest = strings.TrimSpace(rest)

	switch cmd {
	case "help", "?":
		s.printHelp()

	case "status", "s":
		s.cmdStatus()

	case "cameras", "ls":
		s.cmdCameras()

	case "camera", "c":
		s.cmdCamera(rest)

	case "recent", "r":
		s.cmdRecent(rest)

	case "connect":
		s.client.Connect()
		fmt.Fprintln(s.out, "Connecting...")

	case "disconnect":
		s.client.Disconnect()
		fmt.Fprintln(s.out, "Disconnected")

	case "send":
		s.cmdSend(rest)

	case "quit", "exit", "q":
		fmt.Fprintln(s.out, "Exiting...")
		return false

	default:
		fmt.Fprintf(s.out, "Unknown command: %s (type 'help' for commands)\n", cmd)
	}
	return true
}

func (s *Shell) printHelp() {
	fmt.Fprintln(s.out, `
Camera Status Monitor Commands:
  Connection:
    status                 - Show connection state and counters
    connect                - Connect (resets the retry counter)
    disconnect             - Close the connection and stop retrying

  Cameras:
    cameras                - List known cameras
    camera <id>            - Show one camera
    recent [n]             - Show the last n status changes (default 10)

  Messaging:
    send <json>            - Send a JSON payload on the open connection

  General:
    help                   - Show this help
    quit                   - Exit`)
}

func (s *Shell) cmdStatus() {
	state := s.client.State()
	stats := s.monitor.Stats()

	fmt.Fprintln(s.out, "\nConnection:")
	fmt.Fprintln(s.out, "-------------------------------------------")
	fmt.Fprintf(s.out, "  Endpoint:      %s\n", s.endpoint)
	fmt.Fprintf(s.out, "  State:         %s\n", state)
	if id := s.client.ConnectionID(); id != "" {
		fmt.Fprintf(s.out, "  Connection ID: %s\n", id)
	}
	if state == connection.StateReconnectPending || state == connection.StateGivenUp {
		fmt.Fprintf(s.out, "  Retries:       %d\n", s.client.Attempts())
	}
	fmt.Fprintf(s.out, "  Connects:      %d\n", stats.Connects)
	fmt.Fprintf(s.out, "  Disconnects:   %d\n", stats.Disconnects)
	if !stats.LastConnected.IsZero() {
		fmt.Fprintf(s.out, "  Last connect:  %s\n", stats.LastConnected.Format(time.RFC3339))
	}
	if !stats.LastDisconnected.IsZero() {
		fmt.Fprintf(s.out, "  Last drop:     %s\n", stats.LastDisconnected.Format(time.RFC3339))
	}

	fmt.Fprintln(s.out, "\nTraffic:")
	fmt.Fprintln(s.out, "-------------------------------------------")
	fmt.Fprintf(s.out, "  Snapshots:      %d\n", stats.Snapshots)
	fmt.Fprintf(s.out, "  Status changes: %d\n", stats.StatusChanges)
	for _, status := range wire.AllCameraStatuses() {
		if n := stats.ByStatus[status]; n > 0 {
			fmt.Fprintf(s.out, "  %-15s %d\n", status.String()+":", n)
		}
	}
}

func (s *Shell) cmdCameras() {
	cameras := s.monitor.Cameras()
	if len(cameras) == 0 {
		fmt.Fprintln(s.out, "No cameras known yet")
		return
	}

	fmt.Fprintf(s.out, "\nCameras (%d):\n", len(cameras))
	fmt.Fprintf(s.out, "%-8s %-24s %-12s %-16s %s\n", "ID", "Name", "Status", "IP", "Location")
	fmt.Fprintln(s.out, "--------------------------------------------------------------------------------")
	for _, cs := range cameras {
		snap := cs.Snapshot
		fmt.Fprintf(s.out, "%-8s %-24s %-12s %-16s %s\n",
			snap.ID, truncate(snap.Name, 24), snap.Status, dash(snap.IPAddress), location(snap.Location))
	}
}

func (s *Shell) cmdCamera(arg string) {
	if arg == "" {
		fmt.Fprintln(s.out, "Usage: camera <id>")
		return
	}

	cs, ok := s.monitor.Camera(wire.CameraID(arg))
	if !ok {
		fmt.Fprintf(s.out, "Camera not found: %s\n", arg)
		return
	}

	snap := cs.Snapshot
	fmt.Fprintf(s.out, "\nCamera %s\n", snap.ID)
	fmt.Fprintln(s.out, "-------------------------------------------")
	fmt.Fprintf(s.out, "  Name:     %s\n", dash(snap.Name))
	fmt.Fprintf(s.out, "  Status:   %s\n", snap.Status)
	fmt.Fprintf(s.out, "  IP:       %s\n", dash(snap.IPAddress))
	fmt.Fprintf(s.out, "  Location: %s\n", location(snap.Location))
	fmt.Fprintf(s.out, "  Updated:  %s\n", cs.UpdatedAt.Format(time.RFC3339))
	if cs.LastChange != nil {
		fmt.Fprintf(s.out, "  Changed:  %s at %s\n",
			cs.LastChange.Transition(), wire.FormatTimestamp(cs.LastChange.Timestamp))
	}
}

func (s *Shell) cmdRecent(arg string) {
	n := DefaultRecent
	if arg != "" {
		v, err := strconv.Atoi(arg)
		if err != nil || v <= 0 {
			fmt.Fprintf(s.out, "Invalid count: %s\n", arg)
			return
		}
		n = v
	}

	recent := s.monitor.Recent(n)
	if len(recent) == 0 {
		fmt.Fprintln(s.out, "No status changes yet")
		return
	}
	for _, c := range recent {
		fmt.Fprintf(s.out, "%s  %-8s %-24s %s\n",
			c.Timestamp.Local().Format("15:04:05"), c.CameraID, truncate(c.CameraName, 24), c.Transition())
	}
}

func (s *Shell) cmdSend(arg string) {
	if arg == "" {
		fmt.Fprintln(s.out, "Usage: send <json>")
		return
	}
	if !json.Valid([]byte(arg)) {
		fmt.Fprintln(s.out, "Invalid JSON")
		return
	}
	if s.client.State() != connection.StateConnected {
		fmt.Fprintf(s.out, "Not connected (state: %s); message dropped\n", s.client.State())
		return
	}
	s.client.SendMessage(json.RawMessage(arg))
	fmt.Fprintln(s.out, "Sent")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "~"
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func location(l wire.Location) string {
	parts := make([]string, 0, 2)
	if l.FacilityName != "" {
		parts = append(parts, l.FacilityName)
	}
	if l.CourtName != "" {
		parts = append(parts, l.CourtName)
	}
	if len(parts) == 0 {
		return "-"
	}
	return strings.Join(parts, " / ")
}
