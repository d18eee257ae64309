// Command i2p-router-monitor is a small Bubble Tea TUI that dials a
// running i2p-router's control API event stream and renders a live
// table of peer sessions.
package main

import (
	"flag"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/cvsouth/i2p-go/monitor"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:7070", "control API address")
	flag.Parse()

	stream, err := monitor.DialEvents(*addr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "i2p-router-monitor: %v\n", err)
		os.Exit(1)
	}
	defer stream.Close()

	if _, err := tea.NewProgram(monitor.NewModel(stream)).Run(); err != nil {
		fmt.Fprintf(os.Stderr, "i2p-router-monitor: %v\n", err)
		os.Exit(1)
	}
}
