package ui

import "strings"

const (
	reset       = "\033[0m"
	bold        = "\033[1m"
	pulseGreen  = "\033[38;5;46m"
	mint        = "\033[38;5;121m"
	seafoam     = "\033[38;5;49m"
	skyCyan     = "\033[38;5;51m"
	cobalt      = "\033[38;5;33m"
	deepIndigo  = "\033[38;5;61m"
	fuchsia     = "\033[38;5;177m"
	honeyOrange = "\033[38;5;214m"
)

// Banner renders a colored netpulse wordmark.
func Banner() string {
	var b strings.Builder

	netpulseLetters := [][]string{
		{"███╗   ██╗", "████╗  ██║", "██╔██╗ ██║", "██║╚██╗██║", "██║ ╚████║", "╚═╝  ╚═══╝"},
		{"███████╗", "██╔════╝", "█████╗  ", "██╔══╝  ", "███████╗", "╚══════╝"},
		{"████████╗", "╚══██╔══╝", "   ██║   ", "   ██║   ", "   ██║   ", "   ╚═╝   "},
		{"██████╗  ", "██╔══██╗ ", "██████╔╝ ", "██╔═══╝  ", "██║      ", "╚═╝      "},
		{"██╗   ██╗", "██║   ██║", "██║   ██║", "██║   ██║", "╚██████╔╝", " ╚═════╝ "},
		{"██╗     ", "██║     ", "██║     ", "██║     ", "███████╗", "╚══════╝"},
		{" ██████╗ ", "██╔════╝ ", "╚█████╗  ", " ╚═══██╗ ", "██████╔╝ ", "╚═════╝  "},
		{"███████╗", "██╔════╝", "█████╗  ", "██╔══╝  ", "███████╗", "╚══════╝"},
	}
	netpulseGradient := []string{pulseGreen, mint, seafoam, skyCyan, cobalt, deepIndigo, fuchsia, honeyOrange}
	netpulseRows := make([]string, len(netpulseLetters[0]))
	for i, letter := range netpulseLetters {
		color := netpulseGradient[i%len(netpulseGradient)]
		for row := 0; row < len(letter); row++ {
			netpulseRows[row] += color + letter[row] + " "
		}
	}
	for _, line := range netpulseRows {
		b.WriteString(bold + line + reset + "\n")
	}

	b.WriteString("\n")
	b.WriteString(bold + pulseGreen + "netpulse" + reset + "  •  interface throughput and per-process packets via eBPF\n\n")

	return b.String()
}
