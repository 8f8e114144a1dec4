package tui

import (
	"fmt"
	"strings"

	"github.com/mattn/go-runewidth"
	"github.com/rivo/tview"

	"github.com/norelabs/dashsrv/internal/minecraft"
	"github.com/norelabs/dashsrv/internal/status"
)

const barWidth = 20

// truncate shortens s to at most width terminal cells.
func truncate(s string, width int) string {
	if width <= 0 {
		return ""
	}
	return runewidth.Truncate(s, width, "…")
}

func usageColor(percent float64) string {
	switch {
	case percent >= 90:
		return "red"
	case percent >= 75:
		return "yellow"
	default:
		return "green"
	}
}

// progressBar renders percent as a coloured bar of barWidth cells.
func progressBar(percent float64) string {
	percent = max(0, min(percent, 100))
	filled := min(int(percent/100.0*float64(barWidth)), barWidth)
	color := usageColor(percent)
	return fmt.Sprintf("[%s]%s[-][gray]%s[-] [%s]%5.1f%%[-]",
		color, strings.Repeat("█", filled), strings.Repeat("░", barWidth-filled), color, percent)
}

// motdLines turns a formatted MOTD into at most two plain lines of width
// cells, escaped for tview.
func motdLines(motd string, width int) []string {
	plain := minecraft.StripFormatting(motd)
	var out []string
	for _, line := range strings.Split(plain, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		out = append(out, tview.Escape(truncate(line, width)))
		if len(out) == 2 {
			break
		}
	}
	return out
}

func compatLabel(c *bool) string {
	switch {
	case c == nil:
		return "[gray]-[-]"
	case *c:
		return "[green]yes[-]"
	default:
		return "[red]no[-]"
	}
}

// nodeRow renders one node as table cells: status, name, IPs, CPU, memory,
// ping, version, compatible.
func nodeRow(n status.NodeStatus) []string {
	icon := "[green]●[-]"
	if !n.Online {
		icon = "[gray]○[-]"
	}

	name := n.Name
	if name == "" {
		name = n.Hostname
	}
	if n.Self {
		name += " [gray](self)[-]"
	}

	ips := "-"
	if len(n.IPs) > 0 {
		ips = truncate(strings.Join(n.IPs, ", "), 32)
	}

	if !n.Online {
		reason := n.Error
		if reason == "" {
			reason = "offline"
		}
		return []string{icon, name, ips, "[red]" + tview.Escape(truncate(reason, 40)) + "[-]", "", "", "", ""}
	}

	var used uint64
	if n.Memory.Total > n.Memory.Available {
		used = n.Memory.Total - n.Memory.Available
	}
	pct := n.Memory.Usage * 100
	memory := fmt.Sprintf("[%s]%.0f%%[-] [gray](%d / %d MB)[-]", usageColor(pct), pct, used, n.Memory.Total)

	version := n.Version
	if version == "" {
		version = "-"
	}

	return []string{
		icon,
		name,
		ips,
		progressBar(n.CPU),
		memory,
		fmt.Sprintf("%d ms", n.Ping),
		version,
		compatLabel(n.Compatible),
	}
}

// gameText renders the game server panel.
func gameText(g *GameServer, width int) string {
	if g == nil {
		return " [gray]No game server configured[-]"
	}

	var sb strings.Builder
	addr := fmt.Sprintf("%s:%d", g.IP, g.Port)
	if g.Domain != "" {
		addr = g.Domain + " [gray](" + addr + ")[-]"
	}
	sb.WriteString(fmt.Sprintf(" [yellow]Server:[-]  %s %s\n", tview.Escape(g.Name), addr))

	if !g.Online {
		sb.WriteString(fmt.Sprintf(" [yellow]Status:[-]  [red]✗ offline[-] [gray]%s[-]", tview.Escape(truncate(g.Error, width))))
		return sb.String()
	}

	sb.WriteString(" [yellow]Status:[-]  [green]● online[-]\n")
	sb.WriteString(fmt.Sprintf(" [yellow]Players:[-] %d / %d\n", g.Players.Online, g.Players.Max))
	sb.WriteString(fmt.Sprintf(" [yellow]Version:[-] %s [gray](protocol %d)[-]\n", tview.Escape(g.Version.Name), g.Version.Protocol))
	sb.WriteString(fmt.Sprintf(" [yellow]Ping:[-]    %d ms\n", g.Ping))
	for _, line := range motdLines(g.MOTD, width) {
		sb.WriteString("   " + line + "\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

// mediaText renders the media server panel.
func mediaText(m *MediaServer) string {
	if m == nil {
		return " [gray]No media server configured[-]"
	}
	if !m.Online {
		return fmt.Sprintf(" [yellow]Server:[-] %s\n [yellow]Status:[-] [red]✗ offline[-] [gray]%s[-]",
			tview.Escape(m.Name), tview.Escape(m.Error))
	}
	return fmt.Sprintf(" [yellow]Server:[-]  %s\n [yellow]Status:[-]  [green]● online[-]\n [yellow]Version:[-] %s\n [yellow]OS:[-]      %s",
		tview.Escape(m.ServerName), tview.Escape(m.Version), tview.Escape(m.OS))
}
