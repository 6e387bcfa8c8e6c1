package main

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/locu5t/civicomfy-go/internal/domain"
)

var (
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))             // green
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))             // red
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))            // yellow
	pendingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))            // blue
	infoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))            // cyan
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))           // grey
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("69")) // purple
)

func statusStyle(s domain.DownloadStatus) lipgloss.Style {
	switch s {
	case domain.StatusCompleted:
		return successStyle
	case domain.StatusFailed:
		return errorStyle
	case domain.StatusCancelled:
		return warningStyle
	case domain.StatusDownloading, domain.StatusStarting:
		return infoStyle
	default:
		return pendingStyle
	}
}

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(mutedStyle).
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == 0 {
				return headerStyle.Copy().Padding(0, 1)
			}
			return lipgloss.NewStyle().Padding(0, 1)
		})
}

func renderTasks(title string, tasks []domain.Download) string {
	var b strings.Builder
	b.WriteString(headerStyle.Render(fmt.Sprintf("%s (%d)", title, len(tasks))))
	b.WriteString("\n")
	if len(tasks) == 0 {
		b.WriteString(mutedStyle.Render("  none"))
		b.WriteString("\n")
		return b.String()
	}

	t := newTable("ID", "FILE", "STATUS", "PROGRESS", "SPEED", "ERROR")
	for _, d := range tasks {
		t.Row(
			truncate(d.ID, 32),
			truncate(d.Filename, 32),
			statusStyle(d.Status).Render(string(d.Status)),
			fmt.Sprintf("%.1f%%", d.Progress),
			formatSpeed(d.Speed),
			truncate(d.Error(), 40),
		)
	}
	b.WriteString(t.String())
	b.WriteString("\n")
	return b.String()
}

func renderStatus(snap *domain.StatusSnapshot) string {
	return renderTasks("Active", snap.Active) + renderTasks("Queued", snap.Queue) + renderTasks("Recent", snap.History)
}

func renderHistory(records []domain.ArchiveRecord) string {
	if len(records) == 0 {
		return mutedStyle.Render("No archived downloads") + "\n"
	}
	t := newTable("ID", "NAME", "STATUS", "SIZE", "ENDED")
	for _, r := range records {
		name := r.Name
		if name == "" {
			name = r.Filename
		}
		ended := ""
		if r.EndedAt != nil {
			ended = r.EndedAt.Local().Format("2006-01-02 15:04")
		}
		t.Row(
			truncate(r.ID, 32),
			truncate(name, 40),
			statusStyle(r.Status).Render(string(r.Status)),
			formatBytes(r.SizeBytes),
			ended,
		)
	}
	return t.String() + "\n"
}

func renderDownload(d *domain.Download) string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("Download Details") + "\n")
	fmt.Fprintf(&b, "  ID:          %s\n", d.ID)
	fmt.Fprintf(&b, "  URL:         %s\n", d.URL)
	fmt.Fprintf(&b, "  Output:      %s\n", d.OutputPath)
	fmt.Fprintf(&b, "  Connections: %d\n", d.Connections)
	fmt.Fprintf(&b, "  Status:      %s\n", statusStyle(d.Status).Render(string(d.Status)))
	fmt.Fprintf(&b, "  Progress:    %.1f%%\n", d.Progress)
	if d.Metadata.Name != "" {
		fmt.Fprintf(&b, "  Name:        %s\n", d.Metadata.Name)
	}
	if msg := d.Error(); msg != "" {
		fmt.Fprintf(&b, "  Error:       %s\n", errorStyle.Render(msg))
	}
	return b.String()
}

// formatBytes renders n with a binary unit suffix
func formatBytes(n int64) string {
	if n <= 0 {
		return "-"
	}
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

func formatSpeed(bps float64) string {
	if bps <= 0 {
		return "-"
	}
	return formatBytes(int64(bps)) + "/s"
}

func truncate(s string, maxLen int) string {
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	return string([]rune(s)[:maxLen-3]) + "..."
}
