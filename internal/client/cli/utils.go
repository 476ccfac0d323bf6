package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dmitrijs2005/moodkeeper/internal/client/models"
	"github.com/dmitrijs2005/moodkeeper/internal/client/services"
	"github.com/fatih/color"
)

// now is a test seam for the current time.
var now = time.Now

var (
	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow)
	red    = color.New(color.FgRed)
	cyan   = color.New(color.FgCyan)
	faint  = color.New(color.Faint)
)

// resolveDate turns "", "today", "yesterday" or YYYY-MM-DD into a date id.
func resolveDate(s string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "today":
		return models.DateIDFor(now()), nil
	case "yesterday":
		return models.DateIDFor(now().AddDate(0, 0, -1)), nil
	}
	if err := models.ValidateDateID(s); err != nil {
		return "", err
	}
	return s, nil
}

func printSaved(w io.Writer, what, dateID string, res services.SaveResult) {
	if res.Synced {
		green.Fprintf(w, "Saved %s for %s (synced)\n", what, dateID)
		return
	}
	yellow.Fprintf(w, "Saved %s for %s (queued for sync)\n", what, dateID)
}

func formatTime(ms int64) string {
	if ms == 0 {
		return "-"
	}
	return time.UnixMilli(ms).Local().Format("2006-01-02 15:04")
}

// firstLine shortens text for list views.
func firstLine(text string, limit int) string {
	line, _, cut := strings.Cut(strings.TrimSpace(text), "\n")
	if r := []rune(line); len(r) > limit {
		return string(r[:limit-1]) + "…"
	}
	if cut {
		return line + " …"
	}
	return line
}

func moodLine(m models.MoodLog) string {
	return fmt.Sprintf("%s  %s %d/%d", m.DateID, models.MoodEmoji(m.Mood), m.Mood, models.MoodMax)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
