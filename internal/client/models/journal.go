// Package models defines the journal records kept in the local store, the
// outbox operation with its status machine, and the outbox payload format.
package models

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/dmitrijs2005/moodkeeper/internal/common"
)

// Mood bounds.
const (
	MoodMin = 1
	MoodMax = 5
)

// MaxReflectionWords caps the length of one reflection.
const MaxReflectionWords = 50

// DiaryEntry is the single free-text entry of a calendar day.
type DiaryEntry struct {
	DateID    string
	Text      string
	UpdatedAt int64 // epoch ms
}

// MoodLog is the single mood score of a calendar day.
type MoodLog struct {
	DateID    string
	Mood      int
	UpdatedAt int64 // epoch ms
}

// Reflection is one short note; a day may hold any number of them.
type Reflection struct {
	ID        string
	DateID    string
	Text      string
	UpdatedAt int64 // epoch ms
}

// DateIDFor formats t as a date id in t's location.
func DateIDFor(t time.Time) string {
	return t.Format(common.DateLayout)
}

// ValidateDateID checks the YYYY-MM-DD form.
func ValidateDateID(id string) error {
	if _, err := time.Parse(common.DateLayout, id); err != nil {
		return fmt.Errorf("%w: date %q must be YYYY-MM-DD", common.ErrValidation, id)
	}
	return nil
}

// ValidateMood checks that m is within [MoodMin, MoodMax].
func ValidateMood(m int) error {
	if m < MoodMin || m > MoodMax {
		return fmt.Errorf("%w: mood %d out of range %d..%d", common.ErrValidation, m, MoodMin, MoodMax)
	}
	return nil
}

// WordCount counts whitespace separated words.
func WordCount(s string) int {
	return len(strings.Fields(s))
}

// ValidateReflection requires between 1 and MaxReflectionWords words.
func ValidateReflection(text string) error {
	n := WordCount(text)
	switch {
	case n == 0:
		return fmt.Errorf("%w: reflection is empty", common.ErrValidation)
	case n > MaxReflectionWords:
		return fmt.Errorf("%w: reflection has %d words, limit is %d", common.ErrValidation, n, MaxReflectionWords)
	}
	return nil
}

// MoodPercent maps the average of logs onto 0..100, where an average of
// MoodMin is 0 and MoodMax is 100. No logs yields 0.
func MoodPercent(logs []MoodLog) int {
	if len(logs) == 0 {
		return 0
	}
	sum := 0
	for _, l := range logs {
		sum += l.Mood
	}
	avg := float64(sum) / float64(len(logs))
	return int(math.Round((avg - MoodMin) / (MoodMax - MoodMin) * 100))
}

// MoodEmoji returns the face shown next to a mood score.
func MoodEmoji(m int) string {
	switch m {
	case 1:
		return "😞"
	case 2:
		return "😕"
	case 3:
		return "😐"
	case 4:
		return "🙂"
	case 5:
		return "😄"
	default:
		return "—"
	}
}
