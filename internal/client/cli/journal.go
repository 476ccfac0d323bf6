package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/moodkeeper/internal/client/models"
	"github.com/dmitrijs2005/moodkeeper/internal/client/services"
	"github.com/spf13/cobra"
)

const defaultListLimit = 14

func newDiaryCmd(st *cliState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "diary",
		Short: "Write and read the daily diary",
	}

	var date string
	write := &cobra.Command{
		Use:   "write <text...>",
		Short: "Replace the diary text of a day",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dateID, err := resolveDate(date)
			if err != nil {
				return err
			}
			res, err := st.app.journal.SaveDiary(cmd.Context(), dateID, strings.Join(args, " "))
			if err != nil {
				return err
			}
			printSaved(cmd.OutOrStdout(), "diary", dateID, res)
			return nil
		},
	}
	write.Flags().StringVarP(&date, "date", "d", "", "day to write (YYYY-MM-DD, today, yesterday)")

	show := &cobra.Command{
		Use:   "show [date]",
		Short: "Print the diary of a day",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dateID, err := resolveDate(optArg(args))
			if err != nil {
				return err
			}
			e, err := st.app.journal.Diary(cmd.Context(), dateID)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if e == nil {
				faint.Fprintf(w, "No diary for %s\n", dateID)
				return nil
			}
			cyan.Fprintf(w, "%s", e.DateID)
			faint.Fprintf(w, "  (updated %s)\n", formatTime(e.UpdatedAt))
			fmt.Fprintln(w, e.Text)
			return nil
		},
	}

	var limit int
	var withText bool
	list := &cobra.Command{
		Use:   "list",
		Short: "List recent diary entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()
			if withText {
				days, err := st.app.journal.DiaryDays(cmd.Context(), limit)
				if err != nil {
					return err
				}
				for _, d := range days {
					fmt.Fprintln(w, d)
				}
				return nil
			}
			entries, err := st.app.journal.RecentDiary(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				faint.Fprintln(w, "No diary entries")
			}
			for _, e := range entries {
				cyan.Fprintf(w, "%s  ", e.DateID)
				fmt.Fprintln(w, firstLine(e.Text, 60))
			}
			return nil
		},
	}
	list.Flags().IntVarP(&limit, "limit", "n", defaultListLimit, "number of days")
	list.Flags().BoolVar(&withText, "days", false, "print only the dates that have text")

	cmd.AddCommand(write, show, list)
	return cmd
}

func newMoodCmd(st *cliState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mood",
		Short: "Log and review the daily mood",
	}

	var date string
	set := &cobra.Command{
		Use:   "set <1-5>",
		Short: "Set the mood of a day",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mood, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("mood must be a number from %d to %d", models.MoodMin, models.MoodMax)
			}
			dateID, err := resolveDate(date)
			if err != nil {
				return err
			}
			res, err := st.app.journal.SaveMood(cmd.Context(), dateID, mood)
			if err != nil {
				return err
			}
			printSaved(cmd.OutOrStdout(), "mood "+models.MoodEmoji(mood), dateID, res)
			return nil
		},
	}
	set.Flags().StringVarP(&date, "date", "d", "", "day to set (YYYY-MM-DD, today, yesterday)")

	show := &cobra.Command{
		Use:   "show [date]",
		Short: "Print the mood of a day",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dateID, err := resolveDate(optArg(args))
			if err != nil {
				return err
			}
			m, err := st.app.journal.Mood(cmd.Context(), dateID)
			if err != nil {
				return err
			}
			if m == nil {
				faint.Fprintf(cmd.OutOrStdout(), "No mood for %s\n", dateID)
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), moodLine(*m))
			return nil
		},
	}

	var limit int
	list := &cobra.Command{
		Use:   "list",
		Short: "List recent moods",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logs, err := st.app.journal.RecentMoods(cmd.Context(), limit)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if len(logs) == 0 {
				faint.Fprintln(w, "No moods logged")
			}
			for _, m := range logs {
				fmt.Fprintln(w, moodLine(m))
			}
			return nil
		},
	}
	list.Flags().IntVarP(&limit, "limit", "n", defaultListLimit, "number of days")

	var days int
	summary := &cobra.Command{
		Use:   "summary",
		Short: "Average of the recent moods as a percentage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pct, logs, err := st.app.journal.MoodSummary(cmd.Context(), days)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if len(logs) == 0 {
				faint.Fprintln(w, "No moods logged")
				return nil
			}
			c := green
			switch {
			case pct < 40:
				c = red
			case pct < 70:
				c = yellow
			}
			c.Fprintf(w, "%d%%", pct)
			fmt.Fprintf(w, " over the last %d logged days\n", len(logs))
			return nil
		},
	}
	summary.Flags().IntVarP(&days, "days", "n", services.DefaultSummaryDays, "number of logged days to average")

	cmd.AddCommand(set, show, list, summary)
	return cmd
}

func newReflectCmd(st *cliState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reflect",
		Short: "Add and read short reflections",
	}

	var date string
	add := &cobra.Command{
		Use:   "add <text...>",
		Short: fmt.Sprintf("Add a reflection of at most %d words", models.MaxReflectionWords),
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dateID, err := resolveDate(date)
			if err != nil {
				return err
			}
			res, err := st.app.journal.AddReflection(cmd.Context(), dateID, strings.Join(args, " "))
			if err != nil {
				return err
			}
			printSaved(cmd.OutOrStdout(), "reflection", dateID, res)
			return nil
		},
	}
	add.Flags().StringVarP(&date, "date", "d", "", "day of the reflection (YYYY-MM-DD, today, yesterday)")

	list := &cobra.Command{
		Use:   "list [date]",
		Short: "Print the reflections of a day",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dateID, err := resolveDate(optArg(args))
			if err != nil {
				return err
			}
			refl, err := st.app.journal.Reflections(cmd.Context(), dateID)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if len(refl) == 0 {
				faint.Fprintf(w, "No reflections for %s\n", dateID)
			}
			for _, r := range refl {
				faint.Fprintf(w, "%s  ", formatTime(r.UpdatedAt))
				fmt.Fprintln(w, r.Text)
			}
			return nil
		},
	}

	var limit int
	days := &cobra.Command{
		Use:   "days",
		Short: "List the recent days that have reflections",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := st.app.journal.ReflectionDays(cmd.Context(), limit)
			if err != nil {
				return err
			}
			for _, d := range list {
				fmt.Fprintln(cmd.OutOrStdout(), d)
			}
			return nil
		},
	}
	days.Flags().IntVarP(&limit, "limit", "n", defaultListLimit, "number of days")

	cmd.AddCommand(add, list, days)
	return cmd
}

func optArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}
