package cmd

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abhisek/lexiz/internal/llm"
	"github.com/abhisek/lexiz/internal/store"
)

var llmCmd = &cobra.Command{
	Use:   "llm",
	Short: "Inspect recorded LLM requests",
}

// llmEvent is one decoded llm_request event.
type llmEvent struct {
	store.Event
	llm.RequestEvent
}

func loadLLMEvents(cmd *cobra.Command, q store.EventQuery) ([]llmEvent, error) {
	d, err := openDeps(cmd, depsOpts{})
	if err != nil {
		return nil, err
	}
	defer d.Close()

	q.Kind = llm.EventRequest
	evs, err := d.events.Events(cmd.Context(), q)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	out := make([]llmEvent, 0, len(evs))
	for _, ev := range evs {
		var re llm.RequestEvent
		if err := json.Unmarshal(ev.Data, &re); err != nil {
			log.Warn("skipping malformed llm event", "seq", ev.Sequence, "error", err)
			continue
		}
		out = append(out, llmEvent{Event: ev, RequestEvent: re})
	}
	return out, nil
}

var llmListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent LLM requests",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		purpose, _ := cmd.Flags().GetString("purpose")

		events, err := loadLLMEvents(cmd, store.EventQuery{})
		if err != nil {
			return err
		}
		if purpose != "" {
			kept := events[:0]
			for _, e := range events {
				if e.Purpose == purpose {
					kept = append(kept, e)
				}
			}
			events = kept
		}
		if len(events) == 0 {
			fmt.Println("No LLM events found.")
			return nil
		}
		if limit > 0 && len(events) > limit {
			events = events[len(events)-limit:]
		}

		fmt.Printf("%-5s  %-19s  %-10s  %-28s  %-6s  %-6s  %-7s  %s\n",
			"ID", "Timestamp", "Purpose", "Model", "In", "Out", "Ms", "OK")
		fmt.Println(strings.Repeat("─", 96))
		for _, e := range events {
			ok := "✓"
			if !e.Success {
				ok = "✗"
			}
			fmt.Printf("%-5d  %-19s  %-10s  %-28s  %-6d  %-6d  %-7d  %s\n",
				e.Sequence,
				e.CreatedAt.Local().Format("2006-01-02 15:04:05"),
				truncate(e.Purpose, 10),
				truncate(e.Model, 28),
				e.InputTokens, e.OutputTokens, e.LatencyMs, ok)
		}
		return nil
	},
}

var llmViewCmd = &cobra.Command{
	Use:   "view <id>",
	Short: "View the full request and response of one LLM event",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var id int64
		if _, err := fmt.Sscanf(args[0], "%d", &id); err != nil || id < 1 {
			return fmt.Errorf("invalid ID %q", args[0])
		}

		events, err := loadLLMEvents(cmd, store.EventQuery{After: id - 1, Limit: 1})
		if err != nil {
			return err
		}
		if len(events) == 0 || events[0].Sequence != id {
			return fmt.Errorf("event %d not found", id)
		}
		e := events[0]

		sep := strings.Repeat("─", 60)
		fmt.Printf("ID:        %d\n", e.Sequence)
		fmt.Printf("Time:      %s\n", e.CreatedAt.Local().Format("2006-01-02 15:04:05"))
		fmt.Printf("User:      %s\n", e.Owner)
		fmt.Printf("Model:     %s\n", e.Model)
		fmt.Printf("Purpose:   %s\n", e.Purpose)
		fmt.Printf("Tokens:    %d in / %d out\n", e.InputTokens, e.OutputTokens)
		fmt.Printf("Latency:   %dms\n", e.LatencyMs)
		fmt.Printf("Success:   %v\n", e.Success)
		if e.Error != "" {
			fmt.Printf("Error:     %s\n", e.Error)
		}

		for _, part := range []struct{ title, body string }{
			{"REQUEST", e.Request},
			{"RESPONSE", e.Response},
		} {
			fmt.Println()
			fmt.Println(sep)
			fmt.Println(part.title)
			fmt.Println(sep)
			if part.body == "" {
				fmt.Println("(not captured)")
				continue
			}
			fmt.Println(part.body)
		}
		return nil
	},
}

var llmStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show token usage by purpose and model",
	RunE: func(cmd *cobra.Command, args []string) error {
		events, err := loadLLMEvents(cmd, store.EventQuery{})
		if err != nil {
			return err
		}
		if len(events) == 0 {
			fmt.Println("No LLM usage recorded yet.")
			return nil
		}

		type usage struct {
			calls, failed, in, out int
			latency                int64
		}
		byKey := func(key func(llmEvent) string) ([]string, map[string]*usage) {
			m := make(map[string]*usage)
			for _, e := range events {
				u, ok := m[key(e)]
				if !ok {
					u = &usage{}
					m[key(e)] = u
				}
				u.calls++
				if !e.Success {
					u.failed++
				}
				u.in += e.InputTokens
				u.out += e.OutputTokens
				u.latency += e.LatencyMs
			}
			keys := make([]string, 0, len(m))
			for k := range m {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			return keys, m
		}

		for _, group := range []struct {
			title string
			key   func(llmEvent) string
		}{
			{"Purpose", func(e llmEvent) string { return e.Purpose }},
			{"Model", func(e llmEvent) string { return e.Model }},
		} {
			keys, m := byKey(group.key)
			fmt.Printf("%-28s  %6s  %6s  %10s  %10s  %8s\n",
				group.title, "Calls", "Failed", "Input", "Output", "Avg Ms")
			fmt.Println(strings.Repeat("─", 78))
			for _, k := range keys {
				u := m[k]
				fmt.Printf("%-28s  %6d  %6d  %10d  %10d  %8d\n",
					truncate(k, 28), u.calls, u.failed, u.in, u.out, u.latency/int64(u.calls))
			}
			fmt.Println()
		}
		return nil
	},
}

// truncate cuts s to at most max runes.
func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}

func init() {
	llmListCmd.Flags().IntP("limit", "n", 20, "Number of events to show")
	llmListCmd.Flags().StringP("purpose", "p", "", "Filter by purpose (e.g. hint)")

	llmCmd.AddCommand(llmListCmd)
	llmCmd.AddCommand(llmViewCmd)
	llmCmd.AddCommand(llmStatsCmd)
}
