package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/spf13/cobra"
)

// BaseURLFunc provides the base HTTP API URL (e.g., from env or flag).
type BaseURLFunc func() string

// NewEventCommand constructs the `event` command group and subcommands.
func NewEventCommand(baseURL BaseURLFunc) *cobra.Command {
	eventCmd := &cobra.Command{Use: "event", Short: "Event operations"}

	eventCmd.AddCommand(
		newEventPublishCommand(baseURL),
		newEventTailCommand(baseURL),
		newEventRecentCommand(baseURL),
		newEventStatsCommand(baseURL),
	)

	return eventCmd
}

// newEventPublishCommand constructs the `event publish` subcommand.
func newEventPublishCommand(baseURL BaseURLFunc) *cobra.Command {
	publishCmd := &cobra.Command{
		Use:   "publish",
		Short: "Publish one event to the relay",
		RunE: func(cmd *cobra.Command, _ []string) error {
			event, _ := cmd.Flags().GetString("event")
			origin, _ := cmd.Flags().GetString("origin")
			payloadStr, _ := cmd.Flags().GetString("payload")

			var payload map[string]any
			if payloadStr != "" {
				if err := json.Unmarshal([]byte(payloadStr), &payload); err != nil {
					return fmt.Errorf("invalid --payload; expected a JSON object: %w", err)
				}
			}
			body, _ := json.Marshal(map[string]any{
				"event":   event,
				"origin":  origin,
				"payload": payload,
			})
			resp, err := http.Post(baseURL()+"/v1/events/ingest", "application/json", bytes.NewReader(body))
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusAccepted {
				b, _ := io.ReadAll(resp.Body)
				return fmt.Errorf("relay returned %s: %s", resp.Status, bytes.TrimSpace(b))
			}
			_, err = io.Copy(cmd.OutOrStdout(), resp.Body)
			return err
		},
	}
	publishCmd.Flags().String("event", "", "Event tag (required)")
	publishCmd.Flags().String("origin", "cli", "Origin identifier")
	publishCmd.Flags().String("payload", "", "Payload as a JSON object")
	_ = publishCmd.MarkFlagRequired("event")
	return publishCmd
}

// newEventTailCommand constructs the `event tail` subcommand.
func newEventTailCommand(baseURL BaseURLFunc) *cobra.Command {
	tailCmd := &cobra.Command{
		Use:   "tail",
		Short: "Tail the relay stream (replay then live)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			filter, _ := cmd.Flags().GetString("filter")
			limit, _ := cmd.Flags().GetInt("limit")

			u := baseURL() + "/v1/events/stream"
			if filter != "" {
				u += "?filter=" + url.QueryEscape(filter)
			}
			req, err := http.NewRequestWithContext(cmd.Context(), http.MethodGet, u, nil)
			if err != nil {
				return err
			}
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				b, _ := io.ReadAll(resp.Body)
				return fmt.Errorf("relay returned %s: %s", resp.Status, bytes.TrimSpace(b))
			}

			out := cmd.OutOrStdout()
			seen := 0
			return readSSE(resp.Body, func(f sseFrame) (bool, error) {
				if f.Data == "" {
					return true, nil
				}
				if f.Event == "stream-gap" {
					fmt.Fprintf(out, "-- gap: %s\n", f.Data)
					return true, nil
				}
				fmt.Fprintln(out, f.Data)
				seen++
				return limit <= 0 || seen < limit, nil
			})
		},
	}
	tailCmd.Flags().String("filter", "", "CEL filter (server-side)")
	tailCmd.Flags().Int("limit", 0, "Stop after N events (0 = infinite)")
	return tailCmd
}

// newEventRecentCommand constructs the `event recent` subcommand.
func newEventRecentCommand(baseURL BaseURLFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "recent",
		Short: "Print the relay's replay buffer",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return getJSON(cmd, baseURL()+"/v1/events/recent")
		},
	}
}

// newEventStatsCommand constructs the `event stats` subcommand.
func newEventStatsCommand(baseURL BaseURLFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print relay counters",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return getJSON(cmd, baseURL()+"/v1/events/stats")
		},
	}
}

func getJSON(cmd *cobra.Command, u string) error {
	req, err := http.NewRequestWithContext(cmd.Context(), http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("relay returned %s", strconv.Itoa(resp.StatusCode))
	}
	_, err = io.Copy(cmd.OutOrStdout(), resp.Body)
	return err
}
