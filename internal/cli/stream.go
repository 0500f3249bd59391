package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/trickstertwo/xstream"
)

// newTrimCommand constructs the `trim` command group.
func newTrimCommand(open Opener) *cobra.Command {
	trimCmd := &cobra.Command{Use: "trim", Short: "Apply retention to a stream"}
	trimCmd.PersistentFlags().String("stream", "", "Stream")
	trimCmd.PersistentFlags().Bool("approx", false, "Let the engine trim at node granularity")

	maxLenCmd := &cobra.Command{
		Use:   "maxlen",
		Short: "Keep at most --count newest entries",
		RunE: func(cmd *cobra.Command, _ []string) error {
			stream, _ := cmd.Flags().GetString("stream")
			approx, _ := cmd.Flags().GetBool("approx")
			count, _ := cmd.Flags().GetInt64("count")
			return withClient(cmd, open, func(c *xstream.Client) error {
				n, err := c.TrimToMaxLength(cmd.Context(), stream, count, approx)
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "trimmed:", n)
				return nil
			})
		},
	}
	maxLenCmd.Flags().Int64("count", xstream.DefaultMaxLen, "Entries to keep")

	minIDCmd := &cobra.Command{
		Use:   "minid",
		Short: "Remove entries with an id lower than --id",
		RunE: func(cmd *cobra.Command, _ []string) error {
			stream, _ := cmd.Flags().GetString("stream")
			approx, _ := cmd.Flags().GetBool("approx")
			id, _ := cmd.Flags().GetString("id")
			return withClient(cmd, open, func(c *xstream.Client) error {
				n, err := c.TrimToMinID(cmd.Context(), stream, id, approx)
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "trimmed:", n)
				return nil
			})
		},
	}
	minIDCmd.Flags().String("id", "", "Lowest id to keep")

	trimCmd.AddCommand(maxLenCmd, minIDCmd)
	return trimCmd
}

// newRangeCommand constructs the `range` command.
func newRangeCommand(open Opener) *cobra.Command {
	rangeCmd := &cobra.Command{
		Use:   "range",
		Short: "Print stream entries between two ids as JSON lines",
		RunE: func(cmd *cobra.Command, _ []string) error {
			stream, _ := cmd.Flags().GetString("stream")
			start, _ := cmd.Flags().GetString("start")
			end, _ := cmd.Flags().GetString("end")
			return withClient(cmd, open, func(c *xstream.Client) error {
				entries, err := c.Range(cmd.Context(), stream, start, end)
				if err != nil {
					return err
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				for _, e := range entries {
					if err := enc.Encode(entryJSON{ID: e.ID, Fields: e.Fields}); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
	rangeCmd.Flags().String("stream", "", "Stream")
	rangeCmd.Flags().String("start", "-", "Lowest id, - for the beginning")
	rangeCmd.Flags().String("end", "+", "Highest id, + for the end")
	return rangeCmd
}

// newProduceCommand constructs the `produce` command.
func newProduceCommand(open Opener) *cobra.Command {
	produceCmd := &cobra.Command{
		Use:   "produce",
		Short: "Append one entry built from --field key=value pairs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			stream, _ := cmd.Flags().GetString("stream")
			pairs, _ := cmd.Flags().GetStringArray("field")
			maxLen, _ := cmd.Flags().GetInt64("max-len")
			approx, _ := cmd.Flags().GetBool("approx")

			fields, err := parseFields(pairs)
			if err != nil {
				return err
			}
			return withClient(cmd, open, func(c *xstream.Client) error {
				id, err := c.Append(cmd.Context(), stream, fields, xstream.Retention{MaxLen: maxLen, Approximate: approx})
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "id:", id)
				return nil
			})
		},
	}
	produceCmd.Flags().String("stream", "", "Stream")
	produceCmd.Flags().StringArray("field", nil, "Field as key=value (repeatable)")
	produceCmd.Flags().Int64("max-len", xstream.DefaultMaxLen, "Retention bound, 0 for unbounded")
	produceCmd.Flags().Bool("approx", true, "Approximate retention")
	return produceCmd
}

// newHealthCommand constructs the `health` command.
func newHealthCommand(open Opener) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Ping the engine and print the client health",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withClient(cmd, open, func(c *xstream.Client) error {
				h := c.Health(cmd.Context())
				if err := json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]any{
					"status":  h.Status,
					"message": h.Message,
				}); err != nil {
					return err
				}
				if h.Status == "unhealthy" {
					return errors.New(h.Message)
				}
				return nil
			})
		},
	}
}

// newFlushCommand constructs the `flush` command.
func newFlushCommand(open Opener) *cobra.Command {
	flushCmd := &cobra.Command{
		Use:   "flush",
		Short: "Delete every key of the engine (tests and local setups)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			yes, _ := cmd.Flags().GetBool("yes")
			if !yes {
				return errors.New("refusing to flush without --yes")
			}
			return withClient(cmd, open, func(c *xstream.Client) error {
				if err := c.FlushAll(cmd.Context()); err != nil {
					return err
				}
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "status:", "OK")
				return nil
			})
		},
	}
	flushCmd.Flags().Bool("yes", false, "Confirm deleting all data")
	return flushCmd
}

type entryJSON struct {
	ID       string         `json:"id"`
	Consumer string         `json:"consumer,omitempty"`
	Claimed  bool           `json:"claimed,omitempty"`
	Fields   xstream.Fields `json:"fields"`
}

// parseFields turns key=value pairs into a field map.
func parseFields(pairs []string) (xstream.Fields, error) {
	fields := make(xstream.Fields, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid field %q; expected key=value", p)
		}
		fields[k] = v
	}
	return fields, nil
}
