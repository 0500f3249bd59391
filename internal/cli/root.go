// Package cli contains the Cobra commands of the xstream tool.
package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/trickstertwo/xlog"

	"github.com/trickstertwo/xstream"
	"github.com/trickstertwo/xstream/adapter/memory"
	"github.com/trickstertwo/xstream/adapter/redisstream"
)

// Opener returns a ready client for one command invocation. The command
// closes it when done.
type Opener func(cmd *cobra.Command) (*xstream.Client, error)

// NewRoot constructs the root command with every subcommand registered.
func NewRoot(open Opener) *cobra.Command {
	root := &cobra.Command{
		Use:           "xstream",
		Short:         "Inspect and drive Redis Streams consumer groups",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("engine", redisstream.EngineName, "Engine: redis-streams|memory")
	root.PersistentFlags().String("config", "", "YAML config file for the redis engine")

	root.AddCommand(
		newGroupCommand(open),
		newPendingCommand(open),
		newTrimCommand(open),
		newRangeCommand(open),
		newProduceCommand(open),
		newConsumeCommand(open),
		newHealthCommand(open),
		newFlushCommand(open),
	)
	return root
}

// DefaultOpener builds a client from the --engine and --config flags.
// Environment variables with the XSTREAM_REDIS_ prefix override the file.
func DefaultOpener(logger *xlog.Logger) Opener {
	return func(cmd *cobra.Command) (*xstream.Client, error) {
		engine, _ := cmd.Flags().GetString("engine")
		path, _ := cmd.Flags().GetString("config")

		switch engine {
		case memory.EngineName:
			return memory.New(memory.Config{}, memory.WithLogger(logger))
		case redisstream.EngineName, "":
			cfg, err := redisstream.LoadConfig(path)
			if err != nil {
				return nil, err
			}
			return redisstream.New(cfg, redisstream.WithLogger(logger))
		default:
			return nil, fmt.Errorf("unknown engine %q", engine)
		}
	}
}

// withClient opens a client, runs fn and closes the client afterwards.
func withClient(cmd *cobra.Command, open Opener, fn func(*xstream.Client) error) error {
	c, err := open(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = c.Close(context.Background()) }()
	return fn(c)
}
