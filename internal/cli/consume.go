package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/trickstertwo/xstream"
	"github.com/trickstertwo/xstream/observer/promobserver"
)

// newConsumeCommand constructs the `consume` command. Every received entry is
// printed as a JSON line and acknowledged.
func newConsumeCommand(open Opener) *cobra.Command {
	consumeCmd := &cobra.Command{
		Use:   "consume",
		Short: "Consume a stream through a consumer group",
		RunE: func(cmd *cobra.Command, _ []string) error {
			stream, _ := cmd.Flags().GetString("stream")
			group, _ := cmd.Flags().GetString("group")
			prefix, _ := cmd.Flags().GetString("consumer-prefix")
			workers, _ := cmd.Flags().GetInt("workers")
			limit, _ := cmd.Flags().GetInt64("limit")
			block, _ := cmd.Flags().GetDuration("block")
			claimIdle, _ := cmd.Flags().GetDuration("claim-idle")
			metricsAddr, _ := cmd.Flags().GetString("metrics-addr")
			if workers < 1 {
				return fmt.Errorf("invalid --workers %d", workers)
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			return withClient(cmd, open, func(c *xstream.Client) error {
				if metricsAddr != "" {
					stop := serveMetrics(c, metricsAddr)
					defer stop()
				}
				if err := c.CreateGroup(ctx, stream, group); err != nil {
					return err
				}

				out := &entryWriter{enc: json.NewEncoder(cmd.OutOrStdout())}
				var seen atomic.Int64
				handler := func(ctx context.Context, d xstream.Delivery, _ struct{}) (struct{}, error) {
					r, ok := d.(xstream.Received)
					if !ok {
						return struct{}{}, nil
					}
					if err := out.write(entryJSON{ID: r.ID, Consumer: r.Consumer(), Claimed: r.Claimed, Fields: r.Fields}); err != nil {
						return struct{}{}, err
					}
					if n := seen.Add(1); limit > 0 && n >= limit {
						cancel()
					}
					return struct{}{}, nil
				}

				opts := []xstream.ConsumerOption{xstream.WithBlock(block)}
				if claimIdle > 0 {
					opts = append(opts, xstream.WithAutoClaim(claimIdle))
				}

				wg := xstream.NewWorkerGroup("xstream-consume", c.Logger(), xstream.GroupConfig{})
				for i := 0; i < workers; i++ {
					// stable per worker; the pending list is keyed by it
					name := xstream.UUIDConsumerNames(prefix)()
					cons, err := xstream.NewConsumer(c, stream, group, handler, append(opts, xstream.WithConsumerName(name))...)
					if err != nil {
						return err
					}
					wg.Add(xstream.NewWorker(name, cons.Runner(struct{}{}), xstream.WithWorkerLogger(c.Logger())))
				}

				err := <-wg.ServeBackground(ctx)
				if ctx.Err() != nil {
					return nil
				}
				return err
			})
		},
	}
	consumeCmd.Flags().String("stream", "", "Stream")
	consumeCmd.Flags().String("group", "", "Consumer group (created when missing)")
	consumeCmd.Flags().String("consumer-prefix", "xstream-", "Prefix of generated consumer names")
	consumeCmd.Flags().Int("workers", 1, "Concurrent consumers")
	consumeCmd.Flags().Int64("limit", 0, "Stop after N entries (0 = until interrupted)")
	consumeCmd.Flags().Duration("block", 5*time.Second, "How long one read waits for new entries")
	consumeCmd.Flags().Duration("claim-idle", 0, "Claim entries pending longer than this (0 = off)")
	consumeCmd.Flags().String("metrics-addr", "", "Serve Prometheus metrics on this address")
	return consumeCmd
}

// entryWriter serializes output of concurrent workers.
type entryWriter struct {
	mu  sync.Mutex
	enc *json.Encoder
}

func (w *entryWriter) write(v entryJSON) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.enc.Encode(v)
}

// serveMetrics attaches a Prometheus observer to c and exposes it on addr.
func serveMetrics(c *xstream.Client, addr string) (stop func()) {
	reg := prometheus.NewRegistry()
	c.AddObserver(promobserver.New(reg, ""))

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			c.Logger().Warn().Err(err).Str("addr", addr).Msg("xstream: metrics listener stopped")
		}
	}()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}
