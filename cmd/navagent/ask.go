package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"navagent/internal/assistant"
)

func newAskCmd(opts *rootOptions) *cobra.Command {
	var (
		download bool
		stream   bool
		timeout  time.Duration
	)
	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Answer one navigation question",
		Long:  "Answers a question with the keyword rules and the static fallback. With --download the model is resolved, downloaded and loaded first so inference can answer questions no rule covers.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			log, err := opts.logger(cfg.LogLevel, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			if opts.trace {
				shutdown, err := setupTracing(cmd.ErrOrStderr())
				if err != nil {
					return err
				}
				defer func() { _ = shutdown(context.Background()) }()
			}
			svc, err := newService(cfg, log)
			if err != nil {
				return err
			}
			ctrl := assistant.New(svc, controllerConfig(cfg, log, nil))
			defer ctrl.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			if download {
				if err := acquire(ctx, ctrl, cmd.ErrOrStderr()); err != nil {
					return err
				}
			}

			question := strings.Join(args, " ")
			out := cmd.OutOrStdout()
			var printed int
			ans := ctrl.ResolveStream(ctx, question, func(text string) {
				if !stream || len(text) <= printed {
					return
				}
				fmt.Fprint(out, text[printed:])
				printed = len(text)
			})
			if printed > 0 && ans.Source == assistant.SourceInference {
				fmt.Fprintln(out)
			} else {
				if printed > 0 {
					fmt.Fprintln(out)
				}
				fmt.Fprintln(out, ans.Text)
			}
			log.Debug().Str("source", string(ans.Source)).Str("rule", ans.Rule).Bool("timed_out", ans.TimedOut).Msg("answered")
			return nil
		},
	}
	cmd.Flags().BoolVar(&download, "download", false, "Resolve, download and load the model before answering")
	cmd.Flags().BoolVar(&stream, "stream", true, "Print inference output as it arrives")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Minute, "Overall deadline including download")
	return cmd
}

// acquire runs the probe and the download pipeline, reporting progress to w.
func acquire(ctx context.Context, ctrl *assistant.Controller, w io.Writer) error {
	if _, err := ctrl.ResolveModel(ctx); err != nil {
		return fmt.Errorf("%s", ctrl.Snapshot().State.Message)
	}
	if err := ctrl.DownloadModel(); err != nil {
		return err
	}
	ch, unsubscribe := ctrl.Subscribe()
	defer unsubscribe()
	lastPct := -1
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case s, ok := <-ch:
			if !ok {
				return assistant.ErrClosed
			}
			switch s.State.Phase {
			case assistant.PhaseError:
				return fmt.Errorf("%s", s.State.Message)
			case assistant.PhaseReady:
				fmt.Fprintln(w, "model ready")
				return nil
			}
			pct := -1
			if s.DownloadProgress != nil {
				pct = int(*s.DownloadProgress * 100)
			} else if s.LoadProgress != nil {
				pct = *s.LoadProgress
			}
			if pct >= 0 && pct != lastPct {
				fmt.Fprintf(w, "\r%-14s %3d%%", s.State.Phase, pct)
				lastPct = pct
			}
		}
	}
}
