// Command flowtester drives the demo flows in-process and prints every event,
// which is handy for checking timings and canned results without a browser.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/signwave/backend/internal/app"
	"github.com/signwave/backend/internal/config"
	"github.com/signwave/backend/internal/logging"
	callModel "github.com/signwave/backend/internal/model/call"
	flowModel "github.com/signwave/backend/internal/model/flow"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

type options struct {
	verbose bool
	timeout time.Duration
}

// callSlack covers setup and teardown on top of the message playback.
const callSlack = 5 * time.Second

func newRootCmd() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:           "flowtester",
		Short:         "Run SignWave demo flows from the terminal",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			_ = godotenv.Load()
		},
	}
	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "print service logs")
	rootCmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 30*time.Second, "give up after this long")

	rootCmd.AddCommand(
		newDeviceFlowCmd(opts, flowModel.KindSignToText, "sign-to-text", "Record a sign and print the recognized phrase"),
		newDeviceFlowCmd(opts, flowModel.KindVoice, "voice", "Dictate and print the transcribed phrase"),
		newTextToSignCmd(opts),
		newCallCmd(opts),
		newHistoryCmd(opts),
	)
	return rootCmd
}

func newDeviceFlowCmd(opts *options, kind flowModel.Kind, use, short string) *cobra.Command {
	var deny, shortStop bool

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, nil, func(ctx context.Context, a *app.App, out io.Writer) error {
				snap, err := a.Flows.Create(ctx, kind)
				if err != nil {
					return err
				}
				events, unsubscribe, err := subscribeFlow(ctx, a, snap.ID)
				if err != nil {
					return err
				}
				defer unsubscribe()

				if _, err := a.Flows.Start(ctx, snap.ID); err != nil {
					return err
				}
				snap, err = a.Flows.ReportDevice(ctx, snap.ID, !deny, "denied from flowtester")
				if err != nil {
					return err
				}
				if deny {
					for _, n := range snap.Notifications {
						fmt.Fprintf(out, "%s: %s\n", n.Title, n.Message)
					}
					return nil
				}
				if _, err := a.Flows.Stop(ctx, snap.ID, shortStop); err != nil {
					return err
				}
				return waitForResult(ctx, out, events)
			})
		},
	}
	cmd.Flags().BoolVar(&deny, "deny", false, "simulate a denied device permission")
	if kind == flowModel.KindSignToText {
		cmd.Flags().BoolVar(&shortStop, "short", false, "use the short processing path")
	}
	return cmd
}

func newTextToSignCmd(opts *options) *cobra.Command {
	var text string

	cmd := &cobra.Command{
		Use:   "text-to-sign",
		Short: "Translate text and print the avatar asset",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(text) == "" {
				return errors.New("--text is required")
			}
			return withApp(cmd, opts, nil, func(ctx context.Context, a *app.App, out io.Writer) error {
				snap, err := a.Flows.Create(ctx, flowModel.KindTextToSign)
				if err != nil {
					return err
				}
				events, unsubscribe, err := subscribeFlow(ctx, a, snap.ID)
				if err != nil {
					return err
				}
				defer unsubscribe()

				if _, err := a.Flows.Submit(ctx, snap.ID, text); err != nil {
					return err
				}
				return waitForResult(ctx, out, events)
			})
		},
	}
	cmd.Flags().StringVarP(&text, "text", "t", "", "text to translate")
	return cmd
}

func newCallCmd(opts *options) *cobra.Command {
	var contact, rawContext string
	var duration time.Duration

	cmd := &cobra.Command{
		Use:   "call",
		Short: "Join a simulated call and print the transcript",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			callCtx, ok := callModel.ParseContext(rawContext)
			if !ok {
				return fmt.Errorf("unknown context %q (want widget or page)", rawContext)
			}
			// 整段播放可能长于 --timeout，按实际播放时长放宽
			playback := func(a *app.App) time.Duration {
				full := time.Duration(len(callModel.Sequence(callCtx))) * a.Calls.Interval(callCtx)
				return min(duration, full) + callSlack
			}
			return withApp(cmd, opts, playback, func(ctx context.Context, a *app.App, out io.Writer) error {
				session, err := a.Calls.Create(ctx, contact, callCtx)
				if err != nil {
					return err
				}
				link, err := a.Calls.ShareLink(ctx, session.RoomID)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "room %s with %s (%s)\n", session.RoomID, session.ContactName, link)

				messages := make(chan callModel.Event, 16)
				unsubscribe, err := a.Calls.Subscribe(ctx, session.RoomID, func(e callModel.Event) {
					if e.Type == callModel.EventMessage {
						messages <- e
					}
				})
				if err != nil {
					return err
				}
				defer unsubscribe()

				if _, err := a.Calls.Join(ctx, session.RoomID, true); err != nil {
					return err
				}

				deadline := time.After(duration)
				expected := len(callModel.Sequence(callCtx))
				for received := 0; received < expected; {
					select {
					case e := <-messages:
						received++
						fmt.Fprintf(out, "[%d] %s -> %s\n", e.Session.NextMessageIndex, e.Message, e.Session.AssetRef)
					case <-deadline:
						received = expected
					case <-ctx.Done():
						return ctx.Err()
					}
				}

				_, err = a.Calls.End(ctx, session.RoomID)
				return err
			})
		},
	}
	cmd.Flags().StringVar(&contact, "contact", callModel.DefaultContactName, "contact name")
	cmd.Flags().StringVar(&rawContext, "context", string(callModel.ContextPage), "widget or page")
	cmd.Flags().DurationVar(&duration, "duration", time.Minute, "how long to stay in the call")
	return cmd
}

func newHistoryCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "Print the contacts stored in call history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, nil, func(ctx context.Context, a *app.App, out io.Writer) error {
				names, err := a.History.LoadHistory(ctx)
				if err != nil {
					return err
				}
				if len(names) == 0 {
					fmt.Fprintln(out, "no calls yet")
					return nil
				}
				for _, name := range names {
					fmt.Fprintln(out, name)
				}
				return nil
			})
		},
	}
}

// withApp builds the services and runs fn under --timeout. minTimeout, when
// set, raises the timeout for commands whose length depends on configuration.
func withApp(cmd *cobra.Command, opts *options, minTimeout func(*app.App) time.Duration, run func(ctx context.Context, a *app.App, out io.Writer) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	logger := zerolog.Nop()
	if opts.verbose {
		logger = logging.New(logging.Config{Level: "debug", Pretty: true, Out: cmd.ErrOrStderr()})
	}

	a, err := app.New(cfg, logger, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	timeout := opts.timeout
	if minTimeout != nil {
		timeout = max(timeout, minTimeout(a))
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()
	return run(ctx, a, cmd.OutOrStdout())
}

func subscribeFlow(ctx context.Context, a *app.App, flowID string) (<-chan flowModel.Event, func(), error) {
	events := make(chan flowModel.Event, 16)
	unsubscribe, err := a.Flows.Subscribe(ctx, flowID, func(e flowModel.Event) {
		select {
		case events <- e:
		default:
		}
	})
	return events, unsubscribe, err
}

func waitForResult(ctx context.Context, out io.Writer, events <-chan flowModel.Event) error {
	for {
		select {
		case e := <-events:
			fmt.Fprintf(out, "%s\n", e.Snapshot.State)
			if e.Type == flowModel.EventClosed {
				return errors.New("flow closed before a result arrived")
			}
			if e.Snapshot.State == flowModel.StateResult && e.Snapshot.Result != nil {
				r := e.Snapshot.Result
				fmt.Fprintf(out, "result: %q (%.0f%%, %s)\nasset: %s\n", r.Text, r.Confidence*100, r.LanguageLabel, e.Snapshot.AssetRef)
				return nil
			}
		case <-ctx.Done():
			return fmt.Errorf("no result: %w", ctx.Err())
		}
	}
}
