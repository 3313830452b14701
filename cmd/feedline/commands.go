package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/alphabot-ai/feedline/internal/auth"
	"github.com/alphabot-ai/feedline/internal/client"
	"github.com/alphabot-ai/feedline/internal/logging"
	"github.com/alphabot-ai/feedline/internal/session"
	"github.com/alphabot-ai/feedline/internal/store"
	"github.com/alphabot-ai/feedline/internal/view"
)

// cliScope keeps the command line's tokens apart from browser sessions
// sharing the same storage.
const cliScope = "cli"

var (
	flagStore string
	flagDSN   string
	flagEmail string
)

// cliSession is one command invocation: a controller over the tokens saved
// by earlier invocations.
type cliSession struct {
	ctrl   *session.Controller
	tokens *auth.TokenStore
	close  func()
}

func openSession(ctx context.Context) (*cliSession, error) {
	cfg := loadConfig()
	if os.Getenv("FEEDLINE_STORAGE") == "" {
		cfg.Storage.Driver = "sqlite"
		cfg.Storage.DSN = filepath.Join(feedlineDir(), "storage.db")
	}
	if flagStore != "" {
		cfg.Storage.Driver = flagStore
	}
	if flagDSN != "" {
		cfg.Storage.DSN = flagDSN
	}
	if !flagVerbose && cfg.Log.File == "" {
		cfg.Log.Level = "warn"
	}
	log, logCloser := logging.New(cfg.Log)

	kv, err := openStorage(ctx, cfg.Storage)
	if err != nil {
		logCloser.Close()
		return nil, fmt.Errorf("open storage: %w", err)
	}
	sealer, err := sealerFor(cfg.Storage)
	if err != nil {
		kv.Close()
		logCloser.Close()
		return nil, err
	}
	opts := []auth.Option{auth.WithLogger(log)}
	if sealer != nil {
		opts = append(opts, auth.WithSealer(sealer))
	}
	tokens := auth.NewTokenStore(store.Scoped(kv, cliScope), opts...)

	api := client.New(cfg.APIURL, tokens)
	api.HTTPClient.Timeout = cfg.APITimeout
	api.Log = log

	ctrl := session.New(session.Config{
		API:          api,
		Tokens:       tokens,
		Backend:      view.NewText(),
		StrictRender: cfg.StrictRender,
		Log:          log,
	})
	if err := ctrl.Start(ctx); err != nil {
		kv.Close()
		logCloser.Close()
		return nil, err
	}
	return &cliSession{
		ctrl:   ctrl,
		tokens: tokens,
		close: func() {
			kv.Close()
			logCloser.Close()
		},
	}, nil
}

// run opens a session, applies fn and prints the resulting screen. The
// action's error is returned after the screen so its notice stays visible.
func run(cmd *cobra.Command, fn func(ctx context.Context, s *cliSession) error) error {
	ctx := cmd.Context()
	s, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer s.close()

	actionErr := fn(ctx, s)
	doc, err := s.ctrl.Document(ctx)
	if err != nil {
		return fmt.Errorf("render: %w", err)
	}
	fmt.Fprint(cmd.OutOrStdout(), doc)
	return actionErr
}

func parseID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", arg)
	}
	return id, nil
}

var registerCmd = &cobra.Command{
	Use:   "register <username> <password>",
	Short: "Create an account",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd, func(ctx context.Context, s *cliSession) error {
			return s.ctrl.Actions().Register(ctx, args[0], args[1], flagEmail)
		})
	},
}

var loginCmd = &cobra.Command{
	Use:   "login <username> <password>",
	Short: "Log in and remember the session",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd, func(ctx context.Context, s *cliSession) error {
			return s.ctrl.Login(ctx, args[0], args[1])
		})
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the stored tokens",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd, func(ctx context.Context, s *cliSession) error {
			return s.ctrl.Logout(ctx)
		})
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the user id carried by the stored token",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		s, err := openSession(ctx)
		if err != nil {
			return err
		}
		defer s.close()
		id, ok := s.tokens.CurrentUserID(ctx)
		if !ok {
			fmt.Fprintln(cmd.OutOrStdout(), color.YellowString("not logged in"))
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "user %d\n", id)
		return nil
	},
}

var feedCmd = &cobra.Command{
	Use:   "feed",
	Short: "Show the home feed",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd, func(ctx context.Context, s *cliSession) error { return nil })
	},
}

var postCmd = &cobra.Command{
	Use:   "post <text...>",
	Short: "Publish a post",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd, func(ctx context.Context, s *cliSession) error {
			return s.ctrl.Actions().CreatePost(ctx, strings.Join(args, " "))
		})
	},
}

var likeCmd = &cobra.Command{
	Use:   "like <post-id>",
	Short: "Like or unlike a post in the feed",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		return run(cmd, func(ctx context.Context, s *cliSession) error {
			if !s.ctrl.Page().Bound(view.LikeKey(id)) {
				return fmt.Errorf("post %d is not in the feed", id)
			}
			return s.ctrl.Actions().ToggleLike(ctx, id)
		})
	},
}

var commentCmd = &cobra.Command{
	Use:   "comment <post-id> <text...>",
	Short: "Comment on a post in the feed",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		return run(cmd, func(ctx context.Context, s *cliSession) error {
			if !s.ctrl.Page().Bound(view.CommentKey(id)) {
				return fmt.Errorf("post %d is not in the feed", id)
			}
			return s.ctrl.Actions().AddComment(ctx, id, strings.Join(args[1:], " "))
		})
	},
}

var followCmd = &cobra.Command{
	Use:   "follow <user-id>",
	Short: "Follow or unfollow a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		return run(cmd, func(ctx context.Context, s *cliSession) error {
			// the follow button only exists once the profile is shown
			if err := s.ctrl.Actions().ShowProfile(ctx, id); err != nil {
				return err
			}
			if !s.ctrl.Page().Bound(view.FollowKey(id)) {
				return fmt.Errorf("cannot follow user %d", id)
			}
			return s.ctrl.Actions().ToggleFollow(ctx, id)
		})
	},
}

var profileCmd = &cobra.Command{
	Use:   "profile [user-id]",
	Short: "Show a profile, your own by default",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd, func(ctx context.Context, s *cliSession) error {
			if len(args) == 0 {
				return s.ctrl.Actions().ShowMyProfile(ctx)
			}
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return s.ctrl.Actions().ShowProfile(ctx, id)
		})
	},
}

func init() {
	registerCmd.Flags().StringVar(&flagEmail, "email", "", "email address")

	for _, c := range []*cobra.Command{registerCmd, loginCmd, logoutCmd, whoamiCmd, feedCmd, postCmd, likeCmd, commentCmd, followCmd, profileCmd} {
		c.Flags().StringVar(&flagStore, "store", "", "token storage: memory, sqlite or postgres (default sqlite under ~/.feedline)")
		c.Flags().StringVar(&flagDSN, "dsn", "", "storage location for the chosen driver")
		rootCmd.AddCommand(c)
	}
}
