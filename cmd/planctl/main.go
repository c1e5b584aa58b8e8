// planctl is a line-oriented client for the plan marketplace. It drives
// the same screen controllers an app would, against a running API or an
// in-memory one started with "planctl serve".
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/Windi-Fikriyansyah/planmarket/internal/client"
	"github.com/Windi-Fikriyansyah/planmarket/internal/session"
)

type command struct {
	usage string
	run   func(ctx context.Context, app *app, args []string) error
}

var commands = map[string]command{
	"serve":    {"serve [--addr host:port] [--advisor-email e --advisor-password p]", runServe},
	"signup":   {"signup --name n --email e --password p [--phone p]", runSignUp},
	"login":    {"login --email e --password p", runLogin},
	"logout":   {"logout", runLogout},
	"whoami":   {"whoami", runWhoami},
	"plans":    {"plans [--search q] [--all]", runPlans},
	"plan":     {"plan <plan-id>", runPlan},
	"request":  {"request <plan-id>", runRequest},
	"requests": {"requests [--watch]", runRequests},
	"approve":  {"approve <request-id>", runDecide},
	"reject":   {"reject <request-id>", runDecide},
	"chat":     {"chat <request-id>", runChat},
}

// app is the state shared by every command.
type app struct {
	api    *client.API
	sess   *session.Manager
	apiURL string
	name   string
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func defaultTokenFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "planctl", "token")
}

func run() error {
	_ = godotenv.Load()

	apiURL := os.Getenv("PLANMARKET_API")
	if apiURL == "" {
		apiURL = "http://localhost:8080"
	}

	global := pflag.NewFlagSet("planctl", pflag.ContinueOnError)
	global.SetInterspersed(false)
	global.StringVar(&apiURL, "api", apiURL, "API base URL (env PLANMARKET_API)")
	tokenFile := global.String("token-file", defaultTokenFile(), "where the session token is kept")
	help := global.BoolP("help", "h", false, "show help")

	if err := global.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			printHelp(global)
			return nil
		}
		return err
	}
	args := global.Args()
	if *help || len(args) == 0 {
		printHelp(global)
		return nil
	}

	cmd, ok := commands[args[0]]
	if !ok {
		printHelp(global)
		return fmt.Errorf("unknown command %q", args[0])
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	api := client.New(apiURL)
	a := &app{
		api:    api,
		sess:   session.NewManager(api, session.FileTokenStore{Path: *tokenFile}),
		apiURL: apiURL,
		name:   args[0],
	}
	if args[0] != "serve" {
		if _, err := a.sess.Restore(ctx); err != nil {
			return fmt.Errorf("restore session: %w", err)
		}
	}
	return cmd.run(ctx, a, args[1:])
}

func printHelp(fs *pflag.FlagSet) {
	fmt.Fprintln(os.Stderr, "usage: planctl [global flags] <command> [flags]")
	fmt.Fprintln(os.Stderr, "\ncommands:")
	names := make([]string, 0, len(commands))
	for n := range commands {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		fmt.Fprintf(os.Stderr, "  %s\n", commands[n].usage)
	}
	fmt.Fprintln(os.Stderr, "\nglobal flags:")
	fs.PrintDefaults()
}
