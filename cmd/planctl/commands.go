package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/pflag"

	"github.com/Windi-Fikriyansyah/planmarket/internal/client"
	"github.com/Windi-Fikriyansyah/planmarket/internal/devserver"
	"github.com/Windi-Fikriyansyah/planmarket/internal/livesync"
	"github.com/Windi-Fikriyansyah/planmarket/internal/models"
	"github.com/Windi-Fikriyansyah/planmarket/internal/screens"
)

func flags(a *app) *pflag.FlagSet {
	return pflag.NewFlagSet("planctl "+a.name, pflag.ContinueOnError)
}

func oneID(args []string, what string) (uuid.UUID, error) {
	if len(args) != 1 {
		return uuid.Nil, fmt.Errorf("expected exactly one %s id", what)
	}
	id, err := uuid.Parse(args[0])
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid %s id: %w", what, err)
	}
	return id, nil
}

// connect opens the realtime feed for the current session.
func (a *app) connect(ctx context.Context) (*client.Realtime, error) {
	rt := client.NewRealtime(client.RealtimeURL(a.apiURL))
	if err := rt.Connect(ctx, a.api.Token()); err != nil {
		return nil, err
	}
	return rt, nil
}

func (a *app) requireSignedIn() error {
	if !a.sess.Current().SignedIn() {
		return errors.New("not signed in, run planctl login")
	}
	return nil
}

func printNotice(action string, err error) {
	fmt.Fprintf(os.Stderr, "could not %s: %v\n", action, err)
}

func runServe(ctx context.Context, _ *app, args []string) error {
	fs := pflag.NewFlagSet("planctl serve", pflag.ContinueOnError)
	addr := fs.String("addr", "127.0.0.1:8080", "listen address")
	secret := fs.String("jwt-secret", "", "token signing secret (random per run when empty)")
	email := fs.String("advisor-email", "", "seed an advisor account with this email")
	password := fs.String("advisor-password", "", "password of the seeded advisor")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *secret == "" {
		*secret = uuid.NewString()
	}

	srv, err := devserver.Start(devserver.Options{Addr: *addr, JWTSecret: *secret})
	if err != nil {
		return err
	}
	defer srv.Close()

	if *email != "" {
		if *password == "" {
			return errors.New("--advisor-password is required with --advisor-email")
		}
		if _, err := srv.CreateAdvisor(ctx, *email, *password, "Advisor"); err != nil {
			return fmt.Errorf("seed advisor: %w", err)
		}
	}
	fmt.Printf("serving on %s (in-memory, Ctrl-C to stop)\n", srv.BaseURL())
	<-ctx.Done()
	return nil
}

func runSignUp(ctx context.Context, a *app, args []string) error {
	fs := flags(a)
	name := fs.String("name", "", "full name")
	email := fs.String("email", "", "email")
	password := fs.String("password", "", "password")
	phone := fs.String("phone", "", "phone (optional)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	st, err := a.sess.SignUp(ctx, *name, *email, *password, *phone)
	if err != nil {
		return describe(err)
	}
	fmt.Printf("signed up as %s (%s)\n", st.Email, st.Role)
	return nil
}

func runLogin(ctx context.Context, a *app, args []string) error {
	fs := flags(a)
	email := fs.String("email", "", "email")
	password := fs.String("password", "", "password")
	if err := fs.Parse(args); err != nil {
		return err
	}
	st, err := a.sess.SignIn(ctx, *email, *password)
	if err != nil {
		return describe(err)
	}
	fmt.Printf("signed in as %s (%s)\n", st.Email, st.Role)
	return nil
}

func runLogout(ctx context.Context, a *app, _ []string) error {
	_ = a.sess.SignOut(ctx)
	fmt.Println("signed out")
	return nil
}

func runWhoami(_ context.Context, a *app, _ []string) error {
	st := a.sess.Current()
	if !st.SignedIn() {
		fmt.Println("guest")
		return nil
	}
	fmt.Printf("%s\t%s\t%s\t%s\n", st.UserID, st.Email, st.Profile.FullName, a.sess.Destination())
	return nil
}

func describe(err error) error {
	var apiErr *client.APIError
	if errors.As(err, &apiErr) && len(apiErr.Errors) > 0 {
		var parts []string
		for field, msgs := range apiErr.Errors {
			parts = append(parts, field+" "+strings.Join(msgs, ", "))
		}
		return fmt.Errorf("%s: %s", apiErr.Message, strings.Join(parts, "; "))
	}
	return err
}

func price(v float64) string {
	return fmt.Sprintf("%.2f", v)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func runPlans(ctx context.Context, a *app, args []string) error {
	fs := flags(a)
	search := fs.String("search", "", "filter on name and short description")
	all := fs.Bool("all", false, "include inactive plans (advisors)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var plans []models.Plan
	if *all {
		list, err := a.api.ListAllPlans(ctx)
		if err != nil {
			return err
		}
		plans = list
	} else {
		rt, err := a.connect(ctx)
		if err != nil {
			return err
		}
		defer rt.Close()
		explore := screens.NewExplore(a.api, rt)
		if err := explore.Open(ctx); err != nil {
			return err
		}
		explore.SetQuery(*search)
		plans = explore.Visible()
		explore.Close()
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tPRICE\tSEGMENT\tACTIVE")
	for _, p := range plans {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%t\n", p.ID, p.Name, price(p.Price), deref(p.Segment), p.Active)
	}
	return w.Flush()
}

func runPlan(ctx context.Context, a *app, args []string) error {
	id, err := oneID(args, "plan")
	if err != nil {
		return err
	}
	d := screens.NewPlanDetail(a.api, a.api, a.sess, id)
	if err := d.Load(ctx); err != nil {
		return err
	}
	p := d.Plan
	fmt.Printf("%s  %s\n", p.Name, price(p.Price))
	if p.ShortDescription != nil {
		fmt.Println(*p.ShortDescription)
	}
	if p.Promotion != nil {
		fmt.Println("promotion:", *p.Promotion)
	}
	for k, v := range p.TechnicalDetails {
		fmt.Printf("  %s: %v\n", k, v)
	}
	if d.CanRequest() {
		fmt.Printf("\nrequest it with: planctl request %s\n", p.ID)
	}
	return nil
}

func runRequest(ctx context.Context, a *app, args []string) error {
	id, err := oneID(args, "plan")
	if err != nil {
		return err
	}
	d := screens.NewPlanDetail(a.api, a.api, a.sess, id)
	cr, err := d.Request(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("request %s is %s\n", cr.ID, cr.Status)
	return nil
}

func printRequests(list []client.Contract) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tPLAN\tCUSTOMER\tSTATUS\tREQUESTED")
	for _, c := range list {
		plan, who := "", ""
		if c.Plan != nil {
			plan = c.Plan.Name
		}
		if c.Requester != nil {
			who = c.Requester.FullName
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", c.ID, plan, who, c.Status, c.RequestedAt.Format("2006-01-02 15:04"))
	}
	_ = w.Flush()
}

type requestList interface {
	Open(ctx context.Context) error
	Close()
	Items() []client.Contract
	OnChange(fn func([]client.Contract)) func()
}

func runRequests(ctx context.Context, a *app, args []string) error {
	fs := flags(a)
	watch := fs.Bool("watch", false, "keep printing the list as it changes")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := a.requireSignedIn(); err != nil {
		return err
	}

	rt, err := a.connect(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	var list requestList
	if a.sess.Current().Role == models.RoleAdvisor {
		list = screens.NewRequests(a.api, rt, livesync.NotifierFunc(printNotice))
	} else {
		list = screens.NewMyRequests(a.api, rt)
	}
	if err := list.Open(ctx); err != nil {
		return err
	}
	defer list.Close()

	printRequests(list.Items())
	if !*watch {
		return nil
	}
	stop := list.OnChange(func(items []client.Contract) {
		fmt.Println()
		printRequests(items)
	})
	defer stop()
	<-ctx.Done()
	return nil
}

func runDecide(ctx context.Context, a *app, args []string) error {
	id, err := oneID(args, "request")
	if err != nil {
		return err
	}
	if a.sess.Current().Role != models.RoleAdvisor {
		return screens.ErrWrongRole
	}

	rt, err := a.connect(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	requests := screens.NewRequests(a.api, rt, livesync.NotifierFunc(printNotice))
	if err := requests.Open(ctx); err != nil {
		return err
	}
	defer requests.Close()

	if a.name == "approve" {
		err = requests.Approve(ctx, id)
	} else {
		err = requests.Reject(ctx, id)
	}
	if err != nil {
		return err
	}
	fmt.Printf("request %s: %s done\n", id, a.name)
	return nil
}

// runChat prints the conversation and sends each stdin line.
func runChat(ctx context.Context, a *app, args []string) error {
	id, err := oneID(args, "request")
	if err != nil {
		return err
	}
	if err := a.requireSignedIn(); err != nil {
		return err
	}
	self := a.sess.Current().UserID

	rt, err := a.connect(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	chat := screens.NewChat(a.api, rt, id, self, nil, func(typing bool) {
		if typing {
			fmt.Println("  ... typing")
		}
	})
	if err := chat.Open(ctx); err != nil {
		return err
	}
	defer chat.Close()

	history := chat.Items()
	for i := len(history) - 1; i >= 0; i-- {
		printMessage(history[i], self)
	}
	seen := len(history)
	chat.OnChange(func(items []client.Message) {
		// newest first; print what arrived since last time
		for i := len(items) - seen - 1; i >= 0; i-- {
			printMessage(items[i], self)
		}
		seen = len(items)
	})

	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(os.Stdin)
		for sc.Scan() {
			lines <- sc.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			chat.Typing(ctx)
			if err := chat.Send(ctx, line); err != nil && !errors.Is(err, screens.ErrEmptyMessage) {
				fmt.Fprintf(os.Stderr, "send failed: %v\n", err)
			}
		}
	}
}

func printMessage(m client.Message, self uuid.UUID) {
	who := m.SenderName
	if m.SenderID == self {
		who = "me"
	}
	fmt.Printf("[%s] %s: %s\n", m.CreatedAt.Format("15:04"), who, m.Content)
}
