// Package app wires the lending client into the lendctl command line tool.
// Configuration comes from the environment, credentials and the session
// token live in a session file between invocations.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/Aalibrarytechnologies/library-management-system/api"
	"github.com/Aalibrarytechnologies/library-management-system/catalog"
	"github.com/Aalibrarytechnologies/library-management-system/common"
	"github.com/Aalibrarytechnologies/library-management-system/loan"
	"github.com/Aalibrarytechnologies/library-management-system/policy"
	"github.com/Aalibrarytechnologies/library-management-system/session"
	"github.com/Aalibrarytechnologies/library-management-system/slogwrap"
	"github.com/indexdata/go-utils/utils"
)

const dateLayout = "2006-01-02"

type App struct {
	apiUrl       string
	sessionFile  string
	retries      int
	initialDelay time.Duration
	httpTimeout  time.Duration

	out     io.Writer
	log     *slog.Logger
	store   *session.Store
	guard   *session.Guard
	client  *api.Client
	orch    *loan.Orchestrator
	catalog *catalog.State
}

func (app *App) parseEnv() error {
	if app.apiUrl == "" {
		app.apiUrl = utils.GetEnv("API_URL", "http://localhost:8000")
	}
	if app.sessionFile == "" {
		app.sessionFile = os.Getenv("SESSION_FILE")
	}
	if app.sessionFile == "" {
		configDir, err := os.UserConfigDir()
		if err != nil {
			return fmt.Errorf("cannot locate config dir, set SESSION_FILE: %s", err.Error())
		}
		app.sessionFile = filepath.Join(configDir, "lendctl", "session.json")
	}
	if app.retries == 0 {
		app.retries = utils.GetEnvInt("HTTP_RETRIES", 3)
	}
	if app.initialDelay == 0 {
		d, err := time.ParseDuration(utils.GetEnv("RETRY_DELAY", "1s"))
		if err != nil {
			return fmt.Errorf("invalid RETRY_DELAY: %s", err.Error())
		}
		app.initialDelay = d
	}
	if app.httpTimeout == 0 {
		d, err := time.ParseDuration(utils.GetEnv("HTTP_TIMEOUT", "30s"))
		if err != nil {
			return fmt.Errorf("invalid HTTP_TIMEOUT: %s", err.Error())
		}
		app.httpTimeout = d
	}
	return nil
}

func (app *App) init() error {
	if err := app.parseEnv(); err != nil {
		return err
	}
	if app.out == nil {
		app.out = os.Stdout
	}
	app.log = slogwrap.SlogWrap()
	app.store = session.NewStore(app.sessionFile)
	if err := app.store.Load(); err != nil {
		return fmt.Errorf("cannot read session file: %s", err.Error())
	}
	app.guard = session.NewGuard(app.store, func(role api.Role) {
		fmt.Fprintf(app.out, "session expired, run 'lendctl login' again (%s)\n", role)
	}, app.log)
	app.client = api.NewClient(app.apiUrl, app.store).
		WithHttpClient(&http.Client{Timeout: app.httpTimeout}).
		WithRetries(app.retries, app.initialDelay)
	app.orch = loan.NewOrchestrator(app.client, app.guard)
	user, _ := app.store.User()
	app.catalog = catalog.NewState(app.client, app.orch, user)
	return nil
}

func (app *App) extCtx(operation string) common.ExtendedContext {
	args := &common.LoggerArgs{Operation: operation}
	if user, ok := app.store.User(); ok {
		args.UserId = strconv.FormatInt(user.ID, 10)
	}
	return common.CreateExtCtxWithLogArgsAndHandler(context.Background(), args, slogwrap.Handler())
}

func (app *App) Run(args []string) error {
	if err := app.init(); err != nil {
		return err
	}
	if len(args) == 0 {
		return fmt.Errorf("usage: lendctl <login|logout|whoami|books|loans|history|overdue|borrow|return|renew|rebook>")
	}
	cmd, rest := args[0], args[1:]
	switch cmd {
	case "login":
		return app.runLogin(rest)
	case "logout":
		return app.runLogout()
	case "whoami":
		return app.runWhoami()
	case "books":
		return app.runBooks(rest)
	case "loans":
		return app.runLoans(false)
	case "overdue":
		return app.runLoans(true)
	case "history":
		return app.runHistory()
	case "borrow":
		return app.runBorrow(rest)
	case "return":
		return app.runReturn(rest)
	case "renew":
		return app.runRenew(rest)
	case "rebook":
		return app.runRebook(rest)
	default:
		return fmt.Errorf("unknown command: %s", cmd)
	}
}

func (app *App) runLogin(args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: lendctl login <username> <password>")
	}
	ctx := app.extCtx("login")
	token, err := app.client.Login(ctx, args[0], args[1])
	if err != nil {
		return err
	}
	if token.AccessToken == "" {
		return fmt.Errorf("login response carried no access token")
	}
	// the session must carry the token before /users/me/ can be called
	if err := app.store.Set(api.User{}, token.AccessToken); err != nil {
		return err
	}
	user, err := app.client.Me(ctx)
	if err != nil {
		_ = app.store.Clear()
		return err
	}
	if err := app.store.Set(user, token.AccessToken); err != nil {
		return err
	}
	app.guard.Reset()
	fmt.Fprintf(app.out, "logged in as %s (%s)\n", user.FullName, user.Role)
	return nil
}

func (app *App) runLogout() error {
	if err := app.store.Clear(); err != nil {
		return err
	}
	fmt.Fprintln(app.out, "logged out")
	return nil
}

func (app *App) runWhoami() error {
	user, ok := app.store.User()
	if !ok {
		return fmt.Errorf("not logged in")
	}
	fmt.Fprintf(app.out, "%s <%s> role:%s id:%d\n", user.FullName, user.Email, user.Role, user.ID)
	return nil
}

func (app *App) runBooks(args []string) error {
	ctx := app.extCtx("books")
	books, err := app.client.ListBooks(ctx, 0, 10000)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(app.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tAUTHOR\tGENRE\tISBN")
	for _, b := range books {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", b.ID, b.Title, b.Author, b.Genre, b.ISBN)
	}
	return w.Flush()
}

func (app *App) runLoans(overdueOnly bool) error {
	ctx := app.extCtx("loans")
	if err := app.catalog.Refresh(ctx); err != nil {
		return err
	}
	loans := app.catalog.ActiveLoans()
	if overdueOnly {
		loans = app.catalog.OverdueLoans(time.Now())
	}
	return app.printLoans(loans)
}

func (app *App) runHistory() error {
	ctx := app.extCtx("history")
	if err := app.catalog.Refresh(ctx); err != nil {
		return err
	}
	return app.printLoans(append(app.catalog.ActiveLoans(), app.catalog.ReturnedLoans()...))
}

func (app *App) printLoans(loans []api.Loan) error {
	w := tabwriter.NewWriter(app.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "LOAN\tBOOK\tTITLE\tDUE\tRETURNED")
	for _, ln := range loans {
		title := ""
		if book, ok := app.catalog.Book(ln.BookID); ok {
			title = book.Title
		}
		returned := "--"
		if ln.ReturnedDate != nil {
			returned = ln.ReturnedDate.Format(dateLayout)
		}
		fmt.Fprintf(w, "%d\t%d\t%s\t%s\t%s\n", ln.ID, ln.BookID, title, ln.DueDate.Format(dateLayout), returned)
	}
	return w.Flush()
}

func (app *App) runBorrow(args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: lendctl borrow <due-date %s> <book-id>...", dateLayout)
	}
	dueDate, err := time.Parse(dateLayout, args[0])
	if err != nil {
		return fmt.Errorf("invalid due date: %s", err.Error())
	}
	if window := policy.BorrowWindow(time.Now()); !window.Contains(dueDate) {
		return fmt.Errorf("due date must lie between %s and %s",
			window.Min.Format(dateLayout), window.Max.Format(dateLayout))
	}
	ctx := app.extCtx("borrow")
	if err := app.catalog.Refresh(ctx); err != nil {
		return err
	}
	for _, arg := range args[1:] {
		id, err := strconv.ParseInt(arg, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid book id %q", arg)
		}
		book, ok := app.catalog.Book(id)
		if !ok {
			return fmt.Errorf("no book with id %d", id)
		}
		app.catalog.Select(book)
	}
	result, err := app.catalog.Borrow(ctx, dueDate)
	if err != nil {
		return err
	}
	for _, title := range result.Succeeded {
		fmt.Fprintf(app.out, "borrowed: %s\n", title)
	}
	for _, title := range result.Skipped {
		fmt.Fprintf(app.out, "skipped (already borrowed): %s\n", title)
	}
	for _, failure := range result.Failed {
		fmt.Fprintf(app.out, "failed: %s: %s\n", failure.Title, failure.Reason)
	}
	fmt.Fprintf(app.out, "outcome: %s\n", result.Outcome())
	return nil
}

func (app *App) runReturn(args []string) error {
	id, err := parseLoanID(args)
	if err != nil {
		return err
	}
	ctx := app.extCtx("return")
	if err := app.catalog.Refresh(ctx); err != nil {
		return err
	}
	if err := app.catalog.Return(ctx, id); err != nil {
		return err
	}
	fmt.Fprintf(app.out, "loan %d returned\n", id)
	return nil
}

func (app *App) runRenew(args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: lendctl renew <loan-id> <new-due-date %s>", dateLayout)
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid loan id %q", args[0])
	}
	newDue, err := time.Parse(dateLayout, args[1])
	if err != nil {
		return fmt.Errorf("invalid due date: %s", err.Error())
	}
	ctx := app.extCtx("renew")
	if err := app.catalog.Refresh(ctx); err != nil {
		return err
	}
	if err := app.catalog.Renew(ctx, id, newDue); err != nil {
		return err
	}
	fmt.Fprintf(app.out, "loan %d renewed until %s\n", id, newDue.Format(dateLayout))
	return nil
}

func (app *App) runRebook(args []string) error {
	id, err := parseLoanID(args)
	if err != nil {
		return err
	}
	ctx := app.extCtx("rebook")
	if err := app.catalog.Refresh(ctx); err != nil {
		return err
	}
	result, err := app.catalog.Rebook(ctx, id)
	if err != nil {
		return err
	}
	fmt.Fprintf(app.out, "outcome: %s\n", result.Outcome())
	return nil
}

func parseLoanID(args []string) (int64, error) {
	if len(args) != 1 {
		return 0, fmt.Errorf("expected exactly one loan id")
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid loan id %q", args[0])
	}
	return id, nil
}
