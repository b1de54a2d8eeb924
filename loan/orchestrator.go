// Package loan coordinates borrow, return, renew and rebook operations
// against the lending API. Batch borrows fan out one create per book and
// join on all of them; duplicate avoidance is client-side and best-effort
// only, since the loan-history read and the writes are not transactional on
// the server. Two overlapping batches for the same borrower can still race.
package loan

import (
	"errors"
	"sync"
	"time"

	"github.com/Aalibrarytechnologies/library-management-system/api"
	"github.com/Aalibrarytechnologies/library-management-system/common"
	"github.com/Aalibrarytechnologies/library-management-system/httpclient"
	"github.com/Aalibrarytechnologies/library-management-system/policy"
	"github.com/Aalibrarytechnologies/library-management-system/session"
	"github.com/google/uuid"
	openapi_types "github.com/oapi-codegen/runtime/types"
)

type Orchestrator struct {
	api   *api.Client
	guard *session.Guard
	now   func() time.Time
}

func NewOrchestrator(apiClient *api.Client, guard *session.Guard) *Orchestrator {
	return &Orchestrator{api: apiClient, guard: guard, now: time.Now}
}

// WithClock overrides the wall clock, for tests.
func (o *Orchestrator) WithClock(now func() time.Time) *Orchestrator {
	o.now = now
	return o
}

// checkAuth routes an AuthError to the session guard and reports whether it
// was one. Any other error stays local to the operation that produced it.
func (o *Orchestrator) checkAuth(err error) bool {
	var authErr *httpclient.AuthError
	if errors.As(err, &authErr) {
		o.guard.OnAuthError(err)
		return true
	}
	return false
}

type itemResult struct {
	item BorrowItem
	err  error
}

// BorrowBatch creates one loan per requested book, skipping books the
// borrower already has on an active loan. All creates are dispatched
// concurrently and every outcome is awaited; the result reflects all of
// them. The only short-circuit is an AuthError among the outcomes, which
// trips the guard once and surfaces as an error instead of a partial result.
func (o *Orchestrator) BorrowBatch(ctx common.ExtendedContext, req BorrowBatchRequest) (*BorrowBatchResult, error) {
	result := &BorrowBatchResult{}
	if len(req.Items) == 0 {
		return result, nil
	}
	if window := policy.BorrowWindow(o.now()); !window.Contains(req.DueDate) {
		return nil, &ValidationError{Field: "due_date", Reason: "must be between today and 30 days from today"}
	}
	ctx = ctx.WithArgs(&common.LoggerArgs{Operation: "borrow-batch", BatchId: uuid.New().String()})

	active, err := o.api.BorrowedBooks(ctx)
	if err != nil {
		o.checkAuth(err)
		return nil, err
	}
	activeBooks := make(map[int64]bool, len(active))
	for _, ln := range active {
		if ln.Active() {
			activeBooks[ln.BookID] = true
		}
	}

	seen := make(map[int64]bool, len(req.Items))
	var toBorrow []BorrowItem
	for _, item := range req.Items {
		if seen[item.BookID] {
			continue
		}
		seen[item.BookID] = true
		if activeBooks[item.BookID] {
			result.Skipped = append(result.Skipped, item.Title)
			ctx.Logger().Info("skipping already borrowed book", "bookId", item.BookID)
			continue
		}
		toBorrow = append(toBorrow, item)
	}
	if len(toBorrow) == 0 {
		return result, nil
	}

	dueDate := openapi_types.Date{Time: req.DueDate}
	results := make(chan itemResult, len(toBorrow))
	var wg sync.WaitGroup
	for _, item := range toBorrow {
		wg.Add(1)
		go func(item BorrowItem) {
			defer wg.Done()
			_, err := o.api.CreateLoan(ctx, api.CreateLoanRequest{
				BookID:  item.BookID,
				UserID:  req.UserID,
				DueDate: dueDate,
			})
			results <- itemResult{item: item, err: err}
		}(item)
	}
	wg.Wait()
	close(results)

	outcomes := make([]itemResult, 0, len(toBorrow))
	for r := range results {
		outcomes = append(outcomes, r)
	}
	// a single invalid token invalidates all pending siblings, so one auth
	// failure discards the partial result
	for _, r := range outcomes {
		if r.err != nil && o.checkAuth(r.err) {
			return nil, r.err
		}
	}
	for _, r := range outcomes {
		if r.err != nil {
			ctx.Logger().Error("borrow failed", "bookId", r.item.BookID, "error", r.err)
			result.Failed = append(result.Failed, BorrowFailure{Title: r.item.Title, Reason: r.err.Error()})
			continue
		}
		result.Succeeded = append(result.Succeeded, r.item.Title)
	}
	ctx.Logger().Info("borrow batch complete", "outcome", string(result.Outcome()),
		"succeeded", len(result.Succeeded), "failed", len(result.Failed), "skipped", len(result.Skipped))
	return result, nil
}

// Return marks a single loan returned. State is never updated optimistically:
// on failure the caller keeps its lists unchanged.
func (o *Orchestrator) Return(ctx common.ExtendedContext, loanID int64) error {
	err := o.api.ReturnLoan(ctx, loanID)
	if err != nil {
		o.checkAuth(err)
		return err
	}
	ctx.Logger().Info("loan returned", "loanId", loanID)
	return nil
}

// Renew moves the due date of an active loan. The new date is validated
// locally first; an out-of-window date is rejected with no network call.
func (o *Orchestrator) Renew(ctx common.ExtendedContext, loanID int64, currentDue time.Time, newDue time.Time) error {
	if window := policy.RenewWindow(o.now(), currentDue); !window.Contains(newDue) {
		return &ValidationError{Field: "new_due_date", Reason: "renewal exceeds the 30-day limit"}
	}
	err := o.api.RenewLoan(ctx, loanID, openapi_types.Date{Time: newDue})
	if err != nil {
		o.checkAuth(err)
		return err
	}
	ctx.Logger().Info("loan renewed", "loanId", loanID)
	return nil
}

// Rebook borrows a previously returned book again with today as the due
// date. It runs through the same duplicate-avoidance read as a batch of one,
// so the outcome is binary: borrowed, skipped (already active) or an error.
func (o *Orchestrator) Rebook(ctx common.ExtendedContext, record api.Loan, title string) (*BorrowBatchResult, error) {
	return o.BorrowBatch(ctx, BorrowBatchRequest{
		Items:   []BorrowItem{{BookID: record.BookID, Title: title}},
		UserID:  record.UserID,
		DueDate: o.now(),
	})
}
