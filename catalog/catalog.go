// Package catalog holds the loan lists behind the catalog view and drives
// the lending operations against them. Overdue status is derived from the
// clock on every read, never cached: it changes as a function of time alone.
package catalog

import (
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Aalibrarytechnologies/library-management-system/api"
	"github.com/Aalibrarytechnologies/library-management-system/common"
	"github.com/Aalibrarytechnologies/library-management-system/loan"
	"github.com/Aalibrarytechnologies/library-management-system/policy"
)

// ErrBusy rejects re-entrant submissions while a read-then-dispatch sequence
// is still in flight (the double-click problem).
var ErrBusy = errors.New("another lending operation is already in progress")

type Stats struct {
	Borrowed int
	Returned int
	Overdue  int
}

type State struct {
	api  *api.Client
	orch *loan.Orchestrator
	user api.User

	mu       sync.Mutex
	busy     bool
	books    map[int64]api.Book
	active   []api.Loan
	returned []api.Loan
	selected []api.Book
}

func NewState(apiClient *api.Client, orch *loan.Orchestrator, user api.User) *State {
	return &State{
		api:   apiClient,
		orch:  orch,
		user:  user,
		books: map[int64]api.Book{},
	}
}

// Refresh reloads the book map and the loan lists. Staff see loans across
// all borrowers, everyone else their own.
func (s *State) Refresh(ctx common.ExtendedContext) error {
	books, err := s.api.ListBooks(ctx, 0, 10000)
	if err != nil {
		return err
	}
	var loans []api.Loan
	if s.user.Role == api.RoleStaff {
		loans, err = s.api.AllBorrowedBooks(ctx)
	} else {
		loans, err = s.api.BorrowHistory(ctx)
	}
	if err != nil {
		return err
	}
	var active, returned []api.Loan
	for _, ln := range loans {
		if ln.Active() {
			active = append(active, ln)
		} else {
			returned = append(returned, ln)
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.books = make(map[int64]api.Book, len(books))
	for _, b := range books {
		s.books[b.ID] = b
	}
	s.active = active
	s.returned = returned
	return nil
}

func (s *State) ActiveLoans() []api.Loan {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]api.Loan(nil), s.active...)
}

func (s *State) ReturnedLoans() []api.Loan {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]api.Loan(nil), s.returned...)
}

// OverdueLoans derives the overdue subset of the active list at the given
// instant.
func (s *State) OverdueLoans(now time.Time) []api.Loan {
	s.mu.Lock()
	defer s.mu.Unlock()
	var overdue []api.Loan
	for _, ln := range s.active {
		if policy.IsOverdue(ln.DueDate.Time, now) {
			overdue = append(overdue, ln)
		}
	}
	return overdue
}

func (s *State) Stats(now time.Time) Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	stats := Stats{Borrowed: len(s.active), Returned: len(s.returned)}
	for _, ln := range s.active {
		if policy.IsOverdue(ln.DueDate.Time, now) {
			stats.Overdue++
		}
	}
	return stats
}

func (s *State) Book(id int64) (api.Book, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.books[id]
	return b, ok
}

// Filter matches loans whose book id, borrower id, title or author contains
// the query, case-insensitively.
func (s *State) Filter(loans []api.Loan, query string) []api.Loan {
	if query == "" {
		return loans
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	lower := strings.ToLower(query)
	var matched []api.Loan
	for _, ln := range loans {
		book := s.books[ln.BookID]
		if strings.Contains(strconv.FormatInt(ln.BookID, 10), lower) ||
			strings.Contains(strconv.FormatInt(ln.UserID, 10), lower) ||
			strings.Contains(strings.ToLower(book.Title), lower) ||
			strings.Contains(strings.ToLower(book.Author), lower) {
			matched = append(matched, ln)
		}
	}
	return matched
}

// Select adds a book to the pending batch selection.
func (s *State) Select(book api.Book) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.selected {
		if b.ID == book.ID {
			return
		}
	}
	s.selected = append(s.selected, book)
}

func (s *State) Deselect(bookID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.selected[:0]
	for _, b := range s.selected {
		if b.ID != bookID {
			kept = append(kept, b)
		}
	}
	s.selected = kept
}

func (s *State) Selected() []api.Book {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]api.Book(nil), s.selected...)
}

func (s *State) begin() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy {
		return ErrBusy
	}
	s.busy = true
	return nil
}

func (s *State) end() {
	s.mu.Lock()
	s.busy = false
	s.mu.Unlock()
}

// Borrow dispatches the current selection as one batch. On any non-auth
// completion the selection is cleared and the lists refreshed; the refresh
// happens even for a full failure so the view reflects the server.
func (s *State) Borrow(ctx common.ExtendedContext, dueDate time.Time) (*loan.BorrowBatchResult, error) {
	if err := s.begin(); err != nil {
		return nil, err
	}
	defer s.end()
	s.mu.Lock()
	items := make([]loan.BorrowItem, 0, len(s.selected))
	for _, b := range s.selected {
		items = append(items, loan.BorrowItem{BookID: b.ID, Title: b.Title})
	}
	s.mu.Unlock()
	result, err := s.orch.BorrowBatch(ctx, loan.BorrowBatchRequest{
		Items:   items,
		UserID:  s.user.ID,
		DueDate: dueDate,
	})
	if err != nil {
		// selection stays on validation and auth failures; for the former
		// the user just picks another date
		return nil, err
	}
	s.mu.Lock()
	s.selected = nil
	s.mu.Unlock()
	if rErr := s.Refresh(ctx); rErr != nil {
		ctx.Logger().Error("refresh after borrow failed", "error", rErr)
	}
	return result, nil
}

// Return marks one loan returned. Nothing is removed from the active list
// until the server confirms; a failed or repeated return leaves the lists
// exactly as the server reports them.
func (s *State) Return(ctx common.ExtendedContext, loanID int64) error {
	if err := s.begin(); err != nil {
		return err
	}
	defer s.end()
	if err := s.orch.Return(ctx, loanID); err != nil {
		return err
	}
	if rErr := s.Refresh(ctx); rErr != nil {
		ctx.Logger().Error("refresh after return failed", "error", rErr)
	}
	return nil
}

func (s *State) Renew(ctx common.ExtendedContext, loanID int64, newDue time.Time) error {
	if err := s.begin(); err != nil {
		return err
	}
	defer s.end()
	var currentDue time.Time
	s.mu.Lock()
	for _, ln := range s.active {
		if ln.ID == loanID {
			currentDue = ln.DueDate.Time
			break
		}
	}
	s.mu.Unlock()
	if err := s.orch.Renew(ctx, loanID, currentDue, newDue); err != nil {
		return err
	}
	if rErr := s.Refresh(ctx); rErr != nil {
		ctx.Logger().Error("refresh after renew failed", "error", rErr)
	}
	return nil
}

// Rebook borrows the book of a returned loan again, due today.
func (s *State) Rebook(ctx common.ExtendedContext, loanID int64) (*loan.BorrowBatchResult, error) {
	s.mu.Lock()
	var record *api.Loan
	for i := range s.returned {
		if s.returned[i].ID == loanID {
			record = &s.returned[i]
			break
		}
	}
	var title string
	if record != nil {
		title = s.books[record.BookID].Title
	}
	s.mu.Unlock()
	if record == nil {
		return nil, &loan.ValidationError{Field: "loan_id", Reason: "no returned loan with that id"}
	}
	if err := s.begin(); err != nil {
		return nil, err
	}
	defer s.end()
	result, err := s.orch.Rebook(ctx, *record, title)
	if err != nil {
		return nil, err
	}
	if rErr := s.Refresh(ctx); rErr != nil {
		ctx.Logger().Error("refresh after rebook failed", "error", rErr)
	}
	return result, nil
}
