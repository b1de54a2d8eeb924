package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Aalibrarytechnologies/library-management-system/httpclient"
	openapi_types "github.com/oapi-codegen/runtime/types"
)

// renewDateLayout is the dd/MM/yyyy format the renew endpoint expects in its
// new_due_date query parameter.
const renewDateLayout = "02/01/2006"

// TokenSource supplies the bearer token for authenticated calls. An empty
// token means the call goes out unauthenticated and the server decides.
type TokenSource interface {
	Token() string
}

type Client struct {
	baseUrl      string
	client       *http.Client
	tokens       TokenSource
	retries      int
	initialDelay time.Duration
	maxMsgSize   int64
	userAgent    string
}

func NewClient(baseUrl string, tokens TokenSource) *Client {
	return &Client{
		baseUrl:      strings.TrimSuffix(baseUrl, "/"),
		client:       http.DefaultClient,
		tokens:       tokens,
		retries:      httpclient.DefaultRetries,
		initialDelay: httpclient.DefaultInitialDelay,
		maxMsgSize:   httpclient.DefaultMaxResponseSize,
	}
}

func (c *Client) WithHttpClient(client *http.Client) *Client {
	c.client = client
	return c
}

func (c *Client) WithRetries(retries int, initialDelay time.Duration) *Client {
	c.retries = retries
	c.initialDelay = initialDelay
	return c
}

func (c *Client) WithMaxSize(maxMsgSize int64) *Client {
	c.maxMsgSize = maxMsgSize
	return c
}

func (c *Client) WithUserAgent(userAgent string) *Client {
	c.userAgent = userAgent
	return c
}

// newRequest builds a fresh retrying client per call so concurrent calls
// never share header state.
func (c *Client) newRequest() *httpclient.HttpClient {
	hc := httpclient.NewClient().
		WithRetries(c.retries).
		WithInitialDelay(c.initialDelay).
		WithMaxSize(c.maxMsgSize)
	if c.userAgent != "" {
		hc.WithHeaders("User-Agent", c.userAgent)
	}
	if token := c.tokens.Token(); token != "" {
		hc.WithHeaders(httpclient.Authorization, "Bearer "+token)
	}
	return hc
}

func (c *Client) Login(ctx context.Context, username string, password string) (TokenResponse, error) {
	form := url.Values{}
	form.Set("username", username)
	form.Set("password", password)
	var res TokenResponse
	err := c.newRequest().PostForm(ctx, c.client, c.baseUrl+"/login", form.Encode(), &res)
	return res, err
}

func (c *Client) Me(ctx context.Context) (User, error) {
	var res User
	err := c.newRequest().GetJson(ctx, c.client, c.baseUrl+"/users/me/", &res)
	return res, err
}

func (c *Client) UpdateMe(ctx context.Context, fields map[string]any) (User, error) {
	var res User
	err := c.newRequest().PutJson(ctx, c.client, c.baseUrl+"/users/me/", fields, &res)
	return res, err
}

func (c *Client) Signup(ctx context.Context, user NewUser) (User, error) {
	var res User
	err := c.newRequest().PostJson(ctx, c.client, c.baseUrl+"/users/", user, &res)
	return res, err
}

func (c *Client) ListBooks(ctx context.Context, skip int, limit int) ([]Book, error) {
	var res []Book
	u := fmt.Sprintf("%s/books/?skip=%d&limit=%d", c.baseUrl, skip, limit)
	err := c.newRequest().GetJson(ctx, c.client, u, &res)
	return res, err
}

func (c *Client) GetBook(ctx context.Context, id int64) (Book, error) {
	var res Book
	err := c.newRequest().GetJson(ctx, c.client, fmt.Sprintf("%s/books/%d", c.baseUrl, id), &res)
	return res, err
}

func (c *Client) CreateBook(ctx context.Context, book Book) (Book, error) {
	var res Book
	err := c.newRequest().PostJson(ctx, c.client, c.baseUrl+"/books/", book, &res)
	return res, err
}

func (c *Client) UpdateBook(ctx context.Context, book Book) (Book, error) {
	var res Book
	err := c.newRequest().PutJson(ctx, c.client, fmt.Sprintf("%s/books/%d", c.baseUrl, book.ID), book, &res)
	return res, err
}

func (c *Client) DeleteBook(ctx context.Context, id int64) error {
	return c.newRequest().Delete(ctx, c.client, fmt.Sprintf("%s/books/%d", c.baseUrl, id))
}

func (c *Client) CreateLoan(ctx context.Context, req CreateLoanRequest) (Loan, error) {
	var res Loan
	err := c.newRequest().PostJson(ctx, c.client, c.baseUrl+"/borrow/", req, &res)
	return res, err
}

func (c *Client) ReturnLoan(ctx context.Context, loanID int64) error {
	u := fmt.Sprintf("%s/borrow/%d/return", c.baseUrl, loanID)
	return c.newRequest().PutJson(ctx, c.client, u, nil, nil)
}

func (c *Client) RenewLoan(ctx context.Context, loanID int64, newDue openapi_types.Date) error {
	u := fmt.Sprintf("%s/borrow/%d/renew?new_due_date=%s", c.baseUrl, loanID,
		url.QueryEscape(newDue.Format(renewDateLayout)))
	return c.newRequest().PutJson(ctx, c.client, u, nil, nil)
}

// BorrowHistory returns all loans, active and returned, for the caller.
func (c *Client) BorrowHistory(ctx context.Context) ([]Loan, error) {
	var res []Loan
	err := c.newRequest().GetJson(ctx, c.client, c.baseUrl+"/users/me/borrow_history/", &res)
	return res, err
}

// BorrowedBooks returns only the caller's active loans.
func (c *Client) BorrowedBooks(ctx context.Context) ([]Loan, error) {
	var res []Loan
	err := c.newRequest().GetJson(ctx, c.client, c.baseUrl+"/users/me/borrowed_books/", &res)
	return res, err
}

// AllBorrowedBooks returns loans across all borrowers. Staff only; other
// callers get an AuthError from the server.
func (c *Client) AllBorrowedBooks(ctx context.Context) ([]Loan, error) {
	var res []Loan
	err := c.newRequest().GetJson(ctx, c.client, c.baseUrl+"/borrowed_books/all/", &res)
	return res, err
}
