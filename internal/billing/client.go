package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"github.com/MrJamesThe3rd/cobrador/internal/reminder"
)

const (
	defaultMaxRetries      = 3
	defaultInitialInterval = 500 * time.Millisecond
)

// APIError is a non-2xx response from the billing provider.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("billing API error (status %d): %s", e.StatusCode, e.Body)
}

// Client reads invoices and customers from an Asaas-compatible billing API.
type Client struct {
	baseURL         string
	apiKey          string
	http            *http.Client
	loc             *time.Location
	maxRetries      uint64
	initialInterval time.Duration
	limiter         *rate.Limiter
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.http = c }
}

// WithLocation sets the timezone due dates are interpreted in.
func WithLocation(loc *time.Location) Option {
	return func(cl *Client) { cl.loc = loc }
}

func WithRetry(maxRetries uint64, initial time.Duration) Option {
	return func(cl *Client) {
		cl.maxRetries = maxRetries
		cl.initialInterval = initial
	}
}

// WithRateLimit caps outgoing requests, retries included, at perSecond.
// Zero or less leaves requests unthrottled.
func WithRateLimit(perSecond float64) Option {
	return func(cl *Client) {
		if perSecond > 0 {
			cl.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
		}
	}
}

func New(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL:         strings.TrimRight(baseURL, "/"),
		apiKey:          apiKey,
		http:            &http.Client{Timeout: 30 * time.Second},
		loc:             time.Local,
		maxRetries:      defaultMaxRetries,
		initialInterval: defaultInitialInterval,
		limiter:         rate.NewLimiter(rate.Inf, 1),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

type paymentList struct {
	HasMore bool      `json:"hasMore"`
	Data    []payment `json:"data"`
}

type payment struct {
	ID         string          `json:"id"`
	Customer   string          `json:"customer"`
	Value      decimal.Decimal `json:"value"`
	DueDate    string          `json:"dueDate"`
	Status     string          `json:"status"`
	InvoiceURL string          `json:"invoiceUrl"`
}

type customer struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	MobilePhone string `json:"mobilePhone"`
	Phone       string `json:"phone"`
	Deleted     bool   `json:"deleted"`
}

func providerStatus(class reminder.StatusClass) string {
	if class == reminder.StatusOverdue {
		return "OVERDUE"
	}

	return "PENDING"
}

func statusClass(status string) reminder.StatusClass {
	if status == "OVERDUE" {
		return reminder.StatusOverdue
	}

	return reminder.StatusPending
}

// SearchInvoices lists open invoices due exactly on q.DueDate.
func (c *Client) SearchInvoices(ctx context.Context, q reminder.InvoiceQuery) (*reminder.InvoicePage, error) {
	day := q.DueDate.Format(time.DateOnly)

	params := url.Values{}
	params.Set("dueDate[ge]", day)
	params.Set("dueDate[le]", day)
	params.Set("status", providerStatus(q.Status))
	params.Set("offset", strconv.Itoa(q.Offset))
	params.Set("limit", strconv.Itoa(q.Limit))

	var list paymentList
	if err := c.get(ctx, "/v3/payments", params, &list); err != nil {
		return nil, fmt.Errorf("searching payments due %s: %w", day, err)
	}

	page := &reminder.InvoicePage{
		Invoices: make([]reminder.Invoice, 0, len(list.Data)),
		HasMore:  list.HasMore,
	}

	for _, p := range list.Data {
		if p.DueDate != day {
			continue
		}

		due, err := time.ParseInLocation(time.DateOnly, p.DueDate, c.loc)
		if err != nil {
			return nil, fmt.Errorf("parsing due date of payment %s: %w", p.ID, err)
		}

		page.Invoices = append(page.Invoices, reminder.Invoice{
			ID:             p.ID,
			CustomerID:     p.Customer,
			Value:          p.Value,
			DueDate:        due,
			Status:         statusClass(p.Status),
			PaymentLinkURL: p.InvoiceURL,
		})
	}

	return page, nil
}

// GetCustomer fetches one customer. Deleted customers come back without a phone.
func (c *Client) GetCustomer(ctx context.Context, id string) (*reminder.Customer, error) {
	var cust customer

	err := c.get(ctx, "/v3/customers/"+url.PathEscape(id), nil, &cust)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return nil, reminder.ErrCustomerNotFound
		}

		return nil, fmt.Errorf("getting customer %s: %w", id, err)
	}

	phone := cust.MobilePhone
	if strings.TrimSpace(phone) == "" {
		phone = cust.Phone
	}

	if cust.Deleted {
		phone = ""
	}

	if cust.ID == "" {
		cust.ID = id
	}

	return &reminder.Customer{
		ID:          cust.ID,
		DisplayName: cust.Name,
		Phone:       strings.TrimSpace(phone),
	}, nil
}

// get performs a GET with retries on transport errors, 429 and 5xx.
func (c *Client) get(ctx context.Context, path string, params url.Values, out any) error {
	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	operation := func() ([]byte, error) {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, backoff.Permanent(fmt.Errorf("waiting for rate limit: %w", err))
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, backoff.Permanent(fmt.Errorf("creating request: %w", err))
		}

		req.Header.Set("Accept", "application/json")
		req.Header.Set("access_token", c.apiKey)

		resp, err := c.http.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, backoff.Permanent(err)
			}

			return nil, fmt.Errorf("sending request: %w", err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("reading response: %w", err)
		}

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(body)}
			if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
				return nil, apiErr
			}

			return nil, backoff.Permanent(apiErr)
		}

		return body, nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.initialInterval

	body, err := backoff.RetryWithData(operation, backoff.WithContext(backoff.WithMaxRetries(b, c.maxRetries), ctx))
	if err != nil {
		return err
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("parsing response: %w", err)
	}

	return nil
}
