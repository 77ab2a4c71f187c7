package twitter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultBaseURL = "https://api.twitter.com"
	defaultTimeout = 30 * time.Second
	// MaxResults is the largest page the user tweets timeline returns
	MaxResults = 100

	problemNotFound = "https://api.twitter.com/2/problems/resource-not-found"
)

// Client is a Twitter API v2 client using app-only bearer authentication
type Client struct {
	baseURL     string
	bearerToken string
	httpClient  *http.Client
}

// ClientOption is a function that configures the Client
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithBaseURL sets a custom base URL
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimSuffix(baseURL, "/")
	}
}

// New creates a new Twitter client
func New(bearerToken string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:     defaultBaseURL,
		bearerToken: bearerToken,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// APIError represents an error returned by the Twitter API, either as an
// HTTP error status or as an entry of the "errors" array.
type APIError struct {
	Title  string `json:"title"`
	Detail string `json:"detail"`
	Type   string `json:"type"`
	Status int    `json:"status"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("twitter API error: %s: %s (status: %d)", e.Title, e.Detail, e.Status)
}

// IsNotFound reports whether the error denotes a missing resource
func (e *APIError) IsNotFound() bool {
	return e.Type == problemNotFound || e.Status == http.StatusNotFound
}

// User is a Twitter user
type User struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Username string `json:"username"`
}

// PublicMetrics are the engagement counters of a tweet
type PublicMetrics struct {
	RetweetCount int `json:"retweet_count"`
	ReplyCount   int `json:"reply_count"`
	LikeCount    int `json:"like_count"`
	QuoteCount   int `json:"quote_count"`
}

// Tweet is a tweet with the fields requested by UserTweets
type Tweet struct {
	ID            string        `json:"id"`
	Text          string        `json:"text"`
	CreatedAt     time.Time     `json:"created_at"`
	PublicMetrics PublicMetrics `json:"public_metrics"`
}

type envelope[T any] struct {
	Data   T          `json:"data"`
	Errors []APIError `json:"errors,omitempty"`
}

// UserByUsername looks up a user by handle
func (c *Client) UserByUsername(ctx context.Context, username string) (*User, error) {
	var out envelope[*User]
	if err := c.get(ctx, "/2/users/by/username/"+url.PathEscape(username), nil, &out); err != nil {
		return nil, err
	}
	if out.Data == nil {
		if len(out.Errors) > 0 {
			return nil, &out.Errors[0]
		}
		return nil, &APIError{Title: "Not Found Error", Type: problemNotFound, Status: http.StatusNotFound}
	}
	return out.Data, nil
}

// UserTweets returns the most recent tweets of a user, excluding retweets and replies
func (c *Client) UserTweets(ctx context.Context, userID string) ([]Tweet, error) {
	params := url.Values{}
	params.Set("max_results", fmt.Sprintf("%d", MaxResults))
	params.Set("exclude", "retweets,replies")
	params.Set("tweet.fields", "public_metrics,created_at")

	var out envelope[[]Tweet]
	if err := c.get(ctx, "/2/users/"+url.PathEscape(userID)+"/tweets", params, &out); err != nil {
		return nil, err
	}
	if out.Data == nil && len(out.Errors) > 0 {
		return nil, &out.Errors[0]
	}
	return out.Data, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values, out interface{}) error {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.bearerToken)

	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response body: %w", err)
	}

	if resp.StatusCode >= 400 {
		apiErr := &APIError{Status: resp.StatusCode}
		if err := json.Unmarshal(body, apiErr); err != nil || apiErr.Title == "" {
			apiErr.Title = http.StatusText(resp.StatusCode)
			apiErr.Detail = string(body)
		}
		apiErr.Status = resp.StatusCode
		return apiErr
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}

	return nil
}
