package misskey

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

const (
	defaultTimeout = 30 * time.Second
	// MaxNotesPerPage is the largest page users/notes accepts
	MaxNotesPerPage = 100
)

// Client is a Misskey API client
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// ClientOption is a function that configures the Client
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithToken sets the access token sent as "i"
func WithToken(token string) ClientOption {
	return func(c *Client) {
		c.token = token
	}
}

// New creates a new Misskey client for an instance, e.g. "https://misskey.example"
func New(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// APIError represents an error from the Misskey API
type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code"`
	ID      string `json:"id"`
	Status  int    `json:"-"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("misskey API error: %s (code: %s, status: %d)", e.Message, e.Code, e.Status)
}

// Error codes of interest
const (
	CodeNoSuchUser = "NO_SUCH_USER"
)

// ErrorResponse represents an error response from the API
type ErrorResponse struct {
	Error APIError `json:"error"`
}

// User is a Misskey user
type User struct {
	ID       string  `json:"id"`
	Username string  `json:"username"`
	Host     *string `json:"host"`
	Name     *string `json:"name"`
}

// Note is a Misskey note
type Note struct {
	ID           string         `json:"id"`
	CreatedAt    time.Time      `json:"createdAt"`
	Text         *string        `json:"text"`
	UserID       string         `json:"userId"`
	User         *User          `json:"user,omitempty"`
	ReplyID      *string        `json:"replyId"`
	RenoteID     *string        `json:"renoteId"`
	RenoteCount  int            `json:"renoteCount"`
	RepliesCount int            `json:"repliesCount"`
	Reactions    map[string]int `json:"reactions"`
	FileIDs      []string       `json:"fileIds,omitempty"`
}

// TextOrEmpty returns the note text or "" for notes without text
func (n Note) TextOrEmpty() string {
	if n.Text == nil {
		return ""
	}
	return *n.Text
}

// ReactionCount sums every reaction on the note
func (n Note) ReactionCount() int {
	total := 0
	for _, c := range n.Reactions {
		total += c
	}
	return total
}

// IsPureRenote reports whether the note only reposts another note
func (n Note) IsPureRenote() bool {
	return n.RenoteID != nil && n.TextOrEmpty() == "" && len(n.FileIDs) == 0
}

// ShowUser looks up a local user by username
func (c *Client) ShowUser(ctx context.Context, username string) (*User, error) {
	var out User
	if err := c.post(ctx, "users/show", map[string]any{"username": username}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UserNotesInput represents input for listing a user's notes
type UserNotesInput struct {
	UserID         string
	Limit          int
	UntilID        string // exclusive cursor, newest first
	IncludeReplies bool
	WithRenotes    bool
}

// UserNotes returns one page of a user's notes, newest first
func (c *Client) UserNotes(ctx context.Context, in UserNotesInput) ([]Note, error) {
	limit := in.Limit
	if limit <= 0 || limit > MaxNotesPerPage {
		limit = MaxNotesPerPage
	}

	body := map[string]any{
		"userId":         in.UserID,
		"limit":          limit,
		"includeReplies": in.IncludeReplies,
		"withRenotes":    in.WithRenotes,
	}
	if in.UntilID != "" {
		body["untilId"] = in.UntilID
	}

	var out []Note
	if err := c.post(ctx, "users/notes", body, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// FetchYearNotes pages through a user's notes until a page is empty or a note
// from another year shows up. Pure renotes are skipped.
func (c *Client) FetchYearNotes(ctx context.Context, userID string, year int, loc *time.Location) ([]Note, error) {
	if loc == nil {
		loc = time.UTC
	}

	var notes []Note
	cursor := ""
	for {
		page, err := c.UserNotes(ctx, UserNotesInput{UserID: userID, UntilID: cursor})
		if err != nil {
			return nil, err
		}
		if len(page) == 0 {
			return notes, nil
		}

		for _, n := range page {
			if n.CreatedAt.In(loc).Year() != year {
				return notes, nil
			}
			if n.IsPureRenote() {
				continue
			}
			notes = append(notes, n)
		}
		cursor = page[len(page)-1].ID
	}
}

// DriveFile is an uploaded drive file
type DriveFile struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URL  string `json:"url"`
}

// UploadFile uploads a file to the bot's drive
func (c *Client) UploadFile(ctx context.Context, name string, data []byte) (*DriveFile, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("i", c.token); err != nil {
		return nil, fmt.Errorf("writing form: %w", err)
	}
	if err := mw.WriteField("name", name); err != nil {
		return nil, fmt.Errorf("writing form: %w", err)
	}
	fw, err := mw.CreateFormFile("file", name)
	if err != nil {
		return nil, fmt.Errorf("writing form: %w", err)
	}
	if _, err := fw.Write(data); err != nil {
		return nil, fmt.Errorf("writing form: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("writing form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("drive/files/create"), &buf)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var out DriveFile
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateNoteInput represents input for creating a note
type CreateNoteInput struct {
	Text       string
	ReplyID    string
	FileIDs    []string
	Visibility string // defaults to "public"
}

type createNoteOutput struct {
	CreatedNote Note `json:"createdNote"`
}

// CreateNote posts a note, optionally as a reply with attached files
func (c *Client) CreateNote(ctx context.Context, in CreateNoteInput) (*Note, error) {
	body := map[string]any{
		"text":       in.Text,
		"visibility": "public",
	}
	if in.Visibility != "" {
		body["visibility"] = in.Visibility
	}
	if in.ReplyID != "" {
		body["replyId"] = in.ReplyID
	}
	if len(in.FileIDs) > 0 {
		body["fileIds"] = in.FileIDs
	}

	var out createNoteOutput
	if err := c.post(ctx, "notes/create", body, &out); err != nil {
		return nil, err
	}
	return &out.CreatedNote, nil
}

func (c *Client) endpoint(path string) string {
	return c.baseURL + "/api/" + path
}

// post sends a JSON body with the access token added as "i"
func (c *Client) post(ctx context.Context, path string, body map[string]any, out interface{}) error {
	if c.token != "" {
		body["i"] = c.token
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(path), bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

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

	// Check for error response
	if resp.StatusCode >= 400 {
		var errResp ErrorResponse
		if err := json.Unmarshal(body, &errResp); err != nil || errResp.Error.Code == "" {
			return &APIError{Message: string(body), Status: resp.StatusCode}
		}
		errResp.Error.Status = resp.StatusCode
		return &errResp.Error
	}

	if out != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}

	return nil
}
