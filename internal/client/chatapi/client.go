// Package chatapi is the client of the QuickPage chat backend: a single
// endpoint that takes an action-tagged JSON body carrying the caller's token.
package chatapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dmitrijs2005/quickpage/internal/common"
	"github.com/dmitrijs2005/quickpage/internal/logging"
)

var (
	// ErrTransport covers network failures and bodies that are not JSON.
	ErrTransport = errors.New("chat backend transport error")
	// ErrMalformed is returned when a response matches no known shape.
	ErrMalformed = errors.New("unexpected response format")
	// ErrTimeout is returned when the gateway answered with a timeout message.
	ErrTimeout = errors.New("chat backend timed out")
)

// ResponseError is a structured error reported by the backend.
type ResponseError struct {
	Message string
}

func (e *ResponseError) Error() string { return e.Message }

// Action names understood by the backend.
const (
	ActionListSessions      = "listSessions"
	ActionGetSession        = "getSession"
	ActionDelete            = "delete"
	ActionPreloadEmbeddings = "preloadEmbeddings"
	ActionAsk               = "ask"
)

// PageContent is the extracted page as the backend expects it.
type PageContent struct {
	Text string `json:"text"`
}

type request struct {
	Action       string       `json:"action"`
	AuthToken    string       `json:"authToken"`
	SessionID    string       `json:"session_id,omitempty"`
	PageContent  *PageContent `json:"pageContent,omitempty"`
	Prompt       string       `json:"prompt,omitempty"`
	ImageContext *string      `json:"imageContext,omitempty"`
	PageURL      string       `json:"pageURL,omitempty"`
}

// Client has no request timeout of its own: a slow backend surfaces as a
// gateway timeout message.
type Client struct {
	endpoint   string
	httpClient *http.Client
	log        logging.Logger
}

func NewClient(endpoint string, httpClient *http.Client, log logging.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if log == nil {
		log = logging.Nop()
	}
	return &Client{endpoint: endpoint, httpClient: httpClient, log: log}
}

func (c *Client) call(ctx context.Context, req request, successField string) (Result, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return Result{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return Result{}, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, fmt.Errorf("%w: read body: %v", ErrTransport, err)
	}

	res, err := Classify(resp.StatusCode, raw, successField)
	if err != nil {
		return Result{}, fmt.Errorf("%w: status %d: %v", ErrTransport, resp.StatusCode, err)
	}
	c.log.Debug(ctx, "backend call",
		"action", req.Action,
		"status", resp.StatusCode,
		"kind", res.Kind.String(),
		"elapsed", time.Since(start))
	return res, nil
}

// asError converts every non-success kind into an error.
func asError(res Result) error {
	switch res.Kind {
	case Success:
		return nil
	case AuthFailure:
		return common.ErrMustReauthenticate
	case AppError:
		return &ResponseError{Message: res.Text}
	case Timeout:
		return fmt.Errorf("%w: %s", ErrTimeout, res.Text)
	default:
		return ErrMalformed
	}
}

// AskRequest carries one question about a page.
type AskRequest struct {
	Token        string
	SessionID    string
	PageContent  string
	Prompt       string
	ImageContext string
	PageURL      string
}

// Ask returns the classified result so the caller can render every kind;
// the error is non-nil only for transport failures.
func (c *Client) Ask(ctx context.Context, in AskRequest) (Result, error) {
	return c.call(ctx, request{
		Action:       ActionAsk,
		AuthToken:    in.Token,
		SessionID:    in.SessionID,
		PageContent:  &PageContent{Text: in.PageContent},
		Prompt:       in.Prompt,
		ImageContext: &in.ImageContext,
		PageURL:      in.PageURL,
	}, "response")
}

func (c *Client) PreloadEmbeddings(ctx context.Context, token, pageContent, pageURL string) error {
	res, err := c.call(ctx, request{
		Action:      ActionPreloadEmbeddings,
		AuthToken:   token,
		PageContent: &PageContent{Text: pageContent},
		PageURL:     pageURL,
	}, "")
	if err != nil {
		return err
	}
	return asError(res)
}

func (c *Client) DeleteSession(ctx context.Context, token, sessionID string) error {
	res, err := c.call(ctx, request{Action: ActionDelete, AuthToken: token, SessionID: sessionID}, "")
	if err != nil {
		return err
	}
	return asError(res)
}
