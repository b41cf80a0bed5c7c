package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/publion/publion/pkg/models"
	"github.com/publion/publion/pkg/web"
)

// Client talks to a running publion-api instance.
type Client struct {
	BaseURL string
	UserID  string

	httpClient http.Client
}

// ApproveOptions carries the optional edits attached to an approval.
type ApproveOptions struct {
	EditedTwitter  string
	EditedLinkedIn string
	RejectImage    bool
}

func (c *Client) Create(ctx context.Context, articleURL string) error {
	var execution web.ExecutionResponse

	err := c.do(ctx, http.MethodPost, "/v1/executions", web.CreateExecutionRequest{
		UserID: c.UserID,
		URL:    articleURL,
	}, &execution)
	if err != nil {
		return err
	}

	fmt.Printf("Run %s started for %s\n", execution.ID, execution.URL)
	fmt.Printf("Check progress with: publion -u %s get %s\n", c.UserID, execution.ID)

	return nil
}

func (c *Client) Get(ctx context.Context, executionID string) error {
	var execution web.ExecutionResponse

	path := "/v1/executions/" + url.PathEscape(executionID) + "?user_id=" + url.QueryEscape(c.UserID)
	if err := c.do(ctx, http.MethodGet, path, nil, &execution); err != nil {
		return err
	}

	printExecution(execution)

	return nil
}

func (c *Client) Inbox(ctx context.Context) error {
	var inbox struct {
		Executions []web.ExecutionResponse `json:"executions"`
		TotalCount int                     `json:"total_count"`
	}

	if err := c.do(ctx, http.MethodGet, "/v1/inbox?user_id="+url.QueryEscape(c.UserID), nil, &inbox); err != nil {
		return err
	}

	if inbox.TotalCount == 0 {
		fmt.Println("Inbox is empty.")

		return nil
	}

	for _, execution := range inbox.Executions {
		fmt.Printf("%s  %-15s  %s\n", execution.ID, execution.Status, execution.URL)
	}

	return nil
}

func (c *Client) Approve(ctx context.Context, executionID string, opts ApproveOptions) error {
	return c.postAction(ctx, executionID, web.ActionRequest{
		UserID:         c.UserID,
		ApproveContent: true,
		ApproveImage:   !opts.RejectImage,
		RejectImage:    opts.RejectImage,
		EditedTwitter:  opts.EditedTwitter,
		EditedLinkedIn: opts.EditedLinkedIn,
	})
}

func (c *Client) Reject(ctx context.Context, executionID string) error {
	return c.postAction(ctx, executionID, web.ActionRequest{
		UserID:        c.UserID,
		RejectContent: true,
	})
}

func (c *Client) Regenerate(ctx context.Context, executionID string, twitter, linkedin bool) error {
	// Neither flag means both platforms.
	if !twitter && !linkedin {
		twitter = true
		linkedin = true
	}

	return c.postAction(ctx, executionID, web.ActionRequest{
		UserID:             c.UserID,
		RegenerateTwitter:  twitter,
		RegenerateLinkedIn: linkedin,
	})
}

func (c *Client) Connections(ctx context.Context) error {
	var listed struct {
		Connections []web.ConnectionResponse `json:"connections"`
		TotalCount  int                      `json:"total_count"`
	}

	if err := c.do(ctx, http.MethodGet, "/v1/connections?user_id="+url.QueryEscape(c.UserID), nil, &listed); err != nil {
		return err
	}

	if listed.TotalCount == 0 {
		fmt.Println("No publishing accounts connected.")

		return nil
	}

	for _, connection := range listed.Connections {
		marker := " "
		if connection.IsDefault {
			marker = "*"
		}

		fmt.Printf("%s %s  %-8s  %s\n", marker, connection.ID, connection.Provider, connection.AccountID)
	}

	return nil
}

func (c *Client) postAction(ctx context.Context, executionID string, action web.ActionRequest) error {
	var execution web.ExecutionResponse

	path := "/v1/executions/" + url.PathEscape(executionID) + "/actions"
	if err := c.do(ctx, http.MethodPost, path, action, &execution); err != nil {
		return err
	}

	printExecution(execution)

	return nil
}

func (c *Client) do(ctx context.Context, method, path string, payload, result any) error {
	var body io.Reader

	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return err
		}

		body = bytes.NewReader(encoded)
	}

	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}

	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return apiError(resp.StatusCode, raw)
	}

	if result == nil {
		return nil
	}

	return json.Unmarshal(raw, result)
}

// apiError surfaces the problem detail the API returns instead of raw JSON.
func apiError(status int, raw []byte) error {
	var problem struct {
		Detail string `json:"detail"`
		Title  string `json:"title"`
	}

	if err := json.Unmarshal(raw, &problem); err == nil {
		if problem.Detail != "" {
			return fmt.Errorf("api error (%d): %s", status, problem.Detail)
		}

		if problem.Title != "" {
			return fmt.Errorf("api error (%d): %s", status, problem.Title)
		}
	}

	return fmt.Errorf("api error (%d): %s", status, string(raw))
}

func printExecution(execution web.ExecutionResponse) {
	fmt.Printf("Run:     %s\n", execution.ID)
	fmt.Printf("URL:     %s\n", execution.URL)
	fmt.Printf("Status:  %s\n", execution.Status)

	if execution.TwitterDraft != "" {
		fmt.Printf("\nTwitter draft:\n%s\n", execution.TwitterDraft)
	}

	if execution.LinkedInDraft != "" {
		fmt.Printf("\nLinkedIn draft:\n%s\n", execution.LinkedInDraft)
	}

	if execution.Interrupt != nil {
		fmt.Printf("\nWaiting on: %s\n", execution.Interrupt.Type)

		if execution.Interrupt.Message != "" {
			fmt.Println(execution.Interrupt.Message)
		}
	}

	if execution.PublishStatus != nil {
		fmt.Printf("\nPublishing:\n")
		printPublishOutcome("Twitter", execution.PublishStatus.Twitter, execution.PublishStatus.TweetID)
		printPublishOutcome("LinkedIn", execution.PublishStatus.LinkedIn, execution.PublishStatus.LinkedInPostURN)

		if execution.PublishStatus.LastError != "" {
			fmt.Printf("  Last error: %s\n", execution.PublishStatus.LastError)
		}
	}

	if execution.TerminateReason != "" {
		fmt.Printf("\nEnded: %s\n", execution.TerminateReason)
	}
}

func printPublishOutcome(label string, outcome models.PlatformPublishState, postID string) {
	if postID != "" {
		fmt.Printf("  %s: %s (%s)\n", label, outcome, postID)

		return
	}

	fmt.Printf("  %s: %s\n", label, outcome)
}
