package subsentryclient

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"

	"github.com/tidwall/gjson"

	"github.com/subsentry/dashboard-service/internal/domain"
)

// ListParams filters the subscription list.
type ListParams struct {
	UserID   string
	Category string
	Search   string
	Page     int
	Size     int
}

func (p ListParams) values() url.Values {
	v := url.Values{}
	v.Set("category", p.Category)
	v.Set("search", p.Search)
	if p.Page > 0 {
		v.Set("page", strconv.Itoa(p.Page))
	}
	if p.Size > 0 {
		v.Set("size", strconv.Itoa(p.Size))
	}
	return v
}

// ListSubscriptions fetches the user's subscriptions.
func (c *Client) ListSubscriptions(ctx context.Context, p ListParams) ([]domain.Subscription, error) {
	q, err := c.userQuery(p.UserID, p.values())
	if err != nil {
		return nil, err
	}
	out := []domain.Subscription{}
	if err := c.getList(ctx, "/subscriptions", q, &out, "subscriptions", "items"); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetSubscription(ctx context.Context, userID, id string) (*domain.Subscription, error) {
	q, err := c.userQuery(userID, nil)
	if err != nil {
		return nil, err
	}
	var out domain.Subscription
	if err := c.getJSON(ctx, "/subscriptions/"+url.PathEscape(id), q, &out); err != nil {
		return nil, err
	}
	if out.ID == "" {
		return nil, domain.ErrNotFound
	}
	return &out, nil
}

// CreateSubscription persists a validated form with its recomputed renewal date.
func (c *Client) CreateSubscription(ctx context.Context, userID string, in domain.SubscriptionInput) (*domain.Subscription, error) {
	q, err := c.userQuery(userID, nil)
	if err != nil {
		return nil, err
	}
	var out domain.Subscription
	if err := c.send(ctx, http.MethodPost, "/subscriptions", q, in.WithRenewal(), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateSubscription(ctx context.Context, userID, id string, in domain.SubscriptionInput) (*domain.Subscription, error) {
	q, err := c.userQuery(userID, nil)
	if err != nil {
		return nil, err
	}
	var out domain.Subscription
	if err := c.send(ctx, http.MethodPut, "/subscriptions/"+url.PathEscape(id), q, in.WithRenewal(), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteSubscription(ctx context.Context, userID, id string) error {
	q, err := c.userQuery(userID, nil)
	if err != nil {
		return err
	}
	return c.send(ctx, http.MethodDelete, "/subscriptions/"+url.PathEscape(id), q, nil, nil)
}

// BulkUpdateSubscriptions applies per-id field changes.
func (c *Client) BulkUpdateSubscriptions(ctx context.Context, userID string, updates []domain.BulkUpdate) error {
	q, err := c.userQuery(userID, nil)
	if err != nil {
		return err
	}
	return c.send(ctx, http.MethodPut, "/subscriptions/bulk", q, map[string]interface{}{"updates": updates}, nil)
}

func (c *Client) BulkDeleteSubscriptions(ctx context.Context, userID string, ids []string) error {
	q, err := c.userQuery(userID, nil)
	if err != nil {
		return err
	}
	return c.send(ctx, http.MethodDelete, "/subscriptions/bulk", q, map[string][]string{"ids": ids}, nil)
}

// ImportSubscriptions uploads a file as multipart form data and returns the imported count.
func (c *Client) ImportSubscriptions(ctx context.Context, userID, filename string, data []byte) (int, error) {
	q, err := c.userQuery(userID, nil)
	if err != nil {
		return 0, err
	}
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return 0, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return 0, fmt.Errorf("failed to write form file: %w", err)
	}
	if err := mw.Close(); err != nil {
		return 0, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	resp, err := c.do(ctx, request{
		method:      http.MethodPost,
		path:        "/subscriptions/import",
		query:       q,
		rawBody:     buf.Bytes(),
		contentType: mw.FormDataContentType(),
	})
	if err != nil {
		return 0, err
	}
	imported := gjson.GetBytes(resp.body, "imported")
	if !imported.Exists() {
		imported = gjson.GetBytes(Unwrap(resp.body), "imported")
	}
	return int(imported.Int()), nil
}

// ExportSubscriptions downloads the user's subscriptions. A JSON reply carrying the file
// content as a string under data is accepted as well as a raw binary body.
func (c *Client) ExportSubscriptions(ctx context.Context, userID, format, category string) (*Blob, error) {
	if format == "" {
		format = "csv"
	}
	params := url.Values{}
	params.Set("format", format)
	params.Set("category", category)
	q, err := c.userQuery(userID, params)
	if err != nil {
		return nil, err
	}
	resp, err := c.do(ctx, request{method: http.MethodGet, path: "/subscriptions/export", query: q})
	if err != nil {
		return nil, err
	}
	return blobFrom(resp, "subscriptions", format), nil
}

// UpcomingSubscriptions lists renewals due within days.
func (c *Client) UpcomingSubscriptions(ctx context.Context, userID string, days int) ([]domain.Subscription, error) {
	params := url.Values{}
	params.Set("days", strconv.Itoa(days))
	q, err := c.userQuery(userID, params)
	if err != nil {
		return nil, err
	}
	out := []domain.Subscription{}
	if err := c.getList(ctx, "/subscriptions/upcoming", q, &out, "subscriptions"); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) SubscriptionsByDateRange(ctx context.Context, userID string, start, end domain.Date) ([]domain.Subscription, error) {
	params := url.Values{}
	params.Set("startDate", start.Format("2006-01-02"))
	params.Set("endDate", end.Format("2006-01-02"))
	q, err := c.userQuery(userID, params)
	if err != nil {
		return nil, err
	}
	out := []domain.Subscription{}
	if err := c.getList(ctx, "/subscriptions/date-range", q, &out, "subscriptions"); err != nil {
		return nil, err
	}
	return out, nil
}

func blobFrom(resp *response, name, format string) *Blob {
	contentType := resp.header.Get("Content-Type")
	data := resp.body
	if gjson.ValidBytes(resp.body) {
		if inner := gjson.GetBytes(resp.body, "data"); inner.Type == gjson.String {
			data = []byte(inner.String())
			contentType = "application/octet-stream"
		}
	}
	return &Blob{
		Data:        data,
		ContentType: contentType,
		Filename:    filenameFrom(resp.header.Get("Content-Disposition"), name, format),
	}
}
