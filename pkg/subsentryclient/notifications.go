package subsentryclient

import (
	"context"
	"net/http"
	"net/url"

	"github.com/subsentry/dashboard-service/internal/domain"
)

func (c *Client) Notifications(ctx context.Context, userID string) ([]domain.Notification, error) {
	q, err := c.userQuery(userID, nil)
	if err != nil {
		return nil, err
	}
	out := []domain.Notification{}
	if err := c.getList(ctx, "/notifications", q, &out, "notifications"); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) MarkNotificationRead(ctx context.Context, userID, id string) error {
	q, err := c.userQuery(userID, nil)
	if err != nil {
		return err
	}
	return c.send(ctx, http.MethodPut, "/notifications/"+url.PathEscape(id)+"/read", q, nil, nil)
}

func (c *Client) MarkAllNotificationsRead(ctx context.Context, userID string) error {
	q, err := c.userQuery(userID, nil)
	if err != nil {
		return err
	}
	return c.send(ctx, http.MethodPut, "/notifications/read-all", q, nil, nil)
}

func (c *Client) DeleteNotification(ctx context.Context, userID, id string) error {
	q, err := c.userQuery(userID, nil)
	if err != nil {
		return err
	}
	return c.send(ctx, http.MethodDelete, "/notifications/"+url.PathEscape(id), q, nil, nil)
}

func (c *Client) NotificationPreferences(ctx context.Context, userID string) (*domain.NotificationPreferences, error) {
	q, err := c.userQuery(userID, nil)
	if err != nil {
		return nil, err
	}
	var out domain.NotificationPreferences
	if err := c.getObject(ctx, "/notifications/preferences", q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateNotificationPreferences(ctx context.Context, userID string, prefs domain.NotificationPreferences) error {
	q, err := c.userQuery(userID, nil)
	if err != nil {
		return err
	}
	return c.send(ctx, http.MethodPut, "/notifications/preferences", q, prefs, nil)
}

// TestNotification asks the backend to emit a sample notification of the given type.
func (c *Client) TestNotification(ctx context.Context, userID string, kind domain.NotificationType) error {
	q, err := c.userQuery(userID, nil)
	if err != nil {
		return err
	}
	return c.send(ctx, http.MethodPost, "/notifications/test", q, map[string]string{"type": string(kind)}, nil)
}
