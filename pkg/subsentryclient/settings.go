package subsentryclient

import (
	"context"
	"net/http"
	"net/url"

	"github.com/subsentry/dashboard-service/internal/domain"
)

func (c *Client) Settings(ctx context.Context, userID string) (*domain.Settings, error) {
	q, err := c.userQuery(userID, nil)
	if err != nil {
		return nil, err
	}
	var out domain.Settings
	if err := c.getObject(ctx, "/settings", q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateSettings(ctx context.Context, userID string, s domain.Settings) error {
	q, err := c.userQuery(userID, nil)
	if err != nil {
		return err
	}
	return c.send(ctx, http.MethodPut, "/settings", q, s, nil)
}

func (c *Client) Categories(ctx context.Context, userID string) ([]domain.Category, error) {
	q, err := c.userQuery(userID, nil)
	if err != nil {
		return nil, err
	}
	out := []domain.Category{}
	if err := c.getList(ctx, "/settings/categories", q, &out, "categories"); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) AddCategory(ctx context.Context, userID string, cat domain.Category) (*domain.Category, error) {
	q, err := c.userQuery(userID, nil)
	if err != nil {
		return nil, err
	}
	var out domain.Category
	if err := c.send(ctx, http.MethodPost, "/settings/categories", q, cat, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateCategory(ctx context.Context, userID, id string, cat domain.Category) error {
	q, err := c.userQuery(userID, nil)
	if err != nil {
		return err
	}
	return c.send(ctx, http.MethodPut, "/settings/categories/"+url.PathEscape(id), q, cat, nil)
}

func (c *Client) DeleteCategory(ctx context.Context, userID, id string) error {
	q, err := c.userQuery(userID, nil)
	if err != nil {
		return err
	}
	return c.send(ctx, http.MethodDelete, "/settings/categories/"+url.PathEscape(id), q, nil, nil)
}

// Currencies lists supported currencies; no user id is needed.
func (c *Client) Currencies(ctx context.Context) ([]domain.Currency, error) {
	out := []domain.Currency{}
	if err := c.getList(ctx, "/settings/currencies", nil, &out, "currencies"); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) UpdateCurrency(ctx context.Context, userID, currency string) error {
	q, err := c.userQuery(userID, nil)
	if err != nil {
		return err
	}
	return c.send(ctx, http.MethodPut, "/settings/currency", q, map[string]string{"currency": currency}, nil)
}
