package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"housing-chat-service/internal/apperrors"
	"housing-chat-service/internal/models"
)

// Directory resolves user ids to profiles owned by the user service.
// Conversation lists are decorated with these profiles; a directory outage
// degrades decoration, never messaging.
type Directory interface {
	FindByID(ctx context.Context, id models.UserID) (models.User, error)
	FindByEmail(ctx context.Context, email string) (models.User, error)
	BulkUsers(ctx context.Context, ids []models.UserID) (map[models.UserID]models.User, error)
}

// Client is an HTTP Directory with retry on transient failures.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient constructs a Client against the user service base URL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 5 * time.Second},
	}
}

// FindByID fetches one user profile.
func (c *Client) FindByID(ctx context.Context, id models.UserID) (models.User, error) {
	var user models.User
	err := c.getJSON(ctx, fmt.Sprintf("/api/v1/users/%d", id), &user)
	return user, err
}

// FindByEmail looks a user up by email address.
func (c *Client) FindByEmail(ctx context.Context, email string) (models.User, error) {
	var user models.User
	err := c.getJSON(ctx, "/api/v1/users/by-email?email="+url.QueryEscape(email), &user)
	return user, err
}

// BulkUsers fetches many profiles in one call. Unknown ids are absent from
// the result rather than an error.
func (c *Client) BulkUsers(ctx context.Context, ids []models.UserID) (map[models.UserID]models.User, error) {
	if len(ids) == 0 {
		return map[models.UserID]models.User{}, nil
	}

	params := make([]string, 0, len(ids))
	for _, id := range ids {
		params = append(params, strconv.FormatInt(int64(id), 10))
	}
	var users []models.User
	if err := c.getJSON(ctx, "/api/v1/users/bulk?ids="+strings.Join(params, ","), &users); err != nil {
		return nil, err
	}

	result := make(map[models.UserID]models.User, len(users))
	for _, user := range users {
		result[user.ID] = user
	}
	return result, nil
}

// getJSON issues a GET with exponential backoff on 5xx and network errors.
// 4xx responses are terminal.
func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
		if err != nil {
			return backoff.Permanent(err)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusNotFound:
			return backoff.Permanent(apperrors.NotFound("user not found"))
		case resp.StatusCode >= 500:
			return fmt.Errorf("user service returned %d", resp.StatusCode)
		case resp.StatusCode != http.StatusOK:
			return backoff.Permanent(fmt.Errorf("user service returned %d", resp.StatusCode))
		}
		return json.NewDecoder(resp.Body).Decode(out)
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3), ctx)
	return backoff.Retry(operation, policy)
}
