package supabase

import (
	"context"
	"fmt"
	"strings"

	"github.com/supabase-community/supabase-go"
	"web2app-backend/internal/config"
)

type Client struct {
	Supabase *supabase.Client
	Config   *config.Config
}

// NewClient uses the service role key so profile reads bypass row level
// security.
func NewClient(cfg *config.Config) (*Client, error) {
	client, err := supabase.NewClient(cfg.SupabaseURL, cfg.SupabaseServiceRoleKey, nil)
	if err != nil {
		return nil, err
	}

	return &Client{
		Supabase: client,
		Config:   cfg,
	}, nil
}

type profileRow struct {
	Email string `json:"email"`
}

// ProfileEmail returns the email address on the user's profile row.
func (c *Client) ProfileEmail(ctx context.Context, userID string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	var profile profileRow
	_, err := c.Supabase.From("profiles").
		Select("email", "", false).
		Eq("id", userID).
		Single().
		ExecuteTo(&profile)
	if err != nil {
		// PostgREST answers a Single() miss with PGRST116.
		if strings.Contains(err.Error(), "PGRST116") {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("failed to load profile: %w", err)
	}
	if profile.Email == "" {
		return "", ErrNotFound
	}
	return profile.Email, nil
}
