package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/rm-hull/http-service/internal"
)

// Refresh exchanges a refresh token for a new session and persists it. With
// no token the stored one is used. A given token is stored once the
// exchange succeeds, unless the new session carries a rotated one.
func Refresh(token string) error {
	a, err := bootstrap(false, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := context.Background()
	if token == "" {
		return printResult(internal.KeepAlive(ctx, a.svc, a.store, a.logger))
	}

	result := a.svc.RefreshToken(ctx, token)
	if result.IsSuccess() {
		if err := a.store.SetRefreshToken(ctx, token); err != nil {
			return err
		}
		if err := internal.PersistSession(ctx, a.store, result); err != nil {
			return err
		}
	}
	return printResult(result)
}

func SetToken(token string) error {
	if token == "" {
		return errors.New("refresh token must not be empty")
	}
	a, err := bootstrap(false, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.store.SetRefreshToken(context.Background(), token); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "refresh token stored for profile %q\n", a.cfg.Session.Profile)
	return nil
}

func ShowSession() error {
	a, err := bootstrap(false, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	current, err := a.store.Session(context.Background())
	if err != nil {
		return err
	}
	if current == nil {
		return errors.Newf("no session stored for profile %q", a.cfg.Session.Profile)
	}

	info := map[string]any{
		"profile":           current.Profile,
		"has_refresh_token": current.HasRefreshToken(),
		"updated_at":        current.UpdatedAt.Format(time.RFC3339),
	}
	if len(current.Payload) > 0 {
		info["payload"] = current.Payload
	}

	out, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(os.Stdout, string(out))
	return nil
}

func ClearSession() error {
	a, err := bootstrap(false, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	return a.store.Clear(context.Background())
}
