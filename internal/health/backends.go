package health

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/MrWong99/sooshi/internal/config"
)

// Reachable returns a Checker that sends GET url and passes on any response
// below 500. Some backends only accept POST on their endpoint; a 404 or 405
// still proves the server is up.
func Reachable(name, url string, client *http.Client) Checker {
	if client == nil {
		client = http.DefaultClient
	}
	return Checker{
		Name: name,
		Check: func(ctx context.Context) error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
			if err != nil {
				return err
			}
			resp, err := client.Do(req)
			if err != nil {
				return err
			}
			resp.Body.Close()
			if resp.StatusCode >= http.StatusInternalServerError {
				return fmt.Errorf("%s answered %d", url, resp.StatusCode)
			}
			return nil
		},
	}
}

// BackendCheckers returns one reachability check per self-hosted backend the
// active provider depends on. The hosted OpenAI API is not probed.
func BackendCheckers(cfg *config.Config, client *http.Client) []Checker {
	var checkers []Checker
	if cfg.Provider == config.ProviderLocal {
		checkers = append(checkers,
			Reachable("ollama", strings.TrimRight(cfg.Ollama.BaseURL, "/")+"/api/tags", client),
			Reachable("coqui", cfg.Coqui.URL, client),
		)
	}
	if cfg.Whisper.URL != "" {
		checkers = append(checkers, Reachable("whisper", cfg.Whisper.URL, client))
	}
	return checkers
}
