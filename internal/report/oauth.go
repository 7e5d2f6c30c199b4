package report

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/sheets/v4"
)

// authCallbackAddr is where the interactive flow listens for the OAuth2
// redirect. It must match a redirect URI registered on the OAuth client.
const authCallbackAddr = ":8080"

// authTimeout bounds how long the interactive flow waits for the user to
// finish the consent screen in the browser.
const authTimeout = 5 * time.Minute

// OAuthApp identifies the OAuth2 application used for interactive
// authorization. TokenFile, when set, is where the resulting token is saved.
type OAuthApp struct {
	ClientID     string
	ClientSecret string
	TokenFile    string
}

// Authorize runs the interactive OAuth2 consent flow: it starts a local
// callback server, logs the consent URL for the user to visit, and
// exchanges the returned code for a token with offline access. The refresh
// token in the result is what the report configuration needs.
func Authorize(ctx context.Context, app OAuthApp, logger *slog.Logger) (*oauth2.Token, error) {
	oauthConfig := &oauth2.Config{
		ClientID:     app.ClientID,
		ClientSecret: app.ClientSecret,
		Endpoint:     google.Endpoint,
		RedirectURL:  "http://localhost" + authCallbackAddr + "/callback",
		Scopes:       []string{sheets.SpreadsheetsScope},
	}

	codeChan := make(chan string, 1)
	errChan := make(chan error, 1)

	mux := http.NewServeMux()
	mux.HandleFunc("/callback", func(w http.ResponseWriter, r *http.Request) {
		code := r.URL.Query().Get("code")
		if code == "" {
			errChan <- fmt.Errorf("no authorization code received")
			_, _ = fmt.Fprint(w, callbackPage("Authorization Failed", "No authorization code received. Please try again."))
			return
		}
		codeChan <- code
		_, _ = fmt.Fprint(w, callbackPage("Authorization Successful", "You can close this window and return to the terminal."))
	})

	server := &http.Server{
		Addr:              authCallbackAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("failed to start callback server: %w", err)
		}
	}()
	defer func() { _ = server.Shutdown(ctx) }()

	authURL := oauthConfig.AuthCodeURL("state-token", oauth2.AccessTypeOffline, oauth2.ApprovalForce)
	logger.Info("Google Sheets authorization required")
	logger.Info("visit this URL to grant access", "url", authURL)

	var authCode string
	select {
	case authCode = <-codeChan:
	case err := <-errChan:
		return nil, err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(authTimeout):
		return nil, fmt.Errorf("authorization timed out after %s", authTimeout)
	}

	token, err := oauthConfig.Exchange(ctx, authCode)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange authorization code: %w", err)
	}
	if token.RefreshToken == "" {
		logger.Warn("no refresh token in response; revoke the app's access and authorize again")
	}

	if app.TokenFile != "" {
		if err := saveToken(app.TokenFile, token); err != nil {
			logger.Warn("failed to save token", "error", err, "file", app.TokenFile)
		} else {
			logger.Info("token saved", "file", app.TokenFile)
		}
	}

	return token, nil
}

// LoadToken reads a previously saved OAuth2 token.
func LoadToken(tokenFile string) (*oauth2.Token, error) {
	f, err := os.Open(tokenFile) // #nosec G304
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	token := &oauth2.Token{}
	err = json.NewDecoder(f).Decode(token)
	return token, err
}

// saveToken writes a token to disk, creating the parent directory with
// owner-only permissions.
func saveToken(path string, token *oauth2.Token) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create token directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600) // #nosec G304
	if err != nil {
		return fmt.Errorf("failed to create token file: %w", err)
	}
	defer func() { _ = f.Close() }()

	if err := json.NewEncoder(f).Encode(token); err != nil {
		return fmt.Errorf("failed to encode token: %w", err)
	}

	return nil
}

func callbackPage(title, message string) string {
	return fmt.Sprintf(`<html><body>
		<h1>%s</h1>
		<p>%s</p>
		<script>window.setTimeout(function(){window.close();}, 3000);</script>
	</body></html>`, title, message)
}
