package mailbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
)

// ErrNoToken is returned when a user has not yet authorized mailbox access.
var ErrNoToken = errors.New("no oauth token for user")

var safeUserID = regexp.MustCompile(`^[A-Za-z0-9._@-]+$`)

// GmailConnector opens per-user Gmail stores from OAuth tokens kept as JSON
// files in a directory, one file per user.
type GmailConnector struct {
	config   *oauth2.Config
	tokenDir string
}

// NewGmailConnector reads OAuth client credentials downloaded from the Google
// Cloud console.
func NewGmailConnector(credentialsFile, tokenDir string) (*GmailConnector, error) {
	b, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("read credentials: %w", err)
	}
	cfg, err := google.ConfigFromJSON(b, gmail.GmailReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("parse credentials: %w", err)
	}
	return &GmailConnector{config: cfg, tokenDir: tokenDir}, nil
}

// Open returns a Store for userID backed by the user's saved token. The token
// refreshes transparently.
func (c *GmailConnector) Open(ctx context.Context, userID string) (Store, error) {
	tok, err := c.loadToken(userID)
	if err != nil {
		return nil, err
	}
	return NewGmailStore(ctx, c.config.Client(ctx, tok))
}

// AuthURL is the consent page a user visits to grant read-only access.
func (c *GmailConnector) AuthURL(state string) string {
	return c.config.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

// Exchange trades an authorization code for a token and saves it for userID.
func (c *GmailConnector) Exchange(ctx context.Context, userID, code string) error {
	tok, err := c.config.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("exchange code: %w", err)
	}
	return c.saveToken(userID, tok)
}

func (c *GmailConnector) tokenPath(userID string) (string, error) {
	if !safeUserID.MatchString(userID) {
		return "", fmt.Errorf("invalid user id %q", userID)
	}
	return filepath.Join(c.tokenDir, userID+".json"), nil
}

func (c *GmailConnector) loadToken(userID string) (*oauth2.Token, error) {
	path, err := c.tokenPath(userID)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNoToken, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("read token: %w", err)
	}
	var tok oauth2.Token
	if err := json.Unmarshal(b, &tok); err != nil {
		return nil, fmt.Errorf("decode token: %w", err)
	}
	return &tok, nil
}

func (c *GmailConnector) saveToken(userID string, tok *oauth2.Token) error {
	path, err := c.tokenPath(userID)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(c.tokenDir, 0o700); err != nil {
		return fmt.Errorf("create token dir: %w", err)
	}
	b, err := json.Marshal(tok)
	if err != nil {
		return fmt.Errorf("encode token: %w", err)
	}
	if err := os.WriteFile(path, b, 0o600); err != nil {
		return fmt.Errorf("write token: %w", err)
	}
	return nil
}
