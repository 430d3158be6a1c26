package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrLoginRejected wraps the server's reason for refusing a login.
var ErrLoginRejected = errors.New("auth: login rejected")

// Client talks to the server's login and logout endpoints and keeps the
// resulting session in a Store.
type Client struct {
	base       *url.URL
	loginPath  string
	logoutPath string
	http       *http.Client
	store      *Store
	logger     *slog.Logger
}

func NewClient(baseURL, loginPath, logoutPath string, store *Store, logger *slog.Logger) (*Client, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("auth: parse base url: %w", err)
	}
	return &Client{
		base:       base,
		loginPath:  loginPath,
		logoutPath: logoutPath,
		http:       &http.Client{Timeout: 15 * time.Second},
		store:      store,
		logger:     logger,
	}, nil
}

func (c *Client) endpoint(path string) string {
	u := *c.base
	u.Path = strings.TrimSuffix(u.Path, "/") + "/" + strings.TrimPrefix(path, "/")
	return u.String()
}

type loginRequest struct {
	Login    string `json:"login"`
	Password string `json:"senha"`
}

// textID accepts ids sent either as JSON strings or numbers.
type textID string

func (t *textID) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*t = textID(s)
		return nil
	}
	if string(b) == "null" {
		*t = ""
		return nil
	}
	*t = textID(b)
	return nil
}

type loginResponse struct {
	Success     *bool  `json:"success"`
	Error       string `json:"error"`
	Message     string `json:"message"`
	Token       string `json:"token"`
	UserID      textID `json:"usuario_id"`
	Login       string `json:"usuario_login"`
	Name        string `json:"usuario_nome"`
	AccessLevel string `json:"nivel_acesso"`
}

func (r loginResponse) reason() string {
	if r.Error != "" {
		return r.Error
	}
	return r.Message
}

// Login authenticates with the server and stores the session.
func (c *Client) Login(ctx context.Context, login, password string) (*Session, error) {
	body, err := json.Marshal(loginRequest{Login: login, Password: password})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(c.loginPath), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	var lr loginResponse
	if err := json.Unmarshal(data, &lr); err != nil {
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("%w: status %d", ErrLoginRejected, resp.StatusCode)
		}
		return nil, fmt.Errorf("parse response: %w", err)
	}
	if resp.StatusCode != http.StatusOK || (lr.Success != nil && !*lr.Success) {
		reason := lr.reason()
		if reason == "" {
			reason = fmt.Sprintf("status %d", resp.StatusCode)
		}
		return nil, fmt.Errorf("%w: %s", ErrLoginRejected, reason)
	}

	sess := &Session{
		UserID:      string(lr.UserID),
		Login:       lr.Login,
		Name:        lr.Name,
		AccessLevel: ParseAccessLevel(lr.AccessLevel),
		Token:       lr.Token,
	}
	if sess.Login == "" {
		sess.Login = login
	}
	if sess.Token != "" {
		sess.ExpiresAt = tokenExpiry(sess.Token)
	}
	if err := c.store.Save(sess); err != nil {
		return nil, err
	}
	c.logger.Info("auth: logged in", "login", sess.Login, "access", string(sess.AccessLevel))
	return sess, nil
}

// Logout tells the server the session is over and clears the local copy.
// The local session is cleared even when the server call fails; the server
// error is still returned.
func (c *Client) Logout(ctx context.Context) error {
	serverErr := c.logoutRemote(ctx)
	if serverErr != nil {
		c.logger.Warn("auth: server logout failed", "err", serverErr)
	}
	if err := c.store.Clear(); err != nil {
		return errors.Join(serverErr, err)
	}
	c.logger.Info("auth: logged out")
	return serverErr
}

func (c *Client) logoutRemote(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(c.logoutPath), nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if sess, err := c.store.Load(); err == nil && sess.Token != "" {
		req.Header.Set("Authorization", "Bearer "+sess.Token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("logout returned %d", resp.StatusCode)
	}
	return nil
}
