package backend

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"evault/internal/session"
)

// Poll statuses reported by GET /auth/poll.
const (
	PollPending = "pending"
	PollOK      = "ok"
	PollAbort   = "abort"
)

// PollResult is one answer of the CLI sign-in poll.
type PollResult struct {
	Status      string `json:"status"`
	AccessToken string `json:"access_token,omitempty"`
	Error       string `json:"error,omitempty"`
}

// RepoOwner is the owner of a Repository.
type RepoOwner struct {
	ID        int64  `json:"id"`
	Login     string `json:"login"`
	AvatarURL string `json:"avatar_url"`
}

// Repository is a repository the signed-in user can attach a vault to.
type Repository struct {
	ID          int64     `json:"id"`
	FullName    string    `json:"full_name"`
	Private     bool      `json:"private"`
	HTMLURL     string    `json:"html_url"`
	Description *string   `json:"description"`
	Owner       RepoOwner `json:"owner"`
}

// NewRepository is the input of CreateRepository.
type NewRepository struct {
	ID       int64
	FullName string
	Password string
}

var repoNamePattern = regexp.MustCompile(`^[A-Za-z0-9-]{1,39}/[A-Za-z0-9._-]{1,100}$`)

// ValidRepositoryName reports whether name has the "owner/repo" form the
// backend accepts.
func ValidRepositoryName(name string) bool {
	return repoNamePattern.MatchString(name)
}

// AuthURL returns the provider URL cached for a CLI-initiated session.
func (c *Client) AuthURL(ctx context.Context, sessionID string) (string, error) {
	const op = "auth url"
	if sessionID == "" {
		return "", fmt.Errorf("%s: session id is required", op)
	}
	resp, err := c.do(ctx, op, http.MethodGet, "/auth/url", url.Values{session.ParamSessionID: {sessionID}})
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes*4))
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	target := strings.Trim(strings.TrimSpace(string(body)), `"`)
	u, err := url.Parse(target)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return "", fmt.Errorf("%s: backend returned an invalid URL", op)
	}
	return u.String(), nil
}

// Poll asks whether the web side has completed the handshake for
// sessionID. A 403 from the backend is returned as ErrPollAborted.
func (c *Client) Poll(ctx context.Context, sessionID string) (PollResult, error) {
	const op = "poll"
	var result PollResult
	err := c.getJSON(ctx, op, "/auth/poll", url.Values{session.ParamSessionID: {sessionID}}, &result)
	if err != nil {
		var se *StatusError
		if errors.As(err, &se) && se.StatusCode == http.StatusForbidden {
			reason := se.Body
			var aborted PollResult
			if decodeJSON(strings.NewReader(se.Body), &aborted) == nil && aborted.Error != "" {
				reason = aborted.Error
			}
			return PollResult{Status: PollAbort, Error: reason}, fmt.Errorf("%w: %s", ErrPollAborted, reason)
		}
		return PollResult{}, err
	}

	switch result.Status {
	case PollPending:
	case PollOK:
		if result.AccessToken == "" {
			return PollResult{}, fmt.Errorf("%s: backend reported ok without an access token", op)
		}
	case PollAbort:
		return result, fmt.Errorf("%w: %s", ErrPollAborted, result.Error)
	default:
		return PollResult{}, fmt.Errorf("%s: unknown status %q", op, result.Status)
	}
	return result, nil
}

// Refresh extends the session behind accessToken. For the web device type
// the backend reads the cookie instead and accessToken may be empty.
func (c *Client) Refresh(ctx context.Context, accessToken string, dt session.DeviceType) error {
	const op = "refresh"
	q := url.Values{}
	q.Set("access_token", accessToken)
	q.Set(session.ParamDeviceType, dt.String())

	resp, err := c.do(ctx, op, http.MethodGet, "/auth/refresh", q)
	if err != nil {
		if IsForbidden(err) || IsStatus(err, http.StatusUnauthorized) {
			return fmt.Errorf("%s: %w", op, ErrInvalidToken)
		}
		return err
	}
	resp.Body.Close()
	return nil
}

// User returns the signed-in identity.
func (c *Client) User(ctx context.Context) (*session.Identity, error) {
	var id session.Identity
	if err := c.getJSON(ctx, "user", "/dashboard/user", nil, &id); err != nil {
		return nil, err
	}
	if id.ID == 0 || id.Login == "" {
		return nil, errors.New("user: backend returned an incomplete identity")
	}
	return &id, nil
}

// Repositories lists the repositories of the signed-in user.
func (c *Client) Repositories(ctx context.Context) ([]Repository, error) {
	var repos []Repository
	if err := c.getJSON(ctx, "repositories", "/dashboard/repositories", nil, &repos); err != nil {
		return nil, err
	}
	return repos, nil
}

// RepositoryStatus checks whether a vault exists for the repository and
// whether the user owns it. It returns the backend's status code: 200 vault
// exists, 404 no vault yet, 403 not the owner. Other failures are errors.
func (c *Client) RepositoryStatus(ctx context.Context, id int64, fullName string) (int, error) {
	const op = "repository status"
	if !ValidRepositoryName(fullName) {
		return 0, fmt.Errorf("%s: invalid repository name %q", op, fullName)
	}
	path := "/dashboard/repository/" + strconv.FormatInt(id, 10)
	resp, err := c.do(ctx, op, http.MethodGet, path, url.Values{"repo": {fullName}})
	if err != nil {
		var se *StatusError
		if errors.As(err, &se) && (se.StatusCode == http.StatusNotFound || se.StatusCode == http.StatusForbidden) {
			return se.StatusCode, nil
		}
		return 0, err
	}
	resp.Body.Close()
	return resp.StatusCode, nil
}

// CreateRepository creates a vault for a repository the user owns.
func (c *Client) CreateRepository(ctx context.Context, repo NewRepository) error {
	const op = "create repository"
	if !ValidRepositoryName(repo.FullName) {
		return fmt.Errorf("%s: invalid repository name %q", op, repo.FullName)
	}
	if repo.Password == "" {
		return fmt.Errorf("%s: password is required", op)
	}
	q := url.Values{}
	q.Set("repo_id", strconv.FormatInt(repo.ID, 10))
	q.Set("password", repo.Password)
	q.Set("repo_fullname", repo.FullName)

	resp, err := c.do(ctx, op, http.MethodPost, "/dashboard/repository/new", q)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}
