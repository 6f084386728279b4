package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"evault/pkg/logging"
)

const maxSignInBodyBytes = 8192

var (
	errNoLocation = errors.New("redirect without Location header")
	errEmptyBody  = errors.New("empty sign-in URL")
)

// Initiator asks the backend where to send the user to start a sign-in and
// performs that one navigation.
type Initiator struct {
	client    *http.Client
	endpoint  string
	appOrigin *url.URL
	navigator Navigator
}

// NewInitiator returns an Initiator. appURL is the origin the user is
// currently on; targets on that origin are navigated to by path. The client
// is copied and set to not follow redirects.
func NewInitiator(client *http.Client, apiBase, appURL string, navigator Navigator) (*Initiator, error) {
	if client == nil {
		client = http.DefaultClient
	}
	c := *client
	c.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}

	var origin *url.URL
	if appURL != "" {
		u, err := url.Parse(appURL)
		if err != nil {
			return nil, fmt.Errorf("invalid application URL %q: %w", appURL, err)
		}
		origin = u
	}

	return &Initiator{
		client:    &c,
		endpoint:  strings.TrimSuffix(apiBase, "/") + "/auth",
		appOrigin: origin,
		navigator: navigator,
	}, nil
}

// ResolveSignInURL returns the absolute URL the backend wants the user sent
// to for device type dt. The redirect is not followed.
func (i *Initiator) ResolveSignInURL(ctx context.Context, dt DeviceType) (*url.URL, error) {
	if !dt.Valid() {
		return nil, &ValidationError{Problems: []FieldProblem{{Field: ParamDeviceType, Reason: reasonDeviceType}}}
	}

	q := url.Values{}
	q.Set(ParamDeviceType, dt.String())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, i.endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return nil, &InitiationError{Err: err}
	}

	resp, err := i.client.Do(req)
	if err != nil {
		return nil, &InitiationError{Err: err}
	}
	defer resp.Body.Close()

	var raw string
	switch {
	case resp.StatusCode >= 300 && resp.StatusCode < 400:
		raw = resp.Header.Get("Location")
		if raw == "" {
			return nil, &InitiationError{StatusCode: resp.StatusCode, Err: errNoLocation}
		}
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		body, err := io.ReadAll(io.LimitReader(resp.Body, maxSignInBodyBytes))
		if err != nil {
			return nil, &InitiationError{StatusCode: resp.StatusCode, Err: err}
		}
		raw = strings.Trim(strings.TrimSpace(string(body)), `"`)
		if raw == "" {
			return nil, &InitiationError{StatusCode: resp.StatusCode, Err: errEmptyBody}
		}
	default:
		return nil, &InitiationError{StatusCode: resp.StatusCode}
	}

	target, err := url.Parse(raw)
	if err != nil {
		return nil, &InitiationError{StatusCode: resp.StatusCode, Err: fmt.Errorf("invalid sign-in URL: %w", err)}
	}
	target = req.URL.ResolveReference(target)
	if target.Scheme != "http" && target.Scheme != "https" {
		return nil, &InitiationError{StatusCode: resp.StatusCode, Err: fmt.Errorf("unsupported sign-in URL scheme %q", target.Scheme)}
	}
	return target, nil
}

// StartSignIn resolves the sign-in URL and navigates to it. It returns the
// navigation target: a path for same-origin targets, the absolute URL
// otherwise.
func (i *Initiator) StartSignIn(ctx context.Context, dt DeviceType) (string, error) {
	target, err := i.ResolveSignInURL(ctx, dt)
	if err != nil {
		return "", err
	}

	nav := target.String()
	if i.sameOrigin(target) {
		nav = target.RequestURI()
	}

	logging.Debug("Session", "Starting %s sign-in at %s://%s%s", dt, target.Scheme, target.Host, target.Path)
	if i.navigator != nil {
		if err := i.navigator.Navigate(ctx, nav); err != nil {
			return "", fmt.Errorf("failed to navigate to sign-in URL: %w", err)
		}
	}
	return nav, nil
}

func (i *Initiator) sameOrigin(u *url.URL) bool {
	if i.appOrigin == nil {
		return false
	}
	return strings.EqualFold(i.appOrigin.Scheme, u.Scheme) && strings.EqualFold(i.appOrigin.Host, u.Host)
}
