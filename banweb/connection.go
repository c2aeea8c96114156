package banweb

import (
	"context"
	"io"
	"io/ioutil"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	log "github.com/Sirupsen/logrus"
	"github.com/pkg/errors"

	"github.com/courscan/catalog-backend/common/conf"
	"github.com/courscan/catalog-backend/common/try"
)

const (
	maxFetchAttempts = 5
	maxRedirectHops  = 5
)

// Connection owns one authenticated portal session: the cookie jar, the
// last successfully loaded URL (sent as the Referer on the next request)
// and the credentials used to recover from server-side session expiry.
// It is inherently sequential; callers must not share one Connection
// across goroutines. Spin up one Connection per worker instead.
type Connection struct {
	client   *http.Client
	baseUrl  string
	username string
	password string
	lastUrl  string
}

func NewConnection(source conf.Source) *Connection {
	jar, _ := cookiejar.New(nil)

	return &Connection{
		client: &http.Client{
			Timeout: 15 * time.Second,
			Jar:     jar,
			// The portal expects every redirect to be followed with a GET
			// regardless of the original method; see request.
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		baseUrl:  strings.TrimSuffix(source.BaseUrl, "/"),
		username: source.Username,
		password: source.Password,
	}
}

// Authenticate performs the multi-step login handshake: load the login
// form, lift its hidden one-time token, post credentials, then load the
// main menu to finalize the second-tier session. A rejection is reported
// as ErrBadCredentials and never retried here; callers decide whether to
// try again with different credentials.
func (c *Connection) Authenticate(ctx context.Context) error {
	page, err := c.request(ctx, http.MethodGet, loginFormPath, nil)
	if err != nil {
		return errors.Wrap(err, "error loading login form")
	}

	token, err := extractLoginToken(page)
	if err != nil {
		return err
	}

	form := url.Values{}
	form.Set("sid", c.username)
	form.Set("PIN", c.password)
	form.Set(loginTokenName, token)

	page, err = c.request(ctx, http.MethodPost, loginSubmitPath, form)
	if err != nil {
		return errors.Wrap(err, "error submitting login form")
	}

	if strings.Contains(page, loginFailureMarker) {
		return ErrBadCredentials
	}

	if _, err := c.request(ctx, http.MethodGet, mainMenuPath, nil); err != nil {
		return errors.Wrap(err, "error finalizing session")
	}

	return nil
}

func extractLoginToken(page string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return "", errors.Wrap(err, "error reading login form")
	}

	token, ok := doc.Find(`input[name="` + loginTokenName + `"]`).Attr("value")
	if !ok {
		return "", parseErrorf("login", "hidden token input %q not found", loginTokenName)
	}

	return token, nil
}

func (c *Connection) GetTermListPage(ctx context.Context) (string, error) {
	return c.fetch(ctx, http.MethodGet, termListPath, nil)
}

func (c *Connection) GetSubjectListPage(ctx context.Context, termCode string) (string, error) {
	form := url.Values{}
	form.Set("p_calling_proc", "bwckschd.p_disp_dyn_sched")
	form.Set(termSelectName, termCode)

	return c.fetch(ctx, http.MethodPost, subjectListPath, form)
}

func (c *Connection) GetSectionListPage(ctx context.Context, termCode, subjectCode string) (string, error) {
	// The portal requires the term to be registered on the session before
	// it will serve a class listing.
	if _, err := c.GetSubjectListPage(ctx, termCode); err != nil {
		return "", err
	}

	form := sectionSearchForm(termCode, subjectCode)
	return c.fetch(ctx, http.MethodPost, sectionListPath, form)
}

func (c *Connection) GetSectionDetailsPage(ctx context.Context, termCode, subjectCode string) (string, error) {
	form := sectionSearchForm(termCode, subjectCode)
	form.Set("path", "1")

	return c.fetch(ctx, http.MethodPost, sectionDetailsPath, form)
}

// sectionSearchForm carries the portal's fixed field set; every filter is
// submitted as its wildcard value even when unused.
func sectionSearchForm(termCode, subjectCode string) url.Values {
	form := url.Values{}
	form.Set("term_in", termCode)
	form.Add(subjectSelectName, "dummy")
	form.Add(subjectSelectName, subjectCode)
	form.Set("sel_crse", "")
	form.Set("sel_title", "")
	form.Set("sel_schd", "%")
	form.Set("sel_insm", "%")
	form.Set("sel_camp", "%")
	form.Set("sel_levl", "%")
	form.Set("sel_instr", "%")
	form.Set("sel_ptrm", "%")
	form.Set("sel_attr", "%")
	form.Set("begin_hh", "0")
	form.Set("begin_mi", "0")
	form.Set("begin_ap", "a")
	form.Set("end_hh", "0")
	form.Set("end_mi", "0")
	form.Set("end_ap", "a")

	return form
}

// fetch runs one logical page load. Every returned body is scanned for the
// session timeout marker; on a hit the connection re-authenticates and
// retries the same fetch, up to the retry ceiling.
func (c *Connection) fetch(ctx context.Context, method, path string, form url.Values) (string, error) {
	for attempt := 1; attempt <= maxFetchAttempts; attempt++ {
		page, err := c.request(ctx, method, path, form)
		if err != nil {
			return "", err
		}

		if !strings.Contains(page, sessionExpiredMarker) {
			return page, nil
		}

		log.WithFields(log.Fields{"path": path, "attempt": attempt}).Warnln("session expired, re-authenticating")

		if err := c.Authenticate(ctx); err != nil {
			return "", err
		}
	}

	return "", errors.Wrapf(ErrSessionLost, "fetching %s", path)
}

// request issues one HTTP exchange. Network-level failures are retried up
// to the ceiling; HTTP status codes are not treated as failures. A 3xx is
// intercepted and replayed as a synthesized GET of the Location target,
// whatever the original method was, following at most maxRedirectHops.
func (c *Connection) request(ctx context.Context, method, target string, form url.Values) (string, error) {
	return c.requestFollow(ctx, method, target, form, 0)
}

func (c *Connection) requestFollow(ctx context.Context, method, target string, form url.Values, hops int) (string, error) {
	if strings.HasPrefix(target, "/") {
		target = c.baseUrl + target
	}

	var resp *http.Response
	err := try.DoWithOptions(func(attempt int) (retry bool, err error) {
		req, err := c.newRequest(ctx, method, target, form)
		if err != nil {
			return false, err
		}

		resp, err = c.client.Do(req)

		// A timed out request is not worth replaying
		if err, ok := errors.Cause(err).(net.Error); ok && err.Timeout() {
			return false, ErrTimeout
		}
		if err != nil {
			log.WithError(err).WithField("url", target).Errorln("could not reach portal")
			return true, err
		}

		return false, nil
	}, &try.Options{BackoffStrategy: try.ExponentialJitterBackoff, MaxRetries: maxFetchAttempts})

	if err != nil {
		return "", err
	}

	defer resp.Body.Close()

	if resp.StatusCode >= 300 && resp.StatusCode < 400 {
		if hops >= maxRedirectHops {
			return "", errors.Errorf("stopped after %d redirects fetching %s", hops, target)
		}

		location := resp.Header.Get("Location")
		if location == "" {
			return "", errors.Errorf("redirect from %s without location", target)
		}

		next, err := resp.Request.URL.Parse(location)
		if err != nil {
			return "", errors.Wrapf(err, "bad redirect location %q", location)
		}

		return c.requestFollow(ctx, http.MethodGet, next.String(), nil, hops+1)
	}

	body, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return "", errors.Wrapf(err, "error reading response from %s", target)
	}

	c.lastUrl = resp.Request.URL.String()

	return string(body), nil
}

func (c *Connection) newRequest(ctx context.Context, method, target string, form url.Values) (*http.Request, error) {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}

	req, err := http.NewRequest(method, target, body)
	if err != nil {
		return nil, errors.Wrapf(err, "error building request for %s", target)
	}
	req = req.WithContext(ctx)

	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if c.lastUrl != "" {
		req.Header.Set("Referer", c.lastUrl)
	}

	return req, nil
}
