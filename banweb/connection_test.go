package banweb

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	pkgerrors "github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/courscan/catalog-backend/common/conf"
	"github.com/courscan/catalog-backend/common/model"
)

// portalServer fakes enough of the portal for the handshake and fetch
// paths: a login form with a one-time token, a credential check that
// redirects on success, and a term list that can serve timeout pages.
type portalServer struct {
	mux      *http.ServeMux
	password string

	logins          int
	expireRemaining int

	menuMethod   string
	termReferer  string
	termCookies  int
	activeTokens map[string]bool
}

func newPortalServer() *portalServer {
	p := &portalServer{
		mux:          http.NewServeMux(),
		password:     "hunter2",
		activeTokens: map[string]bool{},
	}

	p.mux.HandleFunc("/banweb/twbkwbis.P_WWWLogin", func(w http.ResponseWriter, r *http.Request) {
		p.activeTokens["tok-123"] = true
		w.Write([]byte(`<html><body><form action="/banweb/twbkwbis.P_ValLogin" method="post">
<input type="hidden" name="lt" value="tok-123">
<input type="text" name="sid"><input type="password" name="PIN">
</form></body></html>`))
	})

	p.mux.HandleFunc("/banweb/twbkwbis.P_ValLogin", func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()

		if !p.activeTokens[r.PostFormValue("lt")] || r.PostFormValue("PIN") != p.password {
			w.Write([]byte("<html><body>" + loginFailureMarker + "</body></html>"))
			return
		}
		delete(p.activeTokens, r.PostFormValue("lt"))

		p.logins++
		http.SetCookie(w, &http.Cookie{Name: "SESSID", Value: "session-1", Path: "/"})
		w.Header().Set("Location", "/banweb/twbkwbis.P_GenMenu?name=bmenu.P_MainMnu")
		w.WriteHeader(http.StatusFound)
	})

	p.mux.HandleFunc("/banweb/twbkwbis.P_GenMenu", func(w http.ResponseWriter, r *http.Request) {
		p.menuMethod = r.Method
		w.Write([]byte("<html><body>Main Menu</body></html>"))
	})

	p.mux.HandleFunc("/banweb/bwckschd.p_disp_dyn_sched", func(w http.ResponseWriter, r *http.Request) {
		p.termReferer = r.Header.Get("Referer")
		p.termCookies = len(r.Cookies())

		if p.expireRemaining > 0 {
			p.expireRemaining--
			w.Write([]byte("<html><body>" + sessionExpiredMarker + "</body></html>"))
			return
		}

		w.Write([]byte(`<html><body><select name="p_term">
<option value="">None</option>
<option value="201810">Fall 2017</option>
</select></body></html>`))
	})

	return p
}

func newTestConnection(p *portalServer, password string) (*Connection, *httptest.Server) {
	ts := httptest.NewServer(p.mux)

	return NewConnection(conf.Source{
		BaseUrl:  ts.URL,
		Username: "student1",
		Password: password,
	}), ts
}

func TestAuthenticate(t *testing.T) {
	p := newPortalServer()
	conn, ts := newTestConnection(p, p.password)
	defer ts.Close()

	err := conn.Authenticate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, p.logins)

	// The redirect after the credential post is replayed as a GET.
	assert.Equal(t, http.MethodGet, p.menuMethod)
}

func TestAuthenticateBadCredentials(t *testing.T) {
	p := newPortalServer()
	conn, ts := newTestConnection(p, "wrong")
	defer ts.Close()

	err := conn.Authenticate(context.Background())
	assert.Equal(t, ErrBadCredentials, err)
	assert.Equal(t, 0, p.logins)
}

func TestGetTermListPage(t *testing.T) {
	p := newPortalServer()
	conn, ts := newTestConnection(p, p.password)
	defer ts.Close()

	require.NoError(t, conn.Authenticate(context.Background()))

	page, err := conn.GetTermListPage(context.Background())
	require.NoError(t, err)

	terms, err := ParseTermListPage(page)
	require.NoError(t, err)
	assert.Equal(t, []model.Term{{Id: "201810", Name: "Fall 2017"}}, terms)

	// The session rides along: cookie jar plus the previous page as Referer.
	assert.Equal(t, 1, p.termCookies)
	assert.Contains(t, p.termReferer, "/banweb/twbkwbis.P_GenMenu")
}

func TestFetchReauthenticatesOnExpiredSession(t *testing.T) {
	p := newPortalServer()
	conn, ts := newTestConnection(p, p.password)
	defer ts.Close()

	require.NoError(t, conn.Authenticate(context.Background()))
	p.expireRemaining = 1

	page, err := conn.GetTermListPage(context.Background())
	require.NoError(t, err)
	assert.NotContains(t, page, sessionExpiredMarker)
	assert.Equal(t, 2, p.logins)
}

func TestFetchGivesUpAfterRepeatedExpiry(t *testing.T) {
	p := newPortalServer()
	conn, ts := newTestConnection(p, p.password)
	defer ts.Close()

	require.NoError(t, conn.Authenticate(context.Background()))
	p.expireRemaining = 100

	_, err := conn.GetTermListPage(context.Background())
	require.Error(t, err)
	assert.Equal(t, ErrSessionLost, pkgerrors.Cause(err))
}

func TestRequestStopsOnRedirectLoop(t *testing.T) {
	p := newPortalServer()
	p.mux.HandleFunc("/banweb/loop_a", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/banweb/loop_b", http.StatusFound)
	})
	p.mux.HandleFunc("/banweb/loop_b", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/banweb/loop_a", http.StatusFound)
	})

	conn, ts := newTestConnection(p, p.password)
	defer ts.Close()

	_, err := conn.request(context.Background(), http.MethodGet, "/banweb/loop_a", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redirects")
}

func TestExtractLoginToken(t *testing.T) {
	token, err := extractLoginToken(`<html><body><input type="hidden" name="lt" value="abc"></body></html>`)
	require.NoError(t, err)
	assert.Equal(t, "abc", token)

	_, err = extractLoginToken("<html><body>no token</body></html>")
	assert.True(t, IsParseError(err))
}
