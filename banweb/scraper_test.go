package banweb

import (
	"bytes"
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/courscan/catalog-backend/common/model"
)

func TestScraperSections(t *testing.T) {
	p := newPortalServer()

	var termRegistered string
	p.mux.HandleFunc("/banweb/bwckgens.p_proc_term_date", func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		termRegistered = r.PostFormValue("p_term")
		w.Write(subjectListHtml)
	})
	p.mux.HandleFunc("/banweb/bwckschd.p_get_crse_unsec", func(w http.ResponseWriter, r *http.Request) {
		w.Write(sectionListHtml)
	})
	p.mux.HandleFunc("/banweb/bwskfcls.P_GetCrse", func(w http.ResponseWriter, r *http.Request) {
		w.Write(sectionDetailsHtml)
	})

	conn, ts := newTestConnection(p, p.password)
	defer ts.Close()
	require.NoError(t, conn.Authenticate(context.Background()))

	scraper := NewScraper(conn, nil)

	term := model.Term{Id: "201810", Name: "Fall 2017"}
	subject := model.Subject{Code: "CS", Name: "Computer Science"}

	sections, err := scraper.Sections(context.Background(), term, subject)
	require.NoError(t, err)
	require.Len(t, sections, 3)

	// The listing page must be preceded by registering the term.
	assert.Equal(t, "201810", termRegistered)

	// Seat counters come off the details page, merged in by CRN.
	assert.Equal(t, "10101", sections[0].Crn)
	assert.Equal(t, 120, sections[0].Capacity)
	assert.Equal(t, 98, sections[0].Enrolled)
	assert.Equal(t, 22, sections[0].RemainingSpace)
	assert.Equal(t, 20, sections[0].WaitListCapacity)
	assert.Equal(t, 5, sections[0].WaitListCount)
	assert.Equal(t, 15, sections[0].WaitListSpace)

	assert.Equal(t, 24, sections[1].Capacity)
	assert.Equal(t, 30, sections[2].Capacity)
}

func TestScraperSectionsMissingSeatCounts(t *testing.T) {
	p := newPortalServer()

	p.mux.HandleFunc("/banweb/bwckgens.p_proc_term_date", func(w http.ResponseWriter, r *http.Request) {
		w.Write(subjectListHtml)
	})
	p.mux.HandleFunc("/banweb/bwckschd.p_get_crse_unsec", func(w http.ResponseWriter, r *http.Request) {
		w.Write(sectionListHtml)
	})
	p.mux.HandleFunc("/banweb/bwskfcls.P_GetCrse", func(w http.ResponseWriter, r *http.Request) {
		// Inconsistent pair of pages: no seat rows at all.
		w.Write([]byte("<html><body>" + noClassesMarker + "</body></html>"))
	})

	conn, ts := newTestConnection(p, p.password)
	defer ts.Close()
	require.NoError(t, conn.Authenticate(context.Background()))

	scraper := NewScraper(conn, nil)

	_, err := scraper.Sections(context.Background(), model.Term{Id: "201810"}, model.Subject{Code: "CS"})
	require.Error(t, err)
	assert.True(t, IsParseError(err))
}

func TestScraperSectionsUnlistedSeatCount(t *testing.T) {
	p := newPortalServer()

	p.mux.HandleFunc("/banweb/bwckgens.p_proc_term_date", func(w http.ResponseWriter, r *http.Request) {
		w.Write(subjectListHtml)
	})
	p.mux.HandleFunc("/banweb/bwckschd.p_get_crse_unsec", func(w http.ResponseWriter, r *http.Request) {
		w.Write(sectionListHtml)
	})
	p.mux.HandleFunc("/banweb/bwskfcls.P_GetCrse", func(w http.ResponseWriter, r *http.Request) {
		// Inconsistent pair of pages: a seat row for a CRN the class
		// listing never mentioned.
		extra := []byte(`<tr>
<td class="dddefault"><input type="checkbox" name="sel_crn" value="99999 201810"></td>
<td class="dddefault">99999</td>
<td class="dddefault">CS</td>
<td class="dddefault">59000</td>
<td class="dddefault">001</td>
<td class="dddefault">40</td>
<td class="dddefault">12</td>
<td class="dddefault">28</td>
<td class="dddefault">0</td>
<td class="dddefault">0</td>
<td class="dddefault">0</td>
<td class="dddefault">Phantom Topics</td>
</tr>
</table>`)
		w.Write(bytes.Replace(sectionDetailsHtml, []byte("</table>"), extra, 1))
	})

	conn, ts := newTestConnection(p, p.password)
	defer ts.Close()
	require.NoError(t, conn.Authenticate(context.Background()))

	scraper := NewScraper(conn, nil)

	_, err := scraper.Sections(context.Background(), model.Term{Id: "201810"}, model.Subject{Code: "CS"})
	require.Error(t, err)
	assert.True(t, IsParseError(err))
	assert.Contains(t, err.Error(), "99999")
}

func TestScraperTermsAndSubjects(t *testing.T) {
	p := newPortalServer()
	p.mux.HandleFunc("/banweb/bwckgens.p_proc_term_date", func(w http.ResponseWriter, r *http.Request) {
		w.Write(subjectListHtml)
	})

	conn, ts := newTestConnection(p, p.password)
	defer ts.Close()
	require.NoError(t, conn.Authenticate(context.Background()))

	scraper := NewScraper(conn, nil)

	terms, err := scraper.Terms(context.Background())
	require.NoError(t, err)
	require.Len(t, terms, 1)

	subjects, err := scraper.Subjects(context.Background(), terms[0])
	require.NoError(t, err)
	assert.Len(t, subjects, 3)
}
