package banweb

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/pkg/errors"
	"golang.org/x/net/html"

	"github.com/courscan/catalog-backend/common/model"
)

// sectionTitleRegexp splits the composite title the listing page renders
// for each section, e.g.
//
//	Programming In C - 10101 - CS 15900 - 001 (Link: A1/A2)
//
// capturing title, CRN, subject code, course number, section code and the
// optional link-self/link-other tokens.
var sectionTitleRegexp = regexp.MustCompile(
	`^(.+) - (\d+) - ([A-Z]{2,5}) (\S+) - (\S+?)(?: \(Link: ([A-Za-z0-9]{0,12})(?:/([A-Za-z0-9]{0,12}))?\))?$`)

const (
	selectTermOptions    = `select[name="` + termSelectName + `"] option`
	selectSubjectOptions = `select[name="` + subjectSelectName + `"] option`
	selectSectionTitle   = "th.ddtitle a"
	selectDetailCell     = "td.dddefault"
	selectLabelledSpan   = "span.fieldlabeltext"
	selectMeetingTable   = "table.datadisplaytable"
	selectMailtoAnchor   = `a[href^="mailto:"]`
)

const meetingDateLayout = "Jan 02, 2006"

var parentheticalRegexp = regexp.MustCompile(`\s*\(.*?\)\s*$`)

// ParseTermListPage pulls the academic periods offered by the term
// dropdown. Empty-valued placeholder options are skipped and parenthetical
// suffixes like "(View only)" are stripped from the name.
func ParseTermListPage(page string) ([]model.Term, error) {
	doc, err := newDocument("term list", page)
	if err != nil {
		return nil, err
	}

	options := doc.Find(selectTermOptions)
	if options.Length() == 0 {
		return nil, parseErrorf("term list", "select control %q not found", termSelectName)
	}

	var terms []model.Term
	options.Each(func(index int, s *goquery.Selection) {
		value, _ := s.Attr("value")
		if value == "" {
			return
		}

		terms = append(terms, model.Term{
			Id:   value,
			Name: stripParenthetical(s.Text()),
		})
	})

	return terms, nil
}

// ParseSubjectListPage pulls the department codes offered by the subject
// dropdown for the selected term.
func ParseSubjectListPage(page string) ([]model.Subject, error) {
	doc, err := newDocument("subject list", page)
	if err != nil {
		return nil, err
	}

	options := doc.Find(selectSubjectOptions)
	if options.Length() == 0 {
		return nil, parseErrorf("subject list", "select control %q not found", subjectSelectName)
	}

	var subjects []model.Subject
	options.Each(func(index int, s *goquery.Selection) {
		value, _ := s.Attr("value")
		if value == "" {
			return
		}

		subjects = append(subjects, model.Subject{
			Code: value,
			Name: stripParenthetical(s.Text()),
		})
	})

	return subjects, nil
}

// ParseSectionListPage walks the class schedule listing: each section is a
// title row followed by a detail row holding the labelled info spans and a
// nested meeting table. The seat counters live on the details page and are
// merged in afterwards; see ParseSectionDetailsPage.
func ParseSectionListPage(page string, locations *LocationTable) ([]model.Section, error) {
	doc, err := newDocument("section list", page)
	if err != nil {
		return nil, err
	}

	if strings.Contains(page, noClassesMarker) {
		return []model.Section{}, nil
	}

	titles := doc.Find(selectSectionTitle)
	if titles.Length() == 0 {
		return nil, parseErrorf("section list", "no section title rows found")
	}

	sections := make([]model.Section, 0, titles.Length())
	for i := 0; i < titles.Length(); i++ {
		title := titles.Eq(i)

		section, err := parseSectionTitle(title.Text())
		if err != nil {
			return nil, err
		}

		detail := title.Closest("tr").Next().Find(selectDetailCell).First()
		if detail.Length() == 0 {
			return nil, parseErrorf("section list", "no detail row for crn %s", section.Crn)
		}

		if err := parseSectionDetail(detail, &section, locations); err != nil {
			return nil, err
		}

		sections = append(sections, section)
	}

	return sections, nil
}

func parseSectionTitle(text string) (model.Section, error) {
	text = strings.TrimSpace(text)

	match := sectionTitleRegexp.FindStringSubmatch(text)
	if match == nil {
		return model.Section{}, parseErrorf("section list", "unparseable section title %q", text)
	}

	return model.Section{
		CourseTitle:  match[1],
		Crn:          match[2],
		SubjectCode:  match[3],
		CourseNumber: match[4],
		SectionCode:  match[5],
		LinkSelf:     match[6],
		LinkOther:    match[7],
	}, nil
}

func parseSectionDetail(detail *goquery.Selection, section *model.Section, locations *LocationTable) error {
	section.Description = leadingText(detail)

	var campusName, credits string
	detail.Find(selectLabelledSpan).Each(func(index int, s *goquery.Selection) {
		label := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s.Text()), ":"))
		value := followingText(s)

		switch label {
		case "Campus":
			campusName = value
		case "Schedule Type":
			section.Type = value
		case "Credits":
			credits = value
		}
	})

	if campusName == "" {
		return parseErrorf("section list", "crn %s: campus span missing", section.Crn)
	}

	campus, ok := locations.CampusByName(campusName)
	if !ok {
		return parseErrorf("section list", "crn %s: unknown campus %q", section.Crn, campusName)
	}
	section.CampusCode = campus.Code
	section.CampusName = campus.Name

	if credits == "" {
		return parseErrorf("section list", "crn %s: credits span missing", section.Crn)
	}

	hours, err := parseCreditHours(credits)
	if err != nil {
		return parseErrorf("section list", "crn %s: %v", section.Crn, err)
	}
	section.CreditHours = hours

	meetings, err := parseMeetingTable(detail.Find(selectMeetingTable).First(), section.Crn, locations)
	if err != nil {
		return err
	}
	section.Meetings = meetings

	return nil
}

func parseMeetingTable(table *goquery.Selection, crn string, locations *LocationTable) ([]model.Meeting, error) {
	if table.Length() == 0 {
		// A section with no scheduled meeting times renders no table at all.
		return nil, nil
	}

	var meetings []model.Meeting
	var fatal error

	table.Find("tr").EachWithBreak(func(index int, row *goquery.Selection) bool {
		cells := row.Find("td.dddefault")
		if cells.Length() == 0 {
			// header row
			return true
		}

		if cells.Length() < 6 {
			fatal = parseErrorf("section list", "crn %s: meeting row has %d cells, want 6", crn, cells.Length())
			return false
		}

		meeting, err := parseMeetingRow(cells, crn, locations)
		if err != nil {
			fatal = err
			return false
		}

		meetings = append(meetings, meeting)
		return true
	})

	if fatal != nil {
		return nil, fatal
	}

	return meetings, nil
}

// Meeting rows carry type, time range, day string, location, date range
// and instructors, in that order.
func parseMeetingRow(cells *goquery.Selection, crn string, locations *LocationTable) (model.Meeting, error) {
	meeting := model.Meeting{Type: cellText(cells.Eq(0))}

	start, end, err := parseTimeRange(cellText(cells.Eq(1)))
	if err != nil {
		return meeting, parseErrorf("section list", "crn %s: %v", crn, err)
	}
	meeting.StartTime, meeting.EndTime = start, end

	meeting.Days = model.ParseDays(cellText(cells.Eq(2)))

	where := cellText(cells.Eq(3))
	if where != "" && where != "TBA" {
		building, room, err := locations.SplitLocation(where)
		if err != nil {
			return meeting, parseErrorf("section list", "crn %s: %v", crn, err)
		}

		meeting.BuildingCode = building.Code
		meeting.BuildingName = building.Name
		meeting.RoomNumber = room
	}

	startDate, endDate, err := parseDateRange(cellText(cells.Eq(4)))
	if err != nil {
		return meeting, parseErrorf("section list", "crn %s: %v", crn, err)
	}
	meeting.StartDate, meeting.EndDate = startDate, endDate

	cells.Eq(5).Find(selectMailtoAnchor).Each(func(index int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		meeting.Instructors = append(meeting.Instructors, model.Instructor{
			Name:  strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(a.Text()), "(P)")),
			Email: strings.TrimPrefix(href, "mailto:"),
		})
	})

	return meeting, nil
}

// SeatCount holds the enrollment counters scraped from the details page,
// keyed by CRN before being merged into the section records.
type SeatCount struct {
	Capacity         int
	Enrolled         int
	RemainingSpace   int
	WaitListCapacity int
	WaitListCount    int
	WaitListSpace    int
}

var seatHeaders = []string{"CRN", "Cap", "Act", "Rem", "WL Cap", "WL Act", "WL Rem"}

// ParseSectionDetailsPage reads the alternate listing that renders one row
// per meeting, with the CRN cell populated only on each section's first
// row. Continuation rows are skipped; header columns are located by name
// so that extra columns do not shift the counters.
func ParseSectionDetailsPage(page string) (map[string]SeatCount, error) {
	doc, err := newDocument("section details", page)
	if err != nil {
		return nil, err
	}

	if strings.Contains(page, noClassesMarker) {
		return map[string]SeatCount{}, nil
	}

	header := doc.Find("th.ddheader")
	if header.Length() == 0 {
		return nil, parseErrorf("section details", "no header row found")
	}

	columns := map[string]int{}
	header.Each(func(index int, s *goquery.Selection) {
		columns[strings.TrimSpace(s.Text())] = index
	})

	for _, name := range seatHeaders {
		if _, ok := columns[name]; !ok {
			return nil, parseErrorf("section details", "header column %q not found", name)
		}
	}

	counts := map[string]SeatCount{}
	var fatal error

	doc.Find("tr").EachWithBreak(func(index int, row *goquery.Selection) bool {
		cells := row.Find("td.dddefault")
		if cells.Length() == 0 {
			return true
		}

		crn := cellText(cells.Eq(columns["CRN"]))
		if crn == "" {
			// meeting continuation row
			return true
		}

		count := SeatCount{}
		for name, dest := range map[string]*int{
			"Cap":    &count.Capacity,
			"Act":    &count.Enrolled,
			"Rem":    &count.RemainingSpace,
			"WL Cap": &count.WaitListCapacity,
			"WL Act": &count.WaitListCount,
			"WL Rem": &count.WaitListSpace,
		} {
			value, err := strconv.Atoi(cellText(cells.Eq(columns[name])))
			if err != nil {
				fatal = parseErrorf("section details", "crn %s: bad %s value %q", crn, name, cellText(cells.Eq(columns[name])))
				return false
			}
			*dest = value
		}

		counts[crn] = count
		return true
	})

	if fatal != nil {
		return nil, fatal
	}

	return counts, nil
}

// parseCreditHours reads the portal's credit hour field. Ranges render as
// lo-hi or lo/hi; only the higher bound is kept.
func parseCreditHours(s string) (float64, error) {
	s = strings.TrimSpace(s)

	splitter := ""
	if strings.Contains(s, "-") {
		splitter = "-"
	} else if strings.Contains(s, "/") {
		splitter = "/"
	}

	if splitter != "" {
		parts := strings.Split(s, splitter)
		s = strings.TrimSpace(parts[len(parts)-1])
	}

	hours, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, errors.Errorf("bad credit hours %q", s)
	}

	return hours, nil
}

// parseTimeRange splits "10:30 am - 11:20 am". TBA means no scheduled
// time, reported as empty strings.
func parseTimeRange(s string) (string, string, error) {
	if s == "" || s == "TBA" {
		return "", "", nil
	}

	parts := strings.Split(s, " - ")
	if len(parts) != 2 {
		return "", "", errors.Errorf("bad time range %q", s)
	}

	start, err := normalizeClock(parts[0])
	if err != nil {
		return "", "", err
	}

	end, err := normalizeClock(parts[1])
	if err != nil {
		return "", "", err
	}

	return start, end, nil
}

func normalizeClock(s string) (string, error) {
	t, err := time.Parse("3:04 pm", strings.ToLower(strings.TrimSpace(s)))
	if err != nil {
		return "", errors.Errorf("bad clock time %q", s)
	}

	return t.Format("3:04 PM"), nil
}

// parseDateRange splits "Aug 21, 2017 - Dec 09, 2017". A literal TBA means
// the dates are unknown, not zero-length; both ends come back nil.
func parseDateRange(s string) (*time.Time, *time.Time, error) {
	if s == "" || s == "TBA" {
		return nil, nil, nil
	}

	parts := strings.Split(s, " - ")
	if len(parts) != 2 {
		return nil, nil, errors.Errorf("bad date range %q", s)
	}

	start, err := time.Parse(meetingDateLayout, strings.TrimSpace(parts[0]))
	if err != nil {
		return nil, nil, errors.Errorf("bad start date %q", parts[0])
	}

	end, err := time.Parse(meetingDateLayout, strings.TrimSpace(parts[1]))
	if err != nil {
		return nil, nil, errors.Errorf("bad end date %q", parts[1])
	}

	return &start, &end, nil
}

func newDocument(page string, body string) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return nil, parseErrorf(page, "unreadable markup: %v", err)
	}

	return doc, nil
}

func stripParenthetical(s string) string {
	return strings.TrimSpace(parentheticalRegexp.ReplaceAllString(strings.TrimSpace(s), ""))
}

func cellText(s *goquery.Selection) string {
	return strings.TrimSpace(strings.Replace(s.Text(), " ", " ", -1))
}

// leadingText returns the text the detail cell opens with, before any
// element child. The listing uses it for the catalog description.
func leadingText(s *goquery.Selection) string {
	if len(s.Nodes) == 0 {
		return ""
	}

	for child := s.Nodes[0].FirstChild; child != nil; child = child.NextSibling {
		if child.Type == html.ElementNode {
			return ""
		}
		if child.Type == html.TextNode {
			if text := strings.TrimSpace(child.Data); text != "" {
				return text
			}
		}
	}

	return ""
}

// followingText returns the text node immediately after a labelled span,
// which is how the listing renders each span's value.
func followingText(s *goquery.Selection) string {
	if len(s.Nodes) == 0 {
		return ""
	}

	for node := s.Nodes[0].NextSibling; node != nil; node = node.NextSibling {
		switch node.Type {
		case html.TextNode:
			if text := strings.TrimSpace(node.Data); text != "" {
				return text
			}
		case html.ElementNode:
			return ""
		}
	}

	return ""
}
