package banweb

import (
	"context"

	log "github.com/Sirupsen/logrus"

	"github.com/courscan/catalog-backend/common/model"
)

// Scraper drives one Connection through the extractor. Like the Connection
// it wraps, a Scraper must not be shared across goroutines.
type Scraper struct {
	conn      *Connection
	locations *LocationTable
}

func NewScraper(conn *Connection, locations *LocationTable) *Scraper {
	if locations == nil {
		locations = DefaultLocations()
	}

	return &Scraper{conn: conn, locations: locations}
}

func (s *Scraper) Terms(ctx context.Context) ([]model.Term, error) {
	page, err := s.conn.GetTermListPage(ctx)
	if err != nil {
		return nil, err
	}

	return ParseTermListPage(page)
}

func (s *Scraper) Subjects(ctx context.Context, term model.Term) ([]model.Subject, error) {
	page, err := s.conn.GetSubjectListPage(ctx, term.Id)
	if err != nil {
		return nil, err
	}

	return ParseSubjectListPage(page)
}

// Sections scrapes one (term, subject) pair. The class listing and the
// seat-count listing are separate pages on separate fetches; the counters
// are merged into the section records by CRN. A CRN present in one page
// but not the other means the portal served inconsistent pages and the
// unit fails.
func (s *Scraper) Sections(ctx context.Context, term model.Term, subject model.Subject) ([]model.Section, error) {
	listPage, err := s.conn.GetSectionListPage(ctx, term.Id, subject.Code)
	if err != nil {
		return nil, err
	}

	sections, err := ParseSectionListPage(listPage, s.locations)
	if err != nil {
		return nil, err
	}

	if len(sections) == 0 {
		log.WithFields(log.Fields{"term": term.Id, "subject": subject.Code}).Debugln("no sections found")
		return sections, nil
	}

	detailsPage, err := s.conn.GetSectionDetailsPage(ctx, term.Id, subject.Code)
	if err != nil {
		return nil, err
	}

	counts, err := ParseSectionDetailsPage(detailsPage)
	if err != nil {
		return nil, err
	}

	listed := make(map[string]bool, len(sections))
	for i := range sections {
		count, ok := counts[sections[i].Crn]
		if !ok {
			return nil, parseErrorf("section details", "crn %s missing from seat listing", sections[i].Crn)
		}
		listed[sections[i].Crn] = true

		sections[i].Capacity = count.Capacity
		sections[i].Enrolled = count.Enrolled
		sections[i].RemainingSpace = count.RemainingSpace
		sections[i].WaitListCapacity = count.WaitListCapacity
		sections[i].WaitListCount = count.WaitListCount
		sections[i].WaitListSpace = count.WaitListSpace
	}

	for crn := range counts {
		if !listed[crn] {
			return nil, parseErrorf("section details", "crn %s missing from class listing", crn)
		}
	}

	return sections, nil
}
