package merge

import (
	"context"
	"fmt"
	"strings"
	"time"

	log "github.com/Sirupsen/logrus"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/courscan/catalog-backend/common/model"
)

// Scraper is what the synchronizer consumes; banweb.Scraper satisfies it,
// and tests satisfy it with canned snapshots.
type Scraper interface {
	Terms(ctx context.Context) ([]model.Term, error)
	Subjects(ctx context.Context, term model.Term) ([]model.Subject, error)
	Sections(ctx context.Context, term model.Term, subject model.Subject) ([]model.Section, error)
}

// IntegrityError reports a snapshot that contradicts the catalog's
// invariants, e.g. two scraped classes claiming the same CRN. Fatal for
// the unit; guessing would corrupt the catalog.
type IntegrityError struct {
	Detail string
}

func (e *IntegrityError) Error() string {
	return "integrity: " + e.Detail
}

func integrityErrorf(format string, args ...interface{}) *IntegrityError {
	return &IntegrityError{Detail: fmt.Sprintf(format, args...)}
}

// Scope bounds a run: zero values mean all terms; a term code means one
// term; term plus subject means a single unit.
type Scope struct {
	TermCode    string
	SubjectCode string
}

// UnitResult reports one (term, subject) reconciliation pass. Partial
// completion of a batch is expected; units that committed stand whatever
// happens to later ones.
type UnitResult struct {
	Term    string
	Subject string
	Err     error

	Created int
	Updated int
	Deleted int
}

type Synchronizer struct {
	store Store
}

func NewSynchronizer(store Store) *Synchronizer {
	return &Synchronizer{store: store}
}

// Sync scrapes and reconciles every unit in scope, one at a time. A unit
// failure is recorded and the batch moves on.
func (s *Synchronizer) Sync(ctx context.Context, scraper Scraper, scope Scope) ([]UnitResult, error) {
	terms, err := scraper.Terms(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "error listing terms")
	}

	var results []UnitResult
	for _, term := range terms {
		if scope.TermCode != "" && term.Id != scope.TermCode {
			continue
		}

		subjects, err := scraper.Subjects(ctx, term)
		if err != nil {
			results = append(results, UnitResult{Term: term.Id, Err: err})
			continue
		}

		for _, subject := range subjects {
			if scope.SubjectCode != "" && subject.Code != scope.SubjectCode {
				continue
			}

			result := UnitResult{Term: term.Id, Subject: subject.Code}

			sections, err := scraper.Sections(ctx, term, subject)
			if err != nil {
				result.Err = err
				results = append(results, result)
				continue
			}

			snap := model.Snapshot{
				Term:      term,
				Subject:   subject,
				Sections:  sections,
				ScrapedAt: time.Now(),
			}

			results = append(results, s.SyncSnapshot(snap))
		}
	}

	return results, nil
}

// SyncSnapshot reconciles one scraped (term, subject) snapshot into the
// store. This is the unit's consistency boundary: the pass either applies
// or the store is left as the previous pass committed it.
func (s *Synchronizer) SyncSnapshot(snap model.Snapshot) UnitResult {
	defer model.TimeTrack(time.Now(), "SyncSnapshot "+snap.TopicName())

	result := UnitResult{Term: snap.Term.Id, Subject: snap.Subject.Code}

	start := time.Now()
	result.Err = s.store.InUnit(func(store Store) error {
		return syncUnit(store, snap, &result)
	})

	observeUnit(result, time.Since(start))

	entry := log.WithFields(log.Fields{
		"term":    result.Term,
		"subject": result.Subject,
		"created": result.Created,
		"updated": result.Updated,
		"deleted": result.Deleted,
	})

	if result.Err != nil {
		entry.WithError(result.Err).Errorln("unit failed")
	} else {
		entry.Infoln("unit reconciled")
	}

	return result
}

func syncUnit(store Store, snap model.Snapshot, result *UnitResult) error {
	term := &Term{Code: snap.Term.Id, Name: snap.Term.Name}
	if err := store.UpsertTerm(term); err != nil {
		return err
	}

	subject := &Subject{Code: snap.Subject.Code, Name: snap.Subject.Name}
	if err := store.UpsertSubject(subject); err != nil {
		return err
	}

	if err := checkCrns(snap.Sections); err != nil {
		return err
	}

	cache := newUnitCache(store)

	courses, err := store.CoursesBySubject(subject.Id)
	if err != nil {
		return err
	}
	coursesByNumber := map[string]*Course{}
	for _, course := range courses {
		coursesByNumber[course.Number] = course
	}

	existing, err := store.SectionsByTermSubject(term.Id, subject.Id)
	if err != nil {
		return err
	}
	sectionsByCrn := map[string]*SectionRow{}
	for _, row := range existing {
		sectionsByCrn[row.Crn] = row
	}

	stale := map[string]bool{}
	for crn := range sectionsByCrn {
		stale[crn] = true
	}

	for _, group := range model.GroupSections(snap.Sections) {
		if err := syncClassGroup(store, cache, term, subject, group, coursesByNumber, sectionsByCrn, result); err != nil {
			return err
		}

		for _, scraped := range group {
			delete(stale, scraped.Crn)
		}
	}

	for crn := range stale {
		if err := store.DeleteSection(sectionsByCrn[crn].Id); err != nil {
			return err
		}
		result.Deleted++
	}

	emptied, err := store.DeleteEmptyClasses(term.Id, subject.Id)
	if err != nil {
		return err
	}
	result.Deleted += int(emptied)

	return syncTermDates(store, term.Code)
}

func checkCrns(sections []model.Section) error {
	seen := map[string]bool{}
	for _, s := range sections {
		if seen[s.Crn] {
			return integrityErrorf("crn %s scraped more than once", s.Crn)
		}
		seen[s.Crn] = true
	}

	return nil
}

// syncClassGroup reconciles one grouped class: its campus, course, class
// row and every member section. When a group member's CRN already belongs
// to a class, that class is reused; section membership always follows the
// most recently scraped grouping.
func syncClassGroup(store Store, cache *unitCache, term *Term, subject *Subject,
	group []model.Section, coursesByNumber map[string]*Course,
	sectionsByCrn map[string]*SectionRow, result *UnitResult) error {

	first := group[0]
	for _, s := range group[1:] {
		if s.CourseNumber != first.CourseNumber {
			return integrityErrorf("class groups crns %s and %s across course numbers %s and %s",
				first.Crn, s.Crn, first.CourseNumber, s.CourseNumber)
		}
		if s.CampusCode != first.CampusCode {
			return integrityErrorf("class groups crns %s and %s across campuses %s and %s",
				first.Crn, s.Crn, first.CampusCode, s.CampusCode)
		}
	}

	campus, err := cache.campus(first.CampusCode, first.CampusName)
	if err != nil {
		return err
	}

	course, err := syncCourse(store, subject, first, coursesByNumber, result)
	if err != nil {
		return err
	}

	class, err := resolveClass(store, term, campus, course, group, sectionsByCrn, result)
	if err != nil {
		return err
	}

	for _, scraped := range group {
		if err := syncSection(store, cache, campus, class, scraped, sectionsByCrn[scraped.Crn], result); err != nil {
			return err
		}
	}

	return nil
}

func syncCourse(store Store, subject *Subject, scraped model.Section,
	coursesByNumber map[string]*Course, result *UnitResult) (*Course, error) {

	course, ok := coursesByNumber[scraped.CourseNumber]
	if !ok {
		course = &Course{
			SubjectId:   subject.Id,
			Number:      scraped.CourseNumber,
			Title:       scraped.CourseTitle,
			Description: scraped.Description,
			CreditHours: scraped.CreditHours,
		}
		if err := store.UpsertCourse(course); err != nil {
			return nil, err
		}

		coursesByNumber[course.Number] = course
		result.Created++
		return course, nil
	}

	// Title, description and credit hours always reflect the latest scrape.
	if course.Title != scraped.CourseTitle ||
		course.Description != scraped.Description ||
		course.CreditHours != scraped.CreditHours {
		course.Title = scraped.CourseTitle
		course.Description = scraped.Description
		course.CreditHours = scraped.CreditHours

		if err := store.UpsertCourse(course); err != nil {
			return nil, err
		}
		result.Updated++
	}

	return course, nil
}

func resolveClass(store Store, term *Term, campus *Campus, course *Course,
	group []model.Section, sectionsByCrn map[string]*SectionRow, result *UnitResult) (*Class, error) {

	for _, scraped := range group {
		row, ok := sectionsByCrn[scraped.Crn]
		if !ok {
			continue
		}

		class := &Class{Id: row.ClassId, CourseId: course.Id, TermId: term.Id, CampusId: campus.Id}
		if row.CourseId != course.Id || row.CampusId != campus.Id {
			if err := store.UpdateClass(class); err != nil {
				return nil, err
			}
			result.Updated++
		}

		return class, nil
	}

	class := &Class{CourseId: course.Id, TermId: term.Id, CampusId: campus.Id}
	if err := store.InsertClass(class); err != nil {
		return nil, err
	}
	result.Created++

	return class, nil
}

func syncSection(store Store, cache *unitCache, campus *Campus, class *Class,
	scraped model.Section, row *SectionRow, result *UnitResult) error {

	if row == nil {
		section := &Section{
			ClassId:          class.Id,
			Crn:              scraped.Crn,
			Code:             scraped.SectionCode,
			Type:             scraped.Type,
			Capacity:         scraped.Capacity,
			Enrolled:         scraped.Enrolled,
			RemainingSpace:   scraped.RemainingSpace,
			WaitListCapacity: scraped.WaitListCapacity,
			WaitListCount:    scraped.WaitListCount,
			WaitListSpace:    scraped.WaitListSpace,
		}
		if err := store.InsertSection(section); err != nil {
			return err
		}
		result.Created++

		for _, meeting := range scraped.Meetings {
			if err := createMeeting(store, cache, campus, section.Id, meeting); err != nil {
				return err
			}
			result.Created++
		}

		return nil
	}

	section := &row.Section
	if changed := applySectionFields(section, class.Id, scraped); changed {
		if err := store.UpdateSection(section); err != nil {
			return err
		}
		result.Updated++
	}

	return syncMeetings(store, cache, campus, section.Id, scraped.Meetings, result)
}

func applySectionFields(section *Section, classId int64, scraped model.Section) bool {
	changed := section.ClassId != classId ||
		section.Code != scraped.SectionCode ||
		section.Type != scraped.Type ||
		section.Capacity != scraped.Capacity ||
		section.Enrolled != scraped.Enrolled ||
		section.RemainingSpace != scraped.RemainingSpace ||
		section.WaitListCapacity != scraped.WaitListCapacity ||
		section.WaitListCount != scraped.WaitListCount ||
		section.WaitListSpace != scraped.WaitListSpace

	section.ClassId = classId
	section.Code = scraped.SectionCode
	section.Type = scraped.Type
	section.Capacity = scraped.Capacity
	section.Enrolled = scraped.Enrolled
	section.RemainingSpace = scraped.RemainingSpace
	section.WaitListCapacity = scraped.WaitListCapacity
	section.WaitListCount = scraped.WaitListCount
	section.WaitListSpace = scraped.WaitListSpace

	return changed
}

// meetingIdentity is what makes two meetings "the same" across passes:
// type, clock times, day mask, building and room. Anything else about a
// matched meeting is refreshed in place.
func meetingIdentity(meetingType, startTime, endTime string, days model.DayMask, buildingCode, roomNumber string) string {
	return strings.Join([]string{meetingType, startTime, endTime, days.String(), buildingCode, roomNumber}, "|")
}

func scrapedMeetingIdentity(m model.Meeting) string {
	return meetingIdentity(m.Type, m.StartTime, m.EndTime, m.Days, m.BuildingCode, m.RoomNumber)
}

func rowMeetingIdentity(m *MeetingRow) string {
	return meetingIdentity(m.Type, m.StartTime, m.EndTime, m.Days, m.BuildingCode.String, m.RoomNumber.String)
}

func syncMeetings(store Store, cache *unitCache, campus *Campus, sectionId int64,
	scraped []model.Meeting, result *UnitResult) error {

	rows, err := store.MeetingsBySection(sectionId)
	if err != nil {
		return err
	}

	existing := map[string]*MeetingRow{}
	for _, row := range rows {
		existing[rowMeetingIdentity(row)] = row
	}

	matched := map[string]bool{}
	for _, meeting := range scraped {
		identity := scrapedMeetingIdentity(meeting)

		row, ok := existing[identity]
		if !ok {
			if err := createMeeting(store, cache, campus, sectionId, meeting); err != nil {
				return err
			}
			result.Created++
			continue
		}

		matched[identity] = true
		if changed := applyMeetingDates(&row.Meeting, meeting); changed {
			if err := store.UpdateMeeting(&row.Meeting); err != nil {
				return err
			}
			result.Updated++
		}
		if err := syncMeetingInstructors(store, cache, row.Id, meeting.Instructors); err != nil {
			return err
		}
	}

	for identity, row := range existing {
		if matched[identity] {
			continue
		}

		if err := store.DeleteMeeting(row.Id); err != nil {
			return err
		}
		result.Deleted++
	}

	return nil
}

func applyMeetingDates(meeting *Meeting, scraped model.Meeting) bool {
	startDate := nullTime(scraped.StartDate)
	endDate := nullTime(scraped.EndDate)

	changed := !sameNullTime(meeting.StartDate, startDate) || !sameNullTime(meeting.EndDate, endDate)
	meeting.StartDate = startDate
	meeting.EndDate = endDate

	return changed
}

func createMeeting(store Store, cache *unitCache, campus *Campus, sectionId int64, scraped model.Meeting) error {
	meeting := &Meeting{
		SectionId: sectionId,
		Type:      scraped.Type,
		Days:      scraped.Days,
		StartTime: scraped.StartTime,
		EndTime:   scraped.EndTime,
		StartDate: nullTime(scraped.StartDate),
		EndDate:   nullTime(scraped.EndDate),
	}

	if !scraped.LocationTBA() {
		building, err := cache.building(campus.Id, scraped.BuildingCode, scraped.BuildingName)
		if err != nil {
			return err
		}

		room, err := cache.room(building.Id, scraped.RoomNumber)
		if err != nil {
			return err
		}

		meeting.RoomId.Int64 = room.Id
		meeting.RoomId.Valid = true
	}

	if err := store.InsertMeeting(meeting); err != nil {
		return err
	}

	return syncMeetingInstructors(store, cache, meeting.Id, scraped.Instructors)
}

// syncMeetingInstructors makes the stored instructor set exactly match the
// scraped one, with no duplicates and no stale leftovers.
func syncMeetingInstructors(store Store, cache *unitCache, meetingId int64, scraped []model.Instructor) error {
	var ids []int64
	seen := map[string]bool{}
	for _, i := range scraped {
		key := strings.ToLower(i.Email)
		if seen[key] {
			continue
		}
		seen[key] = true

		instructor, err := cache.instructor(i.Name, i.Email)
		if err != nil {
			return err
		}
		ids = append(ids, instructor.Id)
	}

	current, err := store.InstructorsByMeeting(meetingId)
	if err != nil {
		return err
	}

	if sameIds(current, ids) {
		return nil
	}

	return store.SetMeetingInstructors(meetingId, ids)
}

func sameIds(current []*Instructor, ids []int64) bool {
	if len(current) != len(ids) {
		return false
	}

	have := map[int64]bool{}
	for _, i := range current {
		have[i.Id] = true
	}
	for _, id := range ids {
		if !have[id] {
			return false
		}
	}

	return true
}

// syncTermDates derives the term's start and end dates as the min and max
// of all its meetings' date ranges. Derived, never scraped.
func syncTermDates(store Store, termCode string) error {
	term, err := store.TermByCode(termCode)
	if err != nil {
		return err
	}
	if term == nil {
		return errors.Errorf("term %s vanished mid-pass", termCode)
	}

	start, end, err := store.TermMeetingDateBounds(term.Id)
	if err != nil {
		return err
	}

	if sameNullTime(term.StartDate, start) && sameNullTime(term.EndDate, end) {
		return nil
	}

	return store.UpdateTermDates(term.Id, start, end)
}

func sameNullTime(a, b pq.NullTime) bool {
	if a.Valid != b.Valid {
		return false
	}

	return !a.Valid || a.Time.Equal(b.Time)
}

func nullTime(t *time.Time) pq.NullTime {
	if t == nil {
		return pq.NullTime{}
	}

	return pq.NullTime{Time: *t, Valid: true}
}
