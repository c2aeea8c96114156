package merge

import (
	"strings"

	"github.com/lib/pq"
)

// memStore is an in-memory Store for exercising the synchronizer. Unlike
// the postgres store it implements InUnit with full rollback, which is
// what lets tests assert that a failed unit leaves nothing behind.
type memStore struct {
	nextId int64

	terms       map[int64]*Term
	subjects    map[int64]*Subject
	campuses    map[int64]*Campus
	buildings   map[int64]*Building
	rooms       map[int64]*Room
	instructors map[int64]*Instructor
	courses     map[int64]*Course
	classes     map[int64]*Class
	sections    map[int64]*Section
	meetings    map[int64]*Meeting

	meetingInstructors map[int64][]int64
}

func newMemStore() *memStore {
	return &memStore{
		terms:              map[int64]*Term{},
		subjects:           map[int64]*Subject{},
		campuses:           map[int64]*Campus{},
		buildings:          map[int64]*Building{},
		rooms:              map[int64]*Room{},
		instructors:        map[int64]*Instructor{},
		courses:            map[int64]*Course{},
		classes:            map[int64]*Class{},
		sections:           map[int64]*Section{},
		meetings:           map[int64]*Meeting{},
		meetingInstructors: map[int64][]int64{},
	}
}

func (m *memStore) id() int64 {
	m.nextId++
	return m.nextId
}

func copyTable(src, dst interface{}) {
	switch src := src.(type) {
	case map[int64]*Term:
		for k, v := range src {
			c := *v
			dst.(map[int64]*Term)[k] = &c
		}
	case map[int64]*Subject:
		for k, v := range src {
			c := *v
			dst.(map[int64]*Subject)[k] = &c
		}
	case map[int64]*Campus:
		for k, v := range src {
			c := *v
			dst.(map[int64]*Campus)[k] = &c
		}
	case map[int64]*Building:
		for k, v := range src {
			c := *v
			dst.(map[int64]*Building)[k] = &c
		}
	case map[int64]*Room:
		for k, v := range src {
			c := *v
			dst.(map[int64]*Room)[k] = &c
		}
	case map[int64]*Instructor:
		for k, v := range src {
			c := *v
			dst.(map[int64]*Instructor)[k] = &c
		}
	case map[int64]*Course:
		for k, v := range src {
			c := *v
			dst.(map[int64]*Course)[k] = &c
		}
	case map[int64]*Class:
		for k, v := range src {
			c := *v
			dst.(map[int64]*Class)[k] = &c
		}
	case map[int64]*Section:
		for k, v := range src {
			c := *v
			dst.(map[int64]*Section)[k] = &c
		}
	case map[int64]*Meeting:
		for k, v := range src {
			c := *v
			dst.(map[int64]*Meeting)[k] = &c
		}
	}
}

func (m *memStore) snapshot() *memStore {
	s := newMemStore()
	s.nextId = m.nextId

	copyTable(m.terms, s.terms)
	copyTable(m.subjects, s.subjects)
	copyTable(m.campuses, s.campuses)
	copyTable(m.buildings, s.buildings)
	copyTable(m.rooms, s.rooms)
	copyTable(m.instructors, s.instructors)
	copyTable(m.courses, s.courses)
	copyTable(m.classes, s.classes)
	copyTable(m.sections, s.sections)
	copyTable(m.meetings, s.meetings)

	for k, v := range m.meetingInstructors {
		s.meetingInstructors[k] = append([]int64(nil), v...)
	}

	return s
}

func (m *memStore) restore(s *memStore) {
	*m = *s
}

func (m *memStore) InUnit(fn func(Store) error) error {
	saved := m.snapshot()
	if err := fn(m); err != nil {
		m.restore(saved)
		return err
	}

	return nil
}

func (m *memStore) UpsertTerm(t *Term) error {
	for _, row := range m.terms {
		if row.Code == t.Code {
			row.Name = t.Name
			t.Id = row.Id
			t.StartDate = row.StartDate
			t.EndDate = row.EndDate
			return nil
		}
	}

	t.Id = m.id()
	c := *t
	m.terms[t.Id] = &c
	return nil
}

func (m *memStore) UpsertSubject(s *Subject) error {
	for _, row := range m.subjects {
		if row.Code == s.Code {
			row.Name = s.Name
			s.Id = row.Id
			return nil
		}
	}

	s.Id = m.id()
	c := *s
	m.subjects[s.Id] = &c
	return nil
}

func (m *memStore) UpsertCampus(c *Campus) error {
	for _, row := range m.campuses {
		if row.Code == c.Code {
			row.Name = c.Name
			c.Id = row.Id
			return nil
		}
	}

	c.Id = m.id()
	cp := *c
	m.campuses[c.Id] = &cp
	return nil
}

func (m *memStore) UpsertBuilding(b *Building) error {
	for _, row := range m.buildings {
		if row.CampusId == b.CampusId && row.Code == b.Code {
			row.Name = b.Name
			b.Id = row.Id
			return nil
		}
	}

	b.Id = m.id()
	c := *b
	m.buildings[b.Id] = &c
	return nil
}

func (m *memStore) UpsertRoom(r *Room) error {
	for _, row := range m.rooms {
		if row.BuildingId == r.BuildingId && row.Number == r.Number {
			r.Id = row.Id
			return nil
		}
	}

	r.Id = m.id()
	c := *r
	m.rooms[r.Id] = &c
	return nil
}

func (m *memStore) UpsertInstructor(i *Instructor) error {
	for _, row := range m.instructors {
		if strings.EqualFold(row.Email, i.Email) {
			row.Name = i.Name
			i.Id = row.Id
			return nil
		}
	}

	i.Id = m.id()
	c := *i
	m.instructors[i.Id] = &c
	return nil
}

func (m *memStore) UpsertCourse(c *Course) error {
	for _, row := range m.courses {
		if row.SubjectId == c.SubjectId && row.Number == c.Number {
			row.Title = c.Title
			row.Description = c.Description
			row.CreditHours = c.CreditHours
			c.Id = row.Id
			return nil
		}
	}

	c.Id = m.id()
	cp := *c
	m.courses[c.Id] = &cp
	return nil
}

func (m *memStore) TermByCode(code string) (*Term, error) {
	for _, row := range m.terms {
		if row.Code == code {
			c := *row
			return &c, nil
		}
	}

	return nil, nil
}

func (m *memStore) CoursesBySubject(subjectId int64) ([]*Course, error) {
	var out []*Course
	for _, row := range m.courses {
		if row.SubjectId == subjectId {
			c := *row
			out = append(out, &c)
		}
	}

	return out, nil
}

func (m *memStore) ClassesByTermSubject(termId, subjectId int64) ([]*Class, error) {
	var out []*Class
	for _, row := range m.classes {
		course := m.courses[row.CourseId]
		if row.TermId == termId && course != nil && course.SubjectId == subjectId {
			c := *row
			out = append(out, &c)
		}
	}

	return out, nil
}

func (m *memStore) SectionsByTermSubject(termId, subjectId int64) ([]*SectionRow, error) {
	var out []*SectionRow
	for _, row := range m.sections {
		class := m.classes[row.ClassId]
		if class == nil || class.TermId != termId {
			continue
		}

		course := m.courses[class.CourseId]
		if course == nil || course.SubjectId != subjectId {
			continue
		}

		out = append(out, &SectionRow{
			Section:  *row,
			CourseId: class.CourseId,
			CampusId: class.CampusId,
		})
	}

	return out, nil
}

func (m *memStore) MeetingsBySection(sectionId int64) ([]*MeetingRow, error) {
	var out []*MeetingRow
	for _, row := range m.meetings {
		if row.SectionId != sectionId {
			continue
		}

		meeting := &MeetingRow{Meeting: *row}
		if row.RoomId.Valid {
			room := m.rooms[row.RoomId.Int64]
			building := m.buildings[room.BuildingId]
			meeting.RoomNumber.String = room.Number
			meeting.RoomNumber.Valid = true
			meeting.BuildingCode.String = building.Code
			meeting.BuildingCode.Valid = true
		}

		out = append(out, meeting)
	}

	return out, nil
}

func (m *memStore) InstructorsByMeeting(meetingId int64) ([]*Instructor, error) {
	var out []*Instructor
	for _, id := range m.meetingInstructors[meetingId] {
		c := *m.instructors[id]
		out = append(out, &c)
	}

	return out, nil
}

func (m *memStore) InsertClass(c *Class) error {
	c.Id = m.id()
	cp := *c
	m.classes[c.Id] = &cp
	return nil
}

func (m *memStore) UpdateClass(c *Class) error {
	cp := *c
	m.classes[c.Id] = &cp
	return nil
}

func (m *memStore) InsertSection(s *Section) error {
	s.Id = m.id()
	c := *s
	m.sections[s.Id] = &c
	return nil
}

func (m *memStore) UpdateSection(s *Section) error {
	c := *s
	m.sections[s.Id] = &c
	return nil
}

func (m *memStore) DeleteSection(id int64) error {
	delete(m.sections, id)

	for meetingId, meeting := range m.meetings {
		if meeting.SectionId == id {
			delete(m.meetings, meetingId)
			delete(m.meetingInstructors, meetingId)
		}
	}

	return nil
}

func (m *memStore) InsertMeeting(meeting *Meeting) error {
	meeting.Id = m.id()
	c := *meeting
	m.meetings[meeting.Id] = &c
	return nil
}

func (m *memStore) UpdateMeeting(meeting *Meeting) error {
	c := *meeting
	m.meetings[meeting.Id] = &c
	return nil
}

func (m *memStore) DeleteMeeting(id int64) error {
	delete(m.meetings, id)
	delete(m.meetingInstructors, id)
	return nil
}

func (m *memStore) SetMeetingInstructors(meetingId int64, instructorIds []int64) error {
	m.meetingInstructors[meetingId] = append([]int64(nil), instructorIds...)
	return nil
}

func (m *memStore) DeleteEmptyClasses(termId, subjectId int64) (int64, error) {
	inUse := map[int64]bool{}
	for _, section := range m.sections {
		inUse[section.ClassId] = true
	}

	var deleted int64
	for id, class := range m.classes {
		if inUse[id] || class.TermId != termId {
			continue
		}

		course := m.courses[class.CourseId]
		if course == nil || course.SubjectId != subjectId {
			continue
		}

		delete(m.classes, id)
		deleted++
	}

	return deleted, nil
}

func (m *memStore) TermMeetingDateBounds(termId int64) (start, end pq.NullTime, err error) {
	for _, meeting := range m.meetings {
		section := m.sections[meeting.SectionId]
		if section == nil {
			continue
		}

		class := m.classes[section.ClassId]
		if class == nil || class.TermId != termId {
			continue
		}

		if meeting.StartDate.Valid && (!start.Valid || meeting.StartDate.Time.Before(start.Time)) {
			start = meeting.StartDate
		}
		if meeting.EndDate.Valid && (!end.Valid || meeting.EndDate.Time.After(end.Time)) {
			end = meeting.EndDate
		}
	}

	return start, end, nil
}

func (m *memStore) UpdateTermDates(termId int64, start, end pq.NullTime) error {
	term := m.terms[termId]
	term.StartDate = start
	term.EndDate = end
	return nil
}
