package merge

import (
	"database/sql"

	log "github.com/Sirupsen/logrus"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/courscan/catalog-backend/common/database"
)

// postgresStore persists the catalog through prepared named statements.
// Rows commit as they are written; InUnit runs the pass directly, so a
// failed unit leaves whatever it wrote so far and the next pass repairs
// it. Upserts make every write idempotent either way.
type postgresStore struct {
	db database.Handler
}

func NewPostgresStore(appName string, db *sqlx.DB) Store {
	return &postgresStore{db: database.NewHandler(appName, db, queries)}
}

func (p *postgresStore) InUnit(fn func(Store) error) error {
	p.db.ResetStats()
	defer func() {
		stats := p.db.Stats()
		log.WithFields(log.Fields{
			"insertions": stats.Insertions,
			"updates":    stats.Updates,
			"upserts":    stats.Upserts,
			"deletions":  stats.Deletions,
		}).Debugln("unit statement stats")
	}()

	return fn(p)
}

func (p *postgresStore) UpsertTerm(t *Term) error {
	t.Id = p.db.Upsert(TermInsertQuery, TermUpdateQuery, t)
	return nil
}

func (p *postgresStore) UpsertSubject(s *Subject) error {
	s.Id = p.db.Upsert(SubjectInsertQuery, SubjectUpdateQuery, s)
	return nil
}

func (p *postgresStore) UpsertCampus(c *Campus) error {
	c.Id = p.db.Upsert(CampusInsertQuery, CampusUpdateQuery, c)
	return nil
}

func (p *postgresStore) UpsertBuilding(b *Building) error {
	b.Id = p.db.Upsert(BuildingInsertQuery, BuildingUpdateQuery, b)
	return nil
}

func (p *postgresStore) UpsertRoom(r *Room) error {
	r.Id = p.db.Upsert(RoomInsertQuery, RoomUpdateQuery, r)
	return nil
}

func (p *postgresStore) UpsertInstructor(i *Instructor) error {
	i.Id = p.db.Upsert(InstructorInsertQuery, InstructorUpdateQuery, i)
	return nil
}

func (p *postgresStore) UpsertCourse(c *Course) error {
	c.Id = p.db.Upsert(CourseInsertQuery, CourseUpdateQuery, c)
	return nil
}

func (p *postgresStore) TermByCode(code string) (*Term, error) {
	term := &Term{}
	err := p.db.Get(TermSelectQuery, term, map[string]interface{}{"code": code})
	if err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, err
	}

	return term, nil
}

func (p *postgresStore) CoursesBySubject(subjectId int64) ([]*Course, error) {
	var courses []*Course
	err := p.db.Select(CourseSelectQuery, &courses, map[string]interface{}{"subject_id": subjectId})
	return courses, err
}

func (p *postgresStore) ClassesByTermSubject(termId, subjectId int64) ([]*Class, error) {
	var classes []*Class
	err := p.db.Select(ClassSelectQuery, &classes, map[string]interface{}{
		"term_id":    termId,
		"subject_id": subjectId,
	})
	return classes, err
}

func (p *postgresStore) SectionsByTermSubject(termId, subjectId int64) ([]*SectionRow, error) {
	var rows []*SectionRow
	err := p.db.Select(SectionSelectQuery, &rows, map[string]interface{}{
		"term_id":    termId,
		"subject_id": subjectId,
	})
	return rows, err
}

func (p *postgresStore) MeetingsBySection(sectionId int64) ([]*MeetingRow, error) {
	var rows []*MeetingRow
	err := p.db.Select(MeetingSelectQuery, &rows, map[string]interface{}{"section_id": sectionId})
	return rows, err
}

func (p *postgresStore) InstructorsByMeeting(meetingId int64) ([]*Instructor, error) {
	var instructors []*Instructor
	err := p.db.Select(MeetingInstructorSelectQuery, &instructors, map[string]interface{}{"meeting_id": meetingId})
	return instructors, err
}

func (p *postgresStore) InsertClass(c *Class) error {
	c.Id = p.db.Insert(ClassInsertQuery, c)
	return nil
}

func (p *postgresStore) UpdateClass(c *Class) error {
	p.db.Update(ClassUpdateQuery, c)
	return nil
}

func (p *postgresStore) InsertSection(s *Section) error {
	s.Id = p.db.Insert(SectionInsertQuery, s)
	return nil
}

func (p *postgresStore) UpdateSection(s *Section) error {
	p.db.Update(SectionUpdateQuery, s)
	return nil
}

// DeleteSection relies on the schema cascading the section's meetings and
// their instructor links.
func (p *postgresStore) DeleteSection(id int64) error {
	p.db.Exec(SectionDeleteQuery, map[string]interface{}{"id": id})
	return nil
}

func (p *postgresStore) InsertMeeting(m *Meeting) error {
	m.Id = p.db.Insert(MeetingInsertQuery, m)
	return nil
}

func (p *postgresStore) UpdateMeeting(m *Meeting) error {
	p.db.Update(MeetingUpdateQuery, m)
	return nil
}

func (p *postgresStore) DeleteMeeting(id int64) error {
	p.db.Exec(MeetingDeleteQuery, map[string]interface{}{"id": id})
	return nil
}

func (p *postgresStore) SetMeetingInstructors(meetingId int64, instructorIds []int64) error {
	p.db.Exec(MeetingInstructorDeleteQuery, map[string]interface{}{"meeting_id": meetingId})

	for _, id := range instructorIds {
		p.db.Exec(MeetingInstructorInsertQuery, map[string]interface{}{
			"meeting_id":    meetingId,
			"instructor_id": id,
		})
	}

	return nil
}

func (p *postgresStore) DeleteEmptyClasses(termId, subjectId int64) (int64, error) {
	affected := p.db.Exec(ClassDeleteEmptyQuery, map[string]interface{}{
		"term_id":    termId,
		"subject_id": subjectId,
	})
	return affected, nil
}

func (p *postgresStore) TermMeetingDateBounds(termId int64) (start, end pq.NullTime, err error) {
	bounds := struct {
		StartDate pq.NullTime `db:"start_date"`
		EndDate   pq.NullTime `db:"end_date"`
	}{}

	err = p.db.Get(TermMeetingBoundsQuery, &bounds, map[string]interface{}{"term_id": termId})
	if err != nil {
		return pq.NullTime{}, pq.NullTime{}, err
	}

	return bounds.StartDate, bounds.EndDate, nil
}

func (p *postgresStore) UpdateTermDates(termId int64, start, end pq.NullTime) error {
	p.db.Update(TermDatesUpdateQuery, map[string]interface{}{
		"id":         termId,
		"start_date": start,
		"end_date":   end,
	})
	return nil
}
