package merge

import (
	"database/sql"

	"github.com/lib/pq"

	"github.com/courscan/catalog-backend/common/model"
)

// Persisted catalog rows. Identity is always the natural key; the surrogate
// ids exist for foreign keys only.

type Term struct {
	Id        int64       `db:"id"`
	Code      string      `db:"code"`
	Name      string      `db:"name"`
	StartDate pq.NullTime `db:"start_date"`
	EndDate   pq.NullTime `db:"end_date"`
}

type Subject struct {
	Id   int64  `db:"id"`
	Code string `db:"code"`
	Name string `db:"name"`
}

type Campus struct {
	Id   int64  `db:"id"`
	Code string `db:"code"`
	Name string `db:"name"`
}

type Building struct {
	Id       int64  `db:"id"`
	CampusId int64  `db:"campus_id"`
	Code     string `db:"code"`
	Name     string `db:"name"`
}

type Room struct {
	Id         int64  `db:"id"`
	BuildingId int64  `db:"building_id"`
	Number     string `db:"number"`
}

// Instructor identity is the email address, compared case-insensitively.
type Instructor struct {
	Id    int64  `db:"id"`
	Name  string `db:"name"`
	Email string `db:"email"`
}

type Course struct {
	Id          int64   `db:"id"`
	SubjectId   int64   `db:"subject_id"`
	Number      string  `db:"number"`
	Title       string  `db:"title"`
	Description string  `db:"description"`
	CreditHours float64 `db:"credit_hours"`
}

// Class groups the sections that are offered together for one course, term
// and campus. It owns its section collection; a class with no sections
// left is removed.
type Class struct {
	Id       int64 `db:"id"`
	CourseId int64 `db:"course_id"`
	TermId   int64 `db:"term_id"`
	CampusId int64 `db:"campus_id"`
}

type Section struct {
	Id               int64  `db:"id"`
	ClassId          int64  `db:"class_id"`
	Crn              string `db:"crn"`
	Code             string `db:"code"`
	Type             string `db:"type"`
	Capacity         int    `db:"capacity"`
	Enrolled         int    `db:"enrolled"`
	RemainingSpace   int    `db:"remaining_space"`
	WaitListCapacity int    `db:"wait_list_capacity"`
	WaitListCount    int    `db:"wait_list_count"`
	WaitListSpace    int    `db:"wait_list_space"`
}

type Meeting struct {
	Id        int64         `db:"id"`
	SectionId int64         `db:"section_id"`
	RoomId    sql.NullInt64 `db:"room_id"`
	Type      string        `db:"type"`
	Days      model.DayMask `db:"days"`
	StartTime string        `db:"start_time"`
	EndTime   string        `db:"end_time"`
	StartDate pq.NullTime   `db:"start_date"`
	EndDate   pq.NullTime   `db:"end_date"`
}

// SectionRow is a Section joined with its class's course and campus, the
// shape the synchronizer caches by CRN.
type SectionRow struct {
	Section
	CourseId int64 `db:"course_id"`
	CampusId int64 `db:"campus_id"`
}

// MeetingRow is a Meeting joined with its resolved location, enough to
// compute meeting identity without chasing the room hierarchy.
type MeetingRow struct {
	Meeting
	BuildingCode sql.NullString `db:"building_code"`
	RoomNumber   sql.NullString `db:"room_number"`
}

// Store is the persistence boundary. Upserts resolve by natural key and
// fill in the surrogate id. InUnit brackets one (term, subject)
// reconciliation pass; an error aborts the pass and implementations that
// can roll back do so, while already-committed prior units always stand.
type Store interface {
	InUnit(fn func(Store) error) error

	UpsertTerm(t *Term) error
	UpsertSubject(s *Subject) error
	UpsertCampus(c *Campus) error
	UpsertBuilding(b *Building) error
	UpsertRoom(r *Room) error
	UpsertInstructor(i *Instructor) error
	UpsertCourse(c *Course) error

	TermByCode(code string) (*Term, error)
	CoursesBySubject(subjectId int64) ([]*Course, error)
	ClassesByTermSubject(termId, subjectId int64) ([]*Class, error)
	SectionsByTermSubject(termId, subjectId int64) ([]*SectionRow, error)
	MeetingsBySection(sectionId int64) ([]*MeetingRow, error)
	InstructorsByMeeting(meetingId int64) ([]*Instructor, error)

	InsertClass(c *Class) error
	UpdateClass(c *Class) error
	InsertSection(s *Section) error
	UpdateSection(s *Section) error
	DeleteSection(id int64) error
	InsertMeeting(m *Meeting) error
	UpdateMeeting(m *Meeting) error
	DeleteMeeting(id int64) error
	SetMeetingInstructors(meetingId int64, instructorIds []int64) error
	DeleteEmptyClasses(termId, subjectId int64) (int64, error)

	TermMeetingDateBounds(termId int64) (start, end pq.NullTime, err error)
	UpdateTermDates(termId int64, start, end pq.NullTime) error
}
