package merge

const (
	TermInsertQuery = `INSERT INTO term (code, name)
		VALUES (:code, :name)
		RETURNING term.id`
	TermUpdateQuery = `UPDATE term SET (name) = (:name)
		WHERE term.code = :code
		RETURNING term.id`
	TermSelectQuery      = `SELECT * FROM term WHERE term.code = :code`
	TermDatesUpdateQuery = `UPDATE term SET (start_date, end_date) = (:start_date, :end_date)
		WHERE term.id = :id
		RETURNING term.id`
	TermMeetingBoundsQuery = `SELECT MIN(meeting.start_date) AS start_date, MAX(meeting.end_date) AS end_date
		FROM meeting
			JOIN section ON section.id = meeting.section_id
			JOIN class ON class.id = section.class_id
		WHERE class.term_id = :term_id`

	SubjectInsertQuery = `INSERT INTO subject (code, name)
		VALUES (:code, :name)
		RETURNING subject.id`
	SubjectUpdateQuery = `UPDATE subject SET (name) = (:name)
		WHERE subject.code = :code
		RETURNING subject.id`

	CampusInsertQuery = `INSERT INTO campus (code, name)
		VALUES (:code, :name)
		RETURNING campus.id`
	CampusUpdateQuery = `UPDATE campus SET (name) = (:name)
		WHERE campus.code = :code
		RETURNING campus.id`

	BuildingInsertQuery = `INSERT INTO building (campus_id, code, name)
		VALUES (:campus_id, :code, :name)
		RETURNING building.id`
	BuildingUpdateQuery = `UPDATE building SET (name) = (:name)
		WHERE building.campus_id = :campus_id AND building.code = :code
		RETURNING building.id`

	RoomInsertQuery = `INSERT INTO room (building_id, number)
		VALUES (:building_id, :number)
		RETURNING room.id`
	RoomUpdateQuery = `UPDATE room SET (number) = (:number)
		WHERE room.building_id = :building_id AND room.number = :number
		RETURNING room.id`

	InstructorInsertQuery = `INSERT INTO instructor (name, email)
		VALUES (:name, :email)
		RETURNING instructor.id`
	InstructorUpdateQuery = `UPDATE instructor SET (name) = (:name)
		WHERE LOWER(instructor.email) = LOWER(:email)
		RETURNING instructor.id`

	CourseInsertQuery = `INSERT INTO course (subject_id, number, title, description, credit_hours)
		VALUES (:subject_id, :number, :title, :description, :credit_hours)
		RETURNING course.id`
	CourseUpdateQuery = `UPDATE course SET (title, description, credit_hours) = (:title, :description, :credit_hours)
		WHERE course.subject_id = :subject_id AND course.number = :number
		RETURNING course.id`
	CourseSelectQuery = `SELECT * FROM course WHERE course.subject_id = :subject_id`

	ClassInsertQuery = `INSERT INTO class (course_id, term_id, campus_id)
		VALUES (:course_id, :term_id, :campus_id)
		RETURNING class.id`
	ClassUpdateQuery = `UPDATE class SET (course_id, campus_id) = (:course_id, :campus_id)
		WHERE class.id = :id
		RETURNING class.id`
	ClassSelectQuery = `SELECT class.* FROM class
			JOIN course ON course.id = class.course_id
		WHERE class.term_id = :term_id AND course.subject_id = :subject_id`
	ClassDeleteEmptyQuery = `DELETE FROM class
		WHERE class.term_id = :term_id
			AND class.course_id IN (SELECT course.id FROM course WHERE course.subject_id = :subject_id)
			AND NOT EXISTS (SELECT 1 FROM section WHERE section.class_id = class.id)`

	SectionInsertQuery = `INSERT INTO section (class_id, crn, code, type, capacity, enrolled, remaining_space,
			wait_list_capacity, wait_list_count, wait_list_space)
		VALUES (:class_id, :crn, :code, :type, :capacity, :enrolled, :remaining_space,
			:wait_list_capacity, :wait_list_count, :wait_list_space)
		RETURNING section.id`
	SectionUpdateQuery = `UPDATE section SET (class_id, code, type, capacity, enrolled, remaining_space,
			wait_list_capacity, wait_list_count, wait_list_space)
		= (:class_id, :code, :type, :capacity, :enrolled, :remaining_space,
			:wait_list_capacity, :wait_list_count, :wait_list_space)
		WHERE section.id = :id
		RETURNING section.id`
	SectionSelectQuery = `SELECT section.*, class.course_id, class.campus_id FROM section
			JOIN class ON class.id = section.class_id
			JOIN course ON course.id = class.course_id
		WHERE class.term_id = :term_id AND course.subject_id = :subject_id`
	SectionDeleteQuery = `DELETE FROM section WHERE section.id = :id`

	MeetingInsertQuery = `INSERT INTO meeting (section_id, room_id, type, days, start_time, end_time, start_date, end_date)
		VALUES (:section_id, :room_id, :type, :days, :start_time, :end_time, :start_date, :end_date)
		RETURNING meeting.id`
	MeetingUpdateQuery = `UPDATE meeting SET (start_date, end_date) = (:start_date, :end_date)
		WHERE meeting.id = :id
		RETURNING meeting.id`
	MeetingSelectQuery = `SELECT meeting.*, building.code AS building_code, room.number AS room_number
		FROM meeting
			LEFT JOIN room ON room.id = meeting.room_id
			LEFT JOIN building ON building.id = room.building_id
		WHERE meeting.section_id = :section_id`
	MeetingDeleteQuery = `DELETE FROM meeting WHERE meeting.id = :id`

	MeetingInstructorSelectQuery = `SELECT instructor.* FROM instructor
			JOIN meeting_instructor ON meeting_instructor.instructor_id = instructor.id
		WHERE meeting_instructor.meeting_id = :meeting_id`
	MeetingInstructorInsertQuery = `INSERT INTO meeting_instructor (meeting_id, instructor_id)
		VALUES (:meeting_id, :instructor_id)`
	MeetingInstructorDeleteQuery = `DELETE FROM meeting_instructor WHERE meeting_instructor.meeting_id = :meeting_id`
)

var queries = []string{
	TermInsertQuery,
	TermUpdateQuery,
	TermSelectQuery,
	TermDatesUpdateQuery,
	TermMeetingBoundsQuery,
	SubjectInsertQuery,
	SubjectUpdateQuery,
	CampusInsertQuery,
	CampusUpdateQuery,
	BuildingInsertQuery,
	BuildingUpdateQuery,
	RoomInsertQuery,
	RoomUpdateQuery,
	InstructorInsertQuery,
	InstructorUpdateQuery,
	CourseInsertQuery,
	CourseUpdateQuery,
	CourseSelectQuery,
	ClassInsertQuery,
	ClassUpdateQuery,
	ClassSelectQuery,
	ClassDeleteEmptyQuery,
	SectionInsertQuery,
	SectionUpdateQuery,
	SectionSelectQuery,
	SectionDeleteQuery,
	MeetingInsertQuery,
	MeetingUpdateQuery,
	MeetingSelectQuery,
	MeetingDeleteQuery,
	MeetingInstructorSelectQuery,
	MeetingInstructorInsertQuery,
	MeetingInstructorDeleteQuery,
}
