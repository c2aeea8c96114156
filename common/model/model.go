package model

import (
	"strings"
	"time"
)

// Term is one academic period as reported by the source, e.g. 201710.
type Term struct {
	Id   string `json:"id"`
	Name string `json:"name"`
}

// Subject is a department code plus its human readable name.
type Subject struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// Section is one scheduled offering of a course for one term. Crn is the
// source's unique registration identifier within a term. LinkSelf and
// LinkOther are opaque tokens chaining co-required sections of the same
// class together; they are only unique within one course number.
type Section struct {
	Crn              string    `json:"crn"`
	SectionCode      string    `json:"section_code"`
	SubjectCode      string    `json:"subject_code"`
	CourseNumber     string    `json:"course_number"`
	CourseTitle      string    `json:"course_title"`
	Type             string    `json:"type"`
	Description      string    `json:"description,omitempty"`
	CreditHours      float64   `json:"credit_hours"`
	LinkSelf         string    `json:"link_self,omitempty"`
	LinkOther        string    `json:"link_other,omitempty"`
	CampusCode       string    `json:"campus_code"`
	CampusName       string    `json:"campus_name"`
	Capacity         int       `json:"capacity"`
	Enrolled         int       `json:"enrolled"`
	RemainingSpace   int       `json:"remaining_space"`
	WaitListCapacity int       `json:"wait_list_capacity"`
	WaitListCount    int       `json:"wait_list_count"`
	WaitListSpace    int       `json:"wait_list_space"`
	Meetings         []Meeting `json:"meetings"`
}

// Meeting is one recurring time/place/instructor block within a section's
// schedule. StartDate and EndDate are nil when the source reports TBA.
// A meeting either has both BuildingCode and RoomNumber resolved or is
// entirely TBA with all location fields empty.
type Meeting struct {
	Type         string       `json:"type"`
	Instructors  []Instructor `json:"instructors,omitempty"`
	StartDate    *time.Time   `json:"start_date,omitempty"`
	EndDate      *time.Time   `json:"end_date,omitempty"`
	Days         DayMask      `json:"days"`
	StartTime    string       `json:"start_time,omitempty"`
	EndTime      string       `json:"end_time,omitempty"`
	BuildingCode string       `json:"building_code,omitempty"`
	BuildingName string       `json:"building_name,omitempty"`
	RoomNumber   string       `json:"room_number,omitempty"`
}

func (m Meeting) LocationTBA() bool {
	return m.BuildingCode == ""
}

type Instructor struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// DayMask is a 7-bit day-of-week set.
type DayMask uint8

const (
	Sunday DayMask = 1 << iota
	Monday
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
)

var dayLetters = []struct {
	letter string
	day    DayMask
}{
	{"M", Monday},
	{"T", Tuesday},
	{"W", Wednesday},
	{"R", Thursday},
	{"F", Friday},
	{"S", Saturday},
	{"U", Sunday},
}

// ParseDays decodes the source's single letter day codes. Presence of a
// letter anywhere in the string sets its bit; position carries no meaning.
func ParseDays(s string) DayMask {
	var mask DayMask
	for _, d := range dayLetters {
		if strings.Contains(s, d.letter) {
			mask |= d.day
		}
	}
	return mask
}

func (d DayMask) Has(day DayMask) bool {
	return d&day != 0
}

func (d DayMask) String() string {
	var b strings.Builder
	for _, l := range dayLetters {
		if d.Has(l.day) {
			b.WriteString(l.letter)
		}
	}
	return b.String()
}

// Weekdays expands the mask in week order starting from Sunday.
func (d DayMask) Weekdays() []time.Weekday {
	var days []time.Weekday
	for i := 0; i < 7; i++ {
		if d.Has(1 << uint(i)) {
			days = append(days, time.Weekday(i))
		}
	}
	return days
}
