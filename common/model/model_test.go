package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseDays(t *testing.T) {
	assert.Equal(t, Monday|Wednesday|Friday, ParseDays("MWF"))
	assert.Equal(t, Tuesday|Thursday, ParseDays("TR"))
	assert.Equal(t, Saturday|Sunday, ParseDays("SU"))
	assert.Equal(t, DayMask(0), ParseDays(""))
	assert.Equal(t, DayMask(0), ParseDays(" "))
}

func TestDayMaskString(t *testing.T) {
	assert.Equal(t, "MWF", (Monday | Wednesday | Friday).String())
	assert.Equal(t, "TR", (Tuesday | Thursday).String())
	assert.Equal(t, "SU", (Saturday | Sunday).String())
	assert.Equal(t, "", DayMask(0).String())
}

func TestDayMaskRoundTrip(t *testing.T) {
	for _, s := range []string{"M", "MWF", "TR", "MTWRF", "SU"} {
		assert.Equal(t, s, ParseDays(s).String())
	}
}

func TestDayMaskWeekdays(t *testing.T) {
	days := (Monday | Wednesday | Friday).Weekdays()
	assert.Equal(t, []time.Weekday{time.Monday, time.Wednesday, time.Friday}, days)

	assert.Equal(t, []time.Weekday{time.Sunday, time.Saturday}, (Saturday | Sunday).Weekdays())
}

func TestMeetingLocationTBA(t *testing.T) {
	assert.True(t, Meeting{}.LocationTBA())
	assert.False(t, Meeting{BuildingCode: "LWSN", RoomNumber: "B134"}.LocationTBA())
}

func TestTopicName(t *testing.T) {
	snap := Snapshot{
		Term:    Term{Id: "201710"},
		Subject: Subject{Code: "CS"},
	}

	assert.Equal(t, "catalog.201710.CS", snap.TopicName())
}
