package merge

import (
	"strconv"
	"strings"
)

func itoa(i int64) string {
	return strconv.FormatInt(i, 10)
}

// unitCache is the identity map for one reconciliation pass. Globally
// shared entities are upserted at most once per pass, so two meetings in
// the same building never race to insert the same row. The cache must not
// outlive its pass or be shared between concurrent passes.
type unitCache struct {
	store       Store
	campuses    map[string]*Campus
	buildings   map[string]*Building
	rooms       map[string]*Room
	instructors map[string]*Instructor
}

func newUnitCache(store Store) *unitCache {
	return &unitCache{
		store:       store,
		campuses:    map[string]*Campus{},
		buildings:   map[string]*Building{},
		rooms:       map[string]*Room{},
		instructors: map[string]*Instructor{},
	}
}

func (c *unitCache) campus(code, name string) (*Campus, error) {
	if campus, ok := c.campuses[code]; ok {
		return campus, nil
	}

	campus := &Campus{Code: code, Name: name}
	if err := c.store.UpsertCampus(campus); err != nil {
		return nil, err
	}

	c.campuses[code] = campus
	return campus, nil
}

func (c *unitCache) building(campusId int64, code, name string) (*Building, error) {
	key := itoa(campusId) + "|" + code
	if building, ok := c.buildings[key]; ok {
		return building, nil
	}

	building := &Building{CampusId: campusId, Code: code, Name: name}
	if err := c.store.UpsertBuilding(building); err != nil {
		return nil, err
	}

	c.buildings[key] = building
	return building, nil
}

func (c *unitCache) room(buildingId int64, number string) (*Room, error) {
	key := itoa(buildingId) + "|" + number
	if room, ok := c.rooms[key]; ok {
		return room, nil
	}

	room := &Room{BuildingId: buildingId, Number: number}
	if err := c.store.UpsertRoom(room); err != nil {
		return nil, err
	}

	c.rooms[key] = room
	return room, nil
}

func (c *unitCache) instructor(name, email string) (*Instructor, error) {
	key := strings.ToLower(email)
	if instructor, ok := c.instructors[key]; ok {
		return instructor, nil
	}

	instructor := &Instructor{Name: name, Email: email}
	if err := c.store.UpsertInstructor(instructor); err != nil {
		return nil, err
	}

	c.instructors[key] = instructor
	return instructor, nil
}
