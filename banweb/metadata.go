package banweb

import (
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
)

// Endpoint paths and form field names are a fixed, fragile contract with
// the portal. Anything that stops matching is a ParseError, not something
// to work around.
const (
	loginFormPath      = "/banweb/twbkwbis.P_WWWLogin"
	loginSubmitPath    = "/banweb/twbkwbis.P_ValLogin"
	mainMenuPath       = "/banweb/twbkwbis.P_GenMenu?name=bmenu.P_MainMnu"
	termListPath       = "/banweb/bwckschd.p_disp_dyn_sched"
	subjectListPath    = "/banweb/bwckgens.p_proc_term_date"
	sectionListPath    = "/banweb/bwckschd.p_get_crse_unsec"
	sectionDetailsPath = "/banweb/bwskfcls.P_GetCrse"
)

const (
	loginFailureMarker   = "Authorization Failure - Invalid User ID or PIN"
	sessionExpiredMarker = "Your session has expired. Please log in again."
	noClassesMarker      = "No classes were found that meet your search criteria"
)

const (
	termSelectName    = "p_term"
	subjectSelectName = "sel_subj"
	loginTokenName    = "lt"
)

type Campus struct {
	Code string `toml:"code"`
	Name string `toml:"name"`
}

type Building struct {
	Code string `toml:"code"`
	Name string `toml:"name"`
}

// LocationTable maps the names the portal renders to the short codes the
// catalog stores. It ships with compiled-in defaults and can be replaced
// from a TOML file so new buildings do not require a code change.
type LocationTable struct {
	Campuses  []Campus   `toml:"campus"`
	Buildings []Building `toml:"building"`

	buildingsByName map[string]Building
	campusesByName  map[string]Campus
}

func LoadLocations(path string) (*LocationTable, error) {
	table := &LocationTable{}
	if _, err := toml.DecodeFile(path, table); err != nil {
		return nil, errors.Wrapf(err, "error decoding location table %s", path)
	}

	table.index()
	return table, nil
}

func DefaultLocations() *LocationTable {
	table := &LocationTable{
		Campuses: []Campus{
			{Code: "MAIN", Name: "Main Campus"},
			{Code: "NORTH", Name: "North Campus"},
			{Code: "CONTED", Name: "Continuing Education"},
		},
		Buildings: []Building{
			{Code: "LWSN", Name: "Lawson Computer Science Bldg"},
			{Code: "PHYS", Name: "Physics Building"},
			{Code: "MTHW", Name: "Mathews Hall"},
			{Code: "REC", Name: "Recitation Building"},
			{Code: "SC", Name: "Science Center"},
			{Code: "UNIV", Name: "University Hall"},
			{Code: "EEL", Name: "Electrical Engineering Lab"},
		},
	}

	table.index()
	return table
}

func (t *LocationTable) index() {
	t.buildingsByName = make(map[string]Building, len(t.Buildings))
	for _, b := range t.Buildings {
		t.buildingsByName[strings.ToLower(b.Name)] = b
	}

	t.campusesByName = make(map[string]Campus, len(t.Campuses))
	for _, c := range t.Campuses {
		t.campusesByName[strings.ToLower(c.Name)] = c
	}
}

// SplitLocation splits the portal's single "building name + room" string.
// It walks backward from the full string, dropping the trailing
// whitespace-delimited token at each step, until the remaining prefix
// matches a known building name. The first, and therefore longest, match
// wins. An unmatched string is fatal for the scrape unit.
func (t *LocationTable) SplitLocation(where string) (Building, string, error) {
	tokens := strings.Fields(where)

	for i := len(tokens); i > 0; i-- {
		prefix := strings.Join(tokens[:i], " ")
		if building, ok := t.buildingsByName[strings.ToLower(prefix)]; ok {
			return building, strings.Join(tokens[i:], " "), nil
		}
	}

	return Building{}, "", errors.Errorf("unknown building in location %q", where)
}

func (t *LocationTable) CampusByName(name string) (Campus, bool) {
	campus, ok := t.campusesByName[strings.ToLower(strings.TrimSpace(name))]
	return campus, ok
}
