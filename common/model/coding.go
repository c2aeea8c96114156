package model

import (
	"bytes"
	"encoding/json"
	"io"
	"time"

	"github.com/pkg/errors"
)

const Json = "json"

// Snapshot is the unit of hand-off between the scraper and the
// synchronizer: everything scraped for one (term, subject) pair.
type Snapshot struct {
	Term      Term      `json:"term"`
	Subject   Subject   `json:"subject"`
	Sections  []Section `json:"sections"`
	ScrapedAt time.Time `json:"scraped_at"`
}

func (s Snapshot) TopicName() string {
	return "catalog." + s.Term.Id + "." + s.Subject.Code
}

func MarshalSnapshot(format string, snap Snapshot) (io.Reader, error) {
	if format != Json {
		return nil, errors.Errorf("unsupported format: %s", format)
	}

	out, err := json.Marshal(snap)
	if err != nil {
		return nil, errors.Wrap(err, "error marshalling snapshot")
	}

	return bytes.NewReader(out), nil
}

func UnmarshalSnapshot(format string, r io.Reader, snap *Snapshot) error {
	if format != Json {
		return errors.Errorf("unsupported format: %s", format)
	}

	if err := json.NewDecoder(r).Decode(snap); err != nil {
		return errors.Wrap(err, "error unmarshalling snapshot")
	}

	return nil
}
