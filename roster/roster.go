// Package roster loads the list of tracked representatives.
package roster

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/invopop/jsonschema"
	"github.com/rs/zerolog/log"

	"github.com/NextMind-AI/repstats/records"
)

// ErrEmpty is returned when the roster lists nobody.
var ErrEmpty = errors.New("roster: no representatives to run")

var idPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)

// Entry is one representative of managers/config.json. Transport credentials
// are consumed by the bridge; they are only checked for presence here.
type Entry struct {
	ID       string `json:"id" jsonschema:"pattern=^[a-z0-9][a-z0-9_-]*$" jsonschema_description:"Stable representative identifier"`
	Name     string `json:"name" jsonschema_description:"Display name"`
	APIID    int64  `json:"api_id" jsonschema_description:"Transport application id"`
	APIHash  string `json:"api_hash" jsonschema_description:"Transport application hash"`
	Phone    string `json:"phone" jsonschema_description:"Phone number of the account"`
	Timezone string `json:"timezone,omitempty" jsonschema_description:"IANA time zone of the representative's working day"`
}

// Schema returns the JSON Schema of the roster file.
func Schema() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	return reflector.Reflect([]Entry{})
}

// Load reads the roster at path. Representatives without a time zone get
// defaultLoc.
func Load(path string, defaultLoc *time.Location) ([]records.Representative, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("roster: read %s: %w", path, err)
	}
	reps, err := Parse(data, defaultLoc)
	if err != nil {
		return nil, err
	}

	log.Info().Str("path", path).Int("representatives", len(reps)).Msg("Roster loaded")
	return reps, nil
}

// Parse decodes and validates a roster document.
func Parse(data []byte, defaultLoc *time.Location) ([]records.Representative, error) {
	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("roster: decode: %w", err)
	}
	if len(entries) == 0 {
		return nil, ErrEmpty
	}

	seen := make(map[string]bool, len(entries))
	reps := make([]records.Representative, 0, len(entries))
	for i, e := range entries {
		if err := e.validate(); err != nil {
			return nil, fmt.Errorf("roster: entry %d: %w", i, err)
		}
		if seen[e.ID] {
			return nil, fmt.Errorf("roster: entry %d: duplicate id %q", i, e.ID)
		}
		seen[e.ID] = true

		loc := defaultLoc
		if e.Timezone != "" {
			var err error
			if loc, err = time.LoadLocation(e.Timezone); err != nil {
				return nil, fmt.Errorf("roster: entry %d: timezone %q: %w", i, e.Timezone, err)
			}
		}
		reps = append(reps, records.Representative{ID: e.ID, Name: e.Name, Location: loc})
	}
	return reps, nil
}

func (e Entry) validate() error {
	if !idPattern.MatchString(e.ID) {
		return fmt.Errorf("invalid id %q", e.ID)
	}
	if strings.TrimSpace(e.Name) == "" {
		return fmt.Errorf("id %q: name is required", e.ID)
	}
	if e.APIID <= 0 || e.APIHash == "" {
		return fmt.Errorf("id %q: api_id and api_hash are required", e.ID)
	}
	if e.Phone == "" {
		return fmt.Errorf("id %q: phone is required", e.ID)
	}
	return nil
}
