// Package event holds the static description of the cookout: the ballots
// guests can vote in and the house rules.
package event

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed asado.yaml
var defaultEvent []byte

var (
	ErrUnknownBallot = errors.New("unknown ballot")
	ErrUnknownChoice = errors.New("unknown choice")
)

// Columns the remote schema provides for each vote table, and the profile
// flags a ballot may toggle.
var (
	voteTables = map[string]string{
		"votes":      "dessert_id",
		"name_votes": "name_id",
	}
	profileFlags = map[string]bool{
		"has_voted":      true,
		"has_voted_name": true,
	}
)

type Choice struct {
	ID          string `yaml:"id" json:"id"`
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description" json:"description"`
	Image       string `yaml:"image,omitempty" json:"image,omitempty"`
}

// Ballot is one voting round. Reward is the number of points a profile earns
// for casting a vote in it.
type Ballot struct {
	ID          string   `yaml:"id" json:"id"`
	Title       string   `yaml:"title" json:"title"`
	Reward      int      `yaml:"reward" json:"reward"`
	Collection  string   `yaml:"collection" json:"-"`
	ChoiceField string   `yaml:"choice_field" json:"-"`
	FlagField   string   `yaml:"flag_field" json:"-"`
	Choices     []Choice `yaml:"choices" json:"choices"`
}

func (b Ballot) Choice(id string) (Choice, error) {
	for _, c := range b.Choices {
		if c.ID == id {
			return c, nil
		}
	}

	return Choice{}, fmt.Errorf("%w %q in ballot %q", ErrUnknownChoice, id, b.ID)
}

type Rule struct {
	Title       string `yaml:"title" json:"title"`
	Description string `yaml:"description" json:"description"`
}

type Event struct {
	Name     string   `yaml:"name" json:"name"`
	Subtitle string   `yaml:"subtitle" json:"subtitle"`
	Ballots  []Ballot `yaml:"ballots" json:"ballots"`
	Rules    []Rule   `yaml:"rules" json:"rules"`
	Note     string   `yaml:"note" json:"note"`
}

func (e *Event) Ballot(id string) (Ballot, error) {
	for _, b := range e.Ballots {
		if b.ID == id {
			return b, nil
		}
	}

	return Ballot{}, fmt.Errorf("%w: %q", ErrUnknownBallot, id)
}

func (e *Event) validate() error {
	if len(e.Ballots) == 0 {
		return errors.New("event has no ballots")
	}

	seen := make(map[string]bool, len(e.Ballots))
	flags := make(map[string]string, len(e.Ballots))

	for _, b := range e.Ballots {
		switch {
		case b.ID == "" || strings.ContainsAny(b.ID, ": "):
			return fmt.Errorf("invalid ballot id %q", b.ID)
		case seen[b.ID]:
			return fmt.Errorf("duplicate ballot id %q", b.ID)
		case b.Reward <= 0:
			return fmt.Errorf("ballot %q: reward must be positive", b.ID)
		case len(b.Choices) == 0:
			return fmt.Errorf("ballot %q has no choices", b.ID)
		case voteTables[b.Collection] == "":
			return fmt.Errorf("ballot %q: unknown collection %q", b.ID, b.Collection)
		case voteTables[b.Collection] != b.ChoiceField:
			return fmt.Errorf("ballot %q: collection %q has no column %q", b.ID, b.Collection, b.ChoiceField)
		case !profileFlags[b.FlagField]:
			return fmt.Errorf("ballot %q: unknown profile flag %q", b.ID, b.FlagField)
		case flags[b.FlagField] != "":
			return fmt.Errorf("ballots %q and %q share profile flag %q", flags[b.FlagField], b.ID, b.FlagField)
		}

		seen[b.ID] = true
		flags[b.FlagField] = b.ID

		choices := make(map[string]bool, len(b.Choices))
		for _, c := range b.Choices {
			if c.ID == "" || choices[c.ID] {
				return fmt.Errorf("ballot %q: invalid or duplicate choice id %q", b.ID, c.ID)
			}
			choices[c.ID] = true
		}
	}

	return nil
}

// Parse decodes and validates an event document.
func Parse(data []byte) (*Event, error) {
	var e Event
	if err := yaml.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}

	if err := e.validate(); err != nil {
		return nil, err
	}

	return &e, nil
}

// Load reads the event from path, or returns the built-in one when path is
// empty.
func Load(path string) (*Event, error) {
	if path == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read event file: %w", err)
	}

	return Parse(data)
}

// Default returns the built-in cookout.
func Default() *Event {
	e, err := Parse(defaultEvent)
	if err != nil {
		panic("embedded event is invalid: " + err.Error())
	}

	return e
}
