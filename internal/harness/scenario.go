package harness

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Scenario defines a conformance test scenario: a document, a set of
// clients, a sequence of edit submissions with optional expectations, and
// assertions on the final state.
type Scenario struct {
	// Name uniquely identifies this scenario; the golden trace file is
	// named after it.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Document describes the document under test.
	Document DocumentSpec `yaml:"document"`

	// Clients lists the participating clients and their capability
	// grants. Every client joins before the first step.
	Clients []ClientSpec `yaml:"clients"`

	// Steps are executed in order.
	Steps []Step `yaml:"steps"`

	// Final asserts on the document after all steps.
	Final FinalSpec `yaml:"final"`
}

// DocumentSpec names the document under test.
type DocumentSpec struct {
	Title string `yaml:"title"`
	Owner string `yaml:"owner"`
}

// ClientSpec is one participating client.
type ClientSpec struct {
	// ID is the client/author id.
	ID string `yaml:"id"`

	// Capability is the grant name: owner, write, comment, or read.
	// The document owner holds the full set regardless.
	Capability string `yaml:"capability"`
}

// Step is one submitted operation. Exactly one of Insert or Delete must
// be set.
type Step struct {
	// Client is the submitting client id.
	Client string `yaml:"client"`

	Insert *InsertSpec `yaml:"insert,omitempty"`
	Delete *DeleteSpec `yaml:"delete,omitempty"`

	// Base is the revision the operation claims to be composed against.
	// Omitted, it defaults to the document's revision at submission time
	// (a fully caught-up client); set explicitly to simulate concurrency.
	Base *int `yaml:"base,omitempty"`

	// Expect optionally validates the outcome.
	Expect *ExpectSpec `yaml:"expect,omitempty"`
}

// InsertSpec is an insert payload.
type InsertSpec struct {
	Pos  int    `yaml:"pos"`
	Text string `yaml:"text"`
}

// DeleteSpec is a delete range.
type DeleteSpec struct {
	Pos    int `yaml:"pos"`
	Length int `yaml:"length"`
}

// ExpectSpec validates a step's outcome. Reject names the expected
// rejection code; the other fields validate a successful commit.
type ExpectSpec struct {
	// Reject is the expected rejection code (STALE_REVISION,
	// UNAUTHORIZED, MALFORMED_OPERATION). Empty means the step must
	// commit.
	Reject string `yaml:"reject,omitempty"`

	// Pos is the expected transformed position.
	Pos *int `yaml:"pos,omitempty"`

	// Revision is the expected committed revision.
	Revision *int `yaml:"revision,omitempty"`
}

// FinalSpec asserts on the document after all steps.
type FinalSpec struct {
	Content  *string `yaml:"content,omitempty"`
	Revision *int    `yaml:"revision,omitempty"`
}

// LoadScenario reads and validates a scenario file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}

	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse scenario %s: %w", path, err)
	}
	if err := s.validate(); err != nil {
		return nil, fmt.Errorf("scenario %s: %w", path, err)
	}
	return &s, nil
}

func (s *Scenario) validate() error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Document.Owner == "" {
		return fmt.Errorf("document.owner is required")
	}
	known := make(map[string]bool, len(s.Clients))
	for _, c := range s.Clients {
		if c.ID == "" {
			return fmt.Errorf("client id is required")
		}
		known[c.ID] = true
	}
	for i, st := range s.Steps {
		if st.Client == "" {
			return fmt.Errorf("step %d: client is required", i)
		}
		if !known[st.Client] {
			return fmt.Errorf("step %d: unknown client %q", i, st.Client)
		}
		if (st.Insert == nil) == (st.Delete == nil) {
			return fmt.Errorf("step %d: exactly one of insert or delete is required", i)
		}
	}
	return nil
}
