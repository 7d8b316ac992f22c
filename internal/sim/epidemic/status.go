package epidemic

import "fmt"

// Status is the disease state of one agent. Transitions only move forward;
// Removed is terminal.
type Status uint8

const (
	Susceptible Status = iota
	Infected
	Infectious
	Removed
)

var statusNames = [...]string{"susceptible", "infected", "infectious", "removed"}

func (s Status) String() string {
	if int(s) < len(statusNames) {
		return statusNames[s]
	}
	return fmt.Sprintf("status(%d)", uint8(s))
}

func (s Status) MarshalText() ([]byte, error) {
	if int(s) >= len(statusNames) {
		return nil, fmt.Errorf("invalid status %d", uint8(s))
	}
	return []byte(statusNames[s]), nil
}

func (s *Status) UnmarshalText(b []byte) error {
	v, err := ParseStatus(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

func ParseStatus(name string) (Status, error) {
	for i, n := range statusNames {
		if n == name {
			return Status(i), nil
		}
	}
	return 0, fmt.Errorf("unknown status %q", name)
}

// Counts is the population broken down by status at one tick.
type Counts struct {
	Susceptible int `json:"susceptible"`
	Infected    int `json:"infected"`
	Infectious  int `json:"infectious"`
	Removed     int `json:"removed"`
}

func (c Counts) Total() int { return c.Susceptible + c.Infected + c.Infectious + c.Removed }

// Ever returns how many agents have left Susceptible.
func (c Counts) Ever() int { return c.Infected + c.Infectious + c.Removed }

func (c *Counts) add(s Status) {
	switch s {
	case Susceptible:
		c.Susceptible++
	case Infected:
		c.Infected++
	case Infectious:
		c.Infectious++
	case Removed:
		c.Removed++
	}
}
