package agenttest

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// scriptFile is the YAML document accepted by LoadScript.
//
// Example:
//
//	steps:
//	  - token: "Hi"
//	  - delay: 200ms
//	  - message: {role: ai, content: "Hi there"}
//	  - done: true
type scriptFile struct {
	Steps []scriptStep `yaml:"steps"`
}

// scriptStep is one step of a script file. At most one action may be set;
// delay can accompany any action or stand alone as a pure pause.
type scriptStep struct {
	Delay string `yaml:"delay,omitempty"`

	Token   *string        `yaml:"token,omitempty"`
	Message *scriptMessage `yaml:"message,omitempty"`
	Error   *scriptError   `yaml:"error,omitempty"`
	Raw     *string        `yaml:"raw,omitempty"`
	Done    bool           `yaml:"done,omitempty"`
	Close   bool           `yaml:"close,omitempty"`
}

type scriptMessage struct {
	Role    string `yaml:"role"`
	Content string `yaml:"content"`
}

type scriptError struct {
	Message     string `yaml:"message"`
	Recoverable bool   `yaml:"recoverable"`
}

// LoadScript reads a YAML stream script from path.
func LoadScript(path string) ([]Step, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read script file: %w", err)
	}

	var file scriptFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse script file %s: %w", path, err)
	}
	if len(file.Steps) == 0 {
		return nil, fmt.Errorf("script file %s has no steps", path)
	}

	steps := make([]Step, 0, len(file.Steps))
	for i, s := range file.Steps {
		step, err := s.toStep()
		if err != nil {
			return nil, fmt.Errorf("script file %s, step %d: %w", path, i+1, err)
		}
		steps = append(steps, step)
	}
	return steps, nil
}

func (s *scriptStep) toStep() (Step, error) {
	actions := 0
	if s.Token != nil {
		actions++
	}
	if s.Message != nil {
		actions++
	}
	if s.Error != nil {
		actions++
	}
	if s.Raw != nil {
		actions++
	}
	if s.Done {
		actions++
	}
	if s.Close {
		actions++
	}
	if actions > 1 {
		return Step{}, fmt.Errorf("more than one action set")
	}

	var step Step
	switch {
	case s.Token != nil:
		step = TokenStep(*s.Token)
	case s.Message != nil:
		if s.Message.Role == "" {
			return Step{}, fmt.Errorf("message role is required")
		}
		step = MessageStep(s.Message.Role, s.Message.Content)
	case s.Error != nil:
		if s.Error.Message == "" {
			return Step{}, fmt.Errorf("error message is required")
		}
		step = ErrorStep(s.Error.Message, s.Error.Recoverable)
	case s.Raw != nil:
		step = RawStep(*s.Raw)
	case s.Done:
		step = DoneStep()
	case s.Close:
		step = CloseStep()
	}

	if s.Delay != "" {
		d, err := time.ParseDuration(s.Delay)
		if err != nil {
			return Step{}, fmt.Errorf("invalid delay %q: %w", s.Delay, err)
		}
		if d < 0 {
			return Step{}, fmt.Errorf("delay must not be negative, got %s", d)
		}
		step.Delay = d
	}

	return step, nil
}
