package models

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Question mirrors one entry of the demographics YAML file.
type Question struct {
	ID          string   `yaml:"id"`
	Title       string   `yaml:"title"`
	Description string   `yaml:"description"`
	Type        string   `yaml:"type"` // radio, dropdown, number or text
	Required    bool     `yaml:"required"`
	Options     []Option `yaml:"options"`
	Placeholder string   `yaml:"placeholder,omitempty"`
	MaxLength   int      `yaml:"max_length,omitempty"`
	Min         *int     `yaml:"min,omitempty"`
	Max         *int     `yaml:"max,omitempty"`
}

// Option struct for question choices
type Option struct {
	Value       string `yaml:"value"`
	Label       string `yaml:"label"`
	Description string `yaml:"description,omitempty"`
}

// HasOption reports whether value is one of the question's choices.
func (q Question) HasOption(value string) bool {
	for _, o := range q.Options {
		if o.Value == value {
			return true
		}
	}
	return false
}

// Questionnaire holds the optional demographic questions.
type Questionnaire struct {
	Questions []Question `yaml:"questions"`
}

// LoadQuestionnaire reads and parses the demographics YAML file.
func LoadQuestionnaire(path string) (*Questionnaire, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read questionnaire file: %w", err)
	}

	var questionnaire Questionnaire
	if err := yaml.Unmarshal(data, &questionnaire); err != nil {
		return nil, fmt.Errorf("failed to unmarshal questionnaire YAML: %w", err)
	}

	return &questionnaire, nil
}
