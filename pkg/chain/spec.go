// Package chain loads and executes evaluation chain specs: versioned YAML
// documents that pin the model, runtime knobs, weighted rubric, prompts, and
// the JSON schema the model's response must satisfy.
package chain

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// Criterion is one weighted rubric entry.
type Criterion struct {
	ID          string  `yaml:"id"`
	Description string  `yaml:"description"`
	Weight      float64 `yaml:"weight"`
}

// AIAssistancePolicy configures the AI-likelihood section of responses.
type AIAssistancePolicy struct {
	Enabled       bool     `yaml:"enabled"`
	AffectsScore  bool     `yaml:"affects_score"`
	RequireFields []string `yaml:"require_fields"`
}

// Runtime pins the model invocation knobs for reproducibility.
type Runtime struct {
	Temperature      float64 `yaml:"temperature"`
	Seed             *int64  `yaml:"seed"`
	ResponseLanguage string  `yaml:"response_language"`
}

// Prompts holds the system prompt and the user prompt template.
type Prompts struct {
	System       string `yaml:"system"`
	UserTemplate string `yaml:"user_template"`
}

// Rubric groups the criteria and the AI-assistance policy.
type Rubric struct {
	Criteria           []Criterion        `yaml:"criteria"`
	AIAssistancePolicy AIAssistancePolicy `yaml:"ai_assistance_policy"`
}

// Spec is a parsed and validated evaluation chain.
type Spec struct {
	SpecVersion  string         `yaml:"spec_version"`
	ChainVersion string         `yaml:"chain_version"`
	Model        string         `yaml:"model"`
	Runtime      Runtime        `yaml:"runtime"`
	Rubric       Rubric         `yaml:"rubric"`
	Prompts      Prompts        `yaml:"prompts"`
	LLMResponse  map[string]any `yaml:"llm_response"`
}

var isoLanguageRe = regexp.MustCompile(`^[a-z]{2}(?:-[A-Z]{2})?$`)

// Load reads and parses a chain spec file.
func Load(path string) (*Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read chain spec: %w", err)
	}
	return Parse(data)
}

// Parse parses and validates a chain spec document.
func Parse(data []byte) (*Spec, error) {
	spec := &Spec{}
	if err := yaml.Unmarshal(data, spec); err != nil {
		return nil, fmt.Errorf("failed to parse chain spec: %w", err)
	}
	if err := spec.validate(); err != nil {
		return nil, err
	}
	return spec, nil
}

func (s *Spec) validate() error {
	if s.SpecVersion == "" {
		return fmt.Errorf("spec_version is required")
	}
	if s.ChainVersion == "" {
		return fmt.Errorf("chain_version is required")
	}
	if s.Model == "" {
		return fmt.Errorf("model is required")
	}
	if !isoLanguageRe.MatchString(s.Runtime.ResponseLanguage) {
		return fmt.Errorf("runtime.response_language must be an ISO code, e.g. 'ru' or 'en'")
	}
	if len(s.Rubric.Criteria) == 0 {
		return fmt.Errorf("rubric.criteria must contain at least one criterion")
	}
	var total float64
	for i, c := range s.Rubric.Criteria {
		if c.ID == "" {
			return fmt.Errorf("rubric.criteria[%d].id is required", i)
		}
		if c.Description == "" {
			return fmt.Errorf("rubric.criteria[%d].description is required", i)
		}
		total += c.Weight
	}
	if total <= 0 {
		return fmt.Errorf("rubric.criteria total weight must be > 0")
	}
	if s.Prompts.System == "" {
		return fmt.Errorf("prompts.system is required")
	}
	if s.Prompts.UserTemplate == "" {
		return fmt.Errorf("prompts.user_template is required")
	}
	if s.LLMResponse["type"] != "json" {
		return fmt.Errorf("llm_response.type must be 'json'")
	}
	if _, ok := s.LLMResponse["required"].([]any); !ok {
		return fmt.Errorf("llm_response.required must be a list")
	}
	if _, ok := s.LLMResponse["properties"].(map[string]any); !ok {
		return fmt.Errorf("llm_response.properties must be an object")
	}
	return nil
}

// mapping flattens the spec into the placeholder namespace available to
// prompt templates alongside caller inputs.
func (s *Spec) mapping() map[string]any {
	criteria := make([]any, 0, len(s.Rubric.Criteria))
	for _, c := range s.Rubric.Criteria {
		criteria = append(criteria, map[string]any{
			"id": c.ID, "description": c.Description, "weight": c.Weight,
		})
	}
	return map[string]any{
		"spec_version":  s.SpecVersion,
		"chain_version": s.ChainVersion,
		"model":         s.Model,
		"runtime": map[string]any{
			"temperature":       s.Runtime.Temperature,
			"seed":              s.Runtime.Seed,
			"response_language": s.Runtime.ResponseLanguage,
		},
		"rubric": map[string]any{
			"criteria": criteria,
			"ai_assistance_policy": map[string]any{
				"enabled":        s.Rubric.AIAssistancePolicy.Enabled,
				"affects_score":  s.Rubric.AIAssistancePolicy.AffectsScore,
				"require_fields": s.Rubric.AIAssistancePolicy.RequireFields,
			},
		},
	}
}
