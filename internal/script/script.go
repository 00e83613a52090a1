// ABOUTME: Conversation script catalog with every user-visible text and vocabulary
// ABOUTME: Loads embedded YAML defaults and optional override files, renders name templates

package script

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultYAML []byte

// Script holds the texts the bot sends and the words it recognizes.
type Script struct {
	DefaultName string `yaml:"default_name"`

	Greetings   []string `yaml:"greetings"`
	BackWords   []string `yaml:"back_words"`
	ResumeWords []string `yaml:"resume_words"`

	Welcome         string   `yaml:"welcome"`
	FallbackContact string   `yaml:"fallback_contact"`
	TicketPrompt    string   `yaml:"ticket_prompt"`
	Menu            string   `yaml:"menu"`
	BackToMenu      string   `yaml:"back_to_menu"`
	Prioritize      []string `yaml:"prioritize"`
	ProblemPrompt   string   `yaml:"problem_prompt"`
	ProblemAck      string   `yaml:"problem_ack"`
	Handoff         string   `yaml:"handoff"`
	Resumed         string   `yaml:"resumed"`
	Finance         string   `yaml:"finance"`
	Sales           string   `yaml:"sales"`
	Closing         []string `yaml:"closing"`

	greetings vocabulary
	back      vocabulary
	resume    vocabulary
}

// Default returns the embedded script.
func Default() *Script {
	s, err := parse(defaultYAML, nil)
	if err != nil {
		// The embedded file is part of the binary; failing here is a build defect.
		panic(fmt.Sprintf("parsing embedded script: %v", err))
	}
	return s
}

// Load reads an override file on top of the embedded defaults. Keys missing
// from the file keep their default values. An empty path returns Default().
func Load(path string) (*Script, error) {
	if path == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading script file: %w", err)
	}

	s, err := parse(data, Default())
	if err != nil {
		return nil, err
	}
	return s, nil
}

func parse(data []byte, base *Script) (*Script, error) {
	s := &Script{}
	if base != nil {
		*s = *base
	}

	if err := yaml.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("parsing script: %w", err)
	}

	if err := s.validate(); err != nil {
		return nil, fmt.Errorf("validating script: %w", err)
	}

	s.greetings = newVocabulary(s.Greetings)
	s.back = newVocabulary(s.BackWords)
	s.resume = newVocabulary(s.ResumeWords)
	return s, nil
}

func (s *Script) validate() error {
	if s.Menu == "" {
		return fmt.Errorf("menu is required")
	}
	if s.Welcome == "" {
		return fmt.Errorf("welcome is required")
	}
	if len(s.BackWords) == 0 {
		return fmt.Errorf("back_words must not be empty")
	}
	for _, text := range []string{s.Welcome, s.TicketPrompt} {
		if _, err := template.New("check").Parse(text); err != nil {
			return fmt.Errorf("invalid template %q: %w", text, err)
		}
	}
	return nil
}

// IsGreeting reports whether text opens a conversation.
func (s *Script) IsGreeting(text string) bool {
	return s.greetings.has(text)
}

// IsBack reports whether text asks for the main menu.
func (s *Script) IsBack(text string) bool {
	return s.back.has(text)
}

// IsResume reports whether text ends a hand-off to a human agent.
func (s *Script) IsResume(text string) bool {
	return s.resume.has(text) || IsTicketNumber(normalize(text))
}

// NameData is the template data for texts that address the user.
type NameData struct {
	Name string
}

// Render executes text as a template with data. Texts that fail to render are
// returned unchanged.
func Render(text string, data any) string {
	if !strings.Contains(text, "{{") {
		return text
	}
	tmpl, err := template.New("text").Parse(text)
	if err != nil {
		return text
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return text
	}
	return buf.String()
}

// FirstName derives the short name used in greetings from a display name,
// falling back to the script's default name.
func (s *Script) FirstName(displayName string) string {
	fields := strings.Fields(displayName)
	if len(fields) == 0 {
		return s.DefaultName
	}
	return fields[0]
}

// IsTicketNumber reports whether text is exactly five ASCII digits.
func IsTicketNumber(text string) bool {
	if len(text) != 5 {
		return false
	}
	for i := 0; i < len(text); i++ {
		if text[i] < '0' || text[i] > '9' {
			return false
		}
	}
	return true
}
