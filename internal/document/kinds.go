package document

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/nhle/hdcharts/internal/model"
)

// ValidationError reports a document whose kind or shape is not accepted.
type ValidationError struct {
	Kind    model.DocumentKind
	Message string
}

func (e *ValidationError) Error() string {
	if e.Kind == "" {
		return "invalid document: " + e.Message
	}
	return fmt.Sprintf("invalid %s document: %s", e.Kind, e.Message)
}

// Flowsheet is the per-user dialysis flowsheet. Patient records are
// kept as opaque objects.
type Flowsheet struct {
	Patients []map[string]json.RawMessage `json:"patients"`
}

func (f *Flowsheet) validate() error {
	for i, p := range f.Patients {
		if p == nil {
			return fmt.Errorf("patients[%d] must be an object", i)
		}
	}
	return nil
}

// Snippet is a reusable text fragment.
type Snippet struct {
	Text *string `json:"text"`
}

// Snippets is the per-user snippet library.
type Snippets struct {
	Snippets []*Snippet `json:"snippets"`
}

func (s *Snippets) validate() error {
	for i, sn := range s.Snippets {
		if sn == nil {
			return fmt.Errorf("snippets[%d] must be an object", i)
		}
		if sn.Text == nil {
			return fmt.Errorf("snippets[%d].text is required", i)
		}
	}
	return nil
}

// Labs is the document form of the lab tracker.
type Labs struct {
	Entries []json.RawMessage `json:"entries"`
}

func (l *Labs) validate() error { return nil }

// ShiftReport is a free-form end-of-shift report.
type ShiftReport struct {
	Notes    string            `json:"notes"`
	Sections []json.RawMessage `json:"sections"`
}

func (r *ShiftReport) validate() error { return nil }

type schema interface {
	validate() error
}

// schemas maps each kind to a constructor for its typed shape.
var schemas = map[model.DocumentKind]func() schema{
	model.KindFlowsheet:   func() schema { return &Flowsheet{} },
	model.KindSnippets:    func() schema { return &Snippets{} },
	model.KindLabs:        func() schema { return &Labs{} },
	model.KindShiftReport: func() schema { return &ShiftReport{} },
}

// ParseKind returns the DocumentKind named by s.
func ParseKind(s string) (model.DocumentKind, error) {
	if s == "" {
		return "", &ValidationError{Message: "type is required"}
	}
	kind := model.DocumentKind(s)
	if _, ok := schemas[kind]; !ok {
		return "", &ValidationError{Message: fmt.Sprintf("unknown type %q", s)}
	}
	return kind, nil
}

// Validate checks that data has the shape required for kind.
func Validate(kind model.DocumentKind, data json.RawMessage) error {
	newSchema, ok := schemas[kind]
	if !ok {
		return &ValidationError{Message: fmt.Sprintf("unknown type %q", kind)}
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return &ValidationError{Kind: kind, Message: "data must be a JSON object"}
	}

	doc := newSchema()
	if err := json.Unmarshal(trimmed, doc); err != nil {
		return &ValidationError{Kind: kind, Message: err.Error()}
	}
	if err := doc.validate(); err != nil {
		return &ValidationError{Kind: kind, Message: err.Error()}
	}
	return nil
}
