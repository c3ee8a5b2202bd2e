package chatbot

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed faq.json
var defaultFAQ []byte

// faqSchema constrains user-supplied FAQ files: every entry needs a
// non-empty answer and at least one keyword.
const faqSchema = `{
	"type": "object",
	"minProperties": 1,
	"additionalProperties": {
		"type": "object",
		"required": ["keywords", "answer"],
		"properties": {
			"keywords": {
				"type": "array",
				"minItems": 1,
				"items": {"type": "string", "minLength": 1}
			},
			"answer": {"type": "string", "minLength": 1},
			"category": {"type": "string"}
		},
		"additionalProperties": false
	}
}`

// LoadCorpus reads the FAQ corpus from path. An empty path loads the
// built-in corpus. User files are validated against the FAQ schema
// before use, so a typo fails loudly at startup instead of silently
// matching nothing.
func LoadCorpus(path string) (map[string]Entry, error) {
	data := defaultFAQ
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read faq file: %w", err)
		}
		if err := validateCorpus(data); err != nil {
			return nil, fmt.Errorf("invalid faq file %s: %w", path, err)
		}
	}

	var entries map[string]Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse faq corpus: %w", err)
	}
	return entries, nil
}

func validateCorpus(data []byte) error {
	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(faqSchema),
		gojsonschema.NewBytesLoader(data),
	)
	if err != nil {
		return fmt.Errorf("validate faq corpus: %w", err)
	}
	if result.Valid() {
		return nil
	}

	var problems []string
	for _, desc := range result.Errors() {
		problems = append(problems, desc.String())
	}
	return fmt.Errorf("%s", strings.Join(problems, "; "))
}
