package srs

import (
	"encoding/json"
	"fmt"
	"strings"
)

// SystemPrompt is the fixed instruction sent with every generation call.
const SystemPrompt = "You are an expert technical writer specializing in Software Requirements Specification (SRS) documents. " +
	"You generate comprehensive, well-structured SRS documents following IEEE 830 standards."

// Requirements are the free-form requirement fields submitted by a requester.
type Requirements struct {
	Main         string `json:"main"`
	Purpose      string `json:"selectedPurpose"`
	Target       string `json:"selectedTarget"`
	Keys         string `json:"selectedKeys"`
	Platforms    string `json:"selectedPlatforms"`
	Integrations string `json:"selectedIntegrations"`
	Performance  string `json:"selectedPerformance"`
	Security     string `json:"selectedSecurity"`
	Storage      string `json:"selectedStorage"`
	Environment  string `json:"selectedEnvironment"`
	Language     string `json:"selectedLanguage"`
}

type field struct {
	label string
	value string
}

func (r Requirements) fields() []field {
	return []field{
		{"Main Idea", r.Main},
		{"Primary Purpose", r.Purpose},
		{"Target Users", r.Target},
		{"Key Features", r.Keys},
		{"Compatible Platforms", r.Platforms},
		{"Integration Requirements", r.Integrations},
		{"Performance Requirements", r.Performance},
		{"Security Requirements", r.Security},
		{"Data Storage Capacity", r.Storage},
		{"Operating Environment", r.Environment},
		{"Language and Localization", r.Language},
	}
}

// Validate rejects requests without a main idea.
func (r Requirements) Validate() error {
	if strings.TrimSpace(r.Main) == "" {
		return fmt.Errorf("main is required")
	}
	return nil
}

// Description serialises the fields as a JSON array in template order.
// It is stored verbatim on the job record.
func (r Requirements) Description() string {
	fields := r.fields()
	values := make([]string, 0, len(fields))
	for _, f := range fields {
		values = append(values, f.value)
	}
	out, err := json.Marshal(values)
	if err != nil {
		// []string always marshals
		panic(err)
	}
	return string(out)
}

// Prompt renders the user prompt. The output depends only on r.
func (r Requirements) Prompt() string {
	var b strings.Builder
	b.WriteString("Generate a comprehensive Software Requirements Specification (SRS) document with the following details:\n\n")
	for _, f := range r.fields() {
		fmt.Fprintf(&b, "%s: %s\n", f.label, f.value)
	}
	b.WriteString(`
Please provide a suitable title for the software based on the main idea and write it like "Title: [title generated]" at the top of the text.

Format the document with proper sections including:
1. Introduction
2. Overall Description
3. Specific Requirements
4. System Features
5. External Interface Requirements
6. Non-Functional Requirements

Use newline characters for formatting. Do not use markdown hash symbols (#) for headings.
Write in a professional, technical style appropriate for an SRS document.
`)
	return b.String()
}
