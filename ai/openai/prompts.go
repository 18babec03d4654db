package openai

import (
	"fmt"
	"strings"
)

const classificationResponseSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "properties": {
    "category": {
      "type": "string"
    },
    "controversy_score": {
      "type": "integer",
      "minimum": 0,
      "maximum": 100
    },
    "keywords": {
      "type": "array",
      "items": {
        "type": "string",
        "pattern": "^[a-z]+( [a-z]+)*$"
      }
    }
  },
  "required": ["category", "controversy_score", "keywords"],
  "additionalProperties": false
}`

// categoryNames are the sections the model may choose from.
var categoryNames = []string{"tech", "politics", "business", "culture", "other"}

const classificationPromptTemplate = `Classify the given news story and return the result as JSON.

Output ONLY valid JSON which complies with the schema given below. Do not include any preamble, explanation,
greeting, or acknowledgment. Start your response directly with the opening brace { and end with the closing
brace }. Your output must exactly follow this schema:

%s

Rules:
- The category field must match exactly one of the listed values: %s.
- controversy_score is an integer from 0 (universally uncontested) to 100 (maximally divisive).
  Rate how much heated public disagreement the story provokes, not how important it is.
- keywords are lowercase, 1-2 words each, most salient first, at most 8 entries.
  Include only terms present in or clearly implied by the story. Do not hallucinate.
- The JSON must parse without errors; no trailing commas, no extra keys, and no extraneous text outside the object.

Example:
Input: "Parliament passes surveillance bill after marathon session
Critics call the expanded data retention powers a threat to privacy."
Output:
{
  "category": "politics",
  "controversy_score": 78,
  "keywords": ["surveillance", "parliament", "privacy", "data retention"]
}

Example (product news, low controversy):
Input: "Chipmaker unveils faster laptop processor
The new generation promises better battery life at the same price."
Output:
{
  "category": "tech",
  "controversy_score": 8,
  "keywords": ["processor", "laptop", "battery life"]
}`

// buildSystemPrompt creates the system prompt with section names embedded.
func buildSystemPrompt() string {
	return fmt.Sprintf(classificationPromptTemplate,
		classificationResponseSchema,
		strings.Join(categoryNames, ", "))
}
