package prompt

import "fmt"

// GetSystemPrompt provides strict directions and schema for JSON output.
func GetSystemPrompt() string {
    return `You are a senior data governance analyst. You must produce one valid JSON object only (no markdown, no commentary) that follows the schema below. Do not include code fences.

Requirements:
- Output must be a single JSON object.
- Use lowercase severity values: high, medium, low.
- summary is two to four plain-language sentences a non-statistician can read.
- key_findings is an array of objects; include at least an attribute, severity, and explanation. Keep items concise.
- Base everything strictly on the analysis result JSON provided; never invent columns, rates, or findings that are not in it.

Schema (example with empty values):
{
  "summary": "<string>",
  "key_findings": [
    {
      "attribute": "<string>",
      "severity": "<high|medium|low>",
      "explanation": "<string>",
      "recommendation": "<string>"
    }
  ],
  "advice": "<string>"
}`
}

// GetUserPrompt wraps the stored analysis result for the model.
func GetUserPrompt(resultJSON string) string {
    return fmt.Sprintf("Summarize this analysis result per the schema. Result JSON:\n%s", resultJSON)
}
