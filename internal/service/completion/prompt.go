package completion

import (
	"fmt"

	"aidesk/internal/models"
)

const summaryTemplate = `Write a %s summary of the following text in the %s style.
Use the same language as the text. Respond with the summary only; do not add
introductions or closing remarks.

Text:
%s`

// SummaryPrompt renders the summarize instruction. Length and style appear
// lower case inside the instruction; the acquired text is embedded verbatim.
func SummaryPrompt(length models.SummaryLength, style models.SummaryStyle, text string) string {
	return fmt.Sprintf(summaryTemplate, length.Prompt(), style.Prompt(), text)
}
