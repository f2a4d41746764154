package classifier

import (
	"fmt"
	"strings"
)

const defaultInstructions = `You are a vehicle quality inspector reviewing a single photograph of a vehicle.

Examine the visible body panels, glass, trim, and fittings for manufacturing or damage defects. Report the single most significant defect you observe. When the vehicle shows no defect, use the "none" label. Base your confidence on how clearly the defect is visible in the image.`

const responseSpec = `Respond with a JSON object matching this exact structure:

{
  "label": "<label>",
  "confidence": <number between 0 and 1>,
  "description": "<short explanation>",
  "severity": "<A|B|C>",
  "location": "<vehicle region>",
  "action": "<Pass|Rework|Scrap|Hold|Reject>"
}

Field constraints:
- label: Exactly one value from this list: %s
- confidence: Number from 0 to 1
- description: Brief explanation of what you observed
- severity: A = critical, B = major, C = minor
- location: The affected region of the vehicle (e.g., front bumper, rear
  bumper, hood, trunk, left door, right door, roof, windshield)
- action: One of Pass, Rework, Scrap, Hold, Reject

Behavioral constraints:
- Always respond with valid JSON, no additional text`

// ComposePrompt builds the classification prompt from tunable instructions
// and the fixed response format. A blank override selects the default
// instructions.
func ComposePrompt(labels []string, override string) string {
	instructions := strings.TrimSpace(override)
	if instructions == "" {
		instructions = defaultInstructions
	}

	var sb strings.Builder
	sb.WriteString(instructions)
	sb.WriteString("\n\n")
	fmt.Fprintf(&sb, responseSpec, strings.Join(labels, ", "))
	return sb.String()
}
