package ai

import "context"

// Provider issues one prompt to a generation service and returns the raw
// completion text. Implementations must honor ctx cancellation; the pipeline
// drives timeouts through it.
type Provider interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// SystemInstruction steers providers toward output the response parser
// understands: fenced code blocks optionally prefixed by filename tags.
const SystemInstruction = `You are a senior software developer with 15+ years of experience.
Always return code in fenced blocks (with language), optionally prefixed by [filename: name].
Example:
[filename: main.py]
` + "```python\nprint(\"Hello World\")\n```" + `
Then provide explanation separately.`
