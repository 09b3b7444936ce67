package vision

// Kind selects which structured prompt is sent with a region image.
type Kind string

const (
	KindImage   Kind = "Image"
	KindFormula Kind = "Formula"
)

// System messages set the model's posture per kind: never refuse a diagram,
// never lose LaTeX fidelity on a formula.
const (
	imageSystemPrompt = "You are an expert at interpreting technical diagrams and flowcharts. " +
		"Even if an image is unclear, provide your best interpretation of the structure and content."

	formulaSystemPrompt = "You must interpret math and formula images and preserve exact LaTeX formatting, " +
		"ensuring clarity and correctness."
)

const imagePrompt = `You are an expert in visual-to-text conversion with a focus on technical diagrams and flowcharts.

I will give you an image that may contain a diagram, flowchart, cycle, chart, infographic, or visual structure.

Your task is to:
1. Carefully examine the image for any text, symbols, arrows, or structural elements
2. If the image is blurry or unclear, describe what you can see and ask for clarification
3. Extract the visual structure and convert it into a clean, readable format
4. Preserve the direction, flow, and relationships between elements
5. Use arrows (↓, →, ↺) and indentation to reflect hierarchy and flow
6. If you cannot read the text clearly, describe the structure you can see

Format your response as:
Figure: [Title or Description]
[Visual structure with arrows and indentation]
Description:
[Explanation of what the diagram shows and its purpose]

Even if the image is unclear, provide your best interpretation of the structure.`

const formulaPrompt = `You are an expert in converting mathematical and structural equations from images into readable, properly formatted LaTeX or plain-text math expressions.

I will give you an image that may contain formulas, equations, or math-based visual structures.

Your task is to:
1. Accurately extract and interpret the equation(s) from the image.
2. Convert it into valid LaTeX inline math expressions (e.g., $...$) that can be used in markdown or LaTeX.
3. Ensure subscript, superscript, brackets, and operators are all correctly converted.
4. Preserve multi-line structures, indentations, and alignments when applicable.
5. Also provide a one-line explanation if the math expression represents a known concept (e.g., attention mechanism, layer norm, etc.)

Format your output like this:

` + "```latex" + `
Equation: [Title or concept]
$<LaTeX inline math expression>$
Description:
[A short explanation of what the equation represents.]
` + "```"

// promptFor returns the user prompt and system message for a kind. Unknown
// kinds fall back to the diagram prompt.
func promptFor(kind Kind) (userPrompt, systemPrompt string) {
	if kind == KindFormula {
		return formulaPrompt, formulaSystemPrompt
	}
	return imagePrompt, imageSystemPrompt
}
