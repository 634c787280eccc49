// Package agents defines the role configurations driving each external
// text-generation call. A role is plain data: instructions, an expected
// output schema name, and a model tier. There is one role per pipeline
// stage; no per-agent types or hierarchies.
package agents

// Role describes one agent role.
type Role struct {
	Name         string
	Instructions string
	// Schema names the structured output contract the LLM service must
	// return for this role. Empty means free-form text.
	Schema string
	// ModelTier is a hint for model routing ("small", "standard", "large").
	ModelTier string
}

const (
	SchemaTriage         = "triage_decision"
	SchemaClarifications = "clarifications"
	SchemaSearchPlan     = "search_plan"
	SchemaReport         = "report_data"
	SchemaIllustration   = "illustration"
)

var Triage = Role{
	Name:      "triage",
	Schema:    SchemaTriage,
	ModelTier: "small",
	Instructions: "You are a triage agent that determines if a research query needs " +
		"clarifying questions to provide better results. Route to clarification if the " +
		"query lacks specific details about preferences (budget, timing, style), is too " +
		"broad, or contains vague terms like \"best\" or \"good\" without criteria. " +
		"Proceed directly if the query is already specific with clear parameters or is a " +
		"factual lookup that does not depend on user preferences. Always prefer " +
		"clarifying questions for location-based queries without specific criteria. " +
		"Return a decision and a one-sentence rationale.",
}

var Clarifier = Role{
	Name:      "clarifier",
	Schema:    SchemaClarifications,
	ModelTier: "small",
	Instructions: "Ask 2-3 clarifying questions to gather more context for the research " +
		"task. Gather all the information needed to carry out the research in a concise, " +
		"well-structured manner. Do not ask for information the user has already " +
		"provided. Maintain a friendly, non-condescending tone.",
}

var Enricher = Role{
	Name:      "enricher",
	ModelTier: "small",
	Instructions: "Rewrite the research query as a single self-contained research " +
		"instruction, folding in the clarification answers provided. Preserve every " +
		"constraint the user stated. Return only the rewritten instruction.",
}

var Planner = Role{
	Name:      "planner",
	Schema:    SchemaSearchPlan,
	ModelTier: "standard",
	Instructions: "You are a helpful research assistant. Given a query, come up with a " +
		"set of web searches to perform to best answer the query. Output between 5 and " +
		"20 terms to query for, each with a short reason why the search matters.",
}

var Searcher = Role{
	Name:      "searcher",
	ModelTier: "small",
	Instructions: "You are a research assistant. Given a search term, you search the web " +
		"for that term and produce a concise summary of the results. The summary must be " +
		"1-2 paragraphs and less than 250 words. Capture the main points. Write " +
		"succinctly; this will be consumed by someone synthesizing a report, so capture " +
		"the essence and ignore any fluff. Do not include commentary other than the " +
		"summary itself.",
}

var Writer = Role{
	Name:      "writer",
	Schema:    SchemaReport,
	ModelTier: "large",
	Instructions: "You are a senior researcher tasked with writing a comprehensive, " +
		"in-depth report for a research query. You will be provided with the original " +
		"query and summarized search results. First come up with a detailed outline, " +
		"then generate the report in markdown, extensive and thoroughly detailed, " +
		"aiming for 5-10 pages of content. Also return a short 2-3 sentence summary of " +
		"the findings and suggested follow-up research topics.",
}

var Illustrator = Role{
	Name:      "illustrator",
	Schema:    SchemaIllustration,
	ModelTier: "standard",
	Instructions: "You are a visual content specialist who creates compelling cover " +
		"images for research reports. Analyze the research instruction, identify its key " +
		"visual themes, and write a specific 2-sentence image description that captures " +
		"the essence of the research. Prefer professional, illustrative imagery: abstract " +
		"concepts, diagrams, or representative scenes. Avoid text-heavy images or " +
		"screenshots. Return the description plus short notes about the visual concept.",
}

// All lists every role, in pipeline order; the illustrator runs alongside
// the pipeline rather than in it. Used by diagnostics.
func All() []Role {
	return []Role{Triage, Clarifier, Enricher, Planner, Searcher, Writer, Illustrator}
}
