package models

const (
	ContextSeparator = "\n\n"

	// metadata keys attached to page documents and chunks
	MetaSource     = "source"
	MetaPage       = "page"
	MetaTotalPages = "total_pages"
	MetaChunk      = "chunk"
)

var (
	ContextualizePromptTemplate = "given a chat history and the latest user question which might reference context in the chat history, " +
		"formulate a standalone question which can be understood without the chat history. " +
		"do not answer the question, just reformulate it if needed and otherwise return it as is."

	// MemoPromptTemplate is rendered with prompts.NewPromptTemplate, the
	// retrieved chunks go into {{.context}}.
	MemoPromptTemplate = `You are a PMP certified project manager, skilled at creating concise and actionable meeting memos. Analyze the provided meeting transcript (or document) and generate a structured memo as follows:

* **Short Summary:** Provide a brief overview of the meeting's key discussions and outcomes, organized by topic into bullet points. Focus on the most important points.

* **Action Items:** List all action items discussed, including:
    * Action: A clear description of the task.
    * Owner: The individual responsible for the task. If not specified, use "TBC".
    * Deadline: The date by which the task should be completed. If not specified, use "TBC".

* **Decisions:** List all decisions made during the meeting.

* **Risks:** List any risks identified or discussed.

* **Issues:** List any issues raised or discussed.

Format each section clearly using bullet points and concise language. Prioritize clarity and actionability.

{{.context}}
`
)
