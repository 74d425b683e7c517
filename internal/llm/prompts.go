package llm

import "fmt"

// Prompt templates for every mini-project. Each builder returns the final
// prompt string; the gateway never sees template placeholders.

// RefusalNoContext is the fixed refusal emitted by the grounded RAG prompt
// when the retrieved context cannot answer the question. Grounding is a
// prompt-level instruction; the pipeline does not verify it post hoc.
const RefusalNoContext = "Not enough information in the documentation to answer."

// NoMemorySentinel is the marker the memory-extraction prompt returns when
// nothing is worth remembering.
const NoMemorySentinel = "-"

const chatTemplate = `You are a helpful and precise assistant. You must ALWAYS answer with valid JSON.

Answer the user while keeping an educational and clear tone.

Strict instructions:
- Do not add any text outside the JSON.
- Do not explain or describe the JSON, just return it.
- Do not include comments.

Expected format:
{
  "answer": "<answer to the user>",
  "tone": "educational",
  "metadata": {
    "model": "%s"
  }
}

User message:
"%s"`

// ChatPrompt builds the structured-chat prompt. The model name is echoed into
// the expected metadata block.
func ChatPrompt(model, userMessage string) string {
	return fmt.Sprintf(chatTemplate, model, userMessage)
}

const intentTemplate = `You are an assistant that analyzes user messages and returns a JSON with the structured intent.

Mandatory format (use exactly this format, no text outside the JSON):

{
  "action": "create_task | update_task | get_status | other",
  "title": "text or null",
  "due_date": "YYYY-MM-DD or null"
}

Today's date is %s. Resolve relative dates against it.

Do not explain your reasoning.
Do not add extra text.

User: %s

JSON answer:`

// IntentPrompt builds the intent-extraction prompt. today is the current
// date in YYYY-MM-DD form, used to resolve relative due dates.
func IntentPrompt(userMessage, today string) string {
	return fmt.Sprintf(intentTemplate, today, userMessage)
}

const ragBasicTemplate = `You are a RAG assistant. You must answer ONLY with information that appears in the following context.
Do not invent data, do not add external knowledge and do not use general information that is not explicitly contained in the context.

If the context does not contain enough information to answer the question, answer exactly:
"%s"

Produce an answer that is:
- Clear, concise and direct.
- Based only on details present in the context.
- Synthesized and explained, not a verbatim copy of the context.
- Free of interpretations the content does not justify.

Relevant context documents:
%s

User question:
%s`

// RAGBasicPrompt builds the grounded answer prompt for the basic RAG variant
// and for the router's rag branch.
func RAGBasicPrompt(context, question string) string {
	return fmt.Sprintf(ragBasicTemplate, RefusalNoContext, context, question)
}

const ragJSONTemplate = `You are an assistant that answers using the provided context information.

Use ONLY the context information when it is relevant.
If there is not enough information, say you cannot answer precisely.

### Context:
%s

### Question:
%s

Return a JSON with this format:

{
  "answer": "<assistant answer>",
  "sources": ["fragment 1", "fragment 2", ...]
}`

// RAGJSONPrompt builds the v2 variant prompt that asks for a JSON envelope.
func RAGJSONPrompt(context, question string) string {
	return fmt.Sprintf(ragJSONTemplate, context, question)
}

const ragCompressedTemplate = `You are an AI expert assistant. Use the following compressed context to answer the question precisely.

Do not invent information. If you do not know something, say "%s".

=== CONTEXT ===
%s

=== QUESTION ===
%s`

// RAGCompressedPrompt builds the advanced variant prompt fed with compressed
// context.
func RAGCompressedPrompt(context, question string) string {
	return fmt.Sprintf(ragCompressedTemplate, RefusalNoContext, context, question)
}

const compressTemplate = `Reduce and summarize the following text, keeping only the information essential for answering questions:

%s`

// CompressPrompt builds the context-compression prompt used by the advanced
// retrieval pipeline to control prompt length.
func CompressPrompt(joined string) string {
	return fmt.Sprintf(compressTemplate, joined)
}

const classifierTemplate = `Classify the following question into one of these categories:

- general: open questions, explanations, creativity, normal conversation.
- rag: questions that require REAL information coming from documents, a knowledge base or external data. Keywords: "document", "according to the text", "what does it say", "extract from the file", "based on the material".
- summary: when the user asks to SUMMARIZE text they provide. Only classify as summary when the user clearly provides text to be summarized.
- code: questions related to programming, errors, generating functions, code snippets, debugging.
- math: math problems, calculations, numeric expressions, equations or mathematical reasoning.

Important rules:
1. If the question asks to summarize content provided by the user, answer summary.
2. If the question asks to extract, search or consult information from a document, PDF, manual or context, answer rag.
3. If it is not clearly summary or rag, classify as general.
4. Answer with ONE EXACT word from this list:
general, rag, summary, code, math

Question: "%s"

Your answer:`

// ClassifierPrompt builds the intent-classification prompt for the router.
func ClassifierPrompt(question string) string {
	return fmt.Sprintf(classifierTemplate, question)
}

// GeneralPrompt builds the default branch prompt.
func GeneralPrompt(input string) string {
	return fmt.Sprintf("Answer clearly and precisely:\n%s", input)
}

// CodePrompt builds the programming branch prompt.
func CodePrompt(input string) string {
	return fmt.Sprintf("You are an expert programming assistant. Help the user with their code:\n%s", input)
}

// SummaryPrompt builds the summarization branch prompt.
func SummaryPrompt(input string) string {
	return fmt.Sprintf("Summarize the following content clearly:\n%s", input)
}

// MathPrompt builds the math branch prompt.
func MathPrompt(input string) string {
	return fmt.Sprintf("Solve the following exercise step by step, but return only the final result:\n%s", input)
}

const memoryExtractionTemplate = `You are an assistant in charge of turning into memory the relevant information the user wants you to remember.

The user says:
%s

Instructions:
- Extract only information that is useful to remember (personal data, preferences, numbers, banks, and so on).
- Do not store a bare number or datum alone; store it together with its context so it makes sense.
- Do not store statements without useful content.
- Do not produce blank runs, line breaks or invisible characters.
- If there is nothing to remember, return a single hyphen (%s) to indicate that nothing should be stored.

Memory text:`

// MemoryExtractionPrompt builds the memory-distillation prompt applied to the
// user's last message.
func MemoryExtractionPrompt(input string) string {
	return fmt.Sprintf(memoryExtractionTemplate, input, NoMemorySentinel)
}

const memoryAnswerTemplate = `You are an assistant that remembers information about the user.

Relevant user memory:
%s

User question:
%s

Strict instructions:
1. If the user's message is a STATEMENT (contains no question and communicates a datum), answer only:
   ok
2. If it is a QUESTION, even without question marks, answer only that question.
3. Use the memory only when it is strictly necessary to answer.
4. Do not add information the user did not ask for.
5. Do not repeat data the user just said.
6. Keep the answer short and direct, without losing any important datum.
7. If the memory does not hold enough information to answer, say "I don't know".
8. Do not invent data or answers.
9. Do not just repeat the memory; integrate it into the answer.

Answer:`

// MemoryAnswerPrompt builds the memory-aware answer prompt.
func MemoryAnswerPrompt(memory, question string) string {
	return fmt.Sprintf(memoryAnswerTemplate, memory, question)
}
