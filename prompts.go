package examgen

import (
	"fmt"
	"strings"
)

var difficultyDescriptions = map[Difficulty]string{
	DifficultyIntermediate: `- Test basic recall and fundamental understanding
- Focus on definitions, classifications, and core concepts
- Single-step reasoning required
- Directly stated in the source material`,
	DifficultyAdvanced: `- MUST be application-based with clinical/practical scenarios
- Present a case or situation requiring concept application
- Integration of multiple related concepts
- Two-step reasoning process with real-world context`,
	DifficultyComplex: `- MUST be complex case-based scenarios
- Multi-step clinical reasoning required
- Integration across multiple concepts/systems
- Differential diagnosis or complex decision-making
- Realistic clinical presentations`,
}

const intermediateFormat = `**Question Format (INTERMEDIATE):**
Create a straightforward factual question testing basic understanding, such as:
- "What is the primary function of [structure/system]?"
- "Which of the following describes [concept]?"
- "What are the main components of [system]?"`

const applicationFormat = `**Question Format (APPLICATION-BASED):**

Step 1: Analyze the content context to determine the appropriate scenario type:
- Anatomy/Physiology content -> patient presentation with anatomical findings
  ("A patient presents with [symptoms]. Examination reveals [findings]. What structure is most likely affected?")
- Pathology content -> clinical presentation requiring diagnosis
  ("A [age] [gender] presents with [symptoms] and [history]. Laboratory shows [findings]. What is the most likely diagnosis?")
- Pharmacology content -> medication scenario
  ("A patient taking [drug] for [condition] develops [symptoms]. What is the mechanism?")
- Diagnostic/Procedure content -> clinical decision-making
  ("A patient with [presentation] requires evaluation. What is the most appropriate next step?")
- Any other medical content -> analyze what the content teaches, create a realistic
  situation where that knowledge applies, and frame a decision, diagnosis, or
  identification question.

CRITICAL RULES:
1. Base scenario details STRICTLY on the provided context
2. Use realistic parameters (age, gender, symptoms) from the source examples
3. Make the scenario require applying the concept, not just recalling it
4. Ensure distractors are plausible alternative applications`

// generationPrompt assembles the question-authoring prompt for one attempt.
func generationPrompt(difficulty Difficulty, context, imageContext string) string {
	var sb strings.Builder

	sb.WriteString("You are a medical education expert creating high-quality MCQs for exam preparation.\n\n")
	sb.WriteString(fmt.Sprintf("**Difficulty Level**: %s\n%s\n\n", strings.ToUpper(string(difficulty)), difficultyDescriptions[difficulty]))
	sb.WriteString("**Source Material**:\n")
	sb.WriteString(context)
	sb.WriteString("\n\n")

	if imageContext != "" {
		sb.WriteString("**Medical Image Context**:\n")
		sb.WriteString(imageContext)
		sb.WriteString("\n\n")
	}

	if difficulty == DifficultyIntermediate {
		sb.WriteString(intermediateFormat)
	} else {
		sb.WriteString(applicationFormat)
	}
	sb.WriteString("\n\n")

	sb.WriteString("**Instructions:**\n")
	sb.WriteString("1. ANALYZE the content type first - anatomy, pathology, pharmacology, physiology, etc.\n")
	sb.WriteString("2. Determine the appropriate scenario format based on content type and difficulty\n")
	sb.WriteString("3. Create ONE multiple-choice question with 4 options (A, B, C, D)\n")
	sb.WriteString("4. Base ALL scenario details STRICTLY on the provided content\n")
	if difficulty == DifficultyIntermediate {
		sb.WriteString("5. Create a straightforward factual question\n")
	} else {
		sb.WriteString("5. You MUST create an application-based scenario\n")
	}
	sb.WriteString("6. Ensure ONE clearly correct answer and plausible but definitively incorrect distractors\n")
	sb.WriteString("7. Provide a comprehensive explanation covering the correct answer, each distractor, clinical context, and a key takeaway\n")
	sb.WriteString("8. For each reference, give the page number, a short exact quote (20-50 words), and the section heading if available\n\n")

	sb.WriteString("**Response Format** (JSON):\n")
	sb.WriteString(`{
    "question": "...",
    "options": {"A": "...", "B": "...", "C": "...", "D": "..."},
    "correct_answer": "A",
    "explanation": {
        "correct_reasoning": "Why the correct answer is right. Minimum 3-4 sentences.",
        "distractor_analysis": {"A": "...", "B": "...", "C": "...", "D": "..."},
        "clinical_context": "Real-world application or significance. 2-3 sentences.",
        "key_takeaway": "One memorable learning point"
    },
    "references": [{"page": 45, "quote": "Exact quote supporting the answer", "section": "Section name"}],
    "key_concepts": ["concept1", "concept2"],
    "reasoning_type": "recall/application/analysis",
    "question_type": "`)
	if difficulty == DifficultyIntermediate {
		sb.WriteString("factual")
	} else {
		sb.WriteString("case_based")
	}
	sb.WriteString(`"
}`)
	sb.WriteString("\n\nNow analyze the provided context and generate an appropriate question:")

	return sb.String()
}

// validationPrompt assembles the judge prompt covering the seven quality
// criteria.
func validationPrompt(draft *QuestionDraft, sourceContext string) string {
	var sb strings.Builder

	sb.WriteString("You are a medical fact-checker reviewing an MCQ for accuracy and quality.\n\n")
	sb.WriteString("**Question to Review**:\n")
	sb.WriteString(fmt.Sprintf("Question: %s\n", draft.Question))
	sb.WriteString("Options:\n")
	for _, key := range OptionKeys {
		sb.WriteString(fmt.Sprintf("  %s. %s\n", key, draft.Options[key]))
	}
	sb.WriteString(fmt.Sprintf("Correct Answer: %s\n", draft.CorrectAnswer))
	sb.WriteString(fmt.Sprintf("Explanation: %s\n", draft.Explanation))
	sb.WriteString(fmt.Sprintf("Question Type: %s\n\n", draft.QuestionType))

	sb.WriteString("**Source Context**:\n")
	sb.WriteString(sourceContext)
	sb.WriteString("\n\n")

	sb.WriteString("**Validation Criteria**:\n")
	sb.WriteString("1. Factual Accuracy: Does the question align with the source material?\n")
	sb.WriteString("2. Medical Correctness: Is the medical information accurate?\n")
	sb.WriteString("3. Answer Clarity: Is there definitively ONE correct answer?\n")
	sb.WriteString("4. Distractor Quality: Are wrong options plausible but clearly incorrect?\n")
	sb.WriteString("5. Explanation Completeness: Does it explain correct AND incorrect options?\n")
	sb.WriteString("6. Reference Quality: Are references specific and verifiable?\n")
	sb.WriteString("7. Application Quality (if case-based): Is the scenario realistic and based on source content?\n\n")

	sb.WriteString("**Response Format** (JSON):\n")
	sb.WriteString(`{
    "is_valid": true,
    "confidence_score": 0,
    "issues": ["List specific problems if any"],
    "suggestions": ["Improvements if needed"],
    "medical_accuracy": true,
    "clarity_score": 0,
    "explanation_quality_score": 0,
    "application_quality_score": 0
}`)
	sb.WriteString("\n\nProvide your validation:")

	return sb.String()
}

// imageAnalysisPrompt asks the vision model for an exam-oriented reading of a
// figure.
func imageAnalysisPrompt(textContext string) string {
	if textContext == "" {
		textContext = "No additional context provided"
	}
	var sb strings.Builder
	sb.WriteString("Analyze this medical image in detail.\n\n")
	sb.WriteString(fmt.Sprintf("Context from textbook: %s\n\n", textContext))
	sb.WriteString("Provide a comprehensive analysis including:\n")
	sb.WriteString("1. Anatomical Structures: identify all visible anatomical structures\n")
	sb.WriteString("2. Pathological Findings: note any abnormalities or pathology\n")
	sb.WriteString("3. Clinical Significance: explain the diagnostic or educational value\n")
	sb.WriteString("4. Key Features: highlight important features for learning\n")
	sb.WriteString("5. Labels/Annotations: describe any visible labels or markings\n\n")
	sb.WriteString("Be precise and use medical terminology appropriate for exam preparation.")
	return sb.String()
}
