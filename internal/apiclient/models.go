package apiclient

import "time"

// SessionUser is the profile returned by GET /auth/me.
type SessionUser struct {
	ID             int       `json:"id"`
	Email          string    `json:"email"`
	Username       string    `json:"username"`
	FullName       string    `json:"full_name,omitempty"`
	NativeLanguage string    `json:"native_language"`
	TargetLanguage string    `json:"target_language"`
	IsActive       bool      `json:"is_active"`
	CreatedAt      time.Time `json:"created_at"`
}

// Registration is the body of POST /auth/register.
type Registration struct {
	Email          string `json:"email"`
	Username       string `json:"username"`
	Password       string `json:"password"`
	FullName       string `json:"full_name,omitempty"`
	NativeLanguage string `json:"native_language,omitempty"`
	TargetLanguage string `json:"target_language,omitempty"`
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type emailRequest struct {
	Email string `json:"email"`
}

type resetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

// MessageResponse is the generic acknowledgement body of the account endpoints.
type MessageResponse struct {
	Message string `json:"message"`
}

// Verification is the outcome of GET /auth/verify-email.
type Verification struct {
	Message         string `json:"message"`
	Email           string `json:"email,omitempty"`
	Username        string `json:"username,omitempty"`
	AlreadyVerified bool   `json:"-"`
}

type fixRequest struct {
	Phrase string `json:"phrase"`
}

type GrammarError struct {
	ErrorType   string `json:"error_type"`
	Explanation string `json:"explanation"`
	Incorrect   string `json:"incorrect"`
	Correct     string `json:"correct"`
}

type VocabularySuggestion struct {
	Word        string `json:"word"`
	Definition  string `json:"definition"`
	Example     string `json:"example"`
	Alternative string `json:"alternative"`
}

type PracticeTopic struct {
	Topic       string `json:"topic"`
	Description string `json:"description"`
	Difficulty  string `json:"difficulty"`
}

type AlternativeExpression struct {
	Expression     string `json:"expression"`
	FormalityLevel string `json:"formality_level"`
	ContextUsage   string `json:"context_usage"`
	Explanation    string `json:"explanation"`
}

// FixResult is the response of POST /fix.
type FixResult struct {
	OriginalPhrase         string                  `json:"original_phrase"`
	CorrectedPhrase        string                  `json:"corrected_phrase"`
	IsCorrect              bool                    `json:"is_correct"`
	GrammarErrors          []GrammarError          `json:"grammar_errors"`
	VocabularySuggestions  []VocabularySuggestion  `json:"vocabulary_suggestions"`
	PracticeTopics         []PracticeTopic         `json:"practice_topics"`
	AlternativeExpressions []AlternativeExpression `json:"alternative_expressions"`
	ContextAnalysis        string                  `json:"context_analysis,omitempty"`
}

type translateRequest struct {
	Text           string `json:"text"`
	SourceLanguage string `json:"source_language"`
	TargetLanguage string `json:"target_language"`
}

type TranslationAlternative struct {
	Translation    string `json:"translation"`
	Context        string `json:"context"`
	FormalityLevel string `json:"formality_level"`
}

// TranslateResult is the response of POST /translate.
type TranslateResult struct {
	OriginalText       string                   `json:"original_text"`
	PrimaryTranslation string                   `json:"primary_translation"`
	Alternatives       []TranslationAlternative `json:"alternatives"`
	Explanation        string                   `json:"explanation"`
}

type defineRequest struct {
	Word    string `json:"word"`
	Context string `json:"context,omitempty"`
}

type Definition struct {
	PartOfSpeech string `json:"part_of_speech"`
	Definition   string `json:"definition"`
	Example      string `json:"example"`
}

// DefineResult is the response of POST /define.
type DefineResult struct {
	Word          string       `json:"word"`
	Definitions   []Definition `json:"definitions"`
	Pronunciation string       `json:"pronunciation"`
	Synonyms      []string     `json:"synonyms"`
	Translation   string       `json:"translation"`
}
