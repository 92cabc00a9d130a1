package devapi

import (
	"fmt"
	"net/http"
	"strings"
)

type fixRequest struct {
	Phrase string `json:"phrase"`
}

type translateRequest struct {
	Text           string `json:"text"`
	SourceLanguage string `json:"source_language"`
	TargetLanguage string `json:"target_language"`
}

type defineRequest struct {
	Word    string `json:"word"`
	Context string `json:"context"`
}

func (s *Server) handleFix(w http.ResponseWriter, r *http.Request) {
	var req fixRequest
	if err := decode(w, r, &req); err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}
	phrase := strings.TrimSpace(req.Phrase)
	if phrase == "" {
		writeDetail(w, http.StatusUnprocessableEntity, "phrase must not be empty")
		return
	}

	corrected := phrase
	if first := corrected[:1]; strings.ToUpper(first) != first {
		corrected = strings.ToUpper(first) + corrected[1:]
	}
	if !strings.HasSuffix(corrected, ".") && !strings.HasSuffix(corrected, "?") && !strings.HasSuffix(corrected, "!") {
		corrected += "."
	}

	resp := map[string]any{
		"original_phrase":         req.Phrase,
		"corrected_phrase":        corrected,
		"is_correct":              corrected == phrase,
		"grammar_errors":          []any{},
		"vocabulary_suggestions":  []any{},
		"practice_topics":         []any{},
		"alternative_expressions": []any{},
	}
	if corrected != phrase {
		resp["grammar_errors"] = []map[string]string{{
			"error_type":  "punctuation",
			"explanation": "Sentences start with a capital letter and end with punctuation.",
			"incorrect":   phrase,
			"correct":     corrected,
		}}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleTranslate(w http.ResponseWriter, r *http.Request) {
	var req translateRequest
	if err := decode(w, r, &req); err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeDetail(w, http.StatusUnprocessableEntity, "text must not be empty")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"original_text":       req.Text,
		"primary_translation": fmt.Sprintf("[%s] %s", req.TargetLanguage, req.Text),
		"alternatives":        []any{},
		"explanation":         fmt.Sprintf("Development translation from %s to %s.", req.SourceLanguage, req.TargetLanguage),
	})
}

func (s *Server) handleDefine(w http.ResponseWriter, r *http.Request) {
	var req defineRequest
	if err := decode(w, r, &req); err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Word) == "" {
		writeDetail(w, http.StatusUnprocessableEntity, "word must not be empty")
		return
	}
	example := req.Context
	if example == "" {
		example = "An example sentence with " + req.Word + "."
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"word": req.Word,
		"definitions": []map[string]string{{
			"part_of_speech": "noun",
			"definition":     "Development definition of " + req.Word + ".",
			"example":        example,
		}},
		"pronunciation": "/" + strings.ToLower(req.Word) + "/",
		"synonyms":      []string{},
		"translation":   req.Word,
	})
}
