package apiclient

import (
	"context"
	"net/http"
)

const (
	DefaultSourceLanguage = "Spanish"
	DefaultTargetLanguage = "English"
)

// Fix checks a phrase for grammar and style.
func (c *Client) Fix(ctx context.Context, phrase string) (*FixResult, error) {
	var r FixResult
	if err := c.do(ctx, http.MethodPost, "/fix", nil, fixRequest{Phrase: phrase}, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// Translate translates text. Empty languages default to Spanish -> English.
func (c *Client) Translate(ctx context.Context, text, source, target string) (*TranslateResult, error) {
	if source == "" {
		source = DefaultSourceLanguage
	}
	if target == "" {
		target = DefaultTargetLanguage
	}
	var r TranslateResult
	in := translateRequest{Text: text, SourceLanguage: source, TargetLanguage: target}
	if err := c.do(ctx, http.MethodPost, "/translate", nil, in, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// Define looks up a word, optionally in the context of a sentence.
func (c *Client) Define(ctx context.Context, word, sentence string) (*DefineResult, error) {
	var r DefineResult
	if err := c.do(ctx, http.MethodPost, "/define", nil, defineRequest{Word: word, Context: sentence}, &r); err != nil {
		return nil, err
	}
	return &r, nil
}
