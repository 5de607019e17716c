// Package jsonblock recovers a JSON document from free-form model output.
//
// Three strategies are attempted in a fixed order:
//  1. the whole text is valid JSON;
//  2. a fenced code block (```json ... ``` or ``` ... ```) holds valid JSON;
//  3. the span between the first '{' and the last '}' is valid JSON.
package jsonblock

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"
)

// Strategy names the technique that located the JSON document.
type Strategy string

const (
	StrategyNone   Strategy = ""
	StrategyDirect Strategy = "direct"
	StrategyFenced Strategy = "fenced"
	StrategyBraces Strategy = "braces"
)

var ErrNoJSON = errors.New("no json document found")

var fencePattern = regexp.MustCompile("(?s)```[a-zA-Z]*\\s*\\n?(.*?)```")

// Extract returns the first JSON document found in raw together with the
// strategy that produced it.
func Extract(raw string) ([]byte, Strategy, error) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return nil, StrategyNone, ErrNoJSON
	}

	if json.Valid([]byte(text)) {
		return []byte(text), StrategyDirect, nil
	}

	for _, match := range fencePattern.FindAllStringSubmatch(text, -1) {
		candidate := strings.TrimSpace(match[1])
		if candidate != "" && json.Valid([]byte(candidate)) {
			return []byte(candidate), StrategyFenced, nil
		}
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		candidate := text[start : end+1]
		if json.Valid([]byte(candidate)) {
			return []byte(candidate), StrategyBraces, nil
		}
	}

	return nil, StrategyNone, ErrNoJSON
}
