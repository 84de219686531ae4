// Package deepseek drafts storyboards through the DeepSeek chat completion
// API. A deterministic Mock stands in when runs are offline.
package deepseek
