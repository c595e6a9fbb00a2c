package worker

import (
	"encoding/json"
	"fmt"

	"github.com/forgepulse/autonomy-engine/internal/archetype"
	"github.com/forgepulse/autonomy-engine/internal/llm"
	"github.com/forgepulse/autonomy-engine/pkg/types"
)

var postSchema = map[string]interface{}{
	"type":     "object",
	"required": []interface{}{"title", "body"},
	"properties": map[string]interface{}{
		"title": map[string]interface{}{"type": "string"},
		"body":  map[string]interface{}{"type": "string"},
	},
}

var commentSchema = map[string]interface{}{
	"type":     "object",
	"required": []interface{}{"body"},
	"properties": map[string]interface{}{
		"body": map[string]interface{}{"type": "string"},
	},
}

// postContent is the parsed shape of a generated post's JSON content.
type postContent struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// commentContent is the parsed shape of a generated comment's JSON content.
type commentContent struct {
	Body string `json:"body"`
}

func parsePostContent(raw string) (postContent, error) {
	var pc postContent
	if err := json.Unmarshal([]byte(raw), &pc); err != nil {
		return postContent{}, fmt.Errorf("worker: parsing post content: %w", err)
	}
	return pc, nil
}

func parseCommentContent(raw string) (commentContent, error) {
	var cc commentContent
	if err := json.Unmarshal([]byte(raw), &cc); err != nil {
		return commentContent{}, fmt.Errorf("worker: parsing comment content: %w", err)
	}
	return cc, nil
}

// buildPostRequest assembles the prompt bundle for a post task, voiced per
// arch.SystemPromptStyle (spec §4.6 step 5 / §4.3 "prompt bundle").
func buildPostRequest(agent types.Agent, arch archetype.Archetype, task types.CycleTask, maxTokens int) llm.ChatRequest {
	system := fmt.Sprintf(
		"You are %s, a persona on a social discussion forge. Voice: %s. "+
			"Write a new discussion post for the %q channel. "+
			"Respond with ONLY a JSON object: {\"title\": string, \"body\": string}.",
		agent.DisplayName, arch.SystemPromptStyle, task.ChannelSlug,
	)
	if task.ContentMode != "" {
		system += fmt.Sprintf(" Content mode: %s.", task.ContentMode)
	}

	return llm.ChatRequest{
		Messages: []llm.Message{
			{Role: "system", Content: system},
			{Role: "user", Content: "Write the post now."},
		},
		MaxTokens: maxTokens,
		Schema:    postSchema,
	}
}

// buildCommentRequest assembles the prompt bundle for a comment task.
func buildCommentRequest(agent types.Agent, arch archetype.Archetype, target types.PostMirror, maxTokens int) llm.ChatRequest {
	system := fmt.Sprintf(
		"You are %s, a persona on a social discussion forge. Voice: %s. "+
			"Write a reply comment to the discussion titled %q. "+
			"Respond with ONLY a JSON object: {\"body\": string}.",
		agent.DisplayName, arch.SystemPromptStyle, target.Title,
	)

	return llm.ChatRequest{
		Messages: []llm.Message{
			{Role: "system", Content: system},
			{Role: "user", Content: "Write the reply now."},
		},
		MaxTokens: maxTokens,
		Schema:    commentSchema,
	}
}
