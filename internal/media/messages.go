package media

import (
	"context"
	"strings"

	"vlmd/pkg/types"
)

// FromMessages extracts the prompt text and at most one media reference
// from role-tagged messages. Parts are validated here, once, at the
// boundary; unknown part kinds fail the request. Only the first media part
// across all messages is honored.
func (r *Resolver) FromMessages(ctx context.Context, msgs []types.ChatMessage) (string, *Reference, error) {
	var texts []string
	var ref *Reference

	for _, msg := range msgs {
		if msg.Role == "system" {
			// System prompts are not wired into the chat template yet.
			if !msg.Content.IsParts && msg.Content.Text != "" {
				r.log.Warn().Msg("system prompt ignored")
			}
			continue
		}
		if msg.Role != "user" {
			continue
		}
		if err := msg.Content.Validate(); err != nil {
			if ref != nil {
				ref.Cleanup(r.log)
			}
			return "", nil, ErrValidation(err.Error())
		}
		if !msg.Content.IsParts {
			if msg.Content.Text != "" {
				texts = append(texts, msg.Content.Text)
			}
			continue
		}
		for _, part := range msg.Content.Parts {
			switch part.Type {
			case types.PartText:
				if part.Text != "" {
					texts = append(texts, part.Text)
				}
			case types.PartMedia:
				if ref != nil {
					continue // single-media-per-request policy
				}
				resolved, err := r.Resolve(ctx, part.ImageURL.URL)
				if err != nil {
					return "", nil, err
				}
				ref = resolved
			}
		}
	}

	prompt := strings.TrimSpace(strings.Join(texts, " "))
	if prompt == "" && ref == nil {
		return "", nil, ErrValidation("no user message or media found")
	}
	if prompt == "" {
		prompt = DefaultPrompt
	}
	return prompt, ref, nil
}
