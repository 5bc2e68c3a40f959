package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/JanhviHarwani/access-ed-backend/internal/ai"
	"github.com/JanhviHarwani/access-ed-backend/internal/model"
)

// Generator requests a completion from the generative language service,
// whole or streamed.
type Generator interface {
	Complete(ctx context.Context, messages []ai.ChatMessage) (string, error)
	StreamComplete(ctx context.Context, messages []ai.ChatMessage, onChunk func(chunk string) error) (string, error)
}

// Answer is a composed response with the provenance of what grounded it.
type Answer struct {
	Text          string   `json:"text"`
	CitedChunkIDs []string `json:"cited_chunk_ids,omitempty"`
	Sources       []string `json:"sources,omitempty"`
}

// InsufficientInfoAnswer is returned whenever retrieval produced nothing
// relevant enough to ground a response. The generation service is not called
// in that case, so it can never hallucinate an unconstrained answer.
const InsufficientInfoAnswer = "I don't have enough relevant information to answer your question accurately. " +
	"Could you please rephrase or ask something else?"

const composerSystemPrompt = "You are an expert assistant helping educators make education accessible " +
	"for students with disabilities. Answer using only the provided context, in a professional and " +
	"direct tone. If the context does not cover the question, say so instead of guessing. End your " +
	"response with the most relevant source links, each formatted once as a markdown link."

// Composer assembles retrieved chunks, recent conversation turns and the
// question into a bounded prompt and requests a completion.
type Composer struct {
	generator       Generator
	minScore        float64
	maxContextChars int
}

func NewComposer(generator Generator, minScore float64, maxContextChars int) *Composer {
	if maxContextChars <= 0 {
		maxContextChars = 6000
	}
	return &Composer{
		generator:       generator,
		minScore:        minScore,
		maxContextChars: maxContextChars,
	}
}

// Compose builds the grounded prompt and returns the generated answer with
// citations. Chunks scoring below the relevance threshold are discarded; if
// nothing remains the fixed insufficient-information answer is returned.
// The context block is bounded: chunks arrive ordered by score, and the
// lowest-scoring ones are dropped first when the budget is exceeded.
func (c *Composer) Compose(
	ctx context.Context,
	question string,
	chunks []RetrievedChunk,
	history []model.ConversationTurn,
) (*Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, fmt.Errorf("%w: question is empty", ErrInvalidInput)
	}

	used := c.selectChunks(chunks)
	if len(used) == 0 {
		return &Answer{Text: InsufficientInfoAnswer}, nil
	}

	text, err := c.generator.Complete(ctx, c.messages(question, used, history))
	if err != nil {
		return nil, fmt.Errorf("generate answer failed: %w", err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		text = InsufficientInfoAnswer
	}
	return c.annotate(text, used), nil
}

func (c *Composer) messages(question string, used []RetrievedChunk, history []model.ConversationTurn) []ai.ChatMessage {
	messages := make([]ai.ChatMessage, 0, len(history)*2+2)
	messages = append(messages, ai.ChatMessage{Role: "system", Content: composerSystemPrompt})
	for _, turn := range history {
		messages = append(messages,
			ai.ChatMessage{Role: "user", Content: turn.Question},
			ai.ChatMessage{Role: "assistant", Content: turn.Answer},
		)
	}
	return append(messages, ai.ChatMessage{Role: "user", Content: c.userPrompt(question, used)})
}

func (c *Composer) annotate(text string, used []RetrievedChunk) *Answer {
	answer := &Answer{Text: text}
	seen := map[string]bool{}
	for _, chunk := range used {
		answer.CitedChunkIDs = append(answer.CitedChunkIDs, chunk.ChunkID)
		if chunk.Source != "" && !seen[chunk.Source] {
			seen[chunk.Source] = true
			answer.Sources = append(answer.Sources, chunk.Source)
		}
	}
	return answer
}

// ComposeStream behaves like Compose but forwards completion deltas to
// onChunk as they arrive. When nothing relevant grounds the question the
// fixed insufficient-information answer is emitted as a single chunk and no
// generation request is made.
func (c *Composer) ComposeStream(
	ctx context.Context,
	question string,
	chunks []RetrievedChunk,
	history []model.ConversationTurn,
	onChunk func(chunk string) error,
) (*Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, fmt.Errorf("%w: question is empty", ErrInvalidInput)
	}

	used := c.selectChunks(chunks)
	if len(used) == 0 {
		if err := onChunk(InsufficientInfoAnswer); err != nil {
			return nil, err
		}
		return &Answer{Text: InsufficientInfoAnswer}, nil
	}

	text, err := c.generator.StreamComplete(ctx, c.messages(question, used, history), onChunk)
	if err != nil {
		return nil, fmt.Errorf("generate answer failed: %w", err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		text = InsufficientInfoAnswer
	}
	return c.annotate(text, used), nil
}

// selectChunks keeps chunks above the relevance threshold that fit the
// context budget. The first relevant chunk is always kept so a single long
// passage cannot starve the prompt of all grounding.
func (c *Composer) selectChunks(chunks []RetrievedChunk) []RetrievedChunk {
	var used []RetrievedChunk
	budget := c.maxContextChars
	for _, chunk := range chunks {
		if chunk.Score < c.minScore {
			continue
		}
		cost := len(chunk.Text)
		if len(used) > 0 && cost > budget {
			continue
		}
		used = append(used, chunk)
		budget -= cost
	}
	return used
}

func (c *Composer) userPrompt(question string, used []RetrievedChunk) string {
	var b strings.Builder
	b.WriteString("Context:\n")
	for _, chunk := range used {
		b.WriteString("---\n")
		if chunk.Title != "" || chunk.Source != "" {
			fmt.Fprintf(&b, "Source: %s (%s)\n", chunk.Title, chunk.Source)
		}
		b.WriteString(chunk.Text)
		b.WriteString("\n")
	}
	b.WriteString("---\n\n")
	b.WriteString("Based on the above context, answer the following question:\n")
	b.WriteString(question)
	b.WriteString("\n\nInclude each unique source link at most once, as a markdown link.")
	return b.String()
}
