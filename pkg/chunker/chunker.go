package chunker

import (
	"github.com/nikhilbhutani/coursegrader/pkg/tokenizer"
)

type Chunker interface {
	Chunk(text string, opts ChunkOptions) []TextChunk
}

type ChunkOptions struct {
	MaxTokens     int // window size in tokens
	OverlapTokens int // tokens shared by consecutive windows
}

type TextChunk struct {
	Content    string
	Index      int
	StartToken int
	EndToken   int
}

// TokenCount is the number of tokens in the window.
func (c TextChunk) TokenCount() int {
	return c.EndToken - c.StartToken
}

func DefaultOptions() ChunkOptions {
	return ChunkOptions{
		MaxTokens:     4096,
		OverlapTokens: 200,
	}
}

type tokenChunker struct {
	tok tokenizer.Tokenizer
}

// New returns a Chunker that windows text over tokens produced by tok.
func New(tok tokenizer.Tokenizer) Chunker {
	return &tokenChunker{tok: tok}
}

// Chunk splits text into windows of at most MaxTokens tokens, each starting
// MaxTokens-OverlapTokens tokens after the previous one. Text that already
// fits is returned as-is without a decode round trip.
func (c *tokenChunker) Chunk(text string, opts ChunkOptions) []TextChunk {
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = DefaultOptions().MaxTokens
	}
	if opts.OverlapTokens < 0 {
		opts.OverlapTokens = 0
	}

	tokens := c.tok.Encode(text)
	total := len(tokens)
	if total <= opts.MaxTokens {
		return []TextChunk{{Content: text, Index: 0, StartToken: 0, EndToken: total}}
	}

	step := opts.MaxTokens - opts.OverlapTokens
	if step <= 0 {
		step = opts.MaxTokens
	}

	var chunks []TextChunk
	for start := 0; ; start += step {
		end := min(start+opts.MaxTokens, total)
		chunks = append(chunks, TextChunk{
			Content:    c.tok.Decode(tokens[start:end]),
			Index:      len(chunks),
			StartToken: start,
			EndToken:   end,
		})
		if end == total {
			break
		}
	}
	return chunks
}
