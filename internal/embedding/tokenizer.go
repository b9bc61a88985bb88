package embedding

import (
	"fmt"
	"os"
	"strings"

	"github.com/sugarme/tokenizer"
	"github.com/sugarme/tokenizer/model/wordpiece"
	"github.com/sugarme/tokenizer/normalizer"
	"github.com/sugarme/tokenizer/pretokenizer"
	"github.com/sugarme/tokenizer/pretrained"
	"github.com/sugarme/tokenizer/processor"
)

// Special tokens of BERT vocabularies.
const (
	TokenCLS  = "[CLS]"
	TokenSEP  = "[SEP]"
	TokenPAD  = "[PAD]"
	TokenUNK  = "[UNK]"
	TokenMASK = "[MASK]"
)

// BertTokenizer runs a Hugging Face BERT tokenization pipeline (normalizer,
// pre-tokenizer, WordPiece, [CLS]/[SEP] post-processing) and packs the result into
// right-padded batches.
type BertTokenizer struct {
	tk    *tokenizer.Tokenizer
	clsID int64
	sepID int64
	padID int64
}

// LoadTokenizer opens tokenizerPath (a tokenizer.json) when set, and otherwise builds
// the BERT pipeline over the vocab.txt at vocabPath.
func LoadTokenizer(tokenizerPath, vocabPath string, lowercase bool) (*BertTokenizer, error) {
	if tokenizerPath != "" {
		return LoadTokenizerJSON(tokenizerPath)
	}
	return NewBertTokenizer(vocabPath, lowercase)
}

// LoadTokenizerJSON reads a Hugging Face tokenizer.json.
func LoadTokenizerJSON(path string) (*BertTokenizer, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("open tokenizer: %w", err)
	}
	tk, err := pretrained.FromFile(path)
	if err != nil {
		return nil, fmt.Errorf("load tokenizer %s: %w", path, err)
	}
	return newBertTokenizer(tk)
}

// NewBertTokenizer builds the BERT pipeline over a vocab.txt file (one token per
// line). lowercase selects the uncased pipeline, which also strips accents.
func NewBertTokenizer(vocabPath string, lowercase bool) (*BertTokenizer, error) {
	if _, err := os.Stat(vocabPath); err != nil {
		return nil, fmt.Errorf("open vocab: %w", err)
	}
	model, err := wordpiece.NewWordPieceFromFile(vocabPath, TokenUNK)
	if err != nil {
		return nil, fmt.Errorf("load vocab %s: %w", vocabPath, err)
	}
	tk := tokenizer.NewTokenizer(model)
	tk.WithNormalizer(normalizer.NewBertNormalizer(true, lowercase, true, lowercase))
	tk.WithPreTokenizer(pretokenizer.NewBertPreTokenizer())

	clsID, ok := tk.TokenToId(TokenCLS)
	if !ok {
		return nil, fmt.Errorf("vocab is missing special token %s", TokenCLS)
	}
	sepID, ok := tk.TokenToId(TokenSEP)
	if !ok {
		return nil, fmt.Errorf("vocab is missing special token %s", TokenSEP)
	}
	special := []tokenizer.AddedToken{}
	for _, s := range []string{TokenCLS, TokenSEP, TokenPAD, TokenUNK, TokenMASK} {
		if _, ok := tk.TokenToId(s); ok {
			special = append(special, tokenizer.NewAddedToken(s, true))
		}
	}
	tk.AddSpecialTokens(special)
	tk.WithPostProcessor(processor.NewBertProcessing(
		processor.PostToken{Id: sepID, Value: TokenSEP},
		processor.PostToken{Id: clsID, Value: TokenCLS},
	))
	return newBertTokenizer(tk)
}

func newBertTokenizer(tk *tokenizer.Tokenizer) (*BertTokenizer, error) {
	t := &BertTokenizer{tk: tk}
	for _, sp := range []struct {
		token string
		id    *int64
	}{
		{TokenCLS, &t.clsID},
		{TokenSEP, &t.sepID},
	} {
		id, ok := tk.TokenToId(sp.token)
		if !ok {
			return nil, fmt.Errorf("tokenizer is missing special token %s", sp.token)
		}
		*sp.id = int64(id)
	}
	if id, ok := tk.TokenToId(TokenPAD); ok {
		t.padID = int64(id)
	}
	return t, nil
}

// Tokens returns the word pieces of text, without special tokens.
func (t *BertTokenizer) Tokens(text string) ([]string, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	enc, err := t.tk.EncodeSingle(text, false)
	if err != nil {
		return nil, err
	}
	return enc.Tokens, nil
}

// Encode returns the ids of [CLS] text [SEP], truncated to maxTokens ids in total.
// The final [SEP] survives truncation.
func (t *BertTokenizer) Encode(text string, maxTokens int) ([]int64, error) {
	if strings.TrimSpace(text) == "" {
		return []int64{t.clsID, t.sepID}, nil
	}
	enc, err := t.tk.EncodeSingle(text, true)
	if err != nil {
		return nil, fmt.Errorf("tokenize: %w", err)
	}
	ids := make([]int64, 0, len(enc.Ids))
	for i, id := range enc.Ids {
		if i < len(enc.AttentionMask) && enc.AttentionMask[i] == 0 {
			break
		}
		ids = append(ids, int64(id))
	}
	if len(ids) > maxTokens {
		last := ids[len(ids)-1]
		ids = append(ids[:maxTokens-1], last)
	}
	return ids, nil
}

// TokenizeBatch encodes texts and right-pads them to the longest sequence in the batch.
func (t *BertTokenizer) TokenizeBatch(texts []string, maxTokens int) (*Batch, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("empty batch")
	}
	if maxTokens < 2 {
		return nil, fmt.Errorf("max tokens must be at least 2, got %d", maxTokens)
	}
	encoded := make([][]int64, len(texts))
	seqLen := 0
	for i, text := range texts {
		ids, err := t.Encode(text, maxTokens)
		if err != nil {
			return nil, err
		}
		encoded[i] = ids
		if len(ids) > seqLen {
			seqLen = len(ids)
		}
	}
	batch := &Batch{
		InputIDs:      make([]int64, len(texts)*seqLen),
		AttentionMask: make([]int64, len(texts)*seqLen),
		TokenTypeIDs:  make([]int64, len(texts)*seqLen),
		Size:          len(texts),
		SeqLen:        seqLen,
	}
	for i, ids := range encoded {
		row := i * seqLen
		for j := 0; j < seqLen; j++ {
			if j < len(ids) {
				batch.InputIDs[row+j] = ids[j]
				batch.AttentionMask[row+j] = 1
			} else {
				batch.InputIDs[row+j] = t.padID
			}
		}
	}
	return batch, nil
}
