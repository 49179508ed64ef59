// Package tokenizer counts model tokens for context budgeting.
package tokenizer

import (
	"fmt"
	"sync"

	"github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"
)

// EncodingCL100K is the BPE scheme used for context budgeting.
const EncodingCL100K = "cl100k_base"

// Counter maps text to a token cost. Implementations must be safe for concurrent use.
type Counter interface {
	Count(text string) int
}

// BPE counts tokens with a tiktoken encoding. The ranks are loaded from the embedded
// offline loader so construction never touches the network.
type BPE struct {
	enc *tiktoken.Tiktoken
}

var loaderOnce sync.Once

func NewBPE(encoding string) (*BPE, error) {
	loaderOnce.Do(func() {
		tiktoken.SetBpeLoader(tiktoken_loader.NewOfflineLoader())
	})
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("tokenizer: load %s: %w", encoding, err)
	}
	return &BPE{enc: enc}, nil
}

func NewCL100K() (*BPE, error) {
	return NewBPE(EncodingCL100K)
}

func (b *BPE) Count(text string) int {
	if text == "" {
		return 0
	}
	return len(b.enc.Encode(text, nil, nil))
}

// CounterFunc adapts a plain function to Counter.
type CounterFunc func(text string) int

func (f CounterFunc) Count(text string) int { return f(text) }
