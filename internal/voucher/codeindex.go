package voucher

import (
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
)

// CodeIndex is a bloom filter over known voucher codes. A negative answer
// means the code was never created through this process or loaded by Reset,
// so it is only safe when a single instance owns voucher creation.
type CodeIndex struct {
	mu       sync.RWMutex
	filter   *bloom.BloomFilter
	expected uint
	fpRate   float64
}

// NewCodeIndex sizes the filter for expected codes at the given false positive rate.
func NewCodeIndex(expected uint, fpRate float64) *CodeIndex {
	return &CodeIndex{
		filter:   bloom.NewWithEstimates(expected, fpRate),
		expected: expected,
		fpRate:   fpRate,
	}
}

// Add records a normalized code.
func (i *CodeIndex) Add(code string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.filter.AddString(code)
}

// MayContain reports false only for codes that are certainly unknown.
func (i *CodeIndex) MayContain(code string) bool {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.filter.TestString(code)
}

// Reset rebuilds the filter from codes, growing it if needed.
func (i *CodeIndex) Reset(codes []string) {
	expected := i.expected
	if n := uint(len(codes)) * 2; n > expected {
		expected = n
	}

	filter := bloom.NewWithEstimates(expected, i.fpRate)
	for _, c := range codes {
		filter.AddString(c)
	}

	i.mu.Lock()
	i.filter = filter
	i.expected = expected
	i.mu.Unlock()
}
