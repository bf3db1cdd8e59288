package ethereum

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
)

// ErrRangeLimited marks a log query rejected because its block range was too wide.
var ErrRangeLimited = errors.New("log query block range limited by provider")

// RangeLimitError carries the block bound the provider reported.
type RangeLimitError struct {
	Bound uint64
	Err   error
}

func (e *RangeLimitError) Error() string {
	return "range limited to block " + strconv.FormatUint(e.Bound, 10) + ": " + e.Err.Error()
}

func (e *RangeLimitError) Unwrap() []error {
	return []error{ErrRangeLimited, e.Err}
}

var hexNumber = regexp.MustCompile(`0[xX][0-9a-fA-F]+`)

// ParseRangeLimit extracts the block bound embedded in a provider's range
// error, e.g. "this block range should work: [0x10, 0x2f]". When several hex
// numbers are present the last one, the upper end of the suggested range, wins.
func ParseRangeLimit(err error) (uint64, bool) {
	if err == nil {
		return 0, false
	}
	var rle *RangeLimitError
	if errors.As(err, &rle) {
		return rle.Bound, true
	}

	matches := hexNumber.FindAllString(err.Error(), -1)
	for i := len(matches) - 1; i >= 0; i-- {
		raw := strings.TrimPrefix(strings.TrimPrefix(matches[i], "0x"), "0X")
		// skip hashes and addresses
		if len(raw) > 16 {
			continue
		}
		n, perr := strconv.ParseUint(raw, 16, 64)
		if perr == nil {
			return n, true
		}
	}
	return 0, false
}

// classifyFilterError wraps err as a RangeLimitError when it carries a block bound.
func classifyFilterError(err error) error {
	if bound, ok := ParseRangeLimit(err); ok {
		return &RangeLimitError{Bound: bound, Err: err}
	}
	return err
}
