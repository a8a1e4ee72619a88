package sourcemap

import (
	"strings"

	"go.trai.ch/zerr"
)

const base64Chars = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+/"

var base64Index = func() [256]int8 {
	var idx [256]int8
	for i := range idx {
		idx[i] = -1
	}
	for i := 0; i < len(base64Chars); i++ {
		idx[base64Chars[i]] = int8(i)
	}
	return idx
}()

const (
	vlqShift    = 5
	vlqBase     = 1 << vlqShift
	vlqMask     = vlqBase - 1
	vlqContinue = vlqBase
)

// writeVLQ appends the base64 VLQ encoding of v.
func writeVLQ(out *strings.Builder, v int) {
	var u int
	if v < 0 {
		u = (-v << 1) | 1
	} else {
		u = v << 1
	}
	for {
		digit := u & vlqMask
		u >>= vlqShift
		if u > 0 {
			digit |= vlqContinue
		}
		out.WriteByte(base64Chars[digit])
		if u == 0 {
			return
		}
	}
}

// readVLQs decodes every value of one comma-separated segment.
func readVLQs(s string) ([]int, error) {
	var vals []int
	shift, acc := 0, 0
	for i := 0; i < len(s); i++ {
		d := base64Index[s[i]]
		if d < 0 {
			return nil, zerr.With(ErrInvalidMappings, "char", string(s[i]))
		}
		acc |= int(d&vlqMask) << shift
		if int(d)&vlqContinue != 0 {
			shift += vlqShift
			continue
		}
		v := acc >> 1
		if acc&1 == 1 {
			v = -v
		}
		vals = append(vals, v)
		shift, acc = 0, 0
	}
	if shift != 0 {
		return nil, zerr.With(ErrInvalidMappings, "segment", s)
	}
	return vals, nil
}
