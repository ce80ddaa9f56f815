package destination

import (
	"errors"
	"fmt"

	"github.com/relex/udpc-agent/defs"
)

var (
	// ErrInvalidFormat is returned for any text not in the form of "D.D.D.D" or "D.D.D.D:P"
	ErrInvalidFormat = errors.New("invalid destination format")

	// ErrInputTooLong is returned for text longer than defs.MaxConfigTextLength
	ErrInputTooLong = errors.New("destination text too long")
)

const (
	maxOctetDigits = 3
	maxPortDigits  = 10
	maxPort        = 65535
)

// Parse parses destination text in the form of "D.D.D.D:P" or "D.D.D.D", optionally ending with a newline
//
// Each D is a decimal octet of 1-3 digits and value up to 255. Leading zeros are allowed.
//
// If the port part is absent, the port of the given current destination is kept.
func Parse(text []byte, current Destination) (Destination, error) {
	if len(text) > defs.MaxConfigTextLength {
		return current, fmt.Errorf("%w: %d bytes, max %d", ErrInputTooLong, len(text), defs.MaxConfigTextLength)
	}
	if n := len(text); n > 0 && text[n-1] == '\n' {
		text = text[:n-1]
	}

	var address uint32
	pos := 0
	for i := 0; i < 4; i++ {
		value, next, err := parseOctet(text, pos)
		if err != nil {
			return current, fmt.Errorf("%w: octet %d of '%s': %s", ErrInvalidFormat, i+1, text, err.Error())
		}
		address = address<<8 | value
		pos = next
		if i < 3 {
			if pos >= len(text) || text[pos] != '.' {
				return current, fmt.Errorf("%w: expected '.' after octet %d of '%s'", ErrInvalidFormat, i+1, text)
			}
			pos++
		}
	}

	port := current.Port
	if pos < len(text) {
		if text[pos] != ':' {
			return current, fmt.Errorf("%w: expected ':' after address in '%s'", ErrInvalidFormat, text)
		}
		value, err := parsePort(text[pos+1:])
		if err != nil {
			return current, fmt.Errorf("%w: port of '%s': %s", ErrInvalidFormat, text, err.Error())
		}
		port = value
	}

	return Destination{Address: address, Port: port}, nil
}

// parseOctet reads 1-3 digits starting at pos and returns the value and the position after the last digit
func parseOctet(text []byte, pos int) (uint32, int, error) {
	var value uint32
	end := pos
	for end < len(text) && isDigit(text[end]) {
		if end-pos == maxOctetDigits {
			return 0, end, fmt.Errorf("more than %d digits", maxOctetDigits)
		}
		value = value*10 + uint32(text[end]-'0')
		end++
	}
	if end == pos {
		if end < len(text) {
			return 0, end, fmt.Errorf("unexpected character '%c'", text[end])
		}
		return 0, end, fmt.Errorf("empty")
	}
	if value > 255 {
		return 0, end, fmt.Errorf("value %d out of range", value)
	}
	return value, end, nil
}

func parsePort(text []byte) (uint16, error) {
	if len(text) == 0 {
		return 0, fmt.Errorf("empty")
	}
	if len(text) > maxPortDigits {
		return 0, fmt.Errorf("more than %d digits", maxPortDigits)
	}
	var value uint64
	for _, c := range text {
		if !isDigit(c) {
			return 0, fmt.Errorf("unexpected character '%c'", c)
		}
		value = value*10 + uint64(c-'0')
	}
	if value > maxPort {
		return 0, fmt.Errorf("value %d out of range", value)
	}
	return uint16(value), nil
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
