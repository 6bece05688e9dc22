package models

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"math/big"
	"strconv"
	"strings"
)

// FlexSecret is a condominium super-user secret that older records keep in a
// numeric column and newer ones keep as text. The raw form is preserved.
type FlexSecret struct {
	Raw   string
	Valid bool
}

func NewFlexSecret(raw string) FlexSecret {
	return FlexSecret{Raw: raw, Valid: true}
}

func (s *FlexSecret) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*s = FlexSecret{}
	case string:
		*s = NewFlexSecret(v)
	case []byte:
		*s = NewFlexSecret(string(v))
	case int64:
		*s = NewFlexSecret(strconv.FormatInt(v, 10))
	case float64:
		*s = NewFlexSecret(strconv.FormatFloat(v, 'f', -1, 64))
	default:
		return fmt.Errorf("flex secret: unsupported type %T", src)
	}
	return nil
}

func (s FlexSecret) Value() (driver.Value, error) {
	if !s.Valid {
		return nil, nil
	}
	return s.Raw, nil
}

func (s *FlexSecret) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*s = FlexSecret{}
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var raw string
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		*s = NewFlexSecret(raw)
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(data, &num); err != nil {
		return fmt.Errorf("flex secret: %w", err)
	}
	*s = NewFlexSecret(num.String())
	return nil
}

// Matches accepts the supplied secret when it equals the stored one as text
// (trimmed or not) or when both parse to the same number.
func (s FlexSecret) Matches(supplied string) bool {
	if !s.Valid || supplied == "" {
		return false
	}
	if s.Raw == supplied || strings.TrimSpace(s.Raw) == strings.TrimSpace(supplied) {
		return true
	}
	stored, ok := parseNumber(s.Raw)
	if !ok {
		return false
	}
	given, ok := parseNumber(supplied)
	if !ok {
		return false
	}
	return stored.Cmp(given) == 0
}

func parseNumber(raw string) (*big.Rat, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, false
	}
	value, ok := new(big.Rat).SetString(raw)
	return value, ok
}
