package auth

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	jwt "github.com/golang-jwt/jwt/v5"
)

// FlexString accepts a JSON string or number and keeps its textual form.
// Domain id claims are issued as either depending on the issuing path.
type FlexString string

func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	if i, err := n.Int64(); err == nil {
		*f = FlexString(strconv.FormatInt(i, 10))
		return nil
	}
	*f = FlexString(n.String())
	return nil
}

func (f FlexString) String() string {
	return string(f)
}

// Claims is the verified payload of an access token. Only Codec.Verify builds one.
type Claims struct {
	Username  string     `json:"username,omitempty"`
	Role      string     `json:"role,omitempty"`
	StudentID FlexString `json:"studentId,omitempty"`
	TeacherID FlexString `json:"teacherId,omitempty"`
	UserID    FlexString `json:"userId,omitempty"`
	jwt.RegisteredClaims
}
