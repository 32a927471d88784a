// Package identity models who a signature operation acts for: a specific
// recipient addressed by email, or the aggregate identity used by the
// single-operator fast-signing mode, which spans every recipient of a
// document.
package identity

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/jgarciait/aqsign-demo-sub001/internal/signing"
)

// AggregateToken is the reserved wire token for the aggregate identity. It
// is matched only at the token boundary; everything below works with the
// Recipient variant instead of the raw string.
const AggregateToken = "view-all"

type Recipient struct {
	email     string
	aggregate bool
}

func Specific(email string) Recipient {
	return Recipient{email: email}
}

func Aggregate() Recipient {
	return Recipient{aggregate: true}
}

func (r Recipient) IsAggregate() bool { return r.aggregate }

func (r Recipient) Email() string { return r.email }

// Key is the recipient key used in storage rows. Aggregate operations that
// write (rather than fan out over all rows) store under the reserved token
// so the fast-signing mode keeps one composite row per document.
func (r Recipient) Key() string {
	if r.aggregate {
		return AggregateToken
	}
	return r.email
}

func (r Recipient) String() string { return r.Key() }

// EncodeToken produces the reversible wire token for a recipient.
func EncodeToken(r Recipient) string {
	if r.aggregate {
		return AggregateToken
	}
	return base64.RawURLEncoding.EncodeToString([]byte(r.email))
}

// DecodeToken reverses EncodeToken. The token is plain reversible encoding,
// not a credential; a malformed or empty token is an input error.
func DecodeToken(token string) (Recipient, error) {
	if token == "" {
		return Recipient{}, fmt.Errorf("%w: missing recipient token", signing.ErrInvalidInput)
	}
	if token == AggregateToken {
		return Aggregate(), nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(token, "="))
	if err != nil {
		return Recipient{}, fmt.Errorf("%w: undecodable recipient token", signing.ErrInvalidInput)
	}
	email := string(raw)
	if !strings.Contains(email, "@") {
		return Recipient{}, fmt.Errorf("%w: token does not decode to an email", signing.ErrInvalidInput)
	}
	return Specific(email), nil
}
