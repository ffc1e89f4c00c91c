// Package id defines TypeID-based identity types for store-assigned
// documents in the quota core.
//
// Most documents in this domain are keyed by a caller-supplied or derived
// string (userId, {userId}_{requestId}, rc_{eventId}) and need no generated
// ID. Only the wallet document is store-assigned, so this package is
// intentionally narrow: one prefix, one constructor, one parser.
package id

import (
	"database/sql/driver"
	"fmt"

	"go.jetify.com/typeid/v2"
)

// Prefix identifies the entity type encoded in a TypeID.
type Prefix string

// PrefixWallet is the only entity type in this domain that needs a
// store-generated, K-sortable identifier.
const PrefixWallet Prefix = "wlt"

// ID is a prefix-qualified, globally unique, sortable, URL-safe identifier.
//
//nolint:recvcheck // value receivers for read-only methods, pointer receivers for UnmarshalText/Scan.
type ID struct {
	inner typeid.TypeID
	valid bool
}

// Nil is the zero-value ID.
var Nil ID

// WalletID is a type-safe identifier for wallets (prefix: "wlt").
type WalletID = ID

// NewWalletID generates a new unique wallet ID.
func NewWalletID() ID {
	tid, err := typeid.Generate(string(PrefixWallet))
	if err != nil {
		panic(fmt.Sprintf("id: invalid prefix %q: %v", PrefixWallet, err))
	}
	return ID{inner: tid, valid: true}
}

// ParseWalletID parses a TypeID string and validates the "wlt" prefix.
func ParseWalletID(s string) (ID, error) {
	if s == "" {
		return Nil, fmt.Errorf("id: parse %q: empty string", s)
	}
	tid, err := typeid.Parse(s)
	if err != nil {
		return Nil, fmt.Errorf("id: parse %q: %w", s, err)
	}
	parsed := ID{inner: tid, valid: true}
	if parsed.Prefix() != PrefixWallet {
		return Nil, fmt.Errorf("id: expected prefix %q, got %q", PrefixWallet, parsed.Prefix())
	}
	return parsed, nil
}

// String returns the full TypeID string representation (prefix_suffix).
// Returns an empty string for the Nil ID.
func (i ID) String() string {
	if !i.valid {
		return ""
	}
	return i.inner.String()
}

// Prefix returns the prefix component of this ID.
func (i ID) Prefix() Prefix {
	if !i.valid {
		return ""
	}
	return Prefix(i.inner.Prefix())
}

// IsNil reports whether this ID is the zero value.
func (i ID) IsNil() bool {
	return !i.valid
}

// MarshalText implements encoding.TextMarshaler.
func (i ID) MarshalText() ([]byte, error) {
	if !i.valid {
		return []byte{}, nil
	}
	return []byte(i.inner.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (i *ID) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*i = Nil
		return nil
	}
	parsed, err := ParseWalletID(string(data))
	if err != nil {
		return err
	}
	*i = parsed
	return nil
}

// Value implements driver.Valuer for database storage.
func (i ID) Value() (driver.Value, error) {
	if !i.valid {
		return nil, nil //nolint:nilnil // nil is the canonical NULL for driver.Valuer
	}
	return i.inner.String(), nil
}

// Scan implements sql.Scanner for database retrieval.
func (i *ID) Scan(src any) error {
	if src == nil {
		*i = Nil
		return nil
	}
	switch v := src.(type) {
	case string:
		if v == "" {
			*i = Nil
			return nil
		}
		return i.UnmarshalText([]byte(v))
	case []byte:
		if len(v) == 0 {
			*i = Nil
			return nil
		}
		return i.UnmarshalText(v)
	default:
		return fmt.Errorf("id: cannot scan %T into ID", src)
	}
}
