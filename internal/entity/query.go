package entity

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// QueryKind is the declared type of an indicator being looked up
type QueryKind string

const (
	KindIP     QueryKind = "ip"
	KindDomain QueryKind = "domain"
	KindHash   QueryKind = "hash"
)

// ErrInvalidQuery is returned when a lookup request fails boundary validation
var ErrInvalidQuery = errors.New("invalid query")

var (
	ipv4Pattern   = regexp.MustCompile(`^(?:(?:25[0-5]|2[0-4][0-9]|[01]?[0-9][0-9]?)\.){3}(?:25[0-5]|2[0-4][0-9]|[01]?[0-9][0-9]?)$`)
	domainPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9-]{1,61}[a-zA-Z0-9]?\.[a-zA-Z]{2,}(\.[a-zA-Z]{2,})*$`)
	hashPattern   = regexp.MustCompile(`^[a-fA-F0-9]{32}$|^[a-fA-F0-9]{40}$|^[a-fA-F0-9]{64}$`)
)

// Query is a validated indicator lookup. Construct it with ParseQuery.
type Query struct {
	Value string    `json:"query"`
	Kind  QueryKind `json:"type"`
}

// ParseKind converts a raw type string into a QueryKind
func ParseKind(raw string) (QueryKind, error) {
	switch k := QueryKind(raw); k {
	case KindIP, KindDomain, KindHash:
		return k, nil
	default:
		return "", fmt.Errorf("%w: Invalid type. Must be: ip, domain, or hash", ErrInvalidQuery)
	}
}

// ParseQuery trims the value and checks it against the shape rules of its kind
func ParseQuery(value string, kind QueryKind) (Query, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return Query{}, fmt.Errorf("%w: Query cannot be empty", ErrInvalidQuery)
	}

	if _, err := ParseKind(string(kind)); err != nil {
		return Query{}, err
	}

	if !MatchesKind(trimmed, kind) {
		return Query{}, fmt.Errorf("%w: %s", ErrInvalidQuery, formatHint(kind))
	}

	return Query{Value: trimmed, Kind: kind}, nil
}

// MatchesKind reports whether value has the shape required for kind
func MatchesKind(value string, kind QueryKind) bool {
	switch kind {
	case KindIP:
		return ipv4Pattern.MatchString(value)
	case KindDomain:
		return domainPattern.MatchString(value)
	case KindHash:
		return hashPattern.MatchString(value)
	}
	return false
}

func formatHint(kind QueryKind) string {
	switch kind {
	case KindIP:
		return "Invalid IP address format"
	case KindDomain:
		return "Invalid domain format"
	default:
		return "Invalid hash format. Must be MD5 (32 chars), SHA1 (40 chars), or SHA256 (64 chars)"
	}
}

// InvalidQueryMessage strips the sentinel prefix so the boundary can show the reason alone
func InvalidQueryMessage(err error) string {
	msg := err.Error()
	return strings.TrimPrefix(msg, ErrInvalidQuery.Error()+": ")
}
