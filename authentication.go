package beam

import (
	"encoding/base64"
	"strings"
)

const (
	basicPrefix  = "Basic "
	bearerPrefix = "Bearer "
)

// Authentication is the auth scheme attached to a Request. It is one of
// NoAuth, BasicAuth, BearerAuth or CustomAuth and always serializes to
// a single Authorization header value.
type Authentication interface {
	// Header returns the Authorization header value, or "" for NoAuth.
	Header() string
	String() string

	authentication()
}

// NoAuth sends no Authorization header.
type NoAuth struct{}

// BasicAuth is RFC 7617 basic authentication.
type BasicAuth struct {
	User     string
	Password string
}

// BearerAuth carries a bearer token.
type BearerAuth struct {
	Token string
}

// CustomAuth is sent verbatim.
type CustomAuth struct {
	Value string
}

func (NoAuth) Header() string  { return "" }
func (NoAuth) String() string  { return "No authorization" }
func (NoAuth) authentication() {}

func (a BasicAuth) Header() string {
	return basicPrefix + base64.StdEncoding.EncodeToString([]byte(a.User+":"+a.Password))
}
func (a BasicAuth) String() string { return "Standard - user=" + a.User }
func (BasicAuth) authentication()  {}

func (a BearerAuth) Header() string { return bearerPrefix + a.Token }
func (a BearerAuth) String() string { return "Bearer - token=" + a.Token }
func (BearerAuth) authentication()  {}

func (a CustomAuth) Header() string { return a.Value }
func (a CustomAuth) String() string { return "Custom - value=" + a.Value }
func (CustomAuth) authentication()  {}

// ParseAuthentication is the inverse of Authentication.Header.
// A "Basic " value whose payload is not base64 or lacks a ':' yields NoAuth.
func ParseAuthentication(value string) Authentication {
	switch {
	case strings.HasPrefix(value, basicPrefix):
		decoded, err := base64.StdEncoding.DecodeString(value[len(basicPrefix):])
		if err != nil {
			return NoAuth{}
		}

		user, password, ok := strings.Cut(string(decoded), ":")
		if !ok {
			return NoAuth{}
		}

		return BasicAuth{User: user, Password: password}

	case strings.HasPrefix(value, bearerPrefix):
		return BearerAuth{Token: value[len(bearerPrefix):]}

	case value != "":
		return CustomAuth{Value: value}

	default:
		return NoAuth{}
	}
}

// EqualAuthentication compares two schemes by their serialized header.
// A nil Authentication is treated as NoAuth.
func EqualAuthentication(a, b Authentication) bool {
	return authHeader(a) == authHeader(b)
}

func authHeader(a Authentication) string {
	if a == nil {
		return ""
	}

	return a.Header()
}
