package models

import (
	"strings"

	"github.com/cockroachdb/errors"
)

type Method string

const (
	MethodGet    Method = "GET"
	MethodPost   Method = "POST"
	MethodPut    Method = "PUT"
	MethodPatch  Method = "PATCH"
	MethodDelete Method = "DELETE"
)

func ParseMethod(s string) (Method, error) {
	switch m := Method(strings.ToUpper(strings.TrimSpace(s))); m {
	case MethodGet, MethodPost, MethodPut, MethodPatch, MethodDelete:
		return m, nil
	default:
		return "", errors.Newf("unsupported method: %q", s)
	}
}

// QueryOptions are the per-call inputs. Params substitutes :name
// placeholders in the path, Query is appended as a query string and
// AutoRefresh marks the call as refresh-eligible.
type QueryOptions struct {
	Headers     map[string]string
	Body        any
	Query       map[string]string
	Params      map[string]string
	AutoRefresh bool
}
