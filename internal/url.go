package internal

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/cockroachdb/errors"
)

var pathParamPattern = regexp.MustCompile(`:(\w+)`)

// segmentParamPattern only matches placeholders that open a path segment,
// so literal colons such as "/slots/12:30" are left alone in strict mode.
var segmentParamPattern = regexp.MustCompile(`(^|/):(\w+)`)

// MissingPathParamError is reported in strict mode when a :name placeholder
// has no matching entry in the params map.
type MissingPathParamError struct {
	Path string
	Name string
}

func (e *MissingPathParamError) Error() string {
	return "missing path parameter :" + e.Name + " in " + e.Path
}

// ReplaceURLParams substitutes every :name token in path with params[name].
// Tokens with no entry become the empty string, so "/users/:id" with no id
// yields "/users/". Values are inserted as given, without escaping.
func ReplaceURLParams(path string, params map[string]string) string {
	return pathParamPattern.ReplaceAllStringFunc(path, func(token string) string {
		return params[token[1:]]
	})
}

func replaceURLParamsStrict(path string, params map[string]string) (string, error) {
	for _, m := range segmentParamPattern.FindAllStringSubmatch(path, -1) {
		if _, ok := params[m[2]]; !ok {
			return "", &MissingPathParamError{Path: path, Name: m[2]}
		}
	}
	return segmentParamPattern.ReplaceAllStringFunc(path, func(token string) string {
		name := strings.TrimPrefix(token, "/")
		return token[:len(token)-len(name)] + params[name[1:]]
	}), nil
}

// ObjectToQueryString encodes query as form-style key=value pairs joined
// with '&', sorted by key.
func ObjectToQueryString(query map[string]string) string {
	values := make(url.Values, len(query))
	for k, v := range query {
		values.Set(k, v)
	}
	return values.Encode()
}

// BuildURL returns base + path (with placeholders substituted when params
// is non-nil) + "?query" (when query is non-nil). In strict mode only
// placeholders that start a segment are recognised and every one of them
// must be resolved, params or not. No separator is inserted
// between base and path; callers pass paths with a leading slash.
func BuildURL(base, path string, params, query map[string]string, strict bool) (string, error) {
	switch {
	case strict:
		var err error
		if path, err = replaceURLParamsStrict(path, params); err != nil {
			return "", errors.WithStack(err)
		}
	case params != nil:
		path = ReplaceURLParams(path, params)
	}
	if query != nil {
		path += "?" + ObjectToQueryString(query)
	}
	return base + path, nil
}
