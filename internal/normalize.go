package internal

import (
	"bytes"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	jsoniter "github.com/json-iterator/go"

	"github.com/rm-hull/http-service/internal/models"
)

const maxErrorTextLen = 256

type errorEnvelope struct {
	Message jsoniter.RawMessage `json:"message"`
	Errors  any                 `json:"errors"`
}

// errorMessage renders the envelope's message: strings as-is, any other
// JSON value as its compact encoding, absent or empty as the status text.
func errorMessage(raw jsoniter.RawMessage, status int) string {
	var message string
	if err := json.Unmarshal(raw, &message); err != nil {
		var value any
		if json.Unmarshal(raw, &value) == nil && value != nil {
			if compact, err := json.Marshal(value); err == nil {
				message = string(compact)
			}
		}
	}
	if message == "" {
		return http.StatusText(status)
	}
	return message
}

func isSuccess(status int) bool {
	return status >= 200 && status <= 299
}

// normalize shapes a final response into a Result. Non-2xx bodies are read
// as {message, errors} and 2xx bodies as {data, message}. An empty 2xx body
// is a success with zero data; a 2xx body that is not a JSON object is
// reported as an error carrying the response status.
func normalize[T any](resp *response) models.Result[T] {
	if !isSuccess(resp.status) {
		var env errorEnvelope
		if err := json.Unmarshal(resp.body, &env); err != nil {
			return models.Failed[T](resp.status, describeBody(resp), nil)
		}
		return models.Failed[T](resp.status, errorMessage(env.Message, resp.status), env.Errors)
	}

	if len(bytes.TrimSpace(resp.body)) == 0 {
		var zero T
		return models.Succeeded(zero, "")
	}

	var data models.Data[T]
	if err := json.Unmarshal(resp.body, &data); err != nil {
		return models.Failed[T](resp.status, "malformed response body: "+err.Error(), nil)
	}
	return models.Result[T]{Success: &data}
}

// describeBody derives an error message from a body that is not JSON:
// the <title> of an HTML error page, else the leading text, else the
// status text.
func describeBody(resp *response) string {
	body := bytes.TrimSpace(resp.body)
	if len(body) == 0 {
		return http.StatusText(resp.status)
	}

	if isHTML(resp.header, body) {
		if doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body)); err == nil {
			for _, sel := range []string{"title", "h1"} {
				if text := strings.TrimSpace(doc.Find(sel).First().Text()); text != "" {
					return text
				}
			}
		}
		return http.StatusText(resp.status)
	}

	return truncate(string(body), maxErrorTextLen)
}

func isHTML(header http.Header, body []byte) bool {
	if strings.HasPrefix(header.Get("Content-Type"), "text/html") {
		return true
	}
	prefix := bytes.ToLower(body[:min(len(body), len("<!doctype"))])
	return bytes.HasPrefix(prefix, []byte("<html")) || bytes.HasPrefix(prefix, []byte("<!doctype"))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	s = s[:n]
	for !utf8.ValidString(s) {
		s = s[:len(s)-1]
	}
	return s + "…"
}
