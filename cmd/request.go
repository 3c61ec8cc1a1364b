package cmd

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"
	jsoniter "github.com/json-iterator/go"

	"github.com/rm-hull/http-service/internal/models"
)

type RequestArgs struct {
	Method      string
	Path        string
	Params      []string
	Query       []string
	Headers     []string
	Data        string
	AutoRefresh bool
}

func Request(args RequestArgs) error {
	method, err := models.ParseMethod(args.Method)
	if err != nil {
		return err
	}

	opts := &models.QueryOptions{AutoRefresh: args.AutoRefresh}
	if opts.Params, err = parsePairs("param", args.Params); err != nil {
		return err
	}
	if opts.Query, err = parsePairs("query", args.Query); err != nil {
		return err
	}
	if opts.Headers, err = parsePairs("header", args.Headers); err != nil {
		return err
	}
	if args.Data != "" {
		if !jsoniter.Valid([]byte(args.Data)) {
			return errors.New("--data must be valid JSON")
		}
		opts.Body = jsoniter.RawMessage(args.Data)
	}

	a, err := bootstrap(false, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	return printResult(a.svc.Send(context.Background(), method, args.Path, opts))
}

// parsePairs turns repeated key=value flags into a map. No flags yields nil
// so that the corresponding option counts as not supplied.
func parsePairs(flag string, pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	m := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		k, v, ok := strings.Cut(pair, "=")
		if !ok || k == "" {
			return nil, errors.Newf("invalid --%s %q: expected key=value", flag, pair)
		}
		m[k] = v
	}
	return m, nil
}
