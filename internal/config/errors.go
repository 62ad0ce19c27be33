package config

import (
	"errors"
	"sort"

	"github.com/caarlos0/env/v11"
)

func aggregateFields(agg env.AggregateError) []string {
	seen := make(map[string]struct{})
	var fields []string
	for _, err := range agg.Errors {
		var name string
		var required env.EnvVarIsNotSetError
		var empty env.EmptyEnvVarError
		var parse env.ParseError
		switch {
		case errors.As(err, &required):
			name = required.Key
		case errors.As(err, &empty):
			name = empty.Key
		case errors.As(err, &parse):
			name = parse.Name
		default:
			name = err.Error()
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		fields = append(fields, name)
	}
	sort.Strings(fields)
	return fields
}
