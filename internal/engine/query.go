package engine

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// QueryParams is the decoded query string of a resource request: the optional
// record id, the include list, and every remaining pair as a where filter.
type QueryParams struct {
	ID       int
	HasID    bool
	Includes []string
	Where    map[string]any
}

// ParseQueryParams decodes the query string. Values that look numeric become
// ints, true/false become bools, and comma-separated values become arrays,
// mirroring how the store compares them.
func ParseQueryParams(c *fiber.Ctx) (*QueryParams, error) {
	params := &QueryParams{Where: map[string]any{}}

	for key, val := range c.Queries() {
		switch key {
		case "id":
			id, err := strconv.Atoi(val)
			if err != nil || id <= 0 {
				return nil, ValidationError("invalid id")
			}
			params.ID = id
			params.HasID = true
		case "include":
			for _, name := range strings.Split(val, ",") {
				if name = strings.TrimSpace(name); name != "" {
					params.Includes = append(params.Includes, name)
				}
			}
		default:
			params.Where[key] = coerceQueryValue(val)
		}
	}
	return params, nil
}

func coerceQueryValue(val string) any {
	if strings.Contains(val, ",") {
		parts := strings.Split(val, ",")
		out := make([]any, 0, len(parts))
		for _, p := range parts {
			out = append(out, coerceQueryValue(strings.TrimSpace(p)))
		}
		return out
	}
	if n, err := strconv.Atoi(val); err == nil && val != "" {
		return n
	}
	if val == "true" || val == "false" {
		return val == "true"
	}
	return val
}
