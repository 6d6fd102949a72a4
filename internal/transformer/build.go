package transformer

import (
	"log"
	"strings"

	"gridengine/internal/config"
	"gridengine/internal/transformer/builtin"
)

// FromConfig builds the chain described by the grid's transform steps.
// Unknown kinds are logged and skipped.
func FromConfig(steps []config.Transform) Chain {
	var c Chain
	for i, st := range steps {
		o := st.Options
		switch strings.ToLower(strings.TrimSpace(st.Kind)) {
		case "flatten":
			c = append(c, builtin.Flatten{Separator: o.String("separator", ".")})
		case "normalize":
			c = append(c, builtin.Normalize{Fields: o.StringSlice("fields")})
		case "require":
			c = append(c, builtin.Require{Fields: o.StringSlice("fields")})
		case "coerce":
			c = append(c, builtin.Coerce{
				Types:  o.StringMap("types"),
				Layout: o.String("layout", ""),
				Truthy: o.StringSlice("truthy"),
				Falsy:  o.StringSlice("falsy"),
			})
		case "dedup":
			c = append(c, builtin.DeDup{
				Keys:         o.StringSlice("keys"),
				Policy:       o.String("policy", "keep-last"),
				PreferFields: o.StringSlice("prefer_fields"),
			})
		default:
			log.Printf("transform: step %d: unknown kind %q; skipping", i, st.Kind)
		}
	}
	return c
}
