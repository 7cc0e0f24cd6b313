package ratelimit

import "strings"

// healthEndpoint is never limited so probes keep working under load.
var healthEndpoint = EndpointConfig{Path: "/health", Method: "GET"}

// MatchEndpoint returns the config whose pattern matches method and path, or nil.
//
// Patterns are matched segment by segment. A "{name}" segment matches any
// single non-empty segment, and a pattern ending in "/" matches every path
// under it. An empty Method matches any method. Exact patterns win over
// wildcard ones, and earlier configs win among equals.
func MatchEndpoint(path string, method string, configs []EndpointConfig) *EndpointConfig {
	if path == healthEndpoint.Path && method == healthEndpoint.Method {
		h := healthEndpoint
		return &h
	}

	var best *EndpointConfig
	bestScore := -1
	for i := range configs {
		c := &configs[i]
		if c.Method != "" && c.Method != method {
			continue
		}
		if score, ok := matchPattern(c.Path, path); ok && score > bestScore {
			best, bestScore = c, score
		}
	}
	return best
}

// matchPattern reports whether path fits pattern. The score counts literal
// segments so more specific patterns can be preferred.
func matchPattern(pattern, path string) (int, bool) {
	prefix := strings.HasSuffix(pattern, "/") && pattern != "/"
	pSegs := splitPath(pattern)
	segs := splitPath(path)

	if prefix {
		if len(segs) <= len(pSegs) {
			return 0, false
		}
		segs = segs[:len(pSegs)]
	} else if len(segs) != len(pSegs) {
		return 0, false
	}

	score := 0
	for i, p := range pSegs {
		if isWildcard(p) {
			if segs[i] == "" {
				return 0, false
			}
			continue
		}
		if p != segs[i] {
			return 0, false
		}
		score++
	}
	if !prefix {
		// Full matches outrank prefix matches of the same depth.
		score++
	}
	return score, true
}

func splitPath(p string) []string {
	return strings.Split(strings.Trim(p, "/"), "/")
}

func isWildcard(seg string) bool {
	return strings.HasPrefix(seg, "{") && strings.HasSuffix(seg, "}")
}
