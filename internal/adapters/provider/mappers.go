package provider

import (
	"strconv"
	"strings"

	"propsearch/internal/domain"
)

/********** alias registries (single source of truth) **********/

// Serper, Brave and custom-search style payloads all decode through these.
var listAliases = []string{"organic", "results", "web.results", "items", "organic_results", "data"}

var resultAliases = map[string][]string{
	"title":    {"title", "name", "headline"},
	"url":      {"link", "url", "href", "uri"},
	"snippet":  {"snippet", "description", "content", "summary", "body"},
	"position": {"position", "rank", "index"},
}

/********** tiny helpers **********/

// lookupAny: safe nested lookup with dot paths on maps.
func lookupAny(m map[string]any, path string) any {
	cur := any(m)
	for _, part := range strings.Split(path, ".") {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		v, ok := obj[part]
		if !ok {
			return nil
		}
		cur = v
	}
	return cur
}

func lookupStr(m map[string]any, path string) string {
	if s, ok := lookupAny(m, path).(string); ok {
		return s
	}
	return ""
}

// firstNonEmptyAlias: first non-empty string for a named alias set.
func firstNonEmptyAlias(m map[string]any, aliases map[string][]string, key string) string {
	for _, p := range aliases[key] {
		if s := strings.TrimSpace(lookupStr(m, p)); s != "" {
			return s
		}
	}
	return ""
}

// firstIntFlexible: int from several paths (float64/int/string).
func firstIntFlexible(m map[string]any, paths ...string) (int, bool) {
	for _, k := range paths {
		switch v := lookupAny(m, k).(type) {
		case float64:
			return int(v), true
		case int:
			return v, true
		case string:
			if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
				return n, true
			}
		}
	}
	return 0, false
}

// firstObjectList: the first alias path holding a list of objects.
func firstObjectList(m map[string]any, paths ...string) []map[string]any {
	for _, k := range paths {
		raw, ok := lookupAny(m, k).([]any)
		if !ok {
			continue
		}
		out := make([]map[string]any, 0, len(raw))
		for _, it := range raw {
			if obj, ok := it.(map[string]any); ok {
				out = append(out, obj)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return nil
}

/********** result mapper **********/

func mapResults(payload map[string]any, provider string) []domain.RawResult {
	items := firstObjectList(payload, listAliases...)
	out := make([]domain.RawResult, 0, len(items))
	for i, it := range items {
		u := firstNonEmptyAlias(it, resultAliases, "url")
		if u == "" {
			continue
		}
		pos, ok := firstIntFlexible(it, resultAliases["position"]...)
		if !ok || pos <= 0 {
			pos = i + 1
		}
		out = append(out, domain.RawResult{
			Title:    firstNonEmptyAlias(it, resultAliases, "title"),
			URL:      u,
			Snippet:  firstNonEmptyAlias(it, resultAliases, "snippet"),
			Position: pos,
			Provider: provider,
		})
	}
	return out
}
