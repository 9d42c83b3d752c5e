package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"propsearch/internal/domain"
)

type warmQuery struct {
	Vertical domain.Vertical
	Query    string
}

// readQueries parses one query per line. A line may carry a vertical as
// "legal|ley de arriendo"; blank lines and lines starting with # are skipped.
func readQueries(r io.Reader) ([]warmQuery, error) {
	var out []warmQuery
	sc := bufio.NewScanner(r)
	for n := 1; sc.Scan(); n++ {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		q := warmQuery{Vertical: domain.VerticalAuto, Query: line}
		if pre, rest, ok := strings.Cut(line, "|"); ok {
			v, valid := domain.ParseVertical(strings.ToLower(strings.TrimSpace(pre)))
			if !valid {
				return nil, fmt.Errorf("line %d: unknown vertical %q", n, pre)
			}
			q = warmQuery{Vertical: v, Query: strings.TrimSpace(rest)}
		}
		if q.Query == "" {
			return nil, fmt.Errorf("line %d: empty query", n)
		}
		out = append(out, q)
	}
	return out, sc.Err()
}
