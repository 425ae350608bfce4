package query

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"neurogeo/pkg/common"
)

// Table is the only table the store exposes.
const Table = "points"

type Kind int

const (
	KindScan     Kind = iota // SELECT * FROM points [WHERE id <op> n]
	KindPoint                // WHERE x = a AND y = b
	KindWithin               // WHERE WITHIN(x1, y1, x2, y2)
	KindDistance             // WHERE DISTANCE(x, y) <= r
	KindNearest              // NEAREST(x, y), LIMIT picks k
)

func (k Kind) String() string {
	switch k {
	case KindScan:
		return "scan"
	case KindPoint:
		return "point"
	case KindWithin:
		return "within"
	case KindDistance:
		return "distance"
	case KindNearest:
		return "nearest"
	default:
		return "unknown"
	}
}

type IDFilter struct {
	Op    string
	Value int64
}

// Stmt is a parsed query. Args holds the numeric arguments in the order
// they appear in the query.
type Stmt struct {
	Kind   Kind
	Args   []float64
	Filter *IDFilter
	Limit  int
}

const num = `(-?\d+(?:\.\d+)?(?:[eE][-+]?\d+)?)`

var (
	limitRe    = regexp.MustCompile(`(?i)\s+LIMIT\s+(\d+)$`)
	selectRe   = regexp.MustCompile(`(?i)^SELECT\s+\*\s+FROM\s+([a-zA-Z_][a-zA-Z0-9_]*)\s*(.*)$`)
	pointRe    = regexp.MustCompile(`(?i)^WHERE\s+X\s*=\s*` + num + `\s+AND\s+Y\s*=\s*` + num + `$`)
	withinRe   = regexp.MustCompile(`(?i)^WHERE\s+WITHIN\s*\(\s*` + num + `\s*,\s*` + num + `\s*,\s*` + num + `\s*,\s*` + num + `\s*\)$`)
	distanceRe = regexp.MustCompile(`(?i)^WHERE\s+DISTANCE\s*\(\s*` + num + `\s*,\s*` + num + `\s*\)\s*<=\s*` + num + `$`)
	nearestRe  = regexp.MustCompile(`(?i)^NEAREST\s*\(\s*` + num + `\s*,\s*` + num + `\s*\)$`)
	idRe       = regexp.MustCompile(`(?i)^WHERE\s+id\s*(=|!=|>=|<=|>|<)\s*(-?\d+)$`)
)

// Parse parses the small query language:
// "SELECT * FROM points [WHERE id >= 100] [LIMIT n]"
// "SELECT * FROM points WHERE x = 1 AND y = 2"
// "SELECT * FROM points WHERE WITHIN(0, 0, 10, 10) [LIMIT n]"
// "SELECT * FROM points WHERE DISTANCE(5, 5) <= 2.5 [LIMIT n]"
// "SELECT * FROM points NEAREST(5, 5) [LIMIT k]"
func Parse(s string) (*Stmt, error) {
	orig := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), ";"))
	if orig == "" {
		return nil, errors.New("empty query")
	}

	stmt := &Stmt{Limit: -1}
	if m := limitRe.FindStringSubmatch(orig); m != nil {
		limit, err := strconv.Atoi(m[1])
		if err != nil {
			return nil, errors.New("invalid LIMIT value")
		}
		stmt.Limit = limit
		orig = strings.TrimSpace(orig[:len(orig)-len(m[0])])
	}

	m := selectRe.FindStringSubmatch(orig)
	if m == nil {
		return nil, errors.New("syntax: expected SELECT * FROM points [WHERE ...|NEAREST(x, y)] [LIMIT <n>]")
	}
	if !strings.EqualFold(m[1], Table) {
		return nil, errors.Errorf("unknown table %q", m[1])
	}

	rest := strings.TrimSpace(m[2])
	var args []string
	switch {
	case rest == "":
		stmt.Kind = KindScan
	case pointRe.MatchString(rest):
		stmt.Kind, args = KindPoint, pointRe.FindStringSubmatch(rest)[1:]
	case withinRe.MatchString(rest):
		stmt.Kind, args = KindWithin, withinRe.FindStringSubmatch(rest)[1:]
	case distanceRe.MatchString(rest):
		stmt.Kind, args = KindDistance, distanceRe.FindStringSubmatch(rest)[1:]
	case nearestRe.MatchString(rest):
		stmt.Kind, args = KindNearest, nearestRe.FindStringSubmatch(rest)[1:]
	case idRe.MatchString(rest):
		idm := idRe.FindStringSubmatch(rest)
		v, err := strconv.ParseInt(idm[2], 10, 64)
		if err != nil {
			return nil, errors.New("invalid WHERE value")
		}
		stmt.Kind = KindScan
		stmt.Filter = &IDFilter{Op: idm[1], Value: v}
	default:
		return nil, errors.Errorf("syntax: unsupported clause %q", rest)
	}

	for _, a := range args {
		v, err := strconv.ParseFloat(a, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid number %q", a)
		}
		stmt.Args = append(stmt.Args, v)
	}

	if stmt.Kind == KindDistance && stmt.Args[2] < 0 {
		return nil, errors.New("DISTANCE radius must not be negative")
	}
	return stmt, nil
}

func (stmt *Stmt) MatchID(id int64) bool {
	if stmt.Filter == nil {
		return true
	}
	v := stmt.Filter.Value
	switch stmt.Filter.Op {
	case "=":
		return id == v
	case "!=":
		return id != v
	case ">":
		return id > v
	case "<":
		return id < v
	case ">=":
		return id >= v
	case "<=":
		return id <= v
	default:
		return false
	}
}

// ApplyLimit filters ps by the id clause and cuts them to LIMIT.
func (stmt *Stmt) ApplyLimit(ps []common.Point[float64]) []common.Point[float64] {
	out := ps[:0]
	for _, p := range ps {
		if stmt.Limit >= 0 && len(out) >= stmt.Limit {
			break
		}
		if stmt.MatchID(int64(p.ID)) {
			out = append(out, p)
		}
	}
	return out
}
