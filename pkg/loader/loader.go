// Package loader reads point datasets from CSV.
//
// Each line is "x,y" or "x,y,zone". Points get sequential IDs in file order.
package loader

import (
	"encoding/csv"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"neurogeo/pkg/common"
)

type Point = common.Point[float64]

// Dataset is a loaded file. Zones counts points per zone column value and
// stays empty when the file has no zone column.
type Dataset struct {
	Points []Point
	Zones  map[int]int
}

func LoadFile(path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open dataset")
	}
	defer f.Close()
	return Load(f)
}

func Load(r io.Reader) (*Dataset, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.Comment = '#'
	cr.TrimLeadingSpace = true

	ds := &Dataset{Zones: make(map[int]int)}
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "read dataset")
		}
		line, _ := cr.FieldPos(0)

		if len(rec) < 2 || len(rec) > 3 {
			return nil, errors.Errorf("line %d: want x,y[,zone], got %d fields", line, len(rec))
		}
		x, err := parseCoord(rec[0])
		if err != nil {
			return nil, errors.Wrapf(err, "line %d: x", line)
		}
		y, err := parseCoord(rec[1])
		if err != nil {
			return nil, errors.Wrapf(err, "line %d: y", line)
		}
		if len(rec) == 3 {
			zone, err := strconv.Atoi(strings.TrimSpace(rec[2]))
			if err != nil {
				return nil, errors.Wrapf(err, "line %d: zone", line)
			}
			ds.Zones[zone]++
		}

		ds.Points = append(ds.Points, common.NewPoint(len(ds.Points), x, y))
	}
	return ds, nil
}

func parseCoord(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) {
		return 0, errors.New("NaN coordinate")
	}
	return v, nil
}
