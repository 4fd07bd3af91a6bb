package balancer

import (
	"bufio"
	"os"
	"strconv"
	"strings"

	"github.com/lintas-routing/balancegraph/pkg/util"
)

// RoutePair is one origin-destination demand plus how many vehicles drive it
// per round. Endpoints are either external node ids or raw coordinates that
// snap to their nearest graph node.
type RoutePair struct {
	SrcID int64
	DstID int64

	ByCoords                       bool
	SrcLat, SrcLon, DstLat, DstLon float64

	Count int
}

// ReadRoutePairs parses a route-pairs file, '#' comments and blank lines
// skipped. An id pair is "src dst [count]"; a coordinate pair is
// "srcLat srcLon dstLat dstLon [count]". Count defaults to 1.
func ReadRoutePairs(path string) ([]RoutePair, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, util.WrapErrorf(err, util.ErrIO, "opening %s", path)
	}
	defer f.Close()

	pairs := make([]RoutePair, 0)
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if len(line) == 0 || line[0] == '#' {
			continue
		}
		fields := strings.Fields(line)
		pair := RoutePair{Count: 1}
		var err error
		switch len(fields) {
		case 2, 3:
			pair.SrcID, err = strconv.ParseInt(fields[0], 10, 64)
			if err != nil {
				return nil, util.WrapErrorf(err, util.ErrParse, "%s:%d: bad source id %q", path, lineNo, fields[0])
			}
			pair.DstID, err = strconv.ParseInt(fields[1], 10, 64)
			if err != nil {
				return nil, util.WrapErrorf(err, util.ErrParse, "%s:%d: bad destination id %q", path, lineNo, fields[1])
			}
			if len(fields) == 3 {
				if pair.Count, err = strconv.Atoi(fields[2]); err != nil || pair.Count < 1 {
					return nil, util.WrapErrorf(err, util.ErrParse, "%s:%d: bad count %q", path, lineNo, fields[2])
				}
			}
		case 4, 5:
			pair.ByCoords = true
			coords := make([]float64, 4)
			for i := 0; i < 4; i++ {
				if coords[i], err = util.StringToFloat64(fields[i]); err != nil {
					return nil, util.WrapErrorf(err, util.ErrParse,
						"%s:%d: bad coordinate %q", path, lineNo, fields[i])
				}
			}
			pair.SrcLat, pair.SrcLon, pair.DstLat, pair.DstLon = coords[0], coords[1], coords[2], coords[3]
			if len(fields) == 5 {
				if pair.Count, err = strconv.Atoi(fields[4]); err != nil || pair.Count < 1 {
					return nil, util.WrapErrorf(err, util.ErrParse, "%s:%d: bad count %q", path, lineNo, fields[4])
				}
			}
		default:
			return nil, util.WrapErrorf(nil, util.ErrParse,
				"%s:%d: route pair needs 2-3 id columns or 4-5 coordinate columns, got %d",
				path, lineNo, len(fields))
		}
		pairs = append(pairs, pair)
	}
	if err := scanner.Err(); err != nil {
		return nil, util.WrapErrorf(err, util.ErrIO, "reading %s", path)
	}
	return pairs, nil
}
