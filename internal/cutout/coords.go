package cutout

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Coordinate is one sky position in decimal degrees.
type Coordinate struct {
	ID  string
	RA  float64
	Dec float64
}

// Query renders the position the way the cutout form expects it in its
// RA field: sexagesimal RA and Dec separated by whitespace.
func (c Coordinate) Query() string {
	return formatSexagesimal(c.RA/15, false) + " " + formatSexagesimal(c.Dec, true)
}

func (c Coordinate) String() string {
	return fmt.Sprintf("%s (%.5f, %+.5f)", c.ID, c.RA, c.Dec)
}

// Columns are separated by a tab or by two or more spaces, so single spaces
// inside a sexagesimal value stay within one column.
var columnSep = regexp.MustCompile(`\t+|\s{2,}`)

// ReadCoordinates parses a VizieR style table: one source per line with
// id, RA and Dec columns. RA is decimal degrees or sexagesimal hours
// ("hh mm ss.s" or "hh:mm:ss.s"); Dec is decimal degrees or sexagesimal
// degrees. Blank lines and lines starting with '#' are skipped.
func ReadCoordinates(r io.Reader) ([]Coordinate, error) {
	var out []Coordinate
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		cols := columnSep.Split(text, -1)
		if len(cols) < 3 {
			return nil, fmt.Errorf("cutout: line %d: want id, RA and Dec columns, got %d", line, len(cols))
		}
		ra, err := parseRA(cols[1])
		if err != nil {
			return nil, fmt.Errorf("cutout: line %d: %w", line, err)
		}
		dec, err := parseDec(cols[2])
		if err != nil {
			return nil, fmt.Errorf("cutout: line %d: %w", line, err)
		}
		out = append(out, Coordinate{ID: cols[0], RA: ra, Dec: dec})
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func parseRA(s string) (float64, error) {
	if parts := sexagesimalParts(s); len(parts) == 3 {
		h, err := parseSexagesimal(parts)
		if err != nil {
			return 0, fmt.Errorf("RA %q: %w", s, err)
		}
		if h < 0 || h >= 24 {
			return 0, fmt.Errorf("RA %q: hours out of range", s)
		}
		return h * 15, nil
	}
	deg, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("RA %q: %w", s, err)
	}
	if deg < 0 || deg >= 360 {
		return 0, fmt.Errorf("RA %q: degrees out of range", s)
	}
	return deg, nil
}

func parseDec(s string) (float64, error) {
	var (
		deg float64
		err error
	)
	if parts := sexagesimalParts(s); len(parts) == 3 {
		deg, err = parseSexagesimal(parts)
	} else {
		deg, err = strconv.ParseFloat(strings.TrimSpace(s), 64)
	}
	if err != nil {
		return 0, fmt.Errorf("Dec %q: %w", s, err)
	}
	if deg < -90 || deg > 90 {
		return 0, fmt.Errorf("Dec %q: out of range", s)
	}
	return deg, nil
}

func sexagesimalParts(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool { return r == ':' || r == ' ' })
}

// parseSexagesimal turns [whole, minutes, seconds] into a decimal value. A
// leading '-' on the whole part applies to the entire value.
func parseSexagesimal(parts []string) (float64, error) {
	neg := strings.HasPrefix(parts[0], "-")
	var v [3]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimLeft(p, "+-"), 64)
		if err != nil {
			return 0, err
		}
		if i > 0 && (f < 0 || f >= 60) {
			return 0, fmt.Errorf("component %q out of range", p)
		}
		v[i] = f
	}
	out := v[0] + v[1]/60 + v[2]/3600
	if neg {
		out = -out
	}
	return out, nil
}

func formatSexagesimal(v float64, signed bool) string {
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	} else if signed {
		sign = "+"
	}
	// Round once at the printed precision so 59.995s carries into minutes.
	total := math.Round(v*3600*100) / 100
	whole := math.Floor(total / 3600)
	rest := total - whole*3600
	minutes := math.Floor(rest / 60)
	seconds := rest - minutes*60
	return fmt.Sprintf("%s%02d %02d %05.2f", sign, int(whole), int(minutes), seconds)
}
