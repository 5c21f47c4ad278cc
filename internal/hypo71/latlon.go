package hypo71

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// The alternate catalog writes coordinates in three observed shapes:
// "15N08.13" fused into one token, "15N 08.13" with the minutes split off,
// and "15 N 08.13" fully split. All reduce to degrees + hemisphere + minutes.
var (
	latlonFusedRE  = regexp.MustCompile(`^(\d+)([NnSsEeWw])(\d+(?:\.\d+)?)$`)
	degHemRE       = regexp.MustCompile(`^(\d+)([NnSsEeWw])$`)
	numberTokenRE  = regexp.MustCompile(`^-?\d+(?:\.\d+)?$`)
	hemisphereOnly = regexp.MustCompile(`^[NnSsEeWw]$`)
)

func hemSign(hem string) float64 {
	switch strings.ToUpper(hem) {
	case "S", "W":
		return -1
	default:
		return 1
	}
}

func isNumber(tok string) bool { return numberTokenRE.MatchString(tok) }

// parseLatLonTokens consumes one coordinate starting at tokens[i] and returns
// the signed decimal degrees, the index after the consumed tokens, and the
// name of the shape rule that applied ("" for the fully split canonical form).
func parseLatLonTokens(tokens []string, i int) (float64, int, string, error) {
	if i >= len(tokens) {
		return 0, i, "", fmt.Errorf("no coordinate at token %d", i)
	}
	t0 := tokens[i]

	if m := latlonFusedRE.FindStringSubmatch(t0); m != nil {
		deg, _ := strconv.ParseFloat(m[1], 64)
		mins, _ := strconv.ParseFloat(m[3], 64)
		return hemSign(m[2]) * (deg + mins/60), i + 1, RuleFusedLatLon, nil
	}

	if m := degHemRE.FindStringSubmatch(t0); m != nil {
		if i+1 >= len(tokens) || !isNumber(tokens[i+1]) {
			return 0, i, "", fmt.Errorf("coordinate %q missing minutes", t0)
		}
		deg, _ := strconv.ParseFloat(m[1], 64)
		mins, _ := strconv.ParseFloat(tokens[i+1], 64)
		return hemSign(m[2]) * (deg + mins/60), i + 2, RuleSplitMinutes, nil
	}

	if isNumber(t0) && i+2 < len(tokens) && hemisphereOnly.MatchString(tokens[i+1]) && isNumber(tokens[i+2]) {
		deg, _ := strconv.ParseFloat(t0, 64)
		mins, _ := strconv.ParseFloat(tokens[i+2], 64)
		return hemSign(tokens[i+1]) * (deg + mins/60), i + 3, "", nil
	}

	return 0, i, "", fmt.Errorf("cannot parse coordinate at token %d (%q)", i, t0)
}
