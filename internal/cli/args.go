package cli

import (
	"fmt"
	"math/big"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	day  = 24 * time.Hour
	year = 365 * day
)

// parsePeriod accepts "2y", "90d" or any time.ParseDuration string.
func parsePeriod(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	unit := time.Duration(0)
	switch {
	case strings.HasSuffix(raw, "y"):
		unit = year
	case strings.HasSuffix(raw, "d"):
		unit = day
	}
	if unit != 0 {
		n, err := strconv.ParseInt(raw[:len(raw)-1], 10, 64)
		if err != nil || n <= 0 {
			return 0, NewExitError(ExitCommandError, fmt.Sprintf("invalid duration %q", raw))
		}
		return time.Duration(n) * unit, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return 0, NewExitError(ExitCommandError, fmt.Sprintf("invalid duration %q", raw))
	}
	return d, nil
}

func seconds(d time.Duration) string {
	return strconv.FormatInt(int64(d/time.Second), 10)
}

// parseWei checks that raw is a non-negative base-10 integer.
func parseWei(raw string) (string, error) {
	v, ok := new(big.Int).SetString(raw, 10)
	if !ok || v.Sign() < 0 {
		return "", NewExitError(ExitCommandError, fmt.Sprintf("invalid amount %q: want a base-10 integer", raw))
	}
	return v.String(), nil
}

func segment(raw string) string {
	return url.PathEscape(raw)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
