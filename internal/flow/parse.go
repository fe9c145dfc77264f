package flow

import (
	"strconv"
	"strings"
)

// parseAnswer interprets raw message text as a survey answer. Only the
// first whitespace-separated token counts, which tolerates the decorative
// emoji suffixes on the answer keyboard buttons ("5 🤩"). The token is
// valid only if it is all decimal digits and its value lies in [1,5].
func parseAnswer(text string) (int, bool) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return 0, false
	}
	token := fields[0]
	for _, r := range token {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(token)
	if err != nil || n < 1 || n > 5 {
		return 0, false
	}
	return n, true
}
