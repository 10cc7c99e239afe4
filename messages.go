package deathchest

import (
	"strconv"
	"strings"
)

// colourCodes are the characters that may follow '&' in a formatting code.
const colourCodes = "0123456789abcdefklmnorABCDEFKLMNOR"

// Colorize translates '&' formatting codes such as "&c" into the '§' codes
// understood by the client. An '&' that is not followed by a valid code is
// kept as is.
func Colorize(s string) string {
	if !strings.Contains(s, "&") {
		return s
	}
	var b strings.Builder
	b.Grow(len(s) + 8)
	for i := 0; i < len(s); i++ {
		if s[i] == '&' && i+1 < len(s) && strings.IndexByte(colourCodes, s[i+1]) >= 0 {
			b.WriteString("§")
			b.WriteByte(s[i+1] | 0x20) // lower case
			i++
			continue
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

// prefixed returns msg with the configured prefix, colourized.
func prefixed(cfg Config, msg string) string {
	return Colorize(cfg.Prefix + msg)
}

// createdMessage renders the announcement sent when a death chest is created.
func createdMessage(cfg Config, player string, seconds int) string {
	r := strings.NewReplacer("%player%", player, "%time%", strconv.Itoa(seconds))
	return prefixed(cfg, r.Replace(cfg.CreatedMessage))
}

// breakMessage renders the message sent when a death chest breaks.
func breakMessage(cfg Config) string {
	return prefixed(cfg, cfg.BreakMessage)
}

// hologramLines renders the hologram lines for a chest of player with seconds
// left. The countdown line is omitted for chests that never break.
func hologramLines(cfg Config, player string, seconds int) []string {
	lines := []string{Colorize(strings.ReplaceAll(cfg.Hologram.FirstLine, "%player%", player))}
	if seconds > 0 {
		lines = append(lines, countdownLine(cfg, seconds))
	}
	return lines
}

// countdownLine renders the second hologram line.
func countdownLine(cfg Config, seconds int) string {
	return Colorize(strings.ReplaceAll(cfg.Hologram.SecondLine, "%seconds%", strconv.Itoa(seconds)))
}
