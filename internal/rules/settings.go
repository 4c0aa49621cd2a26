package rules

import "strings"

type Settings struct {
	SeverityThreshold string
	Disabled          map[string]bool

	// DisallowedTyping lists names that must not be imported from typing.
	DisallowedTyping []string
	// MaxCommentRatio bounds full-line comments per code line.
	MaxCommentRatio float64
	// MinCodeLines is the file size below which comment density is not checked.
	MinCodeLines int
}

var defaultSettings = Settings{
	SeverityThreshold: "LOW",
	Disabled:          map[string]bool{},
	DisallowedTyping:  []string{"Dict", "List", "Set", "Union", "Optional"},
	MaxCommentRatio:   0.35,
	MinCodeLines:      20,
}

var rsettings = defaultSettings

func SetSettings(s Settings) {
	// fill defaults
	if s.SeverityThreshold == "" {
		s.SeverityThreshold = defaultSettings.SeverityThreshold
	}
	s.SeverityThreshold = strings.ToUpper(strings.TrimSpace(s.SeverityThreshold))
	disabled := map[string]bool{}
	for id, off := range s.Disabled {
		if off {
			disabled[normID(id)] = true
		}
	}
	s.Disabled = disabled
	if len(s.DisallowedTyping) == 0 {
		s.DisallowedTyping = defaultSettings.DisallowedTyping
	}
	if s.MaxCommentRatio <= 0 {
		s.MaxCommentRatio = defaultSettings.MaxCommentRatio
	}
	if s.MinCodeLines <= 0 {
		s.MinCodeLines = defaultSettings.MinCodeLines
	}
	rsettings = s
}

// CurrentSettings returns the settings in effect.
func CurrentSettings() Settings { return rsettings }

func severityRank(sev string) int {
	switch strings.ToUpper(strings.TrimSpace(sev)) {
	case "HIGH":
		return 3
	case "MEDIUM":
		return 2
	default:
		return 1 // LOW or unknown → LOW
	}
}

// SeverityAtLeast reports whether sev ranks at or above min.
func SeverityAtLeast(sev, min string) bool {
	return severityRank(sev) >= severityRank(min)
}

func severityOK(sev string) bool {
	return SeverityAtLeast(sev, rsettings.SeverityThreshold)
}

func normID(id string) string { return strings.ToLower(strings.TrimSpace(id)) }
