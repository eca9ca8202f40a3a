// Package template renders relative file paths by substituting entity fields
// into a user-supplied path template.
package template

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"mediagrab/pkg/models"
)

// DefaultTimeFormat is used for time placeholders without an explicit format.
const DefaultTimeFormat = "2006-01-02_15-04-05"

// Mode selects the sanitization policy for rendered paths.
type Mode string

const (
	// ModeSafe replaces filesystem-hostile characters with underscores.
	ModeSafe Mode = "safe"
	// ModeStrict rejects paths containing filesystem-hostile characters.
	ModeStrict Mode = "strict"
	// ModeOff renders templates verbatim.
	ModeOff Mode = "off"
)

// ParseMode converts a config string into a Mode.
func ParseMode(s string) Mode {
	switch strings.ToLower(s) {
	case "strict":
		return ModeStrict
	case "off":
		return ModeOff
	default:
		return ModeSafe
	}
}

// Fields carries the entity values available to a template. Zero values
// render as empty strings.
type Fields struct {
	UserID          string
	Username        string
	Nickname        string
	UserDescription string
	UserCreatedAt   time.Time
	UserMediaCount  int

	PostID       string
	PostTime     time.Time
	PostText     string
	PostHashtags []string

	MediaIndex     int
	MediaType      models.MediaType
	MediaExtension string
	MediaBitrate   int
}

// placeholderPattern matches {Name} or {Name:format}.
var placeholderPattern = regexp.MustCompile(`\{([A-Za-z]+)(?::([^{}]+))?\}`)

// hostileChars are characters that break paths on common filesystems. The
// path separator is excluded; templates use it to create directories.
const hostileChars = `<>:"\|?*`

// Render substitutes all recognized placeholders in the template and applies
// the sanitization policy. Unrecognized placeholders are left verbatim so a
// typo shows up in the rendered path instead of silently vanishing.
func Render(tmpl string, f Fields, mode Mode) (string, error) {
	rendered := placeholderPattern.ReplaceAllStringFunc(tmpl, func(match string) string {
		groups := placeholderPattern.FindStringSubmatch(match)
		name, format := groups[1], groups[2]

		value, ok := lookup(name, format, f)
		if !ok {
			return match
		}
		return value
	})

	return sanitize(rendered, mode)
}

func lookup(name, format string, f Fields) (string, bool) {
	switch name {
	case "UserId":
		return f.UserID, true
	case "Username":
		return f.Username, true
	case "Nickname":
		return f.Nickname, true
	case "UserDescription":
		return f.UserDescription, true
	case "UserCreationTime":
		return formatTime(f.UserCreatedAt, format), true
	case "UserMediaCount":
		return formatInt(f.UserMediaCount), true
	case "TweetId":
		return f.PostID, true
	case "TweetTime":
		return formatTime(f.PostTime, format), true
	case "TweetText":
		return f.PostText, true
	case "TweetHashtags":
		return strings.Join(f.PostHashtags, " "), true
	case "MediaIndex":
		return formatInt(f.MediaIndex), true
	case "MediaType":
		return string(f.MediaType), true
	case "MediaExtension":
		return f.MediaExtension, true
	case "MediaBitrate":
		return formatInt(f.MediaBitrate), true
	}
	return "", false
}

func formatTime(t time.Time, format string) string {
	if t.IsZero() {
		return ""
	}
	if format == "" {
		format = DefaultTimeFormat
	}
	return t.Format(format)
}

func formatInt(v int) string {
	if v == 0 {
		return ""
	}
	return strconv.Itoa(v)
}

func sanitize(path string, mode Mode) (string, error) {
	if mode == ModeOff {
		return path, nil
	}

	segments := strings.Split(path, "/")
	for i, segment := range segments {
		if mode == ModeStrict {
			if idx := strings.IndexAny(segment, hostileChars); idx >= 0 {
				return "", fmt.Errorf("path segment %q contains forbidden character %q", segment, segment[idx])
			}
			continue
		}
		segments[i] = replaceHostile(segment)
	}
	return strings.Join(segments, "/"), nil
}

func replaceHostile(segment string) string {
	var b strings.Builder
	b.Grow(len(segment))
	for _, r := range segment {
		if r < 0x20 || strings.ContainsRune(hostileChars, r) {
			b.WriteRune('_')
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
