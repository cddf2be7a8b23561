package intent

import (
	"strings"
	"unicode/utf8"
)

// Fallback is the always-available help text used when neither a rule nor
// inference produced an answer.
const Fallback = `I can help you navigate the Campus Network app!

Popular features:
• Check crowd → Campus → Live Crowd
• Order food → Campus → Order Food
• View materials → Classroom → Materials
• Check attendance → Classroom → Attendance
• Send feedback → Campus → Send Feedback
• View calendar → Calendar button
• Check books → Personal Info → Library Details

Ask me things like:
"How to check library crowd?"
"Where are my class notes?"
"How to order food?"
`

const (
	// DefaultMaxGuideChars bounds the guide portion of a prompt.
	DefaultMaxGuideChars = 2000
	// MaxQueryChars bounds the query portion of a prompt.
	MaxQueryChars = 500
)

const promptHeader = `You help users navigate the Campus Network app. Answer in 3-4 short steps.

Available features:
- Classroom (attendance, materials, chats, timetable)
- Campus (food, notices, feedback, crowd check)
- Announcements, Calendar, Personal Info
`

// BuildPrompt combines the instruction template, the features guide and the
// raw query. The guide is cut to maxGuide characters (DefaultMaxGuideChars
// when maxGuide <= 0) and the query to MaxQueryChars.
func BuildPrompt(guide, query string, maxGuide int) string {
	if maxGuide <= 0 {
		maxGuide = DefaultMaxGuideChars
	}
	var b strings.Builder
	b.WriteString(promptHeader)
	if g := strings.TrimSpace(guide); g != "" {
		b.WriteString("\nApp guide:\n")
		b.WriteString(Clip(g, maxGuide))
		b.WriteString("\n")
	}
	b.WriteString("\nQuestion: ")
	b.WriteString(Clip(strings.TrimSpace(query), MaxQueryChars))
	b.WriteString("\n\nSteps:")
	return b.String()
}

// Clip returns s cut to at most n characters.
func Clip(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
