// Package intent resolves navigation questions with an ordered list of keyword
// rules and builds the prompt used when no rule matches.
package intent

import (
	"regexp"
	"strings"
)

// Rule pairs a predicate over a normalized query with the canned response it
// produces. Respond receives the same normalized query so a rule can branch.
type Rule struct {
	Name    string
	Match   func(q string) bool
	Respond func(q string) string
}

// Match is the outcome of a successful rule lookup.
type Match struct {
	Rule     string
	Response string
}

// RuleSet is evaluated in order; the first matching rule wins. Overlapping
// keywords across rules rely on this order.
type RuleSet []Rule

// Normalize lowercases and trims a raw query.
func Normalize(query string) string {
	return strings.ToLower(strings.TrimSpace(query))
}

// Match normalizes query and returns the first matching rule's response.
func (rs RuleSet) Match(query string) (Match, bool) {
	q := Normalize(query)
	if q == "" {
		return Match{}, false
	}
	for _, r := range rs {
		if r.Match(q) {
			return Match{Rule: r.Name, Response: r.Respond(q)}, true
		}
	}
	return Match{}, false
}

// Names lists rule names in evaluation order.
func (rs RuleSet) Names() []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.Name
	}
	return out
}

func has(q string, subs ...string) bool {
	for _, s := range subs {
		if strings.Contains(q, s) {
			return true
		}
	}
	return false
}

func fixed(s string) func(string) string { return func(string) string { return s } }

var (
	greetingRe = regexp.MustCompile(`^(hi|hello|hey|hola|greetings?|sup|wassup|yo)$`)
	smallTalk  = regexp.MustCompile(`^(how are you|what's up|whats up)\??$`)
)

const (
	GreetingResponse = "I can only help with Campus Network app navigation. Please ask about app features like checking crowd, ordering food, viewing materials, etc."

	classNotesResponse    = "To access your class notes:\n\n1. Tap 'Classroom' button on main page\n2. Select 'Materials'\n3. Filter by Chemistry, Math, or Previous Papers\n4. Tap any PDF to view"
	crowdResponse         = "To check crowd status:\n\n1. Tap 'Campus' button\n2. Tap 'Live Crowd'\n3. View real-time status for Canteen, Library, Gym, and Labs"
	foodResponse          = "To order food:\n\n1. Tap 'Campus' button\n2. Tap 'Order Food'\n3. Browse menu and add items\n4. Place your order"
	booksResponse         = "To view borrowed books:\n\n1. Tap 'Personal Info' button\n2. Expand 'Library Details'\n3. Tap 'Show More' to see all books"
	materialsResponse     = "To access study materials:\n\n1. Tap 'Classroom' button\n2. Select 'Materials'\n3. Filter by Chemistry, Math, or Previous Papers\n4. Tap to view PDFs"
	attendanceResponse    = "To check attendance:\n\n1. Tap 'Classroom' button\n2. Select 'Attendance'\n3. View calendar (green = present, red = absent)"
	timetableResponse     = "To view timetable:\n\n1. Tap 'Classroom' button\n2. Select 'Timetable'\n3. View weekly schedule"
	chatResponse          = "To access class chats:\n\n1. Tap 'Classroom' button\n2. Select 'Communication'\n3. Choose a class group\n4. View chats with teachers and students"
	feedbackResponse      = "To send feedback:\n\n1. Tap 'Campus' button\n2. Tap 'Send Feedback'\n3. Choose category\n4. Write and submit"
	announcementsResponse = "To view announcements:\n\n1. Tap 'Announcements' button\n2. Browse all campus notices"
	calendarResponse      = "To check calendar:\n\n1. Tap 'Calendar' button\n2. Browse events by month\n3. Tap dates for details"
	paymentResponse       = "To check payments:\n\n1. Tap 'Personal Info' button\n2. Expand 'Payment Details'\n3. View pending and past payments"
	personalResponse      = "To view personal info:\n\n1. Tap 'Personal Info' button\n2. View your details, library, and payment info"
	classroomResponse     = "To access Classroom:\n\n1. Tap 'Classroom' button\n2. Choose:\n   • Attendance\n   • Materials\n   • Communication\n   • Timetable"
)

// facilityCrowd is checked in order; the first facility named wins.
var facilityCrowd = []struct{ key, heading, label string }{
	{"library", "library", "Library"},
	{"canteen", "canteen", "Canteen"},
	{"gym", "gym", "Gym"},
	{"lab", "lab", "Lab"},
}

func crowdFor(q string) string {
	for _, f := range facilityCrowd {
		if strings.Contains(q, f.key) {
			return "To check " + f.heading + " crowd:\n\n1. Tap 'Campus' button\n2. Tap 'Live Crowd'\n3. View " + f.label + " status"
		}
	}
	return crowdResponse
}

// DefaultRules returns the Campus Network navigation rules. Specific intents
// (class notes) precede broad ones (materials).
func DefaultRules() RuleSet {
	return RuleSet{
		{
			Name:    "greeting",
			Match:   func(q string) bool { return greetingRe.MatchString(q) || smallTalk.MatchString(q) },
			Respond: fixed(GreetingResponse),
		},
		{
			Name: "class_notes",
			Match: func(q string) bool {
				return has(q, "class note", "my notes") || (has(q, "where") && has(q, "note", "material"))
			},
			Respond: fixed(classNotesResponse),
		},
		{
			Name:    "crowd",
			Match:   func(q string) bool { return has(q, "crowd", "busy", "crowded") && !has(q, "not") },
			Respond: crowdFor,
		},
		{
			Name: "food",
			Match: func(q string) bool {
				return has(q, "food", "order") || (has(q, "canteen") && !has(q, "crowd")) || has(q, "eat", "hungry")
			},
			Respond: fixed(foodResponse),
		},
		{
			Name:    "books",
			Match:   func(q string) bool { return has(q, "book", "borrowed") && !has(q, "note") && !has(q, "material") },
			Respond: fixed(booksResponse),
		},
		{
			Name:    "materials",
			Match:   func(q string) bool { return has(q, "material", "pdf", "note") || (has(q, "study") && !has(q, "book")) },
			Respond: fixed(materialsResponse),
		},
		{
			Name:    "attendance",
			Match:   func(q string) bool { return has(q, "attendance", "present") || (has(q, "absent") && !has(q, "classroom")) },
			Respond: fixed(attendanceResponse),
		},
		{
			Name:    "timetable",
			Match:   func(q string) bool { return has(q, "timetable", "time table", "schedule") },
			Respond: fixed(timetableResponse),
		},
		{
			Name:    "chat",
			Match:   func(q string) bool { return has(q, "chat", "message") || (has(q, "talk") && has(q, "teacher")) },
			Respond: fixed(chatResponse),
		},
		{
			Name:    "feedback",
			Match:   func(q string) bool { return has(q, "feedback", "complaint") || (has(q, "report") && !has(q, "paper")) },
			Respond: fixed(feedbackResponse),
		},
		{
			Name:    "announcements",
			Match:   func(q string) bool { return has(q, "announcement", "notice") },
			Respond: fixed(announcementsResponse),
		},
		{
			Name:    "calendar",
			Match:   func(q string) bool { return has(q, "calendar", "event") || (has(q, "exam") && !has(q, "paper")) },
			Respond: fixed(calendarResponse),
		},
		{
			Name:    "payment",
			Match:   func(q string) bool { return has(q, "payment", "fee", "dues") },
			Respond: fixed(paymentResponse),
		},
		{
			Name:    "personal_info",
			Match:   func(q string) bool { return has(q, "personal", "profile", "my info") },
			Respond: fixed(personalResponse),
		},
		{
			Name:    "classroom",
			Match:   func(q string) bool { return has(q, "classroom") },
			Respond: fixed(classroomResponse),
		},
	}
}
