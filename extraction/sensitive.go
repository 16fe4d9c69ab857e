package extraction

import (
	"regexp"
)

type sensitiveTopic struct {
	topic string
	re    *regexp.Regexp
}

var sensitiveTopics = []sensitiveTopic{
	{"health", regexp.MustCompile(`(?i)\b(?:allerg\w*|diagnos\w*|medication\w*|medicine|prescri\w*|therap\w*|therapist|illness|disease|disorder|depress\w*|anxiety|adhd|autis\w*|surgery|pregnan\w*|symptom\w*|chronic|disabilit\w*|mental health)\b`)},
	{"finance", regexp.MustCompile(`(?i)\b(?:salary|income|debt|loan|mortgage|bank account|credit card|net worth|savings|bankrupt\w*)\b`)},
	{"identity", regexp.MustCompile(`(?i)\b(?:ssn|social security|passport|driver'?s licen[cs]e|password|home address|phone number)\b`)},
	{"legal", regexp.MustCompile(`(?i)\b(?:lawsuit|arrest\w*|convict\w*|criminal record|probation|divorce|custody)\b`)},
	{"beliefs", regexp.MustCompile(`(?i)\b(?:religio\w*|church|mosque|synagogue|political party|vote[sd]? for)\b`)},
	{"intimate", regexp.MustCompile(`(?i)\b(?:sexual\w*|sex life|gender identity|dating life)\b`)},
}

// SensitiveTopic reports the restricted topic a statement falls under, if any.
func SensitiveTopic(statement string) (string, bool) {
	for _, t := range sensitiveTopics {
		if t.re.MatchString(statement) {
			return t.topic, true
		}
	}
	return "", false
}
