package generation

import (
	"strings"
)

// SystemPrompt sets the writer persona sent with every review request.
const SystemPrompt = `You are a senior HR consultant with three decades of experience writing performance reviews for respected global companies. You write structured, fair and specific feedback in plain, natural language without buzzwords, cliches or repetitive phrasing.

Appraze serves small and mid-sized companies (20 to 500 employees) whose managers write reviews under time pressure, worry about inconsistent or biased feedback, and struggle to turn short notes into clear, nuanced assessments.

Write a complete, polished performance review using only the manager's inputs. Do not invent facts. Expand brief notes into a full review, keep the feedback balanced and actionable, and make it read as though the manager wrote it personally.`

const reviewInstructions = `Write the review with these sections, adapting to the inputs provided:

## Opening and Context (50-70 words)
Summarize the review period and the employee's overall contribution to their role.

## Strengths and Achievements (100-150 words)
Restate the manager's notes in natural, specific language. Give context for each point without adding details that were not provided. Avoid generic praise.

## Areas for Improvement (80-120 words)
Frame each point as a concrete, behavior-focused action. Keep the language supportive and growth oriented.

## Overall Assessment (20-40 words, only when a rating is provided)
Summarize the rating and keep it consistent with the sections above.

Apply the requested tone consistently. Before answering, check that the review uses only the provided inputs, stays between 250 and 400 words, sounds human-written, and never mentions how it was produced.`

// Employee is the snapshot of the reviewed person embedded in the prompt.
type Employee struct {
	Name       string
	Position   string
	Department string
}

type Params struct {
	Employee           Employee
	ReviewPeriod       string
	ReviewerName       string
	Strengths          string
	Improvements       string
	Rating             string
	Tone               string
	AdditionalComments string
}

var ratingLabels = map[string]string{
	"1": "Unsatisfactory",
	"2": "Needs Improvement",
	"3": "Meets Expectations",
	"4": "Exceeds Expectations",
	"5": "Exceptional",
}

// RatingLabel maps a rating code to its label; unknown codes map to "".
func RatingLabel(code string) string {
	return ratingLabels[code]
}

var toneLabels = map[string]string{
	"professional": "Professional",
	"constructive": "Constructive",
	"encouraging":  "Encouraging",
	"direct":       "Direct",
}

func ToneLabel(code string) string {
	if label, ok := toneLabels[strings.ToLower(strings.TrimSpace(code))]; ok {
		return label
	}
	return code
}

// Bullets turns newline separated notes into markdown list items, dropping blank lines.
func Bullets(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		out = append(out, "- "+line)
	}
	return out
}

func BuildUserPrompt(p Params) string {
	var b strings.Builder
	b.WriteString("Manager inputs for the performance review:\n\n")
	b.WriteString("Employee Name: " + p.Employee.Name + "\n")
	b.WriteString("Role/Job Title: " + p.Employee.Position + "\n")
	b.WriteString("Department: " + p.Employee.Department + "\n")
	b.WriteString("Review Period: " + p.ReviewPeriod + "\n")
	b.WriteString("Manager's Name: " + p.ReviewerName + "\n\n")

	b.WriteString("Strengths & Achievements:\n")
	for _, item := range Bullets(p.Strengths) {
		b.WriteString(item + "\n")
	}
	b.WriteString("\nAreas for Improvement:\n")
	for _, item := range Bullets(p.Improvements) {
		b.WriteString(item + "\n")
	}

	b.WriteString("\nTone Preference: " + ToneLabel(p.Tone) + "\n")
	if label := RatingLabel(p.Rating); label != "" {
		b.WriteString("Overall Performance Rating: " + label + "\n")
	}
	if comments := strings.TrimSpace(p.AdditionalComments); comments != "" {
		b.WriteString("Additional Context:\n" + comments + "\n")
	}

	b.WriteString("\n" + reviewInstructions + "\n\n")
	b.WriteString("Format your response in Markdown.\n")
	return b.String()
}
