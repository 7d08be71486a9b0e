package server

import (
	"fmt"
	"strings"

	"architect/internal/advisor"
)

func formatScores(s []float64) string {
	parts := make([]string, len(s))
	for i, v := range s {
		parts[i] = fmt.Sprintf("%g", v)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func focusLine(major string) string {
	if strings.TrimSpace(major) == "" {
		return ""
	}
	return fmt.Sprintf("The student has chosen to focus on the '%s' major. Build the roadmap around it.\n", major)
}

func matchPrompt(program, major string, scores []float64) string {
	return fmt.Sprintf(`You are an expert academic advisor for Richfield college in South Africa. Year: 2026.
Student Program Chosen: '%[1]s'.
Psych Vector (Tech, Biz, People, Creative, Hands-on): %[2]s.
%[3]s
Task 1: Determine the best career match based on 2026 SA market data. The career MUST align with '%[1]s'.

Task 2: Generate an academic roadmap based on the Richfield 2026 Prospectus.
CRITICAL RULE:
- BSc IT requires a Year 2 major (Programming, Emerging Tech, IT Management, or Network Engineering) that carries to Year 3.
- BCom requires a Year 2 major (Accounting, Marketing, or Human Resource Management) that carries to Year 3.
Select the major that best fits their Psych Vector.

Return exactly this JSON structure:
{
    "top_role": {"title": "Exact Role", "match_percentage": 96, "description": "2026 SA market context...", "personality_notes": "Why their vector fits..."},
    "roadmap": {
        "year_1": {"semester_1": "List 2 core modules", "semester_2": "List 2 core modules"},
        "year_2": {"semester_1": "List 2 core modules", "semester_2": "List 2 core modules", "mandatory_major": "Name the specific chosen major"},
        "year_3": {"semester_1": "List 2 advanced modules", "semester_2": "List 2 advanced modules", "continued_major": "State the 3rd-year version of the major"}
    },
    "top_5_roles": [{"title": "Role 1", "percentage": 96}, {"title": "Role 2", "percentage": 89}, {"title": "Role 3", "percentage": 85}, {"title": "Role 4", "percentage": 81}, {"title": "Role 5", "percentage": 76}]
}
`, program, formatScores(scores), focusLine(major))
}

func pivotPrompt(program, major, dreamJob string, scores []float64) string {
	return fmt.Sprintf(`A Richfield student in '%s' with psych scores %s wants to become a '%s'. Context: 2026 South Africa.
%sReturn exactly this JSON structure:
{
    "feasibility_score": 75,
    "gap_analysis": "Personality/skills they are missing.",
    "richfield_bridge": "How to use Richfield electives/badges to pivot.",
    "market_reality": "2026 SA stats on this role."
}
`, program, formatScores(scores), dreamJob, focusLine(major))
}

func postgradPrompt(program, major, choice string) string {
	return fmt.Sprintf(`A Richfield grad in '%s' wants to pursue '%s'. Context: 2026 SA Market.
%sReturn exactly this JSON structure:
{
    "career_multiplier": "How this boosts salary/seniority.",
    "focus_areas": "Top 2 advanced research areas.",
    "comparison_note": "Undergrad vs Postgrad comparison."
}
`, program, choice, focusLine(major))
}

func chatPrompt(req chatBody) string {
	return fmt.Sprintf(`You are a friendly, highly knowledgeable Academic and Career Advisor for Richfield College in South Africa. The year is 2026.
The student you are talking to is enrolled in '%s' and has a psychological vector of %s (Tech, Biz, People, Creative, Hands-on).
%s
Student asks: "%s"

Instructions for your response:
1. Base your advice heavily on Richfield's specific ecosystem. If relevant, mention their 2nd-year major choices, the free IBM/AWS/CISCO certifications, the Entrepreneurship Hub, or SAICA pathways.
2. Supplement your answer with external, real-world 2026 job market data to explain concepts.
3. Keep it conversational, encouraging, and concise (2 short paragraphs max). Do not use complex markdown formatting.
`, req.Program, formatScores(req.Scores), focusLine(req.SelectedMajor), req.Message)
}

// Fallback bodies returned with status 200 when generation fails.
var (
	pivotFallback = advisor.PivotResult{
		FeasibilityScore: 50,
		GapAnalysis:      "System busy.",
		RichfieldBridge:  "Use electives.",
		MarketReality:    "Market fluctuates.",
	}
	postgradFallback = advisor.PostgradResult{
		CareerMultiplier: "Increases earnings.",
		FocusAreas:       "Advanced theory.",
		ComparisonNote:   "Postgrads enter at management level.",
	}
	chatFallback = advisor.ChatReply{
		Response: "I'm experiencing a bit of network traffic right now. Could you ask me that again?",
	}
)

// MatchFailedMessage is the error body of a failed match.
const MatchFailedMessage = "Failed to generate roadmap."

const defaultProgram = "Information Technology"
