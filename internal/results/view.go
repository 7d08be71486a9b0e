package results

import (
	"architect/internal/advisor"
	"architect/internal/domain/quiz"
)

// Greeting opens every chat transcript.
const Greeting = "Hi! I'm your **Richfield AI Advisor**. Ask me anything about your modules, career paths, or industry certifications!"

// Chat roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Slot names a result area that is requested independently.
type Slot int

const (
	SlotRoadmap Slot = iota
	SlotPivot
	SlotPostgrad
	SlotChat
	slotCount
)

func (s Slot) String() string {
	switch s {
	case SlotRoadmap:
		return "roadmap"
	case SlotPivot:
		return "pivot"
	case SlotPostgrad:
		return "postgrad"
	case SlotChat:
		return "chat"
	default:
		return "unknown"
	}
}

// Identity is who the results page is rendered for. A zero Identity is an anonymous device.
type Identity struct {
	SessionID string
	Email     string
}

func (i Identity) authenticated() bool {
	return i.Email != ""
}

// ChatTurn is one transcript entry.
type ChatTurn struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// Loading lists the slots with a request in flight.
type Loading struct {
	Roadmap  bool `json:"roadmap"`
	Pivot    bool `json:"pivot"`
	Postgrad bool `json:"postgrad"`
	Chat     bool `json:"chat"`
}

// View is the results page as rendered for one device.
type View struct {
	FirstName     string                  `json:"first_name,omitempty"`
	Email         string                  `json:"email,omitempty"`
	Program       string                  `json:"program"`
	LeadID        string                  `json:"lead_id,omitempty"`
	Authenticated bool                    `json:"authenticated"`
	Vector        quiz.Vector             `json:"vector"`
	FocusArea     string                  `json:"focus_area,omitempty"`
	Majors        []string                `json:"majors,omitempty"`
	Roadmap       *advisor.Roadmap        `json:"roadmap,omitempty"`
	Pivot         *advisor.PivotResult    `json:"pivot,omitempty"`
	Postgrad      *advisor.PostgradResult `json:"postgrad,omitempty"`
	Chat          []ChatTurn              `json:"chat"`
	Loading       Loading                 `json:"loading"`
}

func (v View) clone() View {
	out := v
	out.Vector = v.Vector.Clone()
	out.Majors = append([]string(nil), v.Majors...)
	out.Chat = append([]ChatTurn(nil), v.Chat...)
	if v.Roadmap != nil {
		roadmap := *v.Roadmap
		out.Roadmap = &roadmap
	}
	if v.Pivot != nil {
		pivot := *v.Pivot
		out.Pivot = &pivot
	}
	if v.Postgrad != nil {
		postgrad := *v.Postgrad
		out.Postgrad = &postgrad
	}
	return out
}

func (v *View) setLoading(slot Slot, on bool) {
	switch slot {
	case SlotRoadmap:
		v.Loading.Roadmap = on
	case SlotPivot:
		v.Loading.Pivot = on
	case SlotPostgrad:
		v.Loading.Postgrad = on
	case SlotChat:
		v.Loading.Chat = on
	}
}
