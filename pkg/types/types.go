// Package types defines the shared types used across all mockview packages.
//
// These types form the lingua franca between the interview engine, providers,
// and the durable store. They are intentionally minimal — each package defines
// its own domain types, but cross-cutting data structures live here to avoid
// circular imports.
package types

import "time"

// Role identifies who produced a chat entry. Roles come in two fixed pairs,
// one per conversation pipeline: interviewer/candidate for the live Q&A flow
// and user/ai for the freeform review chat. The pairing is enforced through
// [Pipeline], not through separate entry types, so both pipelines share one
// ledger and one storage schema.
type Role string

const (
	// RoleInterviewer marks a spoken question transcribed during a live turn.
	RoleInterviewer Role = "interviewer"

	// RoleCandidate marks the generated persona answer to an interviewer question.
	RoleCandidate Role = "candidate"

	// RoleUser marks a typed message in the freeform chat pipeline.
	RoleUser Role = "user"

	// RoleAI marks the assistant reply in the freeform chat pipeline.
	RoleAI Role = "ai"
)

// IsValid reports whether r is one of the four recognised roles.
func (r Role) IsValid() bool {
	switch r {
	case RoleInterviewer, RoleCandidate, RoleUser, RoleAI:
		return true
	}
	return false
}

// IsQuestion reports whether r is the asking side of its pipeline.
func (r Role) IsQuestion() bool {
	return r == RoleInterviewer || r == RoleUser
}

// IsAnswer reports whether r is the responding side of its pipeline.
func (r Role) IsAnswer() bool {
	return r == RoleCandidate || r == RoleAI
}

// Pipeline names the conversation flow a role belongs to.
type Pipeline string

const (
	// PipelineLiveQA is the voice turn flow: interviewer question, candidate answer.
	PipelineLiveQA Pipeline = "live-qa"

	// PipelineFreeform is the typed chat flow: user message, ai reply.
	PipelineFreeform Pipeline = "freeform-chat"
)

// Pipeline returns the conversation pipeline r belongs to.
// Unrecognised roles map to PipelineFreeform.
func (r Role) Pipeline() Pipeline {
	if r == RoleInterviewer || r == RoleCandidate {
		return PipelineLiveQA
	}
	return PipelineFreeform
}

// Entry is a single record in a session's chat ledger. Entries are append-only;
// ID and CreatedAt are assigned at append time and are ignored when entries
// from different replicas are reconciled (identity is the (Role, Text) pair).
type Entry struct {
	// ID is the ledger-assigned entry identifier, unique within a session.
	ID string

	// Role identifies the producer of this entry.
	Role Role

	// Text is the entry content. Never empty — the ledger rejects blank text.
	Text string

	// CreatedAt is when the entry was appended.
	CreatedAt time.Time
}

// Message is a single message in an LLM conversation history. Ledger
// roles are mapped onto the provider vocabulary before a completion call;
// see the candidate generator.
type Message struct {
	// Role is one of "system", "user", or "assistant".
	Role string

	// Content is the text content of the message.
	Content string
}
