// Package tool defines the tool invocation contract: tool references,
// calls, results, and the execution context handed to handlers.
package tool

import "encoding/json"

// Ref identifies a tool an agent may invoke.
type Ref string

const (
	RefKnowledgeSearch    Ref = "tool.knowledge.search"
	RefKnowledgeGetSource Ref = "tool.knowledge.getSource"
	RefWorkflowGetPhase   Ref = "tool.workflow.getPhase"
	RefWorkflowValidate   Ref = "tool.workflow.validateDeliverable"
	RefDocsCreateDraft    Ref = "tool.docs.createDraft"
	RefDocsUpdateDraft    Ref = "tool.docs.updateDraft"
	RefDecisionsCreate    Ref = "tool.decisions.createDraft"
	RefDecisionsFinalize  Ref = "tool.decisions.finalizeFromDraft"
	RefLogsAppend         Ref = "tool.logs.append"
	RefReviewsRequest     Ref = "tool.reviews.request"
	RefReviewsStatus      Ref = "tool.reviews.status"
)

// Refs returns the closed set of known tool references.
func Refs() []Ref {
	return []Ref{
		RefKnowledgeSearch, RefKnowledgeGetSource,
		RefWorkflowGetPhase, RefWorkflowValidate,
		RefDocsCreateDraft, RefDocsUpdateDraft,
		RefDecisionsCreate, RefDecisionsFinalize,
		RefLogsAppend,
		RefReviewsRequest, RefReviewsStatus,
	}
}

// IsValid reports whether r is a known tool reference.
func (r Ref) IsValid() bool {
	for _, known := range Refs() {
		if r == known {
			return true
		}
	}
	return false
}

// Context carries the caller identity and scope for one tool invocation.
// AgentID is stamped by the orchestrator once the profile is resolved.
// DraftOnly is an advisory label set when the agent's review policy allows
// execution only under reduced capability; handlers decide what to restrict.
type Context struct {
	UserID    string `json:"user_id"`
	AgentID   string `json:"agent_id,omitempty"`
	ProjectID string `json:"project_id,omitempty"`
	ClientID  string `json:"client_id,omitempty"`
	DraftOnly bool   `json:"draft_only,omitempty"`
}

// Call is a single requested tool invocation. Input is opaque to the
// dispatcher; handlers validate it themselves.
type Call struct {
	Tool  Ref             `json:"tool"`
	Input json.RawMessage `json:"input,omitempty"`
}

// Result is the uniform outcome contract for every tool invocation.
type Result struct {
	OK     bool            `json:"ok"`
	Output json.RawMessage `json:"output,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// CallResult pairs a call's tool with its result, for per-call reporting
// in orchestrator summaries.
type CallResult struct {
	Tool   Ref    `json:"tool"`
	Result Result `json:"result"`
}
