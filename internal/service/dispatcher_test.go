package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/attestia/gatekeep/internal/domain"
	"github.com/attestia/gatekeep/internal/domain/agent"
	"github.com/attestia/gatekeep/internal/domain/tool"
	"github.com/attestia/gatekeep/internal/port/toolhandler"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func staticHandler(result tool.Result) toolhandler.Handler {
	return toolhandler.HandlerFunc(func(context.Context, tool.Context, json.RawMessage) (tool.Result, error) {
		return result, nil
	})
}

func dispatcherProfile() *agent.Profile {
	return &agent.Profile{
		ID:          "dispatch-agent",
		Name:        "Dispatch Agent",
		Role:        agent.RoleJunior,
		Permissions: []agent.Permission{agent.PermLogWrite, agent.PermKnowledgeSearch},
		Tools:       []tool.Ref{tool.RefLogsAppend, tool.RefKnowledgeSearch, tool.RefWorkflowGetPhase},
		ReviewPolicy: agent.ReviewPolicy{
			Mode: agent.ReviewModeNone,
		},
	}
}

func TestDispatcher_AllowlistRejection(t *testing.T) {
	reg := toolhandler.NewRegistry()
	d := NewDispatcher(reg, discardLogger(), nil)

	res, err := d.Execute(context.Background(), dispatcherProfile(), tool.Context{UserID: "u"}, tool.Call{Tool: tool.RefDecisionsCreate})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.OK || res.Error != "Tool not allowed for agent: tool.decisions.createDraft" {
		t.Errorf("result = %+v", res)
	}
}

func TestDispatcher_PermissionRecheckIsFatal(t *testing.T) {
	// The profile lists the tool but lacks its required permission, as if
	// the caller validated a different call in the same batch.
	p := dispatcherProfile()
	p.Permissions = []agent.Permission{agent.PermLogWrite}

	reg := toolhandler.NewRegistry()
	if err := reg.Register(tool.RefKnowledgeSearch, staticHandler(tool.Result{OK: true})); err != nil {
		t.Fatalf("Register: %v", err)
	}
	d := NewDispatcher(reg, discardLogger(), nil)

	_, err := d.Execute(context.Background(), p, tool.Context{UserID: "u"}, tool.Call{Tool: tool.RefKnowledgeSearch})
	if !errors.Is(err, domain.ErrPermissionDenied) {
		t.Errorf("err = %v, want ErrPermissionDenied", err)
	}
}

func TestDispatcher_MissingHandler(t *testing.T) {
	reg := toolhandler.NewRegistry()
	d := NewDispatcher(reg, discardLogger(), nil)

	res, err := d.Execute(context.Background(), dispatcherProfile(), tool.Context{UserID: "u"}, tool.Call{Tool: tool.RefLogsAppend})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.OK || res.Error != "Tool handler not implemented: tool.logs.append" {
		t.Errorf("result = %+v", res)
	}
}

func TestDispatcher_HandlerResultPropagated(t *testing.T) {
	reg := toolhandler.NewRegistry()
	want := tool.Result{OK: false, Error: "query is required"}
	if err := reg.Register(tool.RefKnowledgeSearch, staticHandler(want)); err != nil {
		t.Fatalf("Register: %v", err)
	}
	d := NewDispatcher(reg, discardLogger(), nil)

	res, err := d.Execute(context.Background(), dispatcherProfile(), tool.Context{UserID: "u"}, tool.Call{Tool: tool.RefKnowledgeSearch})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.OK != want.OK || res.Error != want.Error {
		t.Errorf("result = %+v, want %+v", res, want)
	}
}

func TestDispatcher_PanicNormalized(t *testing.T) {
	reg := toolhandler.NewRegistry()
	panicking := toolhandler.HandlerFunc(func(context.Context, tool.Context, json.RawMessage) (tool.Result, error) {
		panic("handler exploded")
	})
	if err := reg.Register(tool.RefWorkflowGetPhase, panicking); err != nil {
		t.Fatalf("Register: %v", err)
	}

	p := dispatcherProfile()
	p.Permissions = append(p.Permissions, agent.PermProjectRead)
	d := NewDispatcher(reg, discardLogger(), nil)

	res, err := d.Execute(context.Background(), p, tool.Context{UserID: "u"}, tool.Call{Tool: tool.RefWorkflowGetPhase})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.OK {
		t.Fatal("panic produced an OK result")
	}
	if !strings.Contains(res.Error, "handler exploded") {
		t.Errorf("Error = %q, want panic message", res.Error)
	}
}
