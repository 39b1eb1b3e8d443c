package orchestratornode

import (
	"fmt"

	contractx "github.com/tanpawarit/frontdesk-agent/agent/contract"
)

const (
	NodeHandleSchedule = "handle_schedule"
	NodeHandleQuestion = "handle_question"
	NodeHandleCancel   = "handle_cancel"
	NodeHandleModify   = "handle_modify"
	NodeHandleFallback = "handle_fallback"
)

// RouteEnds lists every handler node RouteIntent may return.
var RouteEnds = map[string]bool{
	NodeHandleSchedule: true,
	NodeHandleQuestion: true,
	NodeHandleCancel:   true,
	NodeHandleModify:   true,
	NodeHandleFallback: true,
}

func RouteIntent(in *GraphState) (string, error) {
	if in == nil {
		return "", fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}
	switch in.Intent {
	case contractx.IntentSchedule:
		return NodeHandleSchedule, nil
	case contractx.IntentQuestion:
		return NodeHandleQuestion, nil
	case contractx.IntentCancel:
		return NodeHandleCancel, nil
	case contractx.IntentModify:
		return NodeHandleModify, nil
	default:
		return NodeHandleFallback, nil
	}
}
