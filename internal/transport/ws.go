package transport

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/ai-innovation-art/quasar/internal/agent"
	"github.com/ai-innovation-art/quasar/pkg/models"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  8192,
	WriteBufferSize: 8192,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// wsFrame is the framed-JSON envelope both directions use.
type wsFrame struct {
	Type string `json:"type"`

	// set_workspace / set_context / chat
	Workspace      string `json:"workspace,omitempty"`
	Query          string `json:"query,omitempty"`
	CurrentFile    string `json:"current_file,omitempty"`
	SelectedCode   string `json:"selected_code,omitempty"`
	TerminalOutput string `json:"terminal_output,omitempty"`
	ErrorMessage   string `json:"error_message,omitempty"`
	SelectedModel  string `json:"selected_model,omitempty"`

	// replies
	Message  string                `json:"message,omitempty"`
	Event    *models.Event         `json:"event,omitempty"`
	Response *models.AgentResponse `json:"response,omitempty"`
	Error    string                `json:"error,omitempty"`
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ctx := r.Context()
	send := func(frame wsFrame) bool {
		return conn.WriteJSON(frame) == nil
	}
	send(wsFrame{Type: "system", Message: "connected"})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var frame wsFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			send(wsFrame{Type: "error", Error: "invalid frame: " + err.Error()})
			continue
		}

		switch frame.Type {
		case "set_workspace":
			// The workspace is fixed at process start; acknowledge the
			// current one so clients can verify what they are talking to.
			send(wsFrame{Type: "status", Message: "workspace: " + s.orchestrator.ContextManager().Workspace()})

		case "set_context":
			s.orchestrator.ContextManager().SetTaskContext(
				frame.CurrentFile, frame.SelectedCode, frame.ErrorMessage, frame.TerminalOutput)
			send(wsFrame{Type: "status", Message: "context updated"})

		case "chat":
			if frame.Query == "" {
				send(wsFrame{Type: "error", Error: "query is required"})
				continue
			}
			resp := s.orchestrator.ProcessStream(ctx, toWSAgentRequest(frame), func(e models.Event) {
				event := e
				send(wsFrame{Type: "status", Event: &event})
			})
			send(wsFrame{Type: "response", Response: resp})

		default:
			send(wsFrame{Type: "error", Error: "unknown frame type: " + frame.Type})
		}
	}
}

func toWSAgentRequest(frame wsFrame) agent.Request {
	return agent.Request{
		Query:          frame.Query,
		CurrentFile:    frame.CurrentFile,
		SelectedCode:   frame.SelectedCode,
		TerminalOutput: frame.TerminalOutput,
		ErrorMessage:   frame.ErrorMessage,
		SelectedModel:  frame.SelectedModel,
	}
}
