package httpapi

import (
	"errors"
	"net/http"
	"vitalmesh/internal/service"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

type ChatHandler struct {
	chat   *service.ChatService
	logger *zap.Logger
}

func NewChatHandler(chat *service.ChatService, logger *zap.Logger) *ChatHandler {
	return &ChatHandler{chat: chat, logger: logger}
}

func (h *ChatHandler) ListConversations(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, Ok(h.chat.ListConversations()))
}

func (h *ChatHandler) GetConversation(w http.ResponseWriter, r *http.Request) {
	conv, err := h.chat.GetConversation(mux.Vars(r)["id"])
	if err != nil {
		writeJSON(w, http.StatusNotFound, Fail(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, Ok(conv))
}

func (h *ChatHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Text string `json:"text"`
	}
	if err := readBodyJSON(r, 16<<10, &body); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid body"))
		return
	}

	msg, err := h.chat.SendMessage(mux.Vars(r)["id"], body.Text)
	switch {
	case errors.Is(err, service.ErrConversationNotFound):
		writeJSON(w, http.StatusNotFound, Fail(err.Error()))
	case errors.Is(err, service.ErrEmptyMessage):
		writeJSON(w, http.StatusBadRequest, Fail(err.Error()))
	case err != nil:
		h.logger.Error("Failed to send message", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail("failed to send message"))
	default:
		writeJSON(w, http.StatusCreated, Ok(msg))
	}
}
