package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"chatdb/pkg/convindex"
	"chatdb/pkg/identity"
	"chatdb/pkg/metrics"
	"chatdb/pkg/models"
	"chatdb/pkg/syncer"
	"chatdb/pkg/thread"
	"chatdb/pkg/utils"
	"chatdb/pkg/validation"
)

// dateLayout renders message dates the way the conversation list shows
// them. The core treats the value as an opaque string.
const dateLayout = "Jan 2, 2006 at 15:04:05 MST"

type messagePayload struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Content string `json:"content"`
	Date    string `json:"date"`
}

type createConversationRequest struct {
	OtherEmail string         `json:"other_email"`
	OtherName  string         `json:"other_name"`
	Message    messagePayload `json:"message"`
}

type sendMessageRequest struct {
	OtherEmail string         `json:"other_email"`
	OtherName  string         `json:"other_name"`
	Message    messagePayload `json:"message"`
}

// session pulls the acting user from the identity headers. Identity is
// provided by an external authentication layer; the stable email is all
// the core needs.
func session(r *http.Request) (syncer.Session, bool) {
	email := r.Header.Get("X-User-Email")
	name := r.Header.Get("X-User-Name")
	if email == "" || name == "" {
		return syncer.Session{}, false
	}
	return syncer.NewSession(email, name), true
}

func (h *Handler) buildRecord(sess syncer.Session, p messagePayload, counterpartName string) models.MessageRecord {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Type == "" {
		p.Type = models.MessageTypeText
	}
	if p.Date == "" {
		p.Date = time.Now().UTC().Format(dateLayout)
	}
	return models.MessageRecord{
		ID:          p.ID,
		Type:        p.Type,
		Content:     p.Content,
		Date:        p.Date,
		SenderEmail: sess.Formatted,
		IsRead:      false,
		Name:        counterpartName,
	}
}

// createConversation handles POST /v1/conversations: provisions the
// shared thread and both participants' index entries from the first
// message.
func (h *Handler) createConversation(w http.ResponseWriter, r *http.Request) {
	sess, ok := session(r)
	if !ok {
		utils.JSONError(w, http.StatusBadRequest, "X-User-Email and X-User-Name headers are required")
		return
	}
	var req createConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.OtherEmail == "" || req.OtherName == "" {
		utils.JSONError(w, http.StatusBadRequest, "other_email and other_name are required")
		return
	}
	rec := h.buildRecord(sess, req.Message, req.OtherName)
	if err := validation.ValidateMessage(rec); err != nil {
		utils.JSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	conversationID, err := h.Sync.CreateConversation(sess, req.OtherEmail, req.OtherName, rec)
	if err != nil {
		var pe *syncer.PartialError
		if errors.As(err, &pe) {
			metrics.PartialFailures.WithLabelValues(pe.Op, string(pe.Failed)).Inc()
		}
		if errors.Is(err, syncer.ErrUserNotFound) {
			utils.JSONError(w, http.StatusNotFound, "requester not registered")
			return
		}
		utils.JSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	metrics.ConversationsCreated.Inc()
	_ = utils.JSONWrite(w, http.StatusCreated, map[string]interface{}{
		"id":      conversationID,
		"message": rec,
	})
}

// listConversations handles GET /v1/conversations?user=<email>. A user
// with no conversations yet gets an empty list, not an error.
func (h *Handler) listConversations(w http.ResponseWriter, r *http.Request) {
	user := r.URL.Query().Get("user")
	if user == "" {
		utils.JSONError(w, http.StatusBadRequest, "user query parameter is required")
		return
	}
	list, err := h.Index.ListForUser(identity.FormatKey(user))
	if err != nil {
		if errors.Is(err, convindex.ErrFetch) {
			_ = utils.JSONWrite(w, http.StatusOK, map[string][]models.ConversationSummary{"conversations": {}})
			return
		}
		utils.JSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if list == nil {
		list = []models.ConversationSummary{}
	}
	_ = utils.JSONWrite(w, http.StatusOK, map[string][]models.ConversationSummary{"conversations": list})
}

// deleteConversation handles DELETE /v1/conversations/{id}: the
// requester leaves; the thread and the counterpart's entry survive.
func (h *Handler) deleteConversation(w http.ResponseWriter, r *http.Request) {
	sess, ok := session(r)
	if !ok {
		utils.JSONError(w, http.StatusBadRequest, "X-User-Email and X-User-Name headers are required")
		return
	}
	id := mux.Vars(r)["id"]
	if err := h.Sync.DeleteConversation(sess, id); err != nil {
		if errors.Is(err, convindex.ErrNotFound) {
			utils.JSONError(w, http.StatusNotFound, "conversation not in index")
			return
		}
		utils.JSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	metrics.ConversationsLeft.Inc()
	_ = utils.JSONWrite(w, http.StatusOK, map[string]string{"deleted": id})
}

// sendMessage handles POST /v1/conversations/{id}/messages.
func (h *Handler) sendMessage(w http.ResponseWriter, r *http.Request) {
	sess, ok := session(r)
	if !ok {
		utils.JSONError(w, http.StatusBadRequest, "X-User-Email and X-User-Name headers are required")
		return
	}
	id := mux.Vars(r)["id"]
	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.OtherEmail == "" || req.OtherName == "" {
		utils.JSONError(w, http.StatusBadRequest, "other_email and other_name are required")
		return
	}
	rec := h.buildRecord(sess, req.Message, req.OtherName)
	if err := validation.ValidateMessage(rec); err != nil {
		utils.JSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.Sync.SendMessage(sess, id, req.OtherEmail, req.OtherName, rec); err != nil {
		var pe *syncer.PartialError
		if errors.As(err, &pe) {
			metrics.PartialFailures.WithLabelValues(pe.Op, string(pe.Failed)).Inc()
		}
		if errors.Is(err, thread.ErrThreadNotFound) {
			utils.JSONError(w, http.StatusNotFound, "thread does not exist")
			return
		}
		utils.JSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	metrics.MessagesSent.Inc()
	_ = utils.JSONWrite(w, http.StatusCreated, rec)
}

// listMessages handles GET /v1/conversations/{id}/messages.
func (h *Handler) listMessages(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	msgs, err := h.Threads.List(id)
	if err != nil {
		if errors.Is(err, thread.ErrFetch) {
			utils.JSONError(w, http.StatusNotFound, "thread does not exist")
			return
		}
		utils.JSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, map[string]interface{}{
		"id":       id,
		"messages": msgs,
	})
}
