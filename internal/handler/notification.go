package handler

import (
	"net/http"

	"github.com/pavelanni/coursehub/internal/model"
)

func (h *Handler) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	user := model.UserFromContext(r.Context())
	ns, err := h.store.ListNotifications(user.ID, r.URL.Query().Get("unread") == "true")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if ns == nil {
		ns = []model.Notification{}
	}
	writeJSON(w, http.StatusOK, ns)
}

func (h *Handler) handleMarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "notificationID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.store.MarkNotificationRead(id, model.UserFromContext(r.Context()).ID); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
