package documents

import (
	"github.com/go-chi/chi/v5"
)

// MountRoutes attaches the document API under the given router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/{docType}", func(r chi.Router) {
		r.Get("/", h.List)
		r.Post("/", h.Create)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.Open)
			r.Put("/", h.Update)
			r.Post("/status", h.ChangeStatus)
			r.Post("/lock", h.SetLocked)
			r.Post("/archive", h.Archive)
			r.Post("/send", h.Send)
			r.Post("/download", h.Download)

			r.Put("/draft", h.SaveDraft)
			r.Post("/draft/flush", h.FlushDraft)
			r.Delete("/draft", h.DiscardDraft)
		})
	})
}
