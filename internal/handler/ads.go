package handler

import (
	"io"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/wellnesstree/marketplace-api/internal/domain/ads"
)

// TrackImpression handles POST /api/ads/impressions.
func (h *Handler) TrackImpression(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "read body")
		return
	}

	var req ads.TrackImpressionRequest
	d := jx.DecodeBytes(body)
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "ad_id":
			v, err := d.Str()
			req.AdID = v
			return err
		case "placement":
			v, err := d.Str()
			req.Placement = v
			return err
		case "user_id":
			v, err := d.Str()
			req.UserID = v
			return err
		case "tracking_code":
			v, err := d.Str()
			req.TrackingCode = v
			return err
		default:
			return d.Skip()
		}
	}); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request: "+err.Error())
		return
	}

	id, err := h.tracker.TrackImpression(r.Context(), req)
	if err != nil {
		h.writeTrackingError(w, r, err)
		return
	}

	e := &jx.Encoder{}
	e.ObjStart()
	e.FieldStart("success")
	e.Bool(true)
	e.FieldStart("impression_id")
	e.Str(id)
	e.ObjEnd()
	writeJSON(w, http.StatusCreated, e)
}

// TrackClick handles POST /api/ads/clicks.
func (h *Handler) TrackClick(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "read body")
		return
	}

	var req ads.TrackClickRequest
	d := jx.DecodeBytes(body)
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "ad_id":
			v, err := d.Str()
			req.AdID = v
			return err
		case "destination":
			v, err := d.Str()
			req.Destination = v
			return err
		case "user_id":
			v, err := d.Str()
			req.UserID = v
			return err
		case "tracking_code":
			v, err := d.Str()
			req.TrackingCode = v
			return err
		default:
			return d.Skip()
		}
	}); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request: "+err.Error())
		return
	}

	id, err := h.tracker.TrackClick(r.Context(), req)
	if err != nil {
		h.writeTrackingError(w, r, err)
		return
	}

	e := &jx.Encoder{}
	e.ObjStart()
	e.FieldStart("success")
	e.Bool(true)
	e.FieldStart("click_id")
	e.Str(id)
	e.ObjEnd()
	writeJSON(w, http.StatusCreated, e)
}

func (h *Handler) writeTrackingError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ads.ErrMissingAdID), errors.Is(err, ads.ErrMissingDestination):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ads.ErrAdNotFound):
		writeError(w, http.StatusNotFound, "ad not found")
	default:
		writeInternal(w, r, err)
	}
}
