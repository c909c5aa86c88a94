package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"

	"pharmastock/internal/core/dates"
	"pharmastock/internal/infrastructure/http/v1/dto"
)

// DatesHandler exposes the date normalizer so entry screens can preview how
// a typed date will be stored.
type DatesHandler struct {
	*BaseHandler
	normalizer *dates.Normalizer
}

// NewDatesHandler creates a new dates handler.
func NewDatesHandler(base *BaseHandler, normalizer *dates.Normalizer) *DatesHandler {
	return &DatesHandler{BaseHandler: base, normalizer: normalizer}
}

// Parse handles POST /dates/parse
func (h *DatesHandler) Parse(c *gin.Context) {
	var req dto.ParseDateRequest
	if !h.BindJSON(c, &req) {
		return
	}

	var (
		d   *dates.Date
		err error
	)
	if req.Expiry {
		d, err = h.normalizer.ParseExpiry(req.Value)
	} else {
		d, err = h.normalizer.Parse("value", req.Value)
	}
	if err != nil {
		var verr *dates.ValidationError
		if asValidation(err, &verr) {
			h.Error(c, verr.AppError())
			return
		}
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromDate(req.Value, d))
}

func asValidation(err error, target **dates.ValidationError) bool {
	return errors.As(err, target)
}
