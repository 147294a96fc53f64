package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bitafam/terrenos/internal/services"
)

// PostInquiry godoc
// @ID          postInquiry
// @Summary     Contact the seller
// @Description Stores a contact request for a listing and forwards it to the marketplace inbox. A failed delivery is reported with sent=false; the inquiry is still accepted.
// @Tags        Inquiries
// @Accept      json
// @Produce     json
// @Param       id    path  string  true  "Listing ID (UUID)"  format(uuid)
// @Param       body  body  services.InquiryInput  true  "Contact form"
// @Success     201  {object} domain.Inquiry
// @Failure     400  {object} handlers.ErrorResponse "Invalid inquiry"
// @Failure     404  {object} handlers.ErrorResponse "Listing not found"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /listings/{id}/inquiries [post]
func (h *Handlers) PostInquiry(c *gin.Context) {
	var in services.InquiryInput
	if err := c.ShouldBindJSON(&in); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, msgInvalidBody)
		return
	}
	inq, err := h.inquiries.Submit(c.Request.Context(), c.Param("id"), in)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusCreated, inq)
}
