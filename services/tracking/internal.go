package tracking

import (
	"net/http"

	"naano-tracking/pkg/db/pagination"
	"naano-tracking/pkg/errutil"

	"github.com/gin-gonic/gin"
)

type ensureLinkRequest struct {
	DestinationURL string `json:"destination_url"`
}

func (h *Handler) EnsureLink(c *gin.Context) {
	var req ensureLinkRequest
	if err := bindBody(c, &req, true); err != nil {
		_ = c.Error(err)
		return
	}

	tl, err := h.links.EnsureTrackedLink(c.Request.Context(), c.Param("id"), req.DestinationURL)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":               tl.ID,
		"collaboration_id": tl.CollaborationID,
		"hash":             tl.Hash,
		"path":             "/t/" + tl.Hash,
		"destination_url":  tl.DestinationURL,
	})
}

func (h *Handler) BillingSweep(c *gin.Context) {
	res, err := h.billing.Sweep(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) BillBrand(c *gin.Context) {
	res, err := h.billing.BillBrand(c.Request.Context(), c.Param("saas_id"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) ListInvoices(c *gin.Context) {
	var page pagination.Pagination
	if err := c.ShouldBindQuery(&page); err != nil {
		_ = c.Error(errutil.BadRequest("invalid pagination", err))
		return
	}

	rows, info, err := h.billing.ListInvoices(c.Request.Context(), c.Param("saas_id"), page)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": rows, "page_info": info})
}
