package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/opennpo/nonprofit_books_app/internal/core/services"
	"github.com/opennpo/nonprofit_books_app/internal/dto"
	"github.com/opennpo/nonprofit_books_app/internal/middleware"
)

// contactHandler handles HTTP requests related to contacts.
type contactHandler struct {
	contactService *services.ContactService
}

func newContactHandler(cs *services.ContactService) *contactHandler {
	return &contactHandler{contactService: cs}
}

// registerContactRoutes registers routes related to contacts.
func registerContactRoutes(rg *gin.RouterGroup, contactService *services.ContactService) {
	h := newContactHandler(contactService)

	contacts := rg.Group("/contacts")
	{
		contacts.POST("", h.createContact)
		contacts.GET("/changes", h.listContactChanges)
		contacts.GET("/:contactID", h.getContact)
		contacts.PUT("/:contactID", h.updateContact)
		contacts.DELETE("/:contactID", h.deleteContact)
		contacts.GET("/:contactID/as-of", h.getContactAsOf)
		contacts.GET("/:contactID/history", h.getContactHistory)
	}
	rg.GET("/organizations/:orgID/contacts", h.listContacts)
}

// createContact handles POST /contacts.
func (h *contactHandler) createContact(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	var req dto.CreateContactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Failed to bind JSON for CreateContact", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format: " + err.Error()})
		return
	}

	actor, ok := requireActor(c)
	if !ok {
		return
	}

	contact, err := h.contactService.CreateContact(c.Request.Context(), req, actor)
	if err != nil {
		respondServiceError(c, logger, err, "Failed to create contact")
		return
	}

	logger.Info("Contact created", slog.String("contact_id", contact.EntityID))
	c.JSON(http.StatusCreated, dto.ToContactResponse(contact))
}

// getContact handles GET /contacts/:contactID.
func (h *contactHandler) getContact(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())

	contact, err := h.contactService.GetContactByID(c.Request.Context(), c.Param("contactID"))
	if err != nil {
		respondServiceError(c, logger, err, "Failed to retrieve contact")
		return
	}
	c.JSON(http.StatusOK, dto.ToContactResponse(contact))
}

// listContacts handles GET /organizations/:orgID/contacts.
func (h *contactHandler) listContacts(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())

	contacts, err := h.contactService.ListContactsByOrganization(c.Request.Context(), c.Param("orgID"))
	if err != nil {
		respondServiceError(c, logger, err, "Failed to list contacts")
		return
	}
	c.JSON(http.StatusOK, gin.H{"contacts": dto.ToListContactResponse(contacts)})
}

// updateContact handles PUT /contacts/:contactID.
func (h *contactHandler) updateContact(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	contactID := c.Param("contactID")

	var req dto.UpdateContactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Failed to bind JSON for UpdateContact", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format: " + err.Error()})
		return
	}

	actor, ok := requireActor(c)
	if !ok {
		return
	}

	contact, err := h.contactService.UpdateContact(c.Request.Context(), contactID, req, actor)
	if err != nil {
		respondServiceError(c, logger, err, "Failed to update contact")
		return
	}

	logger.Info("Contact updated", slog.String("contact_id", contactID))
	c.JSON(http.StatusOK, dto.ToContactResponse(contact))
}

// deleteContact handles DELETE /contacts/:contactID.
func (h *contactHandler) deleteContact(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	contactID := c.Param("contactID")

	actor, ok := requireActor(c)
	if !ok {
		return
	}

	if err := h.contactService.DeleteContact(c.Request.Context(), contactID, actor); err != nil {
		respondServiceError(c, logger, err, "Failed to delete contact")
		return
	}

	logger.Info("Contact deleted", slog.String("contact_id", contactID))
	c.Status(http.StatusNoContent)
}

// getContactAsOf handles GET /contacts/:contactID/as-of?at=.
func (h *contactHandler) getContactAsOf(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())

	var params dto.AsOfParams
	if err := c.ShouldBindQuery(&params); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid query parameters: " + err.Error()})
		return
	}

	contact, err := h.contactService.GetContactAsOf(c.Request.Context(), c.Param("contactID"), params.At)
	if err != nil {
		respondServiceError(c, logger, err, "Failed to retrieve contact as of instant")
		return
	}
	c.JSON(http.StatusOK, dto.ToContactResponse(contact))
}

// getContactHistory handles GET /contacts/:contactID/history.
func (h *contactHandler) getContactHistory(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())

	versions, err := h.contactService.GetContactHistory(c.Request.Context(), c.Param("contactID"))
	if err != nil {
		respondServiceError(c, logger, err, "Failed to retrieve contact history")
		return
	}
	c.JSON(http.StatusOK, gin.H{"versions": dto.ToListContactResponse(versions)})
}

// listContactChanges handles GET /contacts/changes?from=&to=, the audit view
// of every contact version recorded in the window.
func (h *contactHandler) listContactChanges(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())

	var params dto.ChangeRangeParams
	if err := c.ShouldBindQuery(&params); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid query parameters: " + err.Error()})
		return
	}

	versions, err := h.contactService.GetContactChanges(c.Request.Context(), params.From, params.To)
	if err != nil {
		respondServiceError(c, logger, err, "Failed to list contact changes")
		return
	}
	c.JSON(http.StatusOK, gin.H{"versions": dto.ToListContactResponse(versions)})
}
