package handlers

import (
	"net/http"
	"strconv"

	"github.com/gov-dx-sandbox/attribute-forms/v1/actions"
	"github.com/gov-dx-sandbox/attribute-forms/v1/attributes"
	"github.com/gov-dx-sandbox/attribute-forms/v1/models"
	"github.com/gov-dx-sandbox/attribute-forms/v1/services"
	"github.com/gov-dx-sandbox/attribute-forms/v1/utils"
)

// AdminHandler serves the dashboard API: field keys, form types, form
// instances and the type catalogs
type AdminHandler struct {
	keys       *services.FieldKeyService
	formTypes  *services.FormTypeService
	instances  *services.FormInstanceService
	actions    *actions.Registry
	attributes *attributes.Registry
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(
	keys *services.FieldKeyService,
	formTypes *services.FormTypeService,
	instances *services.FormInstanceService,
	actionTypes *actions.Registry,
	attributeTypes *attributes.Registry,
) *AdminHandler {
	return &AdminHandler{
		keys:       keys,
		formTypes:  formTypes,
		instances:  instances,
		actions:    actionTypes,
		attributes: attributeTypes,
	}
}

// ListFieldKeys handles GET /api/v1/field-keys?columnHeader=&searchable=&searchableIndexed=
func (h *AdminHandler) ListFieldKeys(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	flag := func(name string) bool {
		v, _ := strconv.ParseBool(q.Get(name))
		return v
	}
	keys, err := h.keys.ListFieldKeys(r.Context(), models.FieldKeyFilter{
		ColumnHeader:      flag("columnHeader"),
		Searchable:        flag("searchable"),
		SearchableIndexed: flag("searchableIndexed"),
	})
	if err != nil {
		respondWithServiceError(w, r, err, "list field keys")
		return
	}
	if keys == nil {
		keys = []models.FieldKey{}
	}
	utils.RespondWithJSON(w, http.StatusOK, keys)
}

// CreateFieldKey handles POST /api/v1/field-keys
func (h *AdminHandler) CreateFieldKey(w http.ResponseWriter, r *http.Request) {
	var req models.CreateFieldKeyRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	key, err := h.keys.CreateFieldKey(r.Context(), &req)
	if err != nil {
		respondWithServiceError(w, r, err, "create field key")
		return
	}
	utils.RespondWithJSON(w, http.StatusCreated, key)
}

// GetFieldKey handles GET /api/v1/field-keys/{key}, where key is an ID or a handle
func (h *AdminHandler) GetFieldKey(w http.ResponseWriter, r *http.Request) {
	ref, ok := stringParam(w, r, "key")
	if !ok {
		return
	}
	key, err := h.keys.Resolve(r.Context(), ref)
	if err != nil {
		respondWithServiceError(w, r, err, "get field key")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, key)
}

// UpdateFieldKey handles PATCH /api/v1/field-keys/{key}
func (h *AdminHandler) UpdateFieldKey(w http.ResponseWriter, r *http.Request) {
	id, ok := uintParam(w, r, "key")
	if !ok {
		return
	}
	var req models.UpdateFieldKeyRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	key, err := h.keys.UpdateFieldKey(r.Context(), id, &req)
	if err != nil {
		respondWithServiceError(w, r, err, "update field key")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, key)
}

// DeleteFieldKey handles DELETE /api/v1/field-keys/{key}
func (h *AdminHandler) DeleteFieldKey(w http.ResponseWriter, r *http.Request) {
	id, ok := uintParam(w, r, "key")
	if !ok {
		return
	}
	if err := h.keys.DeleteFieldKey(r.Context(), id); err != nil {
		respondWithServiceError(w, r, err, "delete field key")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListAttributeTypes handles GET /api/v1/attribute-types
func (h *AdminHandler) ListAttributeTypes(w http.ResponseWriter, r *http.Request) {
	utils.RespondWithJSON(w, http.StatusOK, h.attributes.Handles())
}

// ListActionTypes handles GET /api/v1/action-types
func (h *AdminHandler) ListActionTypes(w http.ResponseWriter, r *http.Request) {
	list := h.actions.List()
	out := make([]models.ActionTypeResponse, 0, len(list))
	for _, t := range list {
		out = append(out, models.ActionTypeResponse{Handle: t.Handle(), Name: t.Name()})
	}
	utils.RespondWithJSON(w, http.StatusOK, out)
}

// ListFormTypes handles GET /api/v1/form-types
func (h *AdminHandler) ListFormTypes(w http.ResponseWriter, r *http.Request) {
	types, err := h.formTypes.ListFormTypes(r.Context())
	if err != nil {
		respondWithServiceError(w, r, err, "list form types")
		return
	}
	out := make([]models.FormTypeResponse, 0, len(types))
	for i := range types {
		out = append(out, services.ToFormTypeResponse(&types[i]))
	}
	utils.RespondWithJSON(w, http.StatusOK, out)
}

// CreateFormType handles POST /api/v1/form-types
func (h *AdminHandler) CreateFormType(w http.ResponseWriter, r *http.Request) {
	var req models.FormTypeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	ft, err := h.formTypes.CreateFormType(r.Context(), &req)
	if err != nil {
		respondWithServiceError(w, r, err, "create form type")
		return
	}
	utils.RespondWithJSON(w, http.StatusCreated, services.ToFormTypeResponse(ft))
}

// GetFormType handles GET /api/v1/form-types/{formTypeID}
func (h *AdminHandler) GetFormType(w http.ResponseWriter, r *http.Request) {
	id, ok := uintParam(w, r, "formTypeID")
	if !ok {
		return
	}
	ft, err := h.formTypes.GetFormType(r.Context(), id)
	if err != nil {
		respondWithServiceError(w, r, err, "get form type")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, services.ToFormTypeResponse(ft))
}

// UpdateFormType handles PUT /api/v1/form-types/{formTypeID}
func (h *AdminHandler) UpdateFormType(w http.ResponseWriter, r *http.Request) {
	id, ok := uintParam(w, r, "formTypeID")
	if !ok {
		return
	}
	var req models.FormTypeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	ft, err := h.formTypes.UpdateFormType(r.Context(), id, &req)
	if err != nil {
		respondWithServiceError(w, r, err, "update form type")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, services.ToFormTypeResponse(ft))
}

// DeleteFormType handles DELETE /api/v1/form-types/{formTypeID}
func (h *AdminHandler) DeleteFormType(w http.ResponseWriter, r *http.Request) {
	id, ok := uintParam(w, r, "formTypeID")
	if !ok {
		return
	}
	if err := h.formTypes.DeleteFormType(r.Context(), id); err != nil {
		respondWithServiceError(w, r, err, "delete form type")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListFormInstances handles GET /api/v1/form-types/{formTypeID}/instances
func (h *AdminHandler) ListFormInstances(w http.ResponseWriter, r *http.Request) {
	id, ok := uintParam(w, r, "formTypeID")
	if !ok {
		return
	}
	instances, err := h.instances.ListFormInstances(r.Context(), id)
	if err != nil {
		respondWithServiceError(w, r, err, "list form instances")
		return
	}
	if instances == nil {
		instances = []models.FormInstance{}
	}
	utils.RespondWithJSON(w, http.StatusOK, instances)
}

// CreateFormInstance handles POST /api/v1/instances
func (h *AdminHandler) CreateFormInstance(w http.ResponseWriter, r *http.Request) {
	var req models.SaveFormInstanceRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	instance, err := h.instances.CreateFormInstance(r.Context(), &req)
	if err != nil {
		respondWithServiceError(w, r, err, "create form instance")
		return
	}
	utils.RespondWithJSON(w, http.StatusCreated, instance)
}

// GetFormInstance handles GET /api/v1/instances/{instanceID}
func (h *AdminHandler) GetFormInstance(w http.ResponseWriter, r *http.Request) {
	id, ok := stringParam(w, r, "instanceID")
	if !ok {
		return
	}
	instance, err := h.instances.GetFormInstance(r.Context(), id)
	if err != nil {
		respondWithServiceError(w, r, err, "get form instance")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, instance)
}

// SaveFormInstance handles PUT /api/v1/instances/{instanceID}. The custom
// action list in the body replaces the stored one.
func (h *AdminHandler) SaveFormInstance(w http.ResponseWriter, r *http.Request) {
	id, ok := stringParam(w, r, "instanceID")
	if !ok {
		return
	}
	var req models.SaveFormInstanceRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	instance, err := h.instances.SaveFormInstance(r.Context(), id, &req)
	if err != nil {
		respondWithServiceError(w, r, err, "save form instance")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, instance)
}

// DuplicateFormInstance handles POST /api/v1/instances/{instanceID}/duplicate
func (h *AdminHandler) DuplicateFormInstance(w http.ResponseWriter, r *http.Request) {
	id, ok := stringParam(w, r, "instanceID")
	if !ok {
		return
	}
	instance, err := h.instances.DuplicateFormInstance(r.Context(), id)
	if err != nil {
		respondWithServiceError(w, r, err, "duplicate form instance")
		return
	}
	utils.RespondWithJSON(w, http.StatusCreated, instance)
}

// DeleteFormInstance handles DELETE /api/v1/instances/{instanceID}
func (h *AdminHandler) DeleteFormInstance(w http.ResponseWriter, r *http.Request) {
	id, ok := stringParam(w, r, "instanceID")
	if !ok {
		return
	}
	if err := h.instances.DeleteFormInstance(r.Context(), id); err != nil {
		respondWithServiceError(w, r, err, "delete form instance")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
